package driver

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/morganhein/netshell/platform/vendors/linux"
)

func TestInteractiveBuilderRejectsLeadingExpect(t *testing.T) {
	_, err := NewInteractiveBuilder().Expect("foo").Build()
	assert.Error(t, err)
}

func TestInteractiveBuilderRejectsTrailingSend(t *testing.T) {
	_, err := NewInteractiveBuilder().Send("a").Expect("b").Send("c").Build()
	assert.Error(t, err)
}

func TestInteractiveBuilderRejectsNonAlternating(t *testing.T) {
	_, err := NewInteractiveBuilder().Send("a").Send("b").Expect("c").Build()
	assert.Error(t, err)
}

func TestInteractiveBuilderRejectsEmptySequence(t *testing.T) {
	_, err := NewInteractiveBuilder().Build()
	assert.Error(t, err)
}

func TestInteractiveBuilderWithTimeoutRequiresPrecedingExpect(t *testing.T) {
	_, err := NewInteractiveBuilder().Send("a").WithTimeout(time.Second).Expect("b").Build()
	assert.Error(t, err)
}

func TestInteractiveBuilderAcceptsValidSequence(t *testing.T) {
	events, err := NewInteractiveBuilder().
		Send("delete").
		Expect(`\[confirm\]`).
		Send("y").
		Expect(`#\s?$`).
		WithTimeout(5 * time.Second).
		Build()
	require.NoError(t, err)
	require.Len(t, events, 4)
}

func TestSendInteractiveConcatenatesSegments(t *testing.T) {
	d, dev := newDriverUnderTest(t, linux.Platform())

	go func() { _, _ = dev.conn.Write([]byte("user@host$ ")) }()
	require.NoError(t, d.OpenDriver(context.Background()))

	events, err := NewInteractiveBuilder().
		SendHidden("rm important-file").
		Expect(`\[y/n\]\s?$`).
		Send("y").
		Expect(`\$\s?$`).
		Build()
	require.NoError(t, err)

	go func() {
		cmd, rerr := dev.readLine()
		require.NoError(t, rerr)
		assert.Equal(t, "rm important-file", cmd)
		_, _ = dev.conn.Write([]byte("rm important-file\r\nremove? [y/n] "))

		confirm, rerr := dev.readLine()
		require.NoError(t, rerr)
		assert.Equal(t, "y", confirm)
		_, _ = dev.conn.Write([]byte("y\r\ndone\r\nuser@host$ "))
	}()

	resp, err := d.SendInteractive(context.Background(), events)
	require.NoError(t, err)
	assert.Contains(t, resp.Result, "remove? [y/n]")
	assert.Contains(t, resp.Result, "done")
}
