package driver

import (
	"context"
	"regexp"
	"time"

	"github.com/morganhein/netshell/channel"
	"github.com/morganhein/netshell/netlog"
	"github.com/morganhein/netshell/nerrors"
)

// eventKind distinguishes the two InteractiveEvent variants.
type eventKind int

const (
	eventSend eventKind = iota
	eventSendHidden
	eventExpect
)

// InteractiveEvent is one step of a send/expect exchange: either text to
// write (plain or hidden, e.g. a password) or a pattern to wait for.
type InteractiveEvent struct {
	kind    eventKind
	text    string
	pattern string
	timeout time.Duration
}

// InteractiveBuilder assembles an alternating Send/Expect sequence.
// Sequences must begin with a Send and end with an Expect; Build rejects
// anything else with nerrors.KindInvalidInput.
type InteractiveBuilder struct {
	events []InteractiveEvent
	err    error
}

// NewInteractiveBuilder starts an empty interactive sequence.
func NewInteractiveBuilder() *InteractiveBuilder {
	return &InteractiveBuilder{}
}

// Send queues text to write, followed by a line feed.
func (b *InteractiveBuilder) Send(text string) *InteractiveBuilder {
	b.events = append(b.events, InteractiveEvent{kind: eventSend, text: text})
	return b
}

// SendHidden queues text to write like Send, but marks it so logging masks
// the value (used for passwords and other secrets mid-sequence).
func (b *InteractiveBuilder) SendHidden(text string) *InteractiveBuilder {
	b.events = append(b.events, InteractiveEvent{kind: eventSendHidden, text: text})
	return b
}

// Expect queues a pattern (regex source) the engine must see at the buffer
// tail before the next step runs, using the driver's default timeout
// unless WithTimeout overrides it for this step.
func (b *InteractiveBuilder) Expect(pattern string) *InteractiveBuilder {
	b.events = append(b.events, InteractiveEvent{kind: eventExpect, pattern: pattern})
	return b
}

// WithTimeout overrides the timeout of the most recently added Expect
// step.
func (b *InteractiveBuilder) WithTimeout(d time.Duration) *InteractiveBuilder {
	if len(b.events) == 0 || b.events[len(b.events)-1].kind != eventExpect {
		b.err = nerrors.New(nerrors.KindInvalidInput, "driver.InteractiveBuilder.WithTimeout", "WithTimeout must follow Expect")
		return b
	}
	b.events[len(b.events)-1].timeout = d
	return b
}

// Build validates and returns the event sequence.
func (b *InteractiveBuilder) Build() ([]InteractiveEvent, error) {
	if b.err != nil {
		return nil, b.err
	}
	if len(b.events) == 0 {
		return nil, nerrors.New(nerrors.KindInvalidInput, "driver.InteractiveBuilder.Build", "sequence must have at least one step")
	}
	if b.events[0].kind == eventExpect {
		return nil, nerrors.New(nerrors.KindInvalidInput, "driver.InteractiveBuilder.Build", "sequence must begin with Send or SendHidden")
	}
	if b.events[len(b.events)-1].kind != eventExpect {
		return nil, nerrors.New(nerrors.KindInvalidInput, "driver.InteractiveBuilder.Build", "sequence must end with Expect")
	}
	for i := 1; i < len(b.events); i++ {
		if (b.events[i].kind == eventExpect) == (b.events[i-1].kind == eventExpect) {
			return nil, nerrors.New(nerrors.KindInvalidInput, "driver.InteractiveBuilder.Build", "Send and Expect steps must alternate")
		}
	}
	return b.events, nil
}

// SendInteractive executes an alternating Send/Expect sequence built by
// InteractiveBuilder, concatenating every segment's raw output into a
// single Response. Per-step detail exists only transiently while building
// that concatenation; callers see one Response, not a list of steps.
func (d *Driver) SendInteractive(ctx context.Context, events []InteractiveEvent) (Response, error) {
	if err := d.checkReady("driver.SendInteractive"); err != nil {
		return Response{}, err
	}
	if len(events) == 0 {
		return Response{}, nerrors.New(nerrors.KindInvalidInput, "driver.SendInteractive", "empty event sequence")
	}

	d.mu.Lock()
	levelName := d.currentPrivilege
	d.mu.Unlock()
	if _, ok := d.getPrivilege(levelName); !ok {
		return Response{}, nerrors.New(nerrors.KindUnknownPrivilege, "driver.SendInteractive", "current privilege not found in platform")
	}

	start := time.Now()
	var rawParts []byte
	var lastMatched string
	var commandLine string
	var echoLine string

	for i, ev := range events {
		switch ev.kind {
		case eventSend, eventSendHidden:
			if i == 0 {
				echoLine = ev.text
				commandLine = netlog.MaskHidden(ev.text, ev.kind == eventSendHidden)
			}
			if ev.kind == eventSendHidden {
				netlog.Log.Debug("interactive send: " + netlog.MaskHidden(ev.text, true))
			} else {
				netlog.Log.Debug("interactive send: " + netlog.MaskHidden(ev.text, false))
			}
			if err := d.ch.WriteLine(ev.text); err != nil {
				d.poison()
				return Response{}, err
			}

		case eventExpect:
			timeout := ev.timeout
			deadline := d.deadline(timeout)
			re, err := regexp.Compile(ev.pattern)
			if err != nil {
				re = regexp.MustCompile(regexp.QuoteMeta(ev.pattern))
			}
			raw, matched, err := d.ch.ReadUntilPattern(ctx, re, deadline)
			if err != nil {
				if nerrors.Is(err, nerrors.KindTransport) || nerrors.Is(err, nerrors.KindNotConnected) {
					d.poison()
				}
				return Response{}, err
			}
			rawParts = append(rawParts, raw...)
			lastMatched = matched
		}
	}

	elapsed := time.Since(start)
	raw := string(rawParts)
	result := raw
	if d.normalizeOutput {
		result = channel.Normalize(raw, echoLine, lastMatched)
		result = d.def.Behavior.NormalizeOutput(result, echoLine)
	}

	failMsg, failed := d.def.Behavior.FailureMatch(result)
	if !failed {
		if msg, ok := channel.FailureMatch(result, d.def.FailurePatterns()); ok {
			failMsg, failed = msg, true
		}
	}

	return newResponse(commandLine, result, raw, lastMatched, elapsed, failed, failMsg), nil
}
