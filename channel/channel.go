// Package channel implements the pattern matcher, read loop, output
// normalizer and the Channel type that owns a transport for a Driver.
package channel

import (
	"context"
	"fmt"
	"io"
	"regexp"
	"sync"
	"time"

	"github.com/morganhein/netshell/nerrors"
	"github.com/morganhein/netshell/netlog"
	"github.com/morganhein/netshell/transport"
)

// Options configures a Channel.
type Options struct {
	// SearchDepth is the tail-window size in bytes. Zero selects the
	// default of 200 bytes.
	SearchDepth int
	// Quiescence is the minimum gap, after the last byte received, that a
	// trailing prompt match must hold before the read loop accepts it.
	// Zero selects a 20ms default, per the boundary-behavior requirement
	// that a prompt-shaped substring mid-output must not terminate a read
	// prematurely.
	Quiescence time.Duration
	// PagerPatterns are compiled regexes; any match in the buffer's tail
	// window, checked after each received chunk, causes the loop to write
	// a single space and continue
	// reading, used to dismiss vendor "--More--" pagers. A nil slice
	// selects DefaultPagerPatterns.
	PagerPatterns []*regexp.Regexp
}

// DefaultPagerPatterns matches the continuation prompts observed across
// the built-in platforms when on-open paging-disable commands fail or
// haven't run yet (Cisco-style "--More--", and the two teleprompter
// continuation markers seen on generic POSIX/telnet-era gear).
var DefaultPagerPatterns = []*regexp.Regexp{
	regexp.MustCompile(`--More-- $`),
	regexp.MustCompile(`:\r$`),
	regexp.MustCompile(`:\x1B\[K$`),
}

// Channel owns a transport.Transport for the duration of a Driver's open
// connection. All exported methods take exclusive access via an internal
// mutex: concurrent calls on the same Channel are a caller error the mutex
// turns into serialization rather than a data race, since Go cannot
// statically forbid concurrent use the way an exclusive borrow would.
type Channel struct {
	t       transport.Transport
	opts    Options
	mu      sync.Mutex
	buf     *tailBuffer
	reads   chan readResult
	readErr error
	closed  bool
}

type readResult struct {
	n   int
	err error
}

// New wraps t in a Channel using opts (zero value is a valid default).
func New(t transport.Transport, opts Options) *Channel {
	if opts.PagerPatterns == nil {
		opts.PagerPatterns = DefaultPagerPatterns
	}
	return &Channel{
		t:    t,
		opts: opts,
		buf:  newTailBuffer(opts.SearchDepth),
	}
}

// Write sends bytes verbatim.
func (c *Channel) Write(p []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, err := c.t.Write(p)
	if err != nil {
		return nerrors.Wrap(nerrors.KindTransport, "channel.Write", err)
	}
	return nil
}

// WriteLine sends text followed by a line feed.
func (c *Channel) WriteLine(text string) error {
	return c.Write([]byte(text + "\n"))
}

// matchResult is returned by ReadUntil* operations.
type matchResult struct {
	raw      []byte
	matchIdx int // index of the matched pattern in a multi-pattern call
	matched  string
}

// quiescence returns the configured quiescence window or its default.
func (c *Channel) quiescence() time.Duration {
	if c.opts.Quiescence > 0 {
		return c.opts.Quiescence
	}
	return 20 * time.Millisecond
}

// readUntil is the read loop (component B). It drains the transport into
// the channel's buffer, testing match after every chunk, until a pattern
// matches at the tail AND no new bytes arrive for the quiescence window,
// or the deadline elapses. It never busy-waits: the only blocking points
// are the reader-goroutine channel receive and the deadline timer, waited
// on together in one select.
func (c *Channel) readUntil(ctx context.Context, test func() (idx, start, end int, ok bool), deadline time.Time) (matchResult, error) {
	if c.reads == nil {
		c.startReader()
	}

	timer := time.NewTimer(time.Until(deadline))
	defer timer.Stop()

	var quiesce *time.Timer
	var quiesceC <-chan time.Time
	var pendingIdx, pendingStart, pendingEnd int

	for {
		select {
		case <-ctx.Done():
			return matchResult{}, nerrors.Wrap(nerrors.KindNotConnected, "channel.readUntil", ctx.Err())

		case res := <-c.reads:
			if res.err != nil {
				if res.err == io.EOF {
					return matchResult{}, nerrors.Wrap(nerrors.KindTransport, "channel.readUntil", io.EOF)
				}
				return matchResult{}, nerrors.Wrap(nerrors.KindTransport, "channel.readUntil", res.err)
			}

			c.handlePager()

			if idx, start, end, ok := test(); ok {
				pendingIdx, pendingStart, pendingEnd = idx, start, end
				if quiesce == nil {
					quiesce = time.NewTimer(c.quiescence())
					quiesceC = quiesce.C
				} else {
					if !quiesce.Stop() {
						select {
						case <-quiesce.C:
						default:
						}
					}
					quiesce.Reset(c.quiescence())
				}
			} else if quiesce != nil {
				quiesce.Stop()
				quiesceC = nil
				quiesce = nil
			}

			if !timer.Stop() {
				select {
				case <-timer.C:
				default:
				}
			}
			timer.Reset(time.Until(deadline))

		case <-quiesceC:
			raw := make([]byte, pendingEnd)
			copy(raw, c.buf.Bytes()[:pendingEnd])
			matched := string(c.buf.Bytes()[pendingStart:pendingEnd])
			c.buf.Reset(pendingEnd)
			return matchResult{raw: raw, matchIdx: pendingIdx, matched: matched}, nil

		case <-timer.C:
			return matchResult{}, nerrors.New(nerrors.KindTimeout, "channel.readUntil", "deadline elapsed without match")
		}
	}
}

// startReader launches the single goroutine that owns transport.Read
// calls, forwarding each chunk's outcome over c.reads. One goroutine lives
// for the lifetime of the Channel; readUntil never spawns its own reader.
func (c *Channel) startReader() {
	c.reads = make(chan readResult, 1)
	go func() {
		buf := make([]byte, 4096)
		for {
			n, err := c.t.Read(buf)
			if n > 0 {
				c.buf.Append(buf[:n])
			}
			c.reads <- readResult{n: n, err: err}
			if err != nil {
				return
			}
		}
	}()
}

// handlePager writes a single space if the most recent buffer tail matches
// a configured pager pattern, dismissing a "--More--" style continuation
// prompt so the read loop can keep collecting the real response.
func (c *Channel) handlePager() {
	if len(c.opts.PagerPatterns) == 0 {
		return
	}
	if _, _, _, ok := c.buf.SearchAnyTail(c.opts.PagerPatterns); ok {
		netlog.Log.Debug("pager continuation detected, sending space")
		_, _ = c.t.Write([]byte(" "))
	}
}

// ReadUntilPattern reads until re matches at the buffer tail, honoring
// deadline.
func (c *Channel) ReadUntilPattern(ctx context.Context, re *regexp.Regexp, deadline time.Time) (string, string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.readUntil(ctx, func() (int, int, int, bool) {
		start, end, ok := c.buf.SearchTail(re)
		return 0, start, end, ok
	}, deadline)
	if err != nil {
		return "", "", err
	}
	return string(res.raw), res.matched, nil
}

// ReadUntilAny reads until any of patterns matches at the buffer tail,
// returning the index of the first hit by list order, the accumulated
// prefix, and the matched text.
func (c *Channel) ReadUntilAny(ctx context.Context, patterns []*regexp.Regexp, deadline time.Time) (idx int, prefix string, matched string, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	res, err := c.readUntil(ctx, func() (int, int, int, bool) {
		return c.buf.SearchAnyTail(patterns)
	}, deadline)
	if err != nil {
		return 0, "", "", err
	}
	return res.matchIdx, string(res.raw), res.matched, nil
}

// ReadUntilAnyOrPrompt reads until any of patterns matches, or the given
// prompt regex matches, whichever comes first at the buffer tail. The
// prompt regex is always checked last in priority order, matching the
// interactive engine's use of it as a fallback expectation.
func (c *Channel) ReadUntilAnyOrPrompt(ctx context.Context, patterns []*regexp.Regexp, prompt *regexp.Regexp, deadline time.Time) (idx int, prefix string, matched string, err error) {
	all := make([]*regexp.Regexp, 0, len(patterns)+1)
	all = append(all, patterns...)
	all = append(all, prompt)
	return c.ReadUntilAny(ctx, all, deadline)
}

// Close tears down the underlying transport.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.t.Close()
}

// Normalize exposes the output normalizer (component C) for callers that
// have raw bytes and a matched prompt (the Driver, after a successful
// read-until-prompt).
func Normalize(raw, command, prompt string) string {
	return normalize(raw, command, prompt)
}

// CompileFailurePatterns compiles a list of failure substrings/regexes
// into regexes, treating any invalid regex as a literal substring match
// (matching the permissive "substrings or regexes" wording of the failure
// pattern contract).
func CompileFailurePatterns(patterns []string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile(p)
		if err != nil {
			re = regexp.MustCompile(regexp.QuoteMeta(p))
		}
		out = append(out, re)
	}
	return out
}

// FailureMatch returns the first failure pattern that matches output, or
// ok=false if none do.
func FailureMatch(output string, patterns []*regexp.Regexp) (message string, ok bool) {
	for _, re := range patterns {
		if loc := re.FindStringIndex(output); loc != nil {
			return fmt.Sprintf("output matched failure pattern %q", re.String()), true
		}
	}
	return "", false
}
