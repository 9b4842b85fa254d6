package modem

import (
	"context"
	"strings"
	"sync"
	"time"

	"i4.energy/across/rak811/at"
)

// outcome is the final state of a command. It is written exactly once.
type outcome struct {
	result at.Result
	// line is the response line that resolved the command
	line string
	// err is set when the command was aborted, e.g. because the Loop stopped
	err error
}

// pendingCommand is the single command waiting for its response.
type pendingCommand struct {
	command  string
	marker   string
	deadline time.Time
	// done is buffered so the resolver never blocks
	done chan outcome
}

// correlator tracks at most one in-flight command. The Loop resolves it from
// received lines while the issuing goroutine waits for the outcome.
type correlator struct {
	mu      sync.Mutex
	pending *pendingCommand
}

// arm makes cmd the pending command. It fails with ErrCommandPending when
// another command is still waiting.
func (c *correlator) arm(cmd, marker string, timeout time.Duration) (*pendingCommand, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != nil {
		return nil, ErrCommandPending
	}
	p := &pendingCommand{
		command:  cmd,
		marker:   marker,
		deadline: time.Now().Add(timeout),
		done:     make(chan outcome, 1),
	}
	c.pending = p
	return p, nil
}

// disarm clears p if it is still pending and reports whether it did. When it
// returns false the outcome has already been delivered on p.done.
func (c *correlator) disarm(p *pendingCommand) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != p {
		return false
	}
	c.pending = nil
	return true
}

// finish delivers o to the pending command. Must be called with mu held.
func (c *correlator) finish(o outcome) *pendingCommand {
	p := c.pending
	c.pending = nil
	p.done <- o
	return p
}

// resolve checks line against the pending command. An error marker resolves
// it with the mapped vendor code, otherwise a line containing the expected
// marker resolves it with at.Success. The resolved command is returned, nil
// when line did not resolve anything.
func (c *correlator) resolve(line string) (*pendingCommand, at.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return nil, at.Undefined
	}

	if code, ok := at.ErrorCode(line); ok {
		r := at.ParseErrorCode(code)
		return c.finish(outcome{result: r, line: line}), r
	}
	if strings.Contains(line, c.pending.marker) {
		return c.finish(outcome{result: at.Success, line: line}), at.Success
	}
	return nil, at.Undefined
}

// abort fails the pending command, if any, with err.
func (c *correlator) abort(err error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending != nil {
		c.finish(outcome{err: err})
	}
}

// expected returns the marker of the pending command, empty when idle.
func (c *correlator) expected() string {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.pending == nil {
		return ""
	}
	return c.pending.marker
}

// wait blocks until p is resolved, its deadline passes or ctx is done. A
// resolution racing with the deadline wins over the timeout.
func (c *correlator) wait(ctx context.Context, p *pendingCommand) (outcome, error) {
	timer := time.NewTimer(time.Until(p.deadline))
	defer timer.Stop()

	select {
	case o := <-p.done:
		return o, o.err
	case <-timer.C:
		if c.disarm(p) {
			return outcome{result: at.ATResponseTimeout}, nil
		}
	case <-ctx.Done():
		if c.disarm(p) {
			return outcome{}, ctx.Err()
		}
	}
	o := <-p.done
	return o, o.err
}
