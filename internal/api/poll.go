package api

import (
	"context"
	"fmt"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/incidentops/console/internal/constants"
	"github.com/incidentops/console/internal/events"
)

// Condition decides whether a poll response is terminal.
type Condition func(*Response) bool

// StateFinished is the default terminal condition: the response's "state"
// field equals "FINISHED".
func StateFinished(resp *Response) bool {
	return resp.State() == constants.PollTerminalState
}

type pollConfig struct {
	params    url.Values
	condition Condition
	progress  []func(*Response)
}

// PollOption customizes a poll.
type PollOption func(*pollConfig)

// WithPollParams sets query parameters sent with every poll GET.
func WithPollParams(params url.Values) PollOption {
	return func(cfg *pollConfig) { cfg.params = params }
}

// WithPollCondition replaces the default FINISHED-state terminal condition.
func WithPollCondition(cond Condition) PollOption {
	return func(cfg *pollConfig) { cfg.condition = cond }
}

// WithPollProgress registers an observer called with every response the
// poll receives, terminal included. Observers run on the poll goroutine,
// so a slow observer delays the next request rather than overlapping it.
// Observers may cancel the poll.
func WithPollProgress(fn func(*Response)) PollOption {
	return func(cfg *pollConfig) { cfg.progress = append(cfg.progress, fn) }
}

// Poll is one in-flight polling operation. Requests are strictly
// serialized: the next GET is issued only after the previous one settled
// and its response was processed.
//
// After Cancel, no progress observer runs and no terminal result or
// failure is delivered; Wait and Result report ErrPollCancelled.
type Poll struct {
	id     string
	path   string
	client *Client

	cancelled atomic.Bool
	ctxCancel context.CancelFunc

	mu   sync.Mutex
	resp *Response
	err  error
	done chan struct{}
}

// Poll issues GET requests against path every interval until the terminal
// condition is satisfied, a request fails, or the poll is cancelled. A
// single failed GET ends the poll; retry policy belongs to the caller.
func (c *Client) Poll(ctx context.Context, path string, interval time.Duration, opts ...PollOption) *Poll {
	cfg := &pollConfig{condition: StateFinished}
	for _, opt := range opts {
		opt(cfg)
	}
	if interval <= 0 {
		interval = constants.DefaultPollInterval
	}

	pctx, cancel := context.WithCancel(ctx)
	p := &Poll{
		id:        uuid.NewString(),
		path:      path,
		client:    c,
		ctxCancel: cancel,
		done:      make(chan struct{}),
	}

	go p.run(pctx, cfg, interval)
	return p
}

func (p *Poll) run(ctx context.Context, cfg *pollConfig, interval time.Duration) {
	log := p.client.log.With().Str("poll_id", p.id).Str("path", p.path).Logger()

	for {
		resp, err := p.client.Get(ctx, p.path, cfg.params)

		if p.cancelled.Load() {
			p.settle(nil, ErrPollCancelled)
			return
		}

		if err != nil {
			log.Debug().Err(err).Msg("poll request failed, ending poll")
			p.settle(nil, fmt.Errorf("poll %s: %w", p.path, err))
			return
		}

		for _, fn := range cfg.progress {
			fn(resp)
			if p.cancelled.Load() {
				p.settle(nil, ErrPollCancelled)
				return
			}
		}

		if p.client.bus != nil {
			p.client.bus.Publish(events.NewPollProgressEvent(p.id, p.path, resp.State()))
		}

		if cfg.condition(resp) {
			p.settle(resp, nil)
			return
		}

		timer := time.NewTimer(interval)
		select {
		case <-ctx.Done():
			timer.Stop()
			if p.cancelled.Load() {
				p.settle(nil, ErrPollCancelled)
			} else {
				p.settle(nil, ctx.Err())
			}
			return
		case <-timer.C:
		}
	}
}

// settle records the outcome and closes done. Cancellation wins over any
// concurrently produced result, so a terminal response or failure arriving
// after Cancel is discarded.
func (p *Poll) settle(resp *Response, err error) {
	if p.cancelled.Load() {
		resp, err = nil, ErrPollCancelled
	}
	p.mu.Lock()
	p.resp = resp
	p.err = err
	p.mu.Unlock()
	close(p.done)
	p.ctxCancel()
}

// ID returns the poll's correlation ID.
func (p *Poll) ID() string {
	return p.id
}

// Done is closed once the poll has settled (terminal response, failure, or
// cancellation).
func (p *Poll) Done() <-chan struct{} {
	return p.done
}

// Result returns the poll outcome. Valid after Done is closed.
func (p *Poll) Result() (*Response, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.resp, p.err
}

// Wait blocks until the poll settles or ctx expires.
func (p *Poll) Wait(ctx context.Context) (*Response, error) {
	select {
	case <-p.done:
		return p.Result()
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Cancel marks the poll cancelled and stops any scheduled re-issue. An
// in-flight request is abandoned: its resolution is discarded without
// invoking observers. Safe to call more than once, including from a
// progress observer.
func (p *Poll) Cancel() {
	if p.cancelled.Swap(true) {
		return
	}
	p.ctxCancel()
}

// Cancelable is the capability CancelPoll looks for.
type Cancelable interface {
	Cancel()
}

// CancelPoll cancels v if it carries a cancel capability, and fails with
// ErrNotCancellable otherwise.
func CancelPoll(v interface{}) error {
	if c, ok := v.(Cancelable); ok {
		c.Cancel()
		return nil
	}
	return ErrNotCancellable
}
