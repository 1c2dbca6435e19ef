package table

import (
	"sync"
	"time"
)

// TimerHandle identifies a scheduled callback.
type TimerHandle interface{}

// Timer schedules callbacks. The incremental engine uses it for its
// sentinel-visibility tick and its auto-refresh tick; tests substitute a
// deterministic implementation.
type Timer interface {
	// Schedule runs fn after delay, repeatedly at that period when repeat
	// is set.
	Schedule(fn func(), delay time.Duration, repeat bool) TimerHandle

	// Cancel stops a scheduled callback. Cancelling an already-fired
	// one-shot is a no-op.
	Cancel(handle TimerHandle)
}

// StdTimer implements Timer over the runtime clock.
type StdTimer struct {
	mu      sync.Mutex
	next    int
	oneshot map[int]*time.Timer
	tickers map[int]chan struct{}
}

// NewStdTimer creates a Timer backed by time.AfterFunc and time.Ticker.
func NewStdTimer() *StdTimer {
	return &StdTimer{
		oneshot: make(map[int]*time.Timer),
		tickers: make(map[int]chan struct{}),
	}
}

func (t *StdTimer) Schedule(fn func(), delay time.Duration, repeat bool) TimerHandle {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.next++
	id := t.next

	if !repeat {
		t.oneshot[id] = time.AfterFunc(delay, fn)
		return id
	}

	stop := make(chan struct{})
	t.tickers[id] = stop

	go func() {
		ticker := time.NewTicker(delay)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				fn()
			}
		}
	}()

	return id
}

func (t *StdTimer) Cancel(handle TimerHandle) {
	id, ok := handle.(int)
	if !ok {
		return
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	if timer, ok := t.oneshot[id]; ok {
		timer.Stop()
		delete(t.oneshot, id)
	}
	if stop, ok := t.tickers[id]; ok {
		close(stop)
		delete(t.tickers, id)
	}
}
