// Package clock provides the wall-clock anchored ticker that drives elapsed
// run time.
package clock

import (
	"sync"
	"time"
)

// Handle identifies a running ticker.
type Handle uint64

// Clock starts and stops periodic elapsed-time callbacks. The tick payload is
// the whole number of seconds elapsed since the anchored start, so a clock
// restarted with anchor N resumes counting from N. onTick is never called
// from inside StartTicking.
type Clock interface {
	StartTicking(anchorElapsedSeconds int, onTick func(elapsedSeconds int)) Handle
	StopTicking(h Handle)
}

// Ticker is the real 1 Hz Clock.
type Ticker struct {
	interval time.Duration

	mu      sync.Mutex
	next    Handle
	running map[Handle]chan struct{}
}

func NewTicker() *Ticker {
	return NewTickerWithInterval(time.Second)
}

// NewTickerWithInterval changes how often ticks fire. The payload is still
// measured in wall-clock seconds.
func NewTickerWithInterval(interval time.Duration) *Ticker {
	return &Ticker{
		interval: interval,
		running:  map[Handle]chan struct{}{},
	}
}

func (t *Ticker) StartTicking(anchorElapsedSeconds int, onTick func(elapsedSeconds int)) Handle {
	start := time.Now().Add(-time.Duration(anchorElapsedSeconds) * time.Second)
	stop := make(chan struct{})

	t.mu.Lock()
	t.next++
	h := t.next
	t.running[h] = stop
	t.mu.Unlock()

	go func() {
		ticker := time.NewTicker(t.interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case now := <-ticker.C:
				select {
				case <-stop:
					return
				default:
				}
				onTick(int(now.Sub(start) / time.Second))
			}
		}
	}()
	return h
}

// StopTicking stops the ticker without waiting for an in-flight callback.
// Stopping an unknown or already stopped handle is a no-op.
func (t *Ticker) StopTicking(h Handle) {
	t.mu.Lock()
	stop, ok := t.running[h]
	delete(t.running, h)
	t.mu.Unlock()

	if ok {
		close(stop)
	}
}

// Running reports how many tickers are active.
func (t *Ticker) Running() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.running)
}
