package transport

import (
	"context"
	"errors"
	"sync"
	"time"
)

var ErrLimiterClosed = errors.New("limiter closed")

// Limiter is a token bucket bounding in-flight transforms. Tokens come back
// through Release; the ticker only wakes waiters so that a cancelled
// context is noticed.
type Limiter struct {
	capacity int64

	mu     sync.Mutex
	tokens int64
	cond   *sync.Cond
	closed bool
	stop   chan struct{}
}

func NewLimiter(capacity int64, tick time.Duration) *Limiter {
	if capacity < 1 {
		capacity = 1
	}
	if tick <= 0 {
		tick = 100 * time.Millisecond
	}
	l := &Limiter{
		capacity: capacity,
		tokens:   capacity,
		stop:     make(chan struct{}),
	}
	l.cond = sync.NewCond(&l.mu)

	go func() {
		t := time.NewTicker(tick)
		defer t.Stop()
		for {
			select {
			case <-t.C:
				l.cond.Broadcast()
			case <-l.stop:
				return
			}
		}
	}()
	return l
}

// Acquire blocks until a token is free, ctx is done or the limiter closes.
func (l *Limiter) Acquire(ctx context.Context) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	for l.tokens == 0 && ctx.Err() == nil && !l.closed {
		l.cond.Wait()
	}
	if l.closed {
		return ErrLimiterClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	l.tokens--
	return nil
}

func (l *Limiter) Release(n int64) {
	l.mu.Lock()
	l.tokens += n
	if l.tokens > l.capacity {
		l.tokens = l.capacity
	}
	l.mu.Unlock()
	l.cond.Broadcast()
}

// Available reports the free tokens.
func (l *Limiter) Available() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.tokens
}

func (l *Limiter) Close() {
	l.mu.Lock()
	if !l.closed {
		l.closed = true
		close(l.stop)
	}
	l.mu.Unlock()
	l.cond.Broadcast()
}
