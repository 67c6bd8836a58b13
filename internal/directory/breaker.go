package directory

import (
	"sync"
	"time"
)

// Breaker is a per-key circuit breaker. Threshold consecutive failures
// within Window open the key for OpenFor; a success resets it.
type Breaker struct {
	mu        sync.Mutex
	threshold int
	window    time.Duration
	openFor   time.Duration
	now       func() time.Time

	state map[string]*breakerState
}

type breakerState struct {
	failCount int
	firstFail time.Time
	openUntil time.Time
}

type BreakerOptions struct {
	Threshold int
	Window    time.Duration
	OpenFor   time.Duration
}

func NewBreaker(opt BreakerOptions) *Breaker {
	if opt.Threshold <= 0 {
		opt.Threshold = 5
	}
	if opt.Window <= 0 {
		opt.Window = 30 * time.Second
	}
	if opt.OpenFor <= 0 {
		opt.OpenFor = 30 * time.Second
	}
	return &Breaker{
		threshold: opt.Threshold,
		window:    opt.Window,
		openFor:   opt.OpenFor,
		now:       time.Now,
		state:     make(map[string]*breakerState),
	}
}

func (b *Breaker) Allow(key string) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.state[key]
	if !ok {
		return true
	}
	return s.openUntil.IsZero() || !b.now().Before(s.openUntil)
}

func (b *Breaker) Success(key string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.state, key)
}

// Failure records a failed call and reports whether it opened the key.
func (b *Breaker) Failure(key string) (opened bool) {
	now := b.now()
	b.mu.Lock()
	defer b.mu.Unlock()

	s, ok := b.state[key]
	if !ok || now.Sub(s.firstFail) > b.window {
		s = &breakerState{failCount: 1, firstFail: now}
		b.state[key] = s
	} else {
		s.failCount++
	}
	if s.failCount >= b.threshold {
		s.openUntil = now.Add(b.openFor)
		return true
	}
	return false
}
