// Package rate provides per-connector admission control: a token bucket
// (golang.org/x/time/rate) combined with a bounded number of concurrent calls.
package rate

import (
	"context"
	"sync"

	xrate "golang.org/x/time/rate"
)

// Limiter is a token bucket. A non-positive rate means unlimited.
type Limiter struct {
	lim *xrate.Limiter
}

// New creates a limiter with rps tokens per second and the given burst.
// Burst defaults to 1.
//
// Example:
//
//	limiter := rate.New(2, 1) // 2 req/s, no bursts
func New(rps float64, burst int) *Limiter {
	if burst <= 0 {
		burst = 1
	}
	return &Limiter{lim: xrate.NewLimiter(toLimit(rps), burst)}
}

func toLimit(rps float64) xrate.Limit {
	if rps <= 0 {
		return xrate.Inf
	}
	return xrate.Limit(rps)
}

// Wait blocks until a token is available or ctx is done.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.lim.Wait(ctx)
}

// Allow consumes a token if one is available right now.
func (l *Limiter) Allow() bool {
	return l.lim.Allow()
}

// SetRate changes the refill rate.
func (l *Limiter) SetRate(rps float64) {
	l.lim.SetLimit(toLimit(rps))
}

// SetBurst changes the bucket capacity.
func (l *Limiter) SetBurst(burst int) {
	if burst <= 0 {
		burst = 1
	}
	l.lim.SetBurst(burst)
}

// Rate returns tokens per second (0 when unlimited).
func (l *Limiter) Rate() float64 {
	if l.lim.Limit() == xrate.Inf {
		return 0
	}
	return float64(l.lim.Limit())
}

// Burst returns the bucket capacity.
func (l *Limiter) Burst() int {
	return l.lim.Burst()
}

// Tokens returns the tokens currently available.
func (l *Limiter) Tokens() float64 {
	return l.lim.Tokens()
}

// Gate admits a call only when a concurrency slot and a token are both available.
type Gate struct {
	limiter *Limiter
	slots   chan struct{}
}

// NewGate builds a gate. maxConcurrent defaults to 1.
func NewGate(rps float64, burst, maxConcurrent int) *Gate {
	if maxConcurrent <= 0 {
		maxConcurrent = 1
	}
	return &Gate{
		limiter: New(rps, burst),
		slots:   make(chan struct{}, maxConcurrent),
	}
}

// Acquire blocks for a slot, then for a token. The returned release must be
// called exactly once when the call ends.
func (g *Gate) Acquire(ctx context.Context) (release func(), err error) {
	select {
	case g.slots <- struct{}{}:
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	if err := g.limiter.Wait(ctx); err != nil {
		<-g.slots
		return nil, err
	}

	var once sync.Once
	return func() { once.Do(func() { <-g.slots }) }, nil
}

// InFlight returns the number of calls currently holding a slot.
func (g *Gate) InFlight() int {
	return len(g.slots)
}

// MaxConcurrent returns the slot count.
func (g *Gate) MaxConcurrent() int {
	return cap(g.slots)
}

// Limiter exposes the token bucket.
func (g *Gate) Limiter() *Limiter {
	return g.limiter
}

// GateConfig configures a gate.
type GateConfig struct {
	Rate          float64
	Burst         int
	MaxConcurrent int
}

// Set keeps one gate per connector name so limits persist across runs.
type Set struct {
	mu    sync.Mutex
	gates map[string]*Gate
}

// NewSet creates an empty set.
func NewSet() *Set {
	return &Set{gates: make(map[string]*Gate)}
}

// Get returns the gate for name, creating it from gc on first use.
// Later calls update the token bucket rate and burst; the concurrency bound
// is fixed at creation.
func (s *Set) Get(name string, gc GateConfig) *Gate {
	s.mu.Lock()
	defer s.mu.Unlock()

	if g, ok := s.gates[name]; ok {
		g.limiter.SetRate(gc.Rate)
		g.limiter.SetBurst(gc.Burst)
		return g
	}
	g := NewGate(gc.Rate, gc.Burst, gc.MaxConcurrent)
	s.gates[name] = g
	return g
}

// Len returns how many gates exist.
func (s *Set) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.gates)
}
