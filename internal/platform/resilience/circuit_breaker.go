// internal/platform/resilience/circuit_breaker.go
package resilience

import (
	"errors"
	"sync"
	"time"
)

// ErrCircuitOpen se devuelve cuando el breaker rechaza la llamada.
var ErrCircuitOpen = errors.New("circuit breaker is open")

// State representa el estado del circuit breaker.
type State int

const (
	StateClosed   State = iota // Normal operation
	StateOpen                  // Failing, rejecting requests
	StateHalfOpen              // Testing if service recovered
)

// String retorna una representación legible del estado.
func (s State) String() string {
	switch s {
	case StateClosed:
		return "closed"
	case StateOpen:
		return "open"
	case StateHalfOpen:
		return "half-open"
	default:
		return "unknown"
	}
}

// BreakerConfig configura un circuit breaker.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"` // fallos consecutivos para abrir
	OpenTimeout      time.Duration `yaml:"open_timeout"`      // espera antes de half-open
	HalfOpenMax      int           `yaml:"half_open_max"`     // éxitos en half-open para cerrar
}

// CircuitBreaker evita martillear connectors que fallan run tras run.
// Solo cuentan los fallos que agotan reintentos, no cada intento.
type CircuitBreaker struct {
	mu              sync.Mutex
	cfg             BreakerConfig
	state           State
	failureCount    int
	successCount    int
	lastFailureTime time.Time
	now             func() time.Time
}

// NewCircuitBreaker crea un breaker cerrado. Valores no positivos usan 5 fallos, 60s y 1 éxito.
func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	if cfg.FailureThreshold <= 0 {
		cfg.FailureThreshold = 5
	}
	if cfg.OpenTimeout <= 0 {
		cfg.OpenTimeout = 60 * time.Second
	}
	if cfg.HalfOpenMax <= 0 {
		cfg.HalfOpenMax = 1
	}
	return &CircuitBreaker{cfg: cfg, state: StateClosed, now: time.Now}
}

// Allow verifica si una llamada puede pasar.
func (cb *CircuitBreaker) Allow() bool {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	switch cb.state {
	case StateClosed:
		return true
	case StateOpen:
		if cb.now().Sub(cb.lastFailureTime) >= cb.cfg.OpenTimeout {
			cb.state = StateHalfOpen
			cb.successCount = 0
			return true
		}
		return false
	case StateHalfOpen:
		return cb.successCount < cb.cfg.HalfOpenMax
	default:
		return false
	}
}

// RecordSuccess registra una operación exitosa.
func (cb *CircuitBreaker) RecordSuccess() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.failureCount = 0
	if cb.state == StateHalfOpen {
		cb.successCount++
		if cb.successCount >= cb.cfg.HalfOpenMax {
			cb.state = StateClosed
			cb.successCount = 0
		}
	}
}

// RecordFailure registra una operación fallida.
func (cb *CircuitBreaker) RecordFailure() {
	cb.mu.Lock()
	defer cb.mu.Unlock()

	cb.lastFailureTime = cb.now()
	cb.failureCount++

	switch cb.state {
	case StateClosed:
		if cb.failureCount >= cb.cfg.FailureThreshold {
			cb.state = StateOpen
		}
	case StateHalfOpen:
		cb.state = StateOpen
		cb.successCount = 0
	}
}

// State retorna el estado actual del circuit breaker.
func (cb *CircuitBreaker) State() State {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	return cb.state
}

// Reset vuelve al estado cerrado.
func (cb *CircuitBreaker) Reset() {
	cb.mu.Lock()
	defer cb.mu.Unlock()
	cb.state = StateClosed
	cb.failureCount = 0
	cb.successCount = 0
}

// Breakers mantiene un breaker por connector, compartido entre runs.
type Breakers struct {
	mu  sync.Mutex
	cfg BreakerConfig
	m   map[string]*CircuitBreaker
}

// NewBreakers crea el conjunto con una configuración común.
func NewBreakers(cfg BreakerConfig) *Breakers {
	return &Breakers{cfg: cfg, m: make(map[string]*CircuitBreaker)}
}

// Get devuelve (creando si hace falta) el breaker de name.
func (b *Breakers) Get(name string) *CircuitBreaker {
	b.mu.Lock()
	defer b.mu.Unlock()
	cb, ok := b.m[name]
	if !ok {
		cb = NewCircuitBreaker(b.cfg)
		b.m[name] = cb
	}
	return cb
}
