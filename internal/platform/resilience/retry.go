// internal/platform/resilience/retry.go
package resilience

import (
	"context"
	"fmt"
	"math"
	"time"

	"baykus/internal/platform/errors"
)

// RetryPolicy define el backoff exponencial: BaseDelay * Multiplier^intento, acotado por MaxDelay.
type RetryPolicy struct {
	MaxAttempts int           `yaml:"max_attempts"` // incluye el primer intento
	BaseDelay   time.Duration `yaml:"base_delay"`
	Multiplier  float64       `yaml:"multiplier"`
	MaxDelay    time.Duration `yaml:"max_delay"`
}

// DefaultRetryPolicy retorna 3 intentos con 500ms, x2, hasta 30s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, BaseDelay: 500 * time.Millisecond, Multiplier: 2, MaxDelay: 30 * time.Second}
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay < 0 {
		p.BaseDelay = 0
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	if p.MaxDelay <= 0 {
		p.MaxDelay = 60 * time.Second
	}
	return p
}

// Backoff devuelve la espera tras el intento attempt (0 = primer intento fallido).
func (p RetryPolicy) Backoff(attempt int) time.Duration {
	p = p.normalized()
	d := time.Duration(float64(p.BaseDelay) * math.Pow(p.Multiplier, float64(attempt)))
	if d > p.MaxDelay || d < 0 {
		d = p.MaxDelay
	}
	return d
}

// Attempt es lo que Retry reporta tras cada intento fallido.
type Attempt struct {
	Number int           // 1-based
	Err    error
	Delay  time.Duration // espera antes del siguiente intento (0 si no hay)
}

// Retry ejecuta fn hasta que tenga éxito, devuelva un error no reintentable o se agoten intentos.
// onFailure (opcional) se llama tras cada fallo.
// Devuelve el número de intentos realizados.
func Retry(ctx context.Context, p RetryPolicy, fn func(ctx context.Context, attempt int) error, onFailure func(Attempt)) (int, error) {
	p = p.normalized()

	var lastErr error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return attempt - 1, fmt.Errorf("%w: %w", errors.ErrCancellationRequested, err)
		}

		err := fn(ctx, attempt)
		if err == nil {
			return attempt, nil
		}
		lastErr = err

		retryable := errors.IsRetryable(err) && attempt < p.MaxAttempts
		info := Attempt{Number: attempt, Err: err}
		if retryable {
			info.Delay = p.Backoff(attempt - 1)
		}
		if onFailure != nil {
			onFailure(info)
		}
		if !retryable {
			return attempt, err
		}

		timer := time.NewTimer(info.Delay)
		select {
		case <-timer.C:
		case <-ctx.Done():
			timer.Stop()
			return attempt, fmt.Errorf("%w during backoff: %w", errors.ErrCancellationRequested, ctx.Err())
		}
	}
	return p.MaxAttempts, lastErr
}
