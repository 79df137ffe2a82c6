// internal/platform/ui/presenter.go
package ui

import (
	"baykus/internal/core/domain"
	"baykus/internal/core/ports"
)

// Presenter muestra el progreso de una investigación en la terminal.
// Recibe los eventos del core como cualquier otro EventSink.
type Presenter interface {
	ports.EventSink

	// Start muestra la cabecera con el target y los connectors
	Start(target domain.Target, connectors []string)

	// Close limpia recursos del presenter
	Close() error
}

// New devuelve el presenter adecuado: sin salida si quiet.
func New(quiet bool) Presenter {
	if quiet {
		return NoopPresenter{}
	}
	return NewPTermPresenter()
}

// NoopPresenter no produce ninguna salida. Útil para modo quiet o headless.
type NoopPresenter struct {
	ports.NopSink
}

func (NoopPresenter) Start(domain.Target, []string) {}
func (NoopPresenter) Close() error                  { return nil }
