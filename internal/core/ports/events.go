// internal/core/ports/events.go
package ports

import "baykus/internal/core/domain"

// EventSink recibe notificaciones del core. Son fire-and-forget:
// las implementaciones no deben bloquear y el core no espera respuesta.
type EventSink interface {
	OnProgress(job domain.RunJob)
	OnAssetChanged(targetID string, asset domain.Asset)
	OnRunCompleted(targetID string, summary domain.RunSummary)
	OnAlert(alert domain.Alert)
}

// NopSink descarta todos los eventos.
type NopSink struct{}

func (NopSink) OnProgress(domain.RunJob)                 {}
func (NopSink) OnAssetChanged(string, domain.Asset)      {}
func (NopSink) OnRunCompleted(string, domain.RunSummary) {}
func (NopSink) OnAlert(domain.Alert)                     {}
