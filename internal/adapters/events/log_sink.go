// internal/adapters/events/log_sink.go
package events

import (
	"baykus/internal/core/domain"
	"baykus/internal/core/ports"
	"baykus/internal/platform/logx"
)

// LogSink vuelca los eventos al logger estructurado. Los cambios de asset
// van a debug porque en un run grande son miles.
type LogSink struct {
	logger logx.Logger
}

func NewLogSink(logger logx.Logger) *LogSink {
	if logger == nil {
		logger = logx.Discard()
	}
	return &LogSink{logger: logger.With("component", "events")}
}

func (s *LogSink) OnProgress(job domain.RunJob) {
	s.logger.Debug("run progress",
		"run", job.ID,
		"status", string(job.Status),
		"progress", job.Progress,
	)
}

func (s *LogSink) OnAssetChanged(targetID string, a domain.Asset) {
	s.logger.Debug("asset changed",
		"target", targetID,
		"asset", a.Key(),
		"version", a.Version,
		"sources", len(a.Sources()),
	)
}

func (s *LogSink) OnAlert(a domain.Alert) {
	s.logger.Warn("risk alert",
		"target", a.TargetID,
		"asset", a.AssetKey,
		"severity", string(a.Severity),
		"previous", a.Previous,
		"current", a.Current,
	)
}

func (s *LogSink) OnRunCompleted(targetID string, sum domain.RunSummary) {
	s.logger.Info("run completed",
		"target", targetID,
		"run", sum.RunID,
		"status", string(sum.Status),
		"assets", sum.Assets,
		"relationships", sum.Relationships,
		"alerts", len(sum.Alerts),
		"duration", sum.Duration().String(),
	)
}

var _ ports.EventSink = (*LogSink)(nil)
