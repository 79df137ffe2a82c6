// internal/adapters/output/streaming.go
package output

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"baykus/internal/core/domain"
	"baykus/internal/core/ports"
	"baykus/internal/platform/logx"
)

// StreamingWriter escribe los eventos del run como JSON lines a medida que
// llegan, para poder seguir una investigación larga con tail -f.
type StreamingWriter struct {
	mu     sync.Mutex
	f      *os.File
	enc    *json.Encoder
	path   string
	now    func() time.Time
	logger logx.Logger
	failed bool
}

// StreamEvent es una línea del fichero.
type StreamEvent struct {
	Kind     string    `json:"kind"`
	At       time.Time `json:"at"`
	TargetID string    `json:"target_id,omitempty"`
	Payload  any       `json:"payload"`
}

// NewStreamingWriter crea <dir>/<name>.events.jsonl.
func NewStreamingWriter(dir, name string, logger logx.Logger) (*StreamingWriter, error) {
	if logger == nil {
		logger = logx.Discard()
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create output directory: %w", err)
	}
	path := filepath.Join(dir, sanitizeName(name)+".events.jsonl")
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("failed to create events file: %w", err)
	}
	return &StreamingWriter{
		f:      f,
		enc:    json.NewEncoder(f),
		path:   path,
		now:    time.Now,
		logger: logger.With("component", "streaming-writer"),
	}, nil
}

// Path devuelve la ruta del fichero.
func (w *StreamingWriter) Path() string { return w.path }

func (w *StreamingWriter) write(kind, targetID string, payload any) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.failed {
		return
	}
	ev := StreamEvent{Kind: kind, At: w.now().UTC(), TargetID: targetID, Payload: payload}
	if err := w.enc.Encode(ev); err != nil {
		// un disco lleno no debe tumbar el run; avisamos una vez
		w.failed = true
		w.logger.Err(err, "file", w.path)
	}
}

func (w *StreamingWriter) OnProgress(job domain.RunJob) {
	w.write("progress", job.TargetID, job)
}

func (w *StreamingWriter) OnAssetChanged(targetID string, a domain.Asset) {
	w.write("asset", targetID, a)
}

func (w *StreamingWriter) OnAlert(a domain.Alert) {
	w.write("alert", a.TargetID, a)
}

func (w *StreamingWriter) OnRunCompleted(targetID string, s domain.RunSummary) {
	w.write("summary", targetID, s)
}

// Close cierra el fichero.
func (w *StreamingWriter) Close() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.f.Close()
}

var _ ports.EventSink = (*StreamingWriter)(nil)
