// internal/core/domain/runjob.go
package domain

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RunStatus es el estado global de una investigación.
type RunStatus string

const (
	RunPending   RunStatus = "pending"
	RunRunning   RunStatus = "running"
	RunCompleted RunStatus = "completed"
	RunFailed    RunStatus = "failed"
	RunCancelled RunStatus = "cancelled"
)

// IsTerminal indica si el estado ya no admite transiciones.
func (s RunStatus) IsTerminal() bool {
	return s == RunCompleted || s == RunFailed || s == RunCancelled
}

// CanTransition implementa pending -> running -> (completed | failed | cancelled).
// Un run pendiente también puede cancelarse o fallar antes de arrancar.
func (s RunStatus) CanTransition(to RunStatus) bool {
	switch s {
	case RunPending:
		return to == RunRunning || to == RunCancelled || to == RunFailed
	case RunRunning:
		return to.IsTerminal()
	default:
		return false
	}
}

// ConnectorStatus es el estado de un connector dentro de un run.
type ConnectorStatus string

const (
	ConnectorPending   ConnectorStatus = "pending"
	ConnectorRunning   ConnectorStatus = "running"
	ConnectorSucceeded ConnectorStatus = "succeeded"
	ConnectorFailed    ConnectorStatus = "failed"
	ConnectorSkipped   ConnectorStatus = "skipped"
)

// IsResolved indica si el connector terminó (bien, mal u omitido).
func (s ConnectorStatus) IsResolved() bool {
	return s == ConnectorSucceeded || s == ConnectorFailed || s == ConnectorSkipped
}

// ConnectorRun es el detalle de un connector en un run.
type ConnectorRun struct {
	Name      string          `json:"name"`
	Status    ConnectorStatus `json:"status"`
	Attempts  int             `json:"attempts"`
	Findings  int             `json:"findings"`
	Error     string          `json:"error,omitempty"`
	Reason    string          `json:"reason,omitempty"`
	StartedAt time.Time       `json:"started_at,omitempty"`
	EndedAt   time.Time       `json:"ended_at,omitempty"`
}

// RunJob es una foto de una investigación. Es un valor: las mutaciones pasan por RunTracker.
type RunJob struct {
	ID         string         `json:"id"`
	TargetID   string         `json:"target_id"`
	Status     RunStatus      `json:"status"`
	Connectors []ConnectorRun `json:"connectors"`
	Progress   float64        `json:"progress"`
	StartedAt  time.Time      `json:"started_at,omitempty"`
	EndedAt    time.Time      `json:"ended_at,omitempty"`
	Error      string         `json:"error,omitempty"`
}

// Connector busca el detalle de un connector por nombre.
func (j RunJob) Connector(name string) (ConnectorRun, bool) {
	for _, c := range j.Connectors {
		if c.Name == name {
			return c, true
		}
	}
	return ConnectorRun{}, false
}

// Failed lista los connectors que terminaron en failed.
func (j RunJob) Failed() []ConnectorRun {
	var out []ConnectorRun
	for _, c := range j.Connectors {
		if c.Status == ConnectorFailed {
			out = append(out, c)
		}
	}
	return out
}

// RunTracker guarda el RunJob mutable detrás de su propio lock.
type RunTracker struct {
	mu         sync.Mutex
	id         string
	targetID   string
	status     RunStatus
	connectors map[string]*ConnectorRun
	startedAt  time.Time
	endedAt    time.Time
	err        string
	now        func() time.Time
}

// NewRunTracker crea un run pendiente para el target.
func NewRunTracker(targetID string) *RunTracker {
	return &RunTracker{
		id:         uuid.NewString(),
		targetID:   targetID,
		status:     RunPending,
		connectors: make(map[string]*ConnectorRun),
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// ID del run.
func (t *RunTracker) ID() string { return t.id }

// TargetID del run.
func (t *RunTracker) TargetID() string { return t.targetID }

// Status actual.
func (t *RunTracker) Status() RunStatus {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.status
}

// Dispatch registra los connectors del run como pending.
func (t *RunTracker) Dispatch(names ...string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, n := range names {
		if _, ok := t.connectors[n]; !ok {
			t.connectors[n] = &ConnectorRun{Name: n, Status: ConnectorPending}
		}
	}
}

// Transition cambia el estado global; rechaza transiciones fuera de la máquina de estados.
func (t *RunTracker) Transition(to RunStatus, cause error) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if !t.status.CanTransition(to) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, t.status, to)
	}
	t.status = to
	switch {
	case to == RunRunning:
		t.startedAt = t.now()
	case to.IsTerminal():
		t.endedAt = t.now()
		if t.startedAt.IsZero() {
			t.startedAt = t.endedAt
		}
	}
	if cause != nil {
		t.err = cause.Error()
	}
	return nil
}

// Start marca un connector como running.
func (t *RunTracker) Start(name string) error {
	return t.update(name, func(c *ConnectorRun) {
		c.Status = ConnectorRunning
		if c.StartedAt.IsZero() {
			c.StartedAt = t.now()
		}
	})
}

// Attempt incrementa el contador de intentos.
func (t *RunTracker) Attempt(name string) error {
	return t.update(name, func(c *ConnectorRun) { c.Attempts++ })
}

// Succeed marca un connector como succeeded.
func (t *RunTracker) Succeed(name string, findings int) error {
	return t.update(name, func(c *ConnectorRun) {
		c.Status = ConnectorSucceeded
		c.Findings = findings
		c.EndedAt = t.now()
	})
}

// Fail marca un connector como failed.
func (t *RunTracker) Fail(name string, cause error, reason string) error {
	return t.update(name, func(c *ConnectorRun) {
		c.Status = ConnectorFailed
		if cause != nil {
			c.Error = cause.Error()
		}
		c.Reason = reason
		c.EndedAt = t.now()
	})
}

// Skip marca un connector como skipped. Uno ya resuelto no cambia.
func (t *RunTracker) Skip(name, reason string) error {
	return t.update(name, func(c *ConnectorRun) {
		if c.Status.IsResolved() {
			return
		}
		c.Status = ConnectorSkipped
		c.Reason = reason
		c.EndedAt = t.now()
	})
}

// SkipPending marca como skipped todo lo que no llegó a resolverse.
func (t *RunTracker) SkipPending(reason string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range t.connectors {
		if !c.Status.IsResolved() {
			c.Status = ConnectorSkipped
			c.Reason = reason
			c.EndedAt = t.now()
		}
	}
}

func (t *RunTracker) update(name string, fn func(*ConnectorRun)) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	c, ok := t.connectors[name]
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownConnector, name)
	}
	fn(c)
	return nil
}

// AllResolved indica si todos los connectors despachados terminaron.
func (t *RunTracker) AllResolved() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, c := range t.connectors {
		if !c.Status.IsResolved() {
			return false
		}
	}
	return true
}

// Snapshot devuelve una copia consistente ordenada por nombre de connector.
func (t *RunTracker) Snapshot() RunJob {
	t.mu.Lock()
	defer t.mu.Unlock()

	job := RunJob{
		ID:         t.id,
		TargetID:   t.targetID,
		Status:     t.status,
		Connectors: make([]ConnectorRun, 0, len(t.connectors)),
		StartedAt:  t.startedAt,
		EndedAt:    t.endedAt,
		Error:      t.err,
	}
	resolved := 0
	for _, c := range t.connectors {
		job.Connectors = append(job.Connectors, *c)
		if c.Status.IsResolved() {
			resolved++
		}
	}
	sort.Slice(job.Connectors, func(i, j int) bool { return job.Connectors[i].Name < job.Connectors[j].Name })

	switch {
	case len(t.connectors) > 0:
		job.Progress = float64(resolved) / float64(len(t.connectors))
	case t.status.IsTerminal():
		job.Progress = 1
	}
	return job
}

// RunSummary se emite al terminar un run.
type RunSummary struct {
	RunID         string         `json:"run_id"`
	TargetID      string         `json:"target_id"`
	Status        RunStatus      `json:"status"`
	Assets        int            `json:"assets"`
	Relationships int            `json:"relationships"`
	Connectors    []ConnectorRun `json:"connectors"`
	Alerts        []Alert        `json:"alerts,omitempty"`
	StartedAt     time.Time      `json:"started_at"`
	EndedAt       time.Time      `json:"ended_at"`
	Error         string         `json:"error,omitempty"`
}

// Duration del run.
func (s RunSummary) Duration() time.Duration {
	return s.EndedAt.Sub(s.StartedAt)
}
