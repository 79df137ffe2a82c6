// internal/platform/workerpool/schedulers.go
package workerpool

import (
	"cmp"
	"slices"
)

// Scheduler decide en qué orden se despacha un lote.
// Nunca modifica el slice recibido.
type Scheduler interface {
	Schedule(tasks []Task) []Task
	Name() string
}

// PriorityScheduler despacha primero las tareas de mayor prioridad;
// a igual prioridad conserva el orden de llegada.
type PriorityScheduler struct{}

func NewPriorityScheduler() *PriorityScheduler { return &PriorityScheduler{} }

func (*PriorityScheduler) Schedule(tasks []Task) []Task {
	out := slices.Clone(tasks)
	slices.SortStableFunc(out, func(a, b Task) int {
		return cmp.Compare(b.Priority(), a.Priority())
	})
	return out
}

func (*PriorityScheduler) Name() string { return "priority" }

// FIFOScheduler despacha en orden de llegada.
type FIFOScheduler struct{}

func NewFIFOScheduler() *FIFOScheduler { return &FIFOScheduler{} }

func (*FIFOScheduler) Schedule(tasks []Task) []Task { return slices.Clone(tasks) }

func (*FIFOScheduler) Name() string { return "fifo" }
