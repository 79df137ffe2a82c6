// internal/platform/workerpool/worker_pool.go
package workerpool

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"baykus/internal/platform/errors"
	"baykus/internal/platform/logx"
)

// ErrPoolClosed se devuelve al enviar tareas a un pool cerrado.
var ErrPoolClosed = errors.New("worker pool closed")

// Task representa una tarea a ejecutar en el worker pool.
type Task interface {
	// Execute ejecuta la tarea
	Execute(ctx context.Context) error

	// Priority retorna la prioridad de la tarea (mayor = más prioritario)
	Priority() int

	// Name retorna el nombre de la tarea
	Name() string
}

// Func adapta una función a Task.
type Func struct {
	TaskName     string
	TaskPriority int
	Fn           func(ctx context.Context) error
}

func (f Func) Execute(ctx context.Context) error { return f.Fn(ctx) }
func (f Func) Priority() int                     { return f.TaskPriority }
func (f Func) Name() string                      { return f.TaskName }

// TaskResult representa el resultado de una tarea.
type TaskResult struct {
	Task     Task
	Error    error
	Duration time.Duration
}

// Config configura el worker pool.
type Config struct {
	Workers int
	// QueueSize buffer de tareas pendientes (default 2x workers)
	QueueSize int
	Logger    logx.Logger
	// OnResult se invoca desde el worker al terminar cada tarea
	OnResult func(TaskResult)
}

// Pool ejecuta tareas con un número fijo de workers.
// Las tareas se envían con Submit mientras el pool está abierto;
// Close espera a que se vacíe la cola.
type Pool struct {
	workers  int
	logger   logx.Logger
	onResult func(TaskResult)

	queue chan Task

	mu      sync.RWMutex
	started bool
	closed  bool
	wg      sync.WaitGroup

	submitted atomic.Int64
	completed atomic.Int64
	failed    atomic.Int64
}

// New crea un pool sin arrancar.
func New(cfg Config) *Pool {
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = cfg.Workers * 2
	}
	if cfg.Logger == nil {
		cfg.Logger = logx.Discard()
	}

	return &Pool{
		workers:  cfg.Workers,
		logger:   cfg.Logger.With("component", "worker-pool"),
		onResult: cfg.OnResult,
		queue:    make(chan Task, cfg.QueueSize),
	}
}

// Start arranca los workers. ctx se pasa a cada tarea.
func (p *Pool) Start(ctx context.Context) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return
	}
	p.started = true

	p.logger.Debug("starting worker pool", "workers", p.workers)
	for i := 0; i < p.workers; i++ {
		p.wg.Add(1)
		go p.worker(ctx, i)
	}
}

func (p *Pool) worker(ctx context.Context, id int) {
	defer p.wg.Done()
	for task := range p.queue {
		p.execute(ctx, id, task)
	}
}

func (p *Pool) execute(ctx context.Context, workerID int, task Task) {
	start := time.Now()
	err := p.safeExecute(ctx, task)
	duration := time.Since(start)

	p.completed.Add(1)
	if err != nil {
		p.failed.Add(1)
	}

	p.logger.Debug("task completed",
		"worker_id", workerID,
		"task", task.Name(),
		"duration_ms", duration.Milliseconds(),
		"error", err != nil,
	)

	if p.onResult != nil {
		p.onResult(TaskResult{Task: task, Error: err, Duration: duration})
	}
}

// safeExecute convierte un panic de la tarea en error de invariante.
func (p *Pool) safeExecute(ctx context.Context, task Task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = errors.Wrapf(errors.ErrInvariant, "panic in task %s: %v", task.Name(), r)
		}
	}()
	return task.Execute(ctx)
}

// Submit encola una tarea. Bloquea si la cola está llena hasta que haya
// hueco o ctx termine.
func (p *Pool) Submit(ctx context.Context, task Task) error {
	p.mu.RLock()
	defer p.mu.RUnlock()

	if p.closed {
		return ErrPoolClosed
	}
	select {
	case p.queue <- task:
		p.submitted.Add(1)
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close deja de aceptar tareas y espera a que terminen las encoladas.
// Es idempotente.
func (p *Pool) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		p.wg.Wait()
		return
	}
	p.closed = true
	close(p.queue)
	started := p.started
	p.mu.Unlock()

	if !started {
		// nadie va a consumir la cola: se descartan las tareas pendientes
		for range p.queue {
		}
		return
	}
	p.wg.Wait()
	p.logger.Debug("worker pool stopped", "completed", p.completed.Load(), "failed", p.failed.Load())
}

// Stats retorna estadísticas del worker pool.
func (p *Pool) Stats() Stats {
	return Stats{
		Workers:   p.workers,
		Submitted: p.submitted.Load(),
		Completed: p.completed.Load(),
		Failed:    p.failed.Load(),
		Queued:    len(p.queue),
	}
}

// Stats contiene estadísticas del worker pool.
type Stats struct {
	Workers   int
	Submitted int64
	Completed int64
	Failed    int64
	Queued    int
}

func (s Stats) String() string {
	return fmt.Sprintf("workers=%d submitted=%d completed=%d failed=%d queued=%d",
		s.Workers, s.Submitted, s.Completed, s.Failed, s.Queued)
}

// RunBatch ejecuta tasks en el orden del scheduler con workers goroutines y
// devuelve los resultados en orden de finalización.
func RunBatch(ctx context.Context, workers int, scheduler Scheduler, tasks []Task, logger logx.Logger) []TaskResult {
	if len(tasks) == 0 {
		return []TaskResult{}
	}
	if scheduler == nil {
		scheduler = NewPriorityScheduler()
	}

	var (
		mu      sync.Mutex
		results = make([]TaskResult, 0, len(tasks))
	)
	p := New(Config{
		Workers: workers,
		Logger:  logger,
		OnResult: func(r TaskResult) {
			mu.Lock()
			results = append(results, r)
			mu.Unlock()
		},
	})
	p.Start(ctx)
	for _, t := range scheduler.Schedule(tasks) {
		if err := p.Submit(ctx, t); err != nil {
			mu.Lock()
			results = append(results, TaskResult{Task: t, Error: err})
			mu.Unlock()
		}
	}
	p.Close()
	return results
}
