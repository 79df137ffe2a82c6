// internal/adapters/events/dispatcher.go
package events

import (
	"fmt"
	"sync"
	"sync/atomic"

	"baykus/internal/core/domain"
	"baykus/internal/core/ports"
	"baykus/internal/platform/logx"
)

// Dispatcher reparte eventos del core a varios sinks desde una goroutine
// propia. El core nunca espera a un sink lento: si el buffer está lleno el
// evento se descarta y se cuenta. Los resúmenes de run nunca se descartan:
// van a una lista aparte que el loop entrega después de lo ya encolado.
type Dispatcher struct {
	sinks  []ports.EventSink
	queue  chan func(ports.EventSink)
	logger logx.Logger

	completedMu sync.Mutex
	completed   []func(ports.EventSink)
	wake        chan struct{}

	mu      sync.RWMutex
	closed  bool
	done    chan struct{}
	dropped atomic.Uint64
}

// NewDispatcher arranca el dispatcher. buffer <= 0 usa 256.
func NewDispatcher(buffer int, logger logx.Logger, sinks ...ports.EventSink) *Dispatcher {
	if buffer <= 0 {
		buffer = 256
	}
	if logger == nil {
		logger = logx.Discard()
	}
	d := &Dispatcher{
		sinks:  sinks,
		queue:  make(chan func(ports.EventSink), buffer),
		logger: logger.With("component", "events"),
		done:   make(chan struct{}),
		wake:   make(chan struct{}, 1),
	}
	go d.loop()
	return d
}

func (d *Dispatcher) loop() {
	defer close(d.done)
	for {
		select {
		case ev, ok := <-d.queue:
			if !ok {
				d.flushCompleted()
				return
			}
			d.dispatch(ev)
		case <-d.wake:
			// lo encolado antes del resumen sale antes que él
			if !d.drainQueued() {
				d.flushCompleted()
				return
			}
			d.flushCompleted()
		}
	}
}

// drainQueued entrega lo que haya en la cola sin esperar. Devuelve false si
// la cola está cerrada y vacía.
func (d *Dispatcher) drainQueued() bool {
	for {
		select {
		case ev, ok := <-d.queue:
			if !ok {
				return false
			}
			d.dispatch(ev)
		default:
			return true
		}
	}
}

func (d *Dispatcher) flushCompleted() {
	d.completedMu.Lock()
	pending := d.completed
	d.completed = nil
	d.completedMu.Unlock()
	for _, ev := range pending {
		d.dispatch(ev)
	}
}

func (d *Dispatcher) dispatch(ev func(ports.EventSink)) {
	for _, s := range d.sinks {
		d.deliver(s, ev)
	}
}

func (d *Dispatcher) deliver(s ports.EventSink, ev func(ports.EventSink)) {
	defer func() {
		if r := recover(); r != nil {
			d.logger.Err(fmt.Errorf("sink panic: %v", r), "sink", fmt.Sprintf("%T", s))
		}
	}()
	ev(s)
}

func (d *Dispatcher) offer(ev func(ports.EventSink)) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		return
	}
	select {
	case d.queue <- ev:
	default:
		d.dropped.Add(1)
	}
}

func (d *Dispatcher) OnProgress(job domain.RunJob) {
	d.offer(func(s ports.EventSink) { s.OnProgress(job) })
}

func (d *Dispatcher) OnAssetChanged(targetID string, asset domain.Asset) {
	d.offer(func(s ports.EventSink) { s.OnAssetChanged(targetID, asset) })
}

func (d *Dispatcher) OnAlert(alert domain.Alert) {
	d.offer(func(s ports.EventSink) { s.OnAlert(alert) })
}

func (d *Dispatcher) OnRunCompleted(targetID string, summary domain.RunSummary) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.dropped.Add(1)
		return
	}
	d.completedMu.Lock()
	d.completed = append(d.completed, func(s ports.EventSink) { s.OnRunCompleted(targetID, summary) })
	d.completedMu.Unlock()
	select {
	case d.wake <- struct{}{}:
	default:
	}
}

// Dropped devuelve cuántos eventos se han descartado.
func (d *Dispatcher) Dropped() uint64 {
	return d.dropped.Load()
}

// Close entrega lo que quede en el buffer y para la goroutine. Idempotente.
func (d *Dispatcher) Close() error {
	d.mu.Lock()
	if !d.closed {
		d.closed = true
		close(d.queue)
	}
	d.mu.Unlock()

	<-d.done
	if n := d.dropped.Load(); n > 0 {
		d.logger.Warn("events dropped", "count", n)
	}
	return nil
}

var _ ports.EventSink = (*Dispatcher)(nil)
