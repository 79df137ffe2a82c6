// internal/platform/registry/connector_registry.go
package registry

import (
	"fmt"
	"sort"
	"sync"

	"baykus/internal/core/ports"
	"baykus/internal/platform/errors"
	"baykus/internal/platform/logx"
)

// ConnectorRegistry es el catálogo estático de connectors.
// Cada paquete de connector se registra en init(); el catálogo queda fijo al arrancar.
type ConnectorRegistry struct {
	mu          sync.RWMutex
	factories   map[string]ports.ConnectorFactory
	descriptors map[string]ports.ConnectorDescriptor
	logger      logx.Logger
}

var (
	globalRegistry *ConnectorRegistry
	once           sync.Once
)

// Global retorna la instancia global del registry.
func Global() *ConnectorRegistry {
	once.Do(func() {
		globalRegistry = New(logx.New())
	})
	return globalRegistry
}

// New crea un registry vacío.
func New(logger logx.Logger) *ConnectorRegistry {
	return &ConnectorRegistry{
		factories:   make(map[string]ports.ConnectorFactory),
		descriptors: make(map[string]ports.ConnectorDescriptor),
		logger:      logger.With("component", "connector-registry"),
	}
}

// Register añade un connector al catálogo.
func (r *ConnectorRegistry) Register(desc ports.ConnectorDescriptor, factory ports.ConnectorFactory) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch {
	case desc.Name == "":
		return fmt.Errorf("%w: connector name cannot be empty", errors.ErrInvalidInput)
	case factory == nil:
		return fmt.Errorf("%w: factory cannot be nil for connector %s", errors.ErrInvalidInput, desc.Name)
	case len(desc.Capabilities) == 0:
		return fmt.Errorf("%w: connector %s declares no capabilities", errors.ErrInvalidInput, desc.Name)
	}
	if _, exists := r.factories[desc.Name]; exists {
		return fmt.Errorf("connector %s is already registered", desc.Name)
	}

	r.factories[desc.Name] = factory
	r.descriptors[desc.Name] = desc
	r.logger.Debug("connector registered", "name", desc.Name, "kind", desc.Kind)
	return nil
}

// MustRegister es Register para init(): un fallo se registra como warning y el connector queda fuera.
func (r *ConnectorRegistry) MustRegister(desc ports.ConnectorDescriptor, factory ports.ConnectorFactory) {
	if err := r.Register(desc, factory); err != nil {
		r.logger.Warn("failed to register connector", "name", desc.Name, "error", err.Error())
	}
}

// ListConnectors devuelve los descriptores por prioridad descendente y nombre.
func (r *ConnectorRegistry) ListConnectors() []ports.ConnectorDescriptor {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]ports.ConnectorDescriptor, 0, len(r.descriptors))
	for _, d := range r.descriptors {
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Priority != out[j].Priority {
			return out[i].Priority > out[j].Priority
		}
		return out[i].Name < out[j].Name
	})
	return out
}

// Descriptor retorna el descriptor de un connector.
func (r *ConnectorRegistry) Descriptor(name string) (ports.ConnectorDescriptor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	d, ok := r.descriptors[name]
	return d, ok
}

// IsRegistered verifica si un connector está registrado.
func (r *ConnectorRegistry) IsRegistered(name string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.factories[name]
	return ok
}

// Build instancia los connectors habilitados, en orden de prioridad.
// Los que fallan se registran y se omiten; solo es error si no queda ninguno.
func (r *ConnectorRegistry) Build(configs map[string]ports.ConnectorConfig, deps ports.Deps) ([]ports.Connector, error) {
	if configs == nil {
		return nil, fmt.Errorf("%w: configs cannot be nil", errors.ErrInvalidInput)
	}
	if deps.Logger == nil {
		deps.Logger = r.logger
	}

	var (
		built   []ports.Connector
		failed  []error
		enabled int
	)
	for _, desc := range r.ListConnectors() {
		cfg, ok := configs[desc.Name]
		if !ok || !cfg.Enabled {
			continue
		}
		enabled++

		r.mu.RLock()
		factory := r.factories[desc.Name]
		r.mu.RUnlock()

		c, err := factory(cfg, deps)
		if err != nil {
			failed = append(failed, fmt.Errorf("build connector %s: %w", desc.Name, err))
			r.logger.Warn("connector build error", "connector", desc.Name, "error", err.Error())
			continue
		}
		built = append(built, c)
	}

	for name, cfg := range configs {
		if cfg.Enabled && !r.IsRegistered(name) {
			r.logger.Warn("connector not registered, skipping", "connector", name)
		}
	}

	if len(built) == 0 && enabled > 0 {
		return nil, fmt.Errorf("no connectors could be built: %w", errors.Join(failed...))
	}
	deps.Logger.Info("connectors built", "count", len(built), "enabled", enabled)
	return built, nil
}

// Clear elimina todos los connectors (útil para testing).
func (r *ConnectorRegistry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories = make(map[string]ports.ConnectorFactory)
	r.descriptors = make(map[string]ports.ConnectorDescriptor)
}

var _ ports.Registry = (*ConnectorRegistry)(nil)
