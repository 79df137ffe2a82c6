// internal/core/ports/registry.go
package ports

import (
	"baykus/internal/core/domain"
	"baykus/internal/platform/logx"
)

// Deps son las dependencias compartidas que reciben las factories.
type Deps struct {
	Logger logx.Logger
}

// Registry es el catálogo estático de connectors. El orchestrator instancia
// desde él sus connectors cuando no se le pasan ya construidos.
type Registry interface {
	// ListConnectors devuelve los descriptores ordenados por prioridad.
	ListConnectors() []ConnectorDescriptor

	// Build instancia los connectors habilitados en configs.
	Build(configs map[string]ConnectorConfig, deps Deps) ([]Connector, error)
}

// Descriptor devuelve el descriptor de un connector en ejecución.
func Descriptor(c Connector) ConnectorDescriptor {
	return ConnectorDescriptor{
		Name:         c.Name(),
		Kind:         c.Kind(),
		Capabilities: append([]domain.AttributeType(nil), c.Capabilities()...),
	}
}
