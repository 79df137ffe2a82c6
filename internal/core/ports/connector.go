// internal/core/ports/connector.go
package ports

import (
	"context"
	"time"

	"baykus/internal/core/domain"
)

// Connector es el contrato de cualquier adaptador a una fuente externa.
// Fetch debe respetar ctx con prontitud y no escribir en estado compartido:
// su único efecto lateral es I/O de red.
type Connector interface {
	// Name retorna el identificador único del connector.
	Name() string

	// Kind retorna la familia de servicio.
	Kind() domain.ConnectorKind

	// Capabilities retorna los tipos de atributo del target que sabe consumir.
	Capabilities() []domain.AttributeType

	// Fetch consulta la fuente para el target. Un timeout debe devolverse como
	// fallo transitorio, nunca como panic.
	Fetch(ctx context.Context, target domain.Target) (*domain.ConnectorResult, error)
}

// HealthChecker es opcional: connectors que pueden verificar conectividad y credenciales.
type HealthChecker interface {
	Ping(ctx context.Context) error
}

// Closer es opcional: connectors que mantienen recursos abiertos.
type Closer interface {
	Close() error
}

// Applicable indica si el target aporta al menos uno de los atributos que consume el connector.
func Applicable(capabilities []domain.AttributeType, target domain.Target) bool {
	for _, c := range capabilities {
		if target.Has(c) {
			return true
		}
	}
	return false
}

// ConnectorConfig contiene la configuración de un connector.
type ConnectorConfig struct {
	// Enabled indica si el connector participa en los runs
	Enabled bool `yaml:"enabled"`

	// Timeout máximo por llamada a Fetch
	Timeout time.Duration `yaml:"timeout"`

	// MaxAttempts incluye el primer intento (1 = sin reintentos)
	MaxAttempts int `yaml:"max_attempts"`

	// RateLimit en peticiones por segundo (0 = sin límite)
	RateLimit float64 `yaml:"rate_limit"`

	// Burst capacidad del token bucket
	Burst int `yaml:"burst"`

	// MaxConcurrency llamadas simultáneas permitidas (por defecto 1)
	MaxConcurrency int `yaml:"max_concurrency"`

	// Priority orden de despacho (mayor primero)
	Priority int `yaml:"priority"`

	// APIKey credencial leída de config/env; nunca se persiste
	APIKey string `yaml:"api_key"`

	// BaseURL permite apuntar a un endpoint alternativo (tests, mirrors)
	BaseURL string `yaml:"base_url"`

	// Custom configuración específica del connector
	Custom map[string]any `yaml:"custom"`
}

// DefaultConnectorConfig retorna una configuración por defecto.
func DefaultConnectorConfig() ConnectorConfig {
	return ConnectorConfig{
		Enabled:        true,
		Timeout:        30 * time.Second,
		MaxAttempts:    3,
		RateLimit:      1,
		Burst:          1,
		MaxConcurrency: 1,
		Custom:         make(map[string]any),
	}
}

// ConnectorFactory crea una instancia de Connector.
type ConnectorFactory func(cfg ConnectorConfig, deps Deps) (Connector, error)

// ConnectorDescriptor describe un connector registrado.
type ConnectorDescriptor struct {
	Name             string
	Kind             domain.ConnectorKind
	Description      string
	Version          string
	Capabilities     []domain.AttributeType
	RequiresAuth     bool
	DefaultRateLimit float64
	Priority         int
}
