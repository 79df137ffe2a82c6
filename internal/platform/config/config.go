// internal/platform/config/config.go
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"baykus/internal/core/ports"
	"baykus/internal/platform/errors"
	"baykus/internal/platform/resilience"
	"baykus/internal/platform/rules"
)

// EnvPrefix prefija todas las variables de entorno.
const EnvPrefix = "BAYKUS_"

type Config struct {
	// App
	LogLevel  string        `yaml:"log_level"`
	Quiet     bool          `yaml:"quiet"`
	OutputDir string        `yaml:"output_dir"`
	Timeout   time.Duration `yaml:"timeout"` // 0 = sin timeout global

	// Connectors: mapa de configuraciones por connector (key = nombre registrado)
	Connectors map[string]ports.ConnectorConfig `yaml:"connectors"`

	Runner       Runner       `yaml:"runner"`
	Inference    Inference    `yaml:"inference"`
	Scoring      Scoring      `yaml:"scoring"`
	Orchestrator Orchestrator `yaml:"orchestrator"`
	Archive      Archive      `yaml:"archive"`
	Telemetry    Telemetry    `yaml:"telemetry"`
}

type Runner struct {
	Retry          resilience.RetryPolicy   `yaml:"retry"`
	BreakerEnabled bool                     `yaml:"breaker_enabled"`
	Breaker        resilience.BreakerConfig `yaml:"breaker"`
	GracePeriod    time.Duration            `yaml:"grace_period"` // espera máxima tras cancelar
}

// Inference contiene la confianza base de cada regla, por kind.
type Inference struct {
	Confidences map[string]float64 `yaml:"confidences"`
	Combine     string             `yaml:"combine"` // independent | max
}

type Scoring struct {
	PropagationFactor float64      `yaml:"propagation_factor"`
	Damping           bool         `yaml:"damping"`
	Indicators        []rules.Rule `yaml:"indicators"`
}

type Orchestrator struct {
	MergeWorkers int `yaml:"merge_workers"`
	EventBuffer  int `yaml:"event_buffer"`
}

type Archive struct {
	Backend string `yaml:"backend"` // none | local | s3
	Dir     string `yaml:"dir"`
	Bucket  string `yaml:"bucket"`
	Prefix  string `yaml:"prefix"`
	Region  string `yaml:"region"`
}

type Telemetry struct {
	Enabled     bool   `yaml:"enabled"`
	Endpoint    string `yaml:"endpoint"` // vacío = exporter stdout descartado
	ServiceName string `yaml:"service_name"`
}

// DefaultConnectorNames son los connectors que trae el binario.
var DefaultConnectorNames = []string{"dns", "rdap", "crtsh", "emailverify", "github", "pastebin", "webarchive", "search"}

// optInConnectors necesitan credenciales propias y arrancan deshabilitados.
var optInConnectors = map[string]bool{"search": true}

// DefaultConfig retorna una configuración por defecto.
func DefaultConfig() Config {
	connectors := make(map[string]ports.ConnectorConfig, len(DefaultConnectorNames))
	for _, name := range DefaultConnectorNames {
		cc := ports.DefaultConnectorConfig()
		cc.Enabled = !optInConnectors[name]
		connectors[name] = cc
	}

	return Config{
		LogLevel:   "info",
		OutputDir:  "baykus_out",
		Connectors: connectors,
		Runner: Runner{
			Retry:          resilience.DefaultRetryPolicy(),
			BreakerEnabled: true,
			Breaker:        resilience.BreakerConfig{FailureThreshold: 5, OpenTimeout: 5 * time.Minute, HalfOpenMax: 1},
			GracePeriod:    5 * time.Second,
		},
		Inference: Inference{
			Confidences: map[string]float64{
				"same_owner":      0.7,
				"co_occurrence":   0.3,
				"subdomain_of":    0.9,
				"linked_account":  0.6,
				"resolves_to":     0.8,
				"mail_handled_by": 0.5,
			},
			Combine: "independent",
		},
		Scoring: Scoring{
			PropagationFactor: 0.5,
			Damping:           true,
			Indicators:        rules.DefaultIndicators(),
		},
		Orchestrator: Orchestrator{MergeWorkers: 8, EventBuffer: 256},
		Archive:      Archive{Backend: "none", Dir: "baykus_out/results", Prefix: "results/"},
		Telemetry:    Telemetry{ServiceName: "baykus"},
	}
}

// Load inicializa la configuración: defaults -> fichero YAML -> ENV -> flags.
// flags puede ser nil (uso como librería).
func Load(flags *Flags) (Config, error) {
	cfg := DefaultConfig()

	path := getenv(EnvPrefix+"CONFIG", "")
	if flags != nil && flags.ConfigPath != "" {
		path = flags.ConfigPath
	}
	if path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return cfg, err
		}
	}

	loadFromEnv(&cfg)
	if flags != nil {
		flags.apply(&cfg)
	}

	cfg.normalize()
	return cfg, cfg.Validate()
}

// loadFile superpone un YAML sobre cfg.
func loadFile(path string, cfg *Config) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return errors.Wrapf(err, "read config %s", path)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return errors.Wrapf(err, "parse config %s", path)
	}
	return nil
}

// loadFromEnv carga configuración desde variables de entorno.
// Connectors: BAYKUS_CONNECTORS_<NAME>_{ENABLED,TIMEOUT,MAX_ATTEMPTS,RATE_LIMIT,BURST,MAX_CONCURRENCY,PRIORITY,API_KEY,BASE_URL}
func loadFromEnv(cfg *Config) {
	if v := getenv(EnvPrefix+"LOG_LEVEL", ""); v != "" {
		cfg.LogLevel = v
	}
	if v := getenv(EnvPrefix+"QUIET", ""); v != "" {
		cfg.Quiet = parseBool(v)
	}
	if v := getenv(EnvPrefix+"OUTPUT_DIR", ""); v != "" {
		cfg.OutputDir = v
	}
	if v := getenv(EnvPrefix+"TIMEOUT", ""); v != "" {
		cfg.Timeout = parseDuration(v, cfg.Timeout)
	}

	for name, cc := range cfg.Connectors {
		prefix := EnvPrefix + "CONNECTORS_" + strings.ToUpper(name) + "_"
		if v := getenv(prefix+"ENABLED", ""); v != "" {
			cc.Enabled = parseBool(v)
		}
		if v := getenv(prefix+"TIMEOUT", ""); v != "" {
			cc.Timeout = parseDuration(v, cc.Timeout)
		}
		if v := getenv(prefix+"MAX_ATTEMPTS", ""); v != "" {
			cc.MaxAttempts = parseInt(v, cc.MaxAttempts)
		}
		if v := getenv(prefix+"RATE_LIMIT", ""); v != "" {
			cc.RateLimit = parseFloat(v, cc.RateLimit)
		}
		if v := getenv(prefix+"BURST", ""); v != "" {
			cc.Burst = parseInt(v, cc.Burst)
		}
		if v := getenv(prefix+"MAX_CONCURRENCY", ""); v != "" {
			cc.MaxConcurrency = parseInt(v, cc.MaxConcurrency)
		}
		if v := getenv(prefix+"PRIORITY", ""); v != "" {
			cc.Priority = parseInt(v, cc.Priority)
		}
		if v := getenv(prefix+"API_KEY", ""); v != "" {
			cc.APIKey = v
		}
		if v := getenv(prefix+"BASE_URL", ""); v != "" {
			cc.BaseURL = v
		}
		cfg.Connectors[name] = cc
	}

	// alias habitual para el token de GitHub
	if v := getenv(EnvPrefix+"GITHUB_TOKEN", ""); v != "" {
		if cc, ok := cfg.Connectors["github"]; ok && cc.APIKey == "" {
			cc.APIKey = v
			cfg.Connectors["github"] = cc
		}
	}

	if v := getenv(EnvPrefix+"RUNNER_MAX_ATTEMPTS", ""); v != "" {
		cfg.Runner.Retry.MaxAttempts = parseInt(v, cfg.Runner.Retry.MaxAttempts)
	}
	if v := getenv(EnvPrefix+"RUNNER_BREAKER_ENABLED", ""); v != "" {
		cfg.Runner.BreakerEnabled = parseBool(v)
	}
	if v := getenv(EnvPrefix+"SCORING_PROPAGATION_FACTOR", ""); v != "" {
		cfg.Scoring.PropagationFactor = parseFloat(v, cfg.Scoring.PropagationFactor)
	}
	if v := getenv(EnvPrefix+"ORCHESTRATOR_MERGE_WORKERS", ""); v != "" {
		cfg.Orchestrator.MergeWorkers = parseInt(v, cfg.Orchestrator.MergeWorkers)
	}
	if v := getenv(EnvPrefix+"ARCHIVE_BACKEND", ""); v != "" {
		cfg.Archive.Backend = v
	}
	if v := getenv(EnvPrefix+"ARCHIVE_DIR", ""); v != "" {
		cfg.Archive.Dir = v
	}
	if v := getenv(EnvPrefix+"ARCHIVE_BUCKET", ""); v != "" {
		cfg.Archive.Bucket = v
	}
	if v := getenv(EnvPrefix+"TELEMETRY_ENDPOINT", ""); v != "" {
		cfg.Telemetry.Endpoint = v
		cfg.Telemetry.Enabled = true
	}
}

func (c *Config) normalize() {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	c.Archive.Backend = strings.ToLower(strings.TrimSpace(c.Archive.Backend))
	if c.Archive.Backend == "" {
		c.Archive.Backend = "none"
	}
	if c.OutputDir == "" {
		c.OutputDir = "baykus_out"
	}
	if c.Timeout < 0 {
		c.Timeout = 0
	}
	if c.Orchestrator.MergeWorkers < 1 {
		c.Orchestrator.MergeWorkers = 1
	}
	if c.Orchestrator.EventBuffer < 1 {
		c.Orchestrator.EventBuffer = 64
	}
	if c.Runner.Retry.MaxAttempts < 1 {
		c.Runner.Retry.MaxAttempts = 1
	}
	if c.Runner.GracePeriod <= 0 {
		c.Runner.GracePeriod = 5 * time.Second
	}

	// un connector declarado solo con algunos campos hereda los valores por defecto
	def := ports.DefaultConnectorConfig()
	for name, cc := range c.Connectors {
		if cc.Timeout <= 0 {
			cc.Timeout = def.Timeout
		}
		if cc.MaxAttempts <= 0 {
			cc.MaxAttempts = c.Runner.Retry.MaxAttempts
		}
		if cc.Burst <= 0 {
			cc.Burst = def.Burst
		}
		if cc.MaxConcurrency <= 0 {
			cc.MaxConcurrency = def.MaxConcurrency
		}
		if cc.Custom == nil {
			cc.Custom = make(map[string]any)
		}
		c.Connectors[name] = cc
	}
}

// Validate rechaza valores que no tienen sentido.
func (c Config) Validate() error {
	var errs []error
	if c.Scoring.PropagationFactor < 0 || c.Scoring.PropagationFactor > 1 {
		errs = append(errs, fmt.Errorf("scoring.propagation_factor must be in [0,1], got %v", c.Scoring.PropagationFactor))
	}
	for kind, conf := range c.Inference.Confidences {
		if conf < 0 || conf > 1 {
			errs = append(errs, fmt.Errorf("inference.confidences.%s must be in [0,1], got %v", kind, conf))
		}
	}
	switch c.Inference.Combine {
	case "", "independent", "max":
	default:
		errs = append(errs, fmt.Errorf("inference.combine must be independent or max, got %q", c.Inference.Combine))
	}
	switch c.Archive.Backend {
	case "none", "local":
	case "s3":
		if c.Archive.Bucket == "" {
			errs = append(errs, fmt.Errorf("archive.bucket is required for the s3 backend"))
		}
	default:
		errs = append(errs, fmt.Errorf("archive.backend must be none, local or s3, got %q", c.Archive.Backend))
	}
	for name, cc := range c.Connectors {
		if cc.RateLimit < 0 {
			errs = append(errs, fmt.Errorf("connectors.%s.rate_limit must be >= 0", name))
		}
	}
	if len(errs) > 0 {
		return errors.Wrap(errors.Join(errs...), "invalid configuration")
	}
	return nil
}

// EnabledConnectors devuelve los nombres habilitados.
func (c Config) EnabledConnectors() []string {
	var out []string
	for name, cc := range c.Connectors {
		if cc.Enabled {
			out = append(out, name)
		}
	}
	return out
}

// Helpers

func getenv(k, def string) string {
	if v, ok := os.LookupEnv(k); ok {
		return v
	}
	return def
}

func parseBool(v string) bool {
	switch strings.ToLower(strings.TrimSpace(v)) {
	case "1", "t", "true", "y", "yes", "on":
		return true
	default:
		return false
	}
}

func parseInt(v string, def int) int {
	i, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil {
		return def
	}
	return i
}

func parseFloat(v string, def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v), 64)
	if err != nil {
		return def
	}
	return f
}

// parseDuration acepta "30s" o segundos enteros ("30").
func parseDuration(v string, def time.Duration) time.Duration {
	v = strings.TrimSpace(v)
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	if i, err := strconv.Atoi(v); err == nil {
		return time.Duration(i) * time.Second
	}
	return def
}
