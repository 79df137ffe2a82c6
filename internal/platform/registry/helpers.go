package registry

import (
	"time"
)

// Helpers para leer ConnectorConfig.Custom. Los valores llegan de YAML
// (int, float64, string, []any) o de código (tipos nativos).

// GetStringConfig devuelve custom[key] si es un string no vacío.
func GetStringConfig(custom map[string]any, key, defaultValue string) string {
	if val, ok := custom[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}

// GetIntConfig acepta int, int64 y float64.
func GetIntConfig(custom map[string]any, key string, defaultValue int) int {
	switch val := custom[key].(type) {
	case int:
		return val
	case int64:
		return int(val)
	case float64:
		return int(val)
	}
	return defaultValue
}

// GetFloat64Config acepta float64 e int.
func GetFloat64Config(custom map[string]any, key string, defaultValue float64) float64 {
	switch val := custom[key].(type) {
	case float64:
		return val
	case int:
		return float64(val)
	}
	return defaultValue
}

// GetBoolConfig devuelve custom[key] si es bool.
func GetBoolConfig(custom map[string]any, key string, defaultValue bool) bool {
	if val, ok := custom[key].(bool); ok {
		return val
	}
	return defaultValue
}

// GetDurationConfig acepta time.Duration, string ("5s") o segundos como número.
func GetDurationConfig(custom map[string]any, key string, defaultValue time.Duration) time.Duration {
	switch val := custom[key].(type) {
	case time.Duration:
		return val
	case string:
		if d, err := time.ParseDuration(val); err == nil {
			return d
		}
	case int:
		return time.Duration(val) * time.Second
	case float64:
		return time.Duration(val * float64(time.Second))
	}
	return defaultValue
}

// GetSliceConfig acepta []string o []any de strings.
func GetSliceConfig(custom map[string]any, key string, defaultValue []string) []string {
	switch val := custom[key].(type) {
	case []string:
		if len(val) > 0 {
			return val
		}
	case []any:
		out := make([]string, 0, len(val))
		for _, v := range val {
			if s, ok := v.(string); ok && s != "" {
				out = append(out, s)
			}
		}
		if len(out) > 0 {
			return out
		}
	}
	return defaultValue
}
