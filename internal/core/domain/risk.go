// internal/core/domain/risk.go
package domain

// RiskLevel es la banda de severidad de un score.
type RiskLevel string

const (
	RiskLow      RiskLevel = "low"
	RiskMedium   RiskLevel = "medium"
	RiskHigh     RiskLevel = "high"
	RiskCritical RiskLevel = "critical"
)

// Rank ordena niveles; "" (sin puntuar) es 0.
func (l RiskLevel) Rank() int {
	switch l {
	case RiskLow:
		return 1
	case RiskMedium:
		return 2
	case RiskHigh:
		return 3
	case RiskCritical:
		return 4
	default:
		return 0
	}
}

// LevelFor clasifica un score en [0, 100].
func LevelFor(score float64) RiskLevel {
	switch {
	case score >= 75:
		return RiskCritical
	case score >= 50:
		return RiskHigh
	case score >= 25:
		return RiskMedium
	default:
		return RiskLow
	}
}

// Alert se emite cuando un asset sube de nivel de riesgo.
type Alert struct {
	TargetID string    `json:"target_id"`
	AssetID  string    `json:"asset_id"`
	AssetKey string    `json:"asset_key"`
	Severity RiskLevel `json:"severity"`
	Previous float64   `json:"previous"`
	Current  float64   `json:"current"`
	Reasons  []string  `json:"reasons,omitempty"`
}
