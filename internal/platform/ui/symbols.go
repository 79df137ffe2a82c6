// internal/platform/ui/symbols.go
package ui

import (
	"github.com/pterm/pterm"

	"baykus/internal/core/domain"
)

// Symbol retorna el símbolo Unicode para cada estado de connector
func Symbol(s domain.ConnectorStatus) string {
	switch s {
	case domain.ConnectorPending:
		return "⏸"
	case domain.ConnectorRunning:
		return "⣾"
	case domain.ConnectorSucceeded:
		return "✓"
	case domain.ConnectorFailed:
		return "✗"
	case domain.ConnectorSkipped:
		return "⊘"
	default:
		return "?"
	}
}

// StatusStyle retorna el estilo pterm para cada estado
func StatusStyle(s domain.ConnectorStatus) *pterm.Style {
	switch s {
	case domain.ConnectorRunning:
		return pterm.NewStyle(pterm.FgCyan)
	case domain.ConnectorSucceeded:
		return pterm.NewStyle(pterm.FgGreen)
	case domain.ConnectorFailed:
		return pterm.NewStyle(pterm.FgRed)
	default:
		return pterm.NewStyle(pterm.FgGray)
	}
}

// LevelStyle colorea un nivel de riesgo
func LevelStyle(l domain.RiskLevel) *pterm.Style {
	switch l {
	case domain.RiskCritical:
		return pterm.NewStyle(pterm.FgLightRed, pterm.Bold)
	case domain.RiskHigh:
		return pterm.NewStyle(pterm.FgRed)
	case domain.RiskMedium:
		return pterm.NewStyle(pterm.FgYellow)
	default:
		return pterm.NewStyle(pterm.FgGreen)
	}
}

// Icons
var (
	IconTarget     = "🎯"
	IconConnectors = "🔌"
	IconAssets     = "📦"
	IconAlert      = "🚨"
	IconTime       = "⏱"
)

var SeparatorHeavy = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"
