// internal/core/domain/confidence.go
package domain

// Niveles de confianza que los connectors asignan a sus findings.
const (
	// ConfidenceLow indicates historical or unverified data (paste mentions, search hits).
	ConfidenceLow float64 = 0.3

	// ConfidenceMedium indicates passive discovery without direct verification.
	ConfidenceMedium float64 = 0.6

	// ConfidenceHigh indicates authoritative data (RDAP registry, DNS answers).
	ConfidenceHigh float64 = 0.8

	// ConfidenceVerified indicates direct verification (account profile fetched).
	ConfidenceVerified float64 = 1.0
)

// ConfidenceLabel returns a human-readable label for a confidence value.
func ConfidenceLabel(confidence float64) string {
	switch {
	case confidence >= ConfidenceVerified:
		return "verified"
	case confidence >= ConfidenceHigh:
		return "high"
	case confidence >= ConfidenceMedium:
		return "medium"
	case confidence >= ConfidenceLow:
		return "low"
	default:
		return "unknown"
	}
}
