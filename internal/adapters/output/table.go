// internal/adapters/output/table.go
package output

import (
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"baykus/internal/core/domain"
)

// WriteTable imprime el informe como tablas legibles en terminal.
func WriteTable(out io.Writer, r *Report) error {
	w := tabwriter.NewWriter(out, 2, 4, 2, ' ', 0)

	fmt.Fprintf(w, "\n=== Baykus Investigation ===\n")
	fmt.Fprintf(w, "Target:\t%s (%s)\n", r.Target.Name, r.Target.Kind)
	fmt.Fprintf(w, "Run:\t%s [%s]\n", r.Run.RunID, r.Run.Status)
	fmt.Fprintf(w, "Duration:\t%s\n", r.Run.Duration())
	fmt.Fprintf(w, "Assets:\t%d\n", r.Summary.TotalAssets)
	fmt.Fprintf(w, "Relationships:\t%d\n\n", r.Summary.TotalRelationships)

	fmt.Fprintln(w, "CONNECTOR\tSTATUS\tATTEMPTS\tFINDINGS\tREASON")
	for _, c := range r.Run.Connectors {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\n", c.Name, c.Status, c.Attempts, c.Findings, c.Reason)
	}
	fmt.Fprintln(w)

	if len(r.Graph.Assets) > 0 {
		fmt.Fprintln(w, "TYPE\tVALUE\tSOURCES\tRISK")
		for _, a := range r.Graph.Assets {
			risk := "-"
			if a.RiskScore != nil {
				risk = fmt.Sprintf("%.1f %s", a.Score(), a.RiskLevel)
			}
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", a.Type, a.Value, strings.Join(a.Sources(), ","), risk)
		}
	} else {
		fmt.Fprintln(w, "No assets discovered.")
	}

	if len(r.Graph.Relationships) > 0 {
		keys := make(map[string]string, len(r.Graph.Assets))
		for _, a := range r.Graph.Assets {
			keys[a.ID] = a.Key()
		}
		fmt.Fprintln(w, "\nKIND\tFROM\tTO\tCONFIDENCE")
		for _, rel := range r.Graph.Relationships {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", rel.Kind, keys[rel.SourceID], keys[rel.TargetAssetID], confidence(rel))
		}
	}

	if err := w.Flush(); err != nil {
		return fmt.Errorf("failed to flush table: %w", err)
	}

	if len(r.Run.Alerts) > 0 {
		fmt.Fprintf(out, "\nAlerts (%d):\n", len(r.Run.Alerts))
		for i, a := range r.Run.Alerts {
			fmt.Fprintf(out, "  %d. [%s] %s %.1f -> %.1f\n", i+1, a.Severity, a.AssetKey, a.Previous, a.Current)
		}
	}
	fmt.Fprintln(out)
	return nil
}

func confidence(r *domain.Relationship) string {
	return fmt.Sprintf("%.2f (%s)", r.Confidence, domain.ConfidenceLabel(r.Confidence))
}
