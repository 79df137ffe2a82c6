// internal/platform/ui/pterm_presenter.go
package ui

import (
	"fmt"
	"io"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/pterm/pterm"

	"baykus/internal/core/domain"
)

// PTermPresenter implementa Presenter usando pterm: barra de progreso por
// connectors resueltos, una línea por connector terminado y una tabla final.
type PTermPresenter struct {
	mu sync.Mutex

	out      io.Writer
	bar      *pterm.ProgressbarPrinter
	reported map[string]bool
	assets   map[string]domain.AssetType
	alerts   int
}

// NewPTermPresenter crea una nueva instancia del presenter con pterm
func NewPTermPresenter() *PTermPresenter {
	return NewPTermPresenterWriter(os.Stderr)
}

// NewPTermPresenterWriter escribe en w (tests).
func NewPTermPresenterWriter(w io.Writer) *PTermPresenter {
	return &PTermPresenter{
		out:      w,
		reported: make(map[string]bool),
		assets:   make(map[string]domain.AssetType),
	}
}

// Start muestra la cabecera de la investigación.
func (p *PTermPresenter) Start(target domain.Target, connectors []string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	pterm.DefaultHeader.
		WithWriter(p.out).
		WithBackgroundStyle(pterm.NewStyle(pterm.BgDarkGray)).
		WithTextStyle(pterm.NewStyle(pterm.FgLightYellow)).
		Println("Baykus - OSINT Investigation")

	var b strings.Builder
	fmt.Fprintf(&b, "%s Target: %s\n", IconTarget, pterm.Cyan(target.Name))
	for _, at := range target.AttributeTypes() {
		fmt.Fprintf(&b, "   %s: %s\n", at, strings.Join(target.Values(at), ", "))
	}
	fmt.Fprintf(&b, "%s Connectors: %s", IconConnectors, strings.Join(connectors, ", "))

	pterm.DefaultBox.
		WithWriter(p.out).
		WithTitle("Investigation").
		WithTitleTopCenter().
		WithBoxStyle(pterm.NewStyle(pterm.FgYellow)).
		Println(b.String())

	if len(connectors) > 0 {
		bar, err := pterm.DefaultProgressbar.
			WithWriter(p.out).
			WithTotal(len(connectors)).
			WithTitle("connectors").
			WithRemoveWhenDone(true).
			Start()
		if err == nil {
			p.bar = bar
		}
	}
}

// OnProgress imprime cada connector al resolverse y avanza la barra.
func (p *PTermPresenter) OnProgress(job domain.RunJob) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, c := range job.Connectors {
		if !c.Status.IsResolved() || p.reported[c.Name] {
			continue
		}
		p.reported[c.Name] = true

		line := fmt.Sprintf("%s %-12s %-9s attempts=%d findings=%d",
			Symbol(c.Status), c.Name, c.Status, c.Attempts, c.Findings)
		if c.Reason != "" {
			line += " reason=" + c.Reason
		}
		fmt.Fprintln(p.out, StatusStyle(c.Status).Sprint(line))

		if p.bar != nil {
			p.bar.Increment()
		}
	}
}

// OnAssetChanged cuenta assets distintos para el resumen.
func (p *PTermPresenter) OnAssetChanged(_ string, asset domain.Asset) {
	p.mu.Lock()
	p.assets[asset.ID] = asset.Type
	p.mu.Unlock()
}

// OnAlert muestra la subida de nivel de riesgo.
func (p *PTermPresenter) OnAlert(alert domain.Alert) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.alerts++
	msg := fmt.Sprintf("%s %s %s %.1f -> %.1f", IconAlert, LevelStyle(alert.Severity).Sprint(strings.ToUpper(string(alert.Severity))),
		alert.AssetKey, alert.Previous, alert.Current)
	if len(alert.Reasons) > 0 {
		msg += " (" + strings.Join(alert.Reasons, ", ") + ")"
	}
	pterm.Warning.WithWriter(p.out).Println(msg)
}

// OnRunCompleted cierra la barra y muestra la tabla de connectors.
func (p *PTermPresenter) OnRunCompleted(_ string, s domain.RunSummary) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.bar != nil {
		_, _ = p.bar.Stop()
		p.bar = nil
	}

	data := pterm.TableData{{"Connector", "Status", "Attempts", "Findings", "Reason"}}
	for _, c := range s.Connectors {
		data = append(data, []string{
			c.Name,
			StatusStyle(c.Status).Sprint(string(c.Status)),
			fmt.Sprint(c.Attempts),
			fmt.Sprint(c.Findings),
			c.Reason,
		})
	}
	_ = pterm.DefaultTable.WithWriter(p.out).WithHasHeader().WithData(data).Render()

	byType := make(map[domain.AssetType]int)
	for _, t := range p.assets {
		byType[t]++
	}
	types := make([]string, 0, len(byType))
	for t, n := range byType {
		types = append(types, fmt.Sprintf("%s=%d", t, n))
	}
	sort.Strings(types)

	fmt.Fprintln(p.out, pterm.LightBlue(SeparatorHeavy))
	fmt.Fprintf(p.out, "%s Run %s: %s in %s\n", IconTime, s.RunID, s.Status, s.Duration().Round(time.Millisecond))
	fmt.Fprintf(p.out, "%s Assets: %d (%s)  Relationships: %d  Alerts: %d\n",
		IconAssets, s.Assets, strings.Join(types, " "), s.Relationships, len(s.Alerts))
	if s.Error != "" {
		pterm.Error.WithWriter(p.out).Println(s.Error)
	}
}

// Close detiene la barra si quedó abierta.
func (p *PTermPresenter) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.bar != nil {
		_, err := p.bar.Stop()
		p.bar = nil
		return err
	}
	return nil
}
