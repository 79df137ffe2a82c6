// cmd/baykus/connectors.go
package main

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/pterm/pterm"
	"github.com/spf13/cobra"

	"baykus/internal/core/ports"
	"baykus/internal/platform/config"
	"baykus/internal/platform/registry"
	"baykus/internal/platform/workerpool"
)

func newConnectorsCmd(flags *config.Flags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "connectors",
		Short: "Inspect registered connectors",
	}
	cmd.AddCommand(newConnectorsListCmd(flags), newConnectorsCheckCmd(flags))
	return cmd
}

func newConnectorsListCmd(flags *config.Flags) *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered connectors and whether they are enabled",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadConfig(flags)
			if err != nil {
				return err
			}
			data := pterm.TableData{{"Name", "Kind", "Capabilities", "Enabled", "Rate", "Priority", "Description"}}
			for _, desc := range registry.Global().ListConnectors() {
				cc, ok := cfg.Connectors[desc.Name]
				caps := make([]string, 0, len(desc.Capabilities))
				for _, c := range desc.Capabilities {
					caps = append(caps, string(c))
				}
				data = append(data, []string{
					desc.Name,
					string(desc.Kind),
					strings.Join(caps, ","),
					strconv.FormatBool(ok && cc.Enabled),
					strconv.FormatFloat(cc.RateLimit, 'g', -1, 64) + "/s",
					strconv.Itoa(cc.Priority),
					desc.Description,
				})
			}
			return pterm.DefaultTable.WithHasHeader().WithWriter(cmd.OutOrStdout()).WithData(data).Render()
		},
	}
}

type checkResult struct {
	name    string
	err     error
	elapsed time.Duration
}

func newConnectorsCheckCmd(flags *config.Flags) *cobra.Command {
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "check",
		Short: "Ping every enabled connector that supports health checks",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(flags)
			if err != nil {
				return err
			}
			connectors, err := registry.Global().Build(cfg.Connectors, ports.Deps{Logger: logger})
			if err != nil {
				return usageError(err)
			}
			defer closeConnectors(connectors, logger)

			ctx, cancel := rootContextWithSignals(cmd.Context(), 0)
			defer cancel()

			results := pingAll(ctx, connectors, timeout)
			failed := 0
			data := pterm.TableData{{"Connector", "Status", "Latency", "Detail"}}
			for _, r := range results {
				status, detail := pterm.Green("ok"), ""
				if r.err != nil {
					failed++
					status, detail = pterm.Red("fail"), r.err.Error()
				}
				data = append(data, []string{r.name, status, r.elapsed.Round(time.Millisecond).String(), detail})
			}
			if err := pterm.DefaultTable.WithHasHeader().WithWriter(cmd.OutOrStdout()).WithData(data).Render(); err != nil {
				return err
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d connectors failed the health check", failed, len(results))
			}
			return nil
		},
	}
	cmd.Flags().DurationVar(&timeout, "ping-timeout", 10*time.Second, "Timeout per connector ping")
	return cmd
}

// pingAll comprueba en paralelo los connectors que implementan HealthChecker,
// devolviendo los resultados en el orden de entrada.
func pingAll(ctx context.Context, connectors []ports.Connector, timeout time.Duration) []checkResult {
	var (
		mu    sync.Mutex
		tasks []workerpool.Task
		slots = make([]*checkResult, len(connectors))
	)
	for i, c := range connectors {
		hc, ok := c.(ports.HealthChecker)
		if !ok {
			continue
		}
		i, name := i, c.Name()
		tasks = append(tasks, workerpool.Func{TaskName: name, Fn: func(ctx context.Context) error {
			pctx, cancel := context.WithTimeout(ctx, timeout)
			defer cancel()
			start := time.Now()
			err := hc.Ping(pctx)
			mu.Lock()
			slots[i] = &checkResult{name: name, err: err, elapsed: time.Since(start)}
			mu.Unlock()
			return err
		}})
	}
	workerpool.RunBatch(ctx, len(tasks), workerpool.NewFIFOScheduler(), tasks, nil)

	results := make([]checkResult, 0, len(tasks))
	for _, r := range slots {
		if r != nil {
			results = append(results, *r)
		}
	}
	return results
}
