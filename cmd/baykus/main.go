// cmd/baykus/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"baykus/internal/core/ports"
	"baykus/internal/platform/config"
	"baykus/internal/platform/errors"
	"baykus/internal/platform/logx"
	"baykus/internal/platform/registry"

	// Connectors registrados vía init()
	_ "baykus/internal/connectors/crtsh"
	_ "baykus/internal/connectors/dnsrecords"
	_ "baykus/internal/connectors/emailverify"
	_ "baykus/internal/connectors/github"
	_ "baykus/internal/connectors/pastebin"
	_ "baykus/internal/connectors/rdap"
	_ "baykus/internal/connectors/searchengine"
	_ "baykus/internal/connectors/webarchive"
)

var (
	// Rellenables con -ldflags en build
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

// exitError lleva el código de salida hasta main.
type exitError struct {
	code int
	err  error
}

func (e *exitError) Error() string { return e.err.Error() }
func (e *exitError) Unwrap() error { return e.err }

func usageError(err error) error { return &exitError{code: 2, err: err} }

func main() {
	root := newRootCmd()
	if err := root.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		code := 1
		var ee *exitError
		if errors.As(err, &ee) {
			code = ee.code
		}
		os.Exit(code)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "baykus",
		Short:         "OSINT investigations over pluggable connectors",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := config.RegisterFlags(root.PersistentFlags())

	root.AddCommand(
		newRunCmd(flags),
		newConnectorsCmd(flags),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "baykus %s (commit %s, built %s)\n", version, commit, date)
		},
	}
}

// loadConfig carga la configuración y crea el logger compartido.
func loadConfig(flags *config.Flags) (config.Config, logx.Logger, error) {
	cfg, err := config.Load(flags)
	if err != nil {
		return cfg, nil, usageError(fmt.Errorf("configuration load failed: %w", err))
	}
	logger := logx.NewWithLevel(logx.ParseLevel(cfg.LogLevel))
	applyDescriptorDefaults(&cfg)
	return cfg, logger, nil
}

// applyDescriptorDefaults usa el rate limit y la prioridad del descriptor
// cuando la configuración deja los valores genéricos.
func applyDescriptorDefaults(cfg *config.Config) {
	def := ports.DefaultConnectorConfig()
	for name, cc := range cfg.Connectors {
		desc, ok := registry.Global().Descriptor(name)
		if !ok {
			continue
		}
		if cc.RateLimit == def.RateLimit && desc.DefaultRateLimit > 0 {
			cc.RateLimit = desc.DefaultRateLimit
		}
		if cc.Priority == 0 {
			cc.Priority = desc.Priority
		}
		cfg.Connectors[name] = cc
	}
}

// rootContextWithSignals crea el contexto raíz con timeout opcional,
// cancelado por SIGINT/SIGTERM.
func rootContextWithSignals(parent context.Context, timeout time.Duration) (context.Context, context.CancelFunc) {
	base, baseCancel := context.WithCancel(parent)
	if timeout > 0 {
		var cancelTimeout context.CancelFunc
		base, cancelTimeout = context.WithTimeout(base, timeout)
		prev := baseCancel
		baseCancel = func() {
			cancelTimeout()
			prev()
		}
	}

	ch := make(chan os.Signal, 1)
	signal.Notify(ch, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		select {
		case <-ch:
			baseCancel()
		case <-base.Done():
		}
	}()

	return base, func() {
		signal.Stop(ch)
		baseCancel()
	}
}
