// internal/platform/config/flags.go
package config

import (
	"strings"
	"time"

	"github.com/spf13/pflag"
)

// Flags son los flags de CLI que sobreescriben la configuración.
// Solo se aplican los que el usuario cambió explícitamente.
type Flags struct {
	fs *pflag.FlagSet

	ConfigPath   string
	logLevel     string
	quiet        bool
	outputDir    string
	timeout      time.Duration
	enable       []string
	disable      []string
	maxAttempts  int
	mergeWorkers int
	archive      string
	archiveDir   string
	bucket       string
	otlpEndpoint string
	tracing      bool
}

// RegisterFlags define los flags en fs (típicamente cmd.Flags() de cobra).
func RegisterFlags(fs *pflag.FlagSet) *Flags {
	def := DefaultConfig()
	f := &Flags{fs: fs}

	fs.StringVarP(&f.ConfigPath, "config", "c", "", "YAML config file (env BAYKUS_CONFIG)")
	fs.StringVar(&f.logLevel, "log-level", def.LogLevel, "debug|info|warn|error|off")
	fs.BoolVarP(&f.quiet, "quiet", "q", false, "Disable the progress UI")
	fs.StringVarP(&f.outputDir, "out", "o", def.OutputDir, "Output directory for the run summary")
	fs.DurationVarP(&f.timeout, "timeout", "T", 0, "Global run timeout, 0 = none")
	fs.StringSliceVar(&f.enable, "enable", nil, "Connectors to enable (comma separated)")
	fs.StringSliceVar(&f.disable, "disable", nil, "Connectors to disable (comma separated)")
	fs.IntVar(&f.maxAttempts, "max-attempts", def.Runner.Retry.MaxAttempts, "Attempts per connector call, including the first")
	fs.IntVar(&f.mergeWorkers, "merge-workers", def.Orchestrator.MergeWorkers, "Concurrent merge workers")
	fs.StringVar(&f.archive, "archive", def.Archive.Backend, "Raw result archive: none|local|s3")
	fs.StringVar(&f.archiveDir, "archive.dir", def.Archive.Dir, "Directory for the local archive")
	fs.StringVar(&f.bucket, "archive.bucket", "", "S3 bucket for the s3 archive")
	fs.StringVar(&f.otlpEndpoint, "otlp-endpoint", "", "OTLP/HTTP endpoint URL for traces")
	fs.BoolVar(&f.tracing, "trace", false, "Enable tracing")
	return f
}

func (f *Flags) changed(name string) bool {
	return f.fs != nil && f.fs.Changed(name)
}

func (f *Flags) apply(cfg *Config) {
	if f.changed("log-level") {
		cfg.LogLevel = f.logLevel
	}
	if f.changed("quiet") {
		cfg.Quiet = f.quiet
	}
	if f.changed("out") {
		cfg.OutputDir = f.outputDir
	}
	if f.changed("timeout") {
		cfg.Timeout = f.timeout
	}
	if f.changed("max-attempts") {
		cfg.Runner.Retry.MaxAttempts = f.maxAttempts
		for name, cc := range cfg.Connectors {
			cc.MaxAttempts = f.maxAttempts
			cfg.Connectors[name] = cc
		}
	}
	if f.changed("merge-workers") {
		cfg.Orchestrator.MergeWorkers = f.mergeWorkers
	}
	if f.changed("archive") {
		cfg.Archive.Backend = f.archive
	}
	if f.changed("archive.dir") {
		cfg.Archive.Dir = f.archiveDir
	}
	if f.changed("archive.bucket") {
		cfg.Archive.Bucket = f.bucket
	}
	if f.changed("trace") {
		cfg.Telemetry.Enabled = f.tracing
	}
	if f.changed("otlp-endpoint") {
		cfg.Telemetry.Endpoint = f.otlpEndpoint
		cfg.Telemetry.Enabled = true
	}

	setEnabled(cfg, f.enable, true)
	setEnabled(cfg, f.disable, false)
}

func setEnabled(cfg *Config, names []string, enabled bool) {
	for _, n := range names {
		n = strings.ToLower(strings.TrimSpace(n))
		if n == "" {
			continue
		}
		cc, ok := cfg.Connectors[n]
		if !ok {
			continue
		}
		cc.Enabled = enabled
		cfg.Connectors[n] = cc
	}
}
