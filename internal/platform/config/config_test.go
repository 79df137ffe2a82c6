// internal/platform/config/config_test.go
package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"

	"baykus/internal/testutil"
)

func TestDefaultConfig(t *testing.T) {
	cfg := DefaultConfig()

	testutil.AssertEqual(t, cfg.LogLevel, "info", "default log level")
	testutil.AssertLen(t, cfg.Connectors, len(DefaultConnectorNames), "one entry per built-in connector")
	testutil.AssertFalse(t, cfg.Connectors["search"].Enabled, "search needs its own key")
	testutil.AssertTrue(t, cfg.Connectors["webarchive"].Enabled, "webarchive on by default")
	testutil.AssertEqual(t, cfg.Runner.Retry.MaxAttempts, 3, "default attempts")
	testutil.AssertInDelta(t, cfg.Scoring.PropagationFactor, 0.5, 1e-9, "propagation factor")
	testutil.AssertInDelta(t, cfg.Inference.Confidences["same_owner"], 0.7, 1e-9, "same_owner confidence")
	testutil.AssertNoError(t, cfg.Validate(), "defaults must validate")
}

func TestLoad_File(t *testing.T) {
	path := filepath.Join(t.TempDir(), "baykus.yaml")
	yml := `
log_level: DEBUG
timeout: 2m
connectors:
  github:
    enabled: false
  rdap:
    enabled: true
    rate_limit: 0.5
scoring:
  propagation_factor: 0.25
archive:
  backend: local
  dir: /tmp/results
`
	testutil.RequireNoError(t, os.WriteFile(path, []byte(yml), 0o644), "write config")

	cfg, err := Load(&Flags{ConfigPath: path})
	testutil.RequireNoError(t, err, "load")

	testutil.AssertEqual(t, cfg.LogLevel, "debug", "log level normalized")
	testutil.AssertEqual(t, cfg.Timeout, 2*time.Minute, "timeout from file")
	testutil.AssertFalse(t, cfg.Connectors["github"].Enabled, "github disabled")
	testutil.AssertInDelta(t, cfg.Connectors["rdap"].RateLimit, 0.5, 1e-9, "rdap rate")
	// campos omitidos en el fichero heredan los valores por defecto
	testutil.AssertEqual(t, cfg.Connectors["rdap"].Timeout, 30*time.Second, "rdap timeout default")
	testutil.AssertEqual(t, cfg.Connectors["rdap"].MaxConcurrency, 1, "rdap concurrency default")
	testutil.AssertTrue(t, cfg.Connectors["dns"].Enabled, "untouched connector keeps defaults")
	testutil.AssertEqual(t, cfg.Archive.Backend, "local", "archive backend")
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(&Flags{ConfigPath: filepath.Join(t.TempDir(), "nope.yaml")})
	testutil.AssertError(t, err, "missing file should fail")
}

func TestLoad_Env(t *testing.T) {
	t.Setenv("BAYKUS_LOG_LEVEL", "warn")
	t.Setenv("BAYKUS_CONNECTORS_DNS_ENABLED", "no")
	t.Setenv("BAYKUS_CONNECTORS_RDAP_TIMEOUT", "10")
	t.Setenv("BAYKUS_CONNECTORS_RDAP_MAX_CONCURRENCY", "4")
	t.Setenv("BAYKUS_GITHUB_TOKEN", "ghp_test")
	t.Setenv("BAYKUS_ORCHESTRATOR_MERGE_WORKERS", "3")

	cfg, err := Load(nil)
	testutil.RequireNoError(t, err, "load")

	testutil.AssertEqual(t, cfg.LogLevel, "warn", "log level from env")
	testutil.AssertFalse(t, cfg.Connectors["dns"].Enabled, "dns disabled by env")
	testutil.AssertEqual(t, cfg.Connectors["rdap"].Timeout, 10*time.Second, "integer seconds accepted")
	testutil.AssertEqual(t, cfg.Connectors["rdap"].MaxConcurrency, 4, "concurrency from env")
	testutil.AssertEqual(t, cfg.Connectors["github"].APIKey, "ghp_test", "github token alias")
	testutil.AssertEqual(t, cfg.Orchestrator.MergeWorkers, 3, "merge workers")
}

func TestLoad_FlagsOverrideEnv(t *testing.T) {
	t.Setenv("BAYKUS_LOG_LEVEL", "warn")
	t.Setenv("BAYKUS_OUTPUT_DIR", "from-env")

	fs := pflag.NewFlagSet("test", pflag.ContinueOnError)
	flags := RegisterFlags(fs)
	testutil.RequireNoError(t, fs.Parse([]string{"--log-level", "error", "--disable", "github,pastebin", "--max-attempts", "5"}), "parse")

	cfg, err := Load(flags)
	testutil.RequireNoError(t, err, "load")

	testutil.AssertEqual(t, cfg.LogLevel, "error", "flag wins over env")
	testutil.AssertEqual(t, cfg.OutputDir, "from-env", "unchanged flag does not clobber env")
	testutil.AssertFalse(t, cfg.Connectors["github"].Enabled, "github disabled")
	testutil.AssertFalse(t, cfg.Connectors["pastebin"].Enabled, "pastebin disabled")
	testutil.AssertTrue(t, cfg.Connectors["dns"].Enabled, "dns still enabled")
	testutil.AssertEqual(t, cfg.Connectors["dns"].MaxAttempts, 5, "max attempts propagated")
	testutil.AssertLen(t, cfg.EnabledConnectors(), len(DefaultConnectorNames)-3, "all defaults minus the two disabled and the opt-in search")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"propagation out of range", func(c *Config) { c.Scoring.PropagationFactor = 1.5 }},
		{"confidence out of range", func(c *Config) { c.Inference.Confidences["same_owner"] = -0.1 }},
		{"unknown combine", func(c *Config) { c.Inference.Combine = "sum" }},
		{"s3 without bucket", func(c *Config) { c.Archive.Backend = "s3" }},
		{"unknown backend", func(c *Config) { c.Archive.Backend = "ftp" }},
		{"negative rate", func(c *Config) {
			cc := c.Connectors["dns"]
			cc.RateLimit = -1
			c.Connectors["dns"] = cc
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(&cfg)
			testutil.AssertError(t, cfg.Validate(), "should be invalid")
		})
	}
}

func TestParseHelpers(t *testing.T) {
	testutil.AssertTrue(t, parseBool("YES"), "yes")
	testutil.AssertTrue(t, parseBool(" on "), "on")
	testutil.AssertFalse(t, parseBool("nope"), "nope")
	testutil.AssertEqual(t, parseInt("x", 7), 7, "fallback")
	testutil.AssertEqual(t, parseDuration("1500ms", 0), 1500*time.Millisecond, "duration")
	testutil.AssertEqual(t, parseDuration("bad", time.Second), time.Second, "fallback duration")
}
