package registry

import (
	"context"
	"fmt"
	"testing"
	"time"

	"baykus/internal/core/domain"
	"baykus/internal/core/ports"
	"baykus/internal/platform/logx"
	"baykus/internal/testutil"
)

type stubConnector struct{ name string }

func (s *stubConnector) Name() string               { return s.name }
func (s *stubConnector) Kind() domain.ConnectorKind { return domain.ConnectorDomainInfo }
func (s *stubConnector) Capabilities() []domain.AttributeType {
	return []domain.AttributeType{domain.AttributeDomain}
}
func (s *stubConnector) Fetch(context.Context, domain.Target) (*domain.ConnectorResult, error) {
	return domain.NewConnectorResult(s.name, ""), nil
}

func desc(name string, priority int) ports.ConnectorDescriptor {
	return ports.ConnectorDescriptor{
		Name:         name,
		Kind:         domain.ConnectorDomainInfo,
		Capabilities: []domain.AttributeType{domain.AttributeDomain},
		Priority:     priority,
	}
}

func okFactory(name string) ports.ConnectorFactory {
	return func(ports.ConnectorConfig, ports.Deps) (ports.Connector, error) {
		return &stubConnector{name: name}, nil
	}
}

func TestRegister_Validation(t *testing.T) {
	r := New(logx.Discard())

	testutil.AssertError(t, r.Register(desc("", 0), okFactory("x")), "empty name")
	testutil.AssertError(t, r.Register(desc("a", 0), nil), "nil factory")
	testutil.AssertError(t, r.Register(ports.ConnectorDescriptor{Name: "nocaps"}, okFactory("nocaps")), "no capabilities")
	testutil.AssertNoError(t, r.Register(desc("a", 0), okFactory("a")), "valid")
	testutil.AssertError(t, r.Register(desc("a", 0), okFactory("a")), "duplicate")
	testutil.AssertTrue(t, r.IsRegistered("a"), "registered")
}

func TestListConnectors_ByPriority(t *testing.T) {
	r := New(logx.Discard())
	r.MustRegister(desc("low", 1), okFactory("low"))
	r.MustRegister(desc("high", 10), okFactory("high"))
	r.MustRegister(desc("alpha", 1), okFactory("alpha"))

	names := []string{}
	for _, d := range r.ListConnectors() {
		names = append(names, d.Name)
	}
	testutil.AssertEqual(t, names, []string{"high", "alpha", "low"}, "priority desc, then name")
}

func TestBuild(t *testing.T) {
	r := New(logx.Discard())
	r.MustRegister(desc("dns", 5), okFactory("dns"))
	r.MustRegister(desc("rdap", 9), okFactory("rdap"))
	r.MustRegister(desc("broken", 1), func(ports.ConnectorConfig, ports.Deps) (ports.Connector, error) {
		return nil, fmt.Errorf("missing credentials")
	})

	configs := map[string]ports.ConnectorConfig{
		"dns":     {Enabled: true},
		"rdap":    {Enabled: true},
		"broken":  {Enabled: true},
		"unknown": {Enabled: true},
		"off":     {Enabled: false},
	}
	built, err := r.Build(configs, ports.Deps{Logger: logx.Discard()})
	testutil.RequireNoError(t, err, "build")
	testutil.AssertLen(t, built, 2, "broken and unknown skipped")
	testutil.AssertEqual(t, built[0].Name(), "rdap", "highest priority first")

	_, err = r.Build(map[string]ports.ConnectorConfig{"broken": {Enabled: true}}, ports.Deps{})
	testutil.AssertError(t, err, "nothing built")

	_, err = r.Build(nil, ports.Deps{})
	testutil.AssertError(t, err, "nil configs")
}

func TestHelpers(t *testing.T) {
	custom := map[string]any{
		"s":     "value",
		"i":     3,
		"f":     2.5,
		"b":     true,
		"d":     "250ms",
		"dsec":  2,
		"list":  []any{"a", "", "b"},
		"empty": "",
	}

	testutil.AssertEqual(t, GetStringConfig(custom, "s", "x"), "value", "string")
	testutil.AssertEqual(t, GetStringConfig(custom, "empty", "x"), "x", "empty string default")
	testutil.AssertEqual(t, GetIntConfig(custom, "i", 0), 3, "int")
	testutil.AssertEqual(t, GetIntConfig(custom, "f", 0), 2, "float to int")
	testutil.AssertEqual(t, GetFloat64Config(custom, "i", 0), 3.0, "int to float")
	testutil.AssertTrue(t, GetBoolConfig(custom, "b", false), "bool")
	testutil.AssertEqual(t, GetDurationConfig(custom, "d", 0), 250*time.Millisecond, "duration string")
	testutil.AssertEqual(t, GetDurationConfig(custom, "dsec", 0), 2*time.Second, "duration seconds")
	testutil.AssertEqual(t, GetSliceConfig(custom, "list", nil), []string{"a", "b"}, "slice")
	testutil.AssertEqual(t, GetSliceConfig(nil, "list", []string{"z"}), []string{"z"}, "nil map default")
}
