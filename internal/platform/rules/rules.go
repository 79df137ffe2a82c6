// internal/platform/rules/rules.go
package rules

import (
	"fmt"
	"sort"

	"github.com/google/cel-go/cel"

	"baykus/internal/platform/errors"
)

// Rule es un indicador de riesgo: una expresión CEL booleana con un peso.
// Variables disponibles: asset_type (string), value (string),
// attrs (map<string, dyn>) y sources (int).
type Rule struct {
	Name        string  `yaml:"name"`
	Expr        string  `yaml:"expr"`
	Weight      float64 `yaml:"weight"`
	Description string  `yaml:"description,omitempty"`
}

// Match es una regla que evaluó a true.
type Match struct {
	Rule   string
	Weight float64
}

// Input son las variables expuestas a las expresiones.
type Input struct {
	AssetType string
	Value     string
	Attrs     map[string]any
	Sources   int
}

func (in Input) vars() map[string]any {
	attrs := in.Attrs
	if attrs == nil {
		attrs = map[string]any{}
	}
	return map[string]any{
		"asset_type": in.AssetType,
		"value":      in.Value,
		"attrs":      attrs,
		"sources":    int64(in.Sources),
	}
}

type compiled struct {
	rule Rule
	prg  cel.Program
}

// Engine compila las reglas una vez y las evalúa muchas.
// Es seguro para uso concurrente.
type Engine struct {
	env   *cel.Env
	rules []compiled
}

// NewEngine crea el entorno CEL y compila rules.
// Falla si alguna expresión no compila o no devuelve bool.
func NewEngine(rules []Rule) (*Engine, error) {
	env, err := cel.NewEnv(
		cel.Variable("asset_type", cel.StringType),
		cel.Variable("value", cel.StringType),
		cel.Variable("attrs", cel.MapType(cel.StringType, cel.DynType)),
		cel.Variable("sources", cel.IntType),
		cel.CrossTypeNumericComparisons(true),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to create CEL env: %w", err)
	}

	e := &Engine{env: env}
	seen := make(map[string]bool, len(rules))
	for _, r := range rules {
		if r.Name == "" {
			return nil, errors.Wrap(errors.ErrInvalidInput, "rule without name")
		}
		if seen[r.Name] {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "duplicate rule %s", r.Name)
		}
		seen[r.Name] = true

		ast, issues := env.Compile(r.Expr)
		if issues != nil && issues.Err() != nil {
			return nil, fmt.Errorf("rule %s compilation error: %w", r.Name, issues.Err())
		}
		if out := ast.OutputType(); !out.IsExactType(cel.BoolType) && !out.IsExactType(cel.DynType) {
			return nil, fmt.Errorf("rule %s must return bool, got %s", r.Name, ast.OutputType())
		}
		prg, err := env.Program(ast)
		if err != nil {
			return nil, fmt.Errorf("rule %s program creation error: %w", r.Name, err)
		}
		e.rules = append(e.rules, compiled{rule: r, prg: prg})
	}

	// orden estable para que las razones de una alerta sean reproducibles
	sort.Slice(e.rules, func(i, j int) bool { return e.rules[i].rule.Name < e.rules[j].rule.Name })
	return e, nil
}

// Rules devuelve las reglas compiladas.
func (e *Engine) Rules() []Rule {
	out := make([]Rule, len(e.rules))
	for i, c := range e.rules {
		out[i] = c.rule
	}
	return out
}

// Evaluate devuelve las reglas que hacen match con in.
// Un fallo de evaluación de una regla cuenta como no-match; los fallos se
// devuelven agregados sin impedir el resto.
func (e *Engine) Evaluate(in Input) ([]Match, error) {
	vars := in.vars()

	var (
		matches []Match
		errs    []error
	)
	for _, c := range e.rules {
		out, _, err := c.prg.Eval(vars)
		if err != nil {
			errs = append(errs, fmt.Errorf("rule %s: %w", c.rule.Name, err))
			continue
		}
		if match, ok := out.Value().(bool); ok && match {
			matches = append(matches, Match{Rule: c.rule.Name, Weight: c.rule.Weight})
		}
	}
	return matches, errors.Join(errs...)
}

// DefaultIndicators son los indicadores intrínsecos de riesgo.
func DefaultIndicators() []Rule {
	return []Rule{
		{
			Name:        "breached",
			Expr:        "has(attrs.breached) && attrs.breached == true",
			Weight:      40,
			Description: "appears in a known breach",
		},
		{
			Name:        "exposed_credentials",
			Expr:        "has(attrs.exposed_credentials) && attrs.exposed_credentials == true",
			Weight:      50,
			Description: "credentials found in public sources",
		},
		{
			Name:        "paste_mentions",
			Expr:        "has(attrs.paste_mentions) && attrs.paste_mentions > 0",
			Weight:      20,
			Description: "mentioned in public pastes",
		},
		{
			Name:        "disposable",
			Expr:        "has(attrs.is_disposable) && attrs.is_disposable == true",
			Weight:      15,
			Description: "disposable email provider",
		},
		{
			Name:        "young_domain",
			Expr:        "asset_type == 'domain' && has(attrs.domain_age_days) && attrs.domain_age_days < 30",
			Weight:      25,
			Description: "domain registered less than 30 days ago",
		},
		{
			Name:        "archived_sensitive_files",
			Expr:        "has(attrs.archived_sensitive_files) && attrs.archived_sensitive_files > 0",
			Weight:      30,
			Description: "sensitive or backup files captured by a web archive",
		},
		{
			Name:        "search_exposure",
			Expr:        "has(attrs.sensitive_dork_hits) && attrs.sensitive_dork_hits > 0",
			Weight:      20,
			Description: "exposed files or listings indexed by a search engine",
		},
		{
			Name:        "flagged_high_risk",
			Expr:        "has(attrs.flagged_high_risk) && attrs.flagged_high_risk == true",
			Weight:      70,
			Description: "flagged by a threat intel source",
		},
	}
}
