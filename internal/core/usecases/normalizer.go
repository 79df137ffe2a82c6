// internal/core/usecases/normalizer.go
package usecases

import (
	"sort"

	"baykus/internal/core/domain"
	"baykus/internal/platform/errors"
	"baykus/internal/platform/logx"
)

// NormalizedLink es un Link de un finding con ambos extremos ya canonicalizados.
type NormalizedLink struct {
	Kind       domain.RelationshipKind
	From       domain.Candidate
	ToType     domain.AssetType
	ToValue    string
	Confidence float64
}

// ToKey identidad del extremo destino.
func (l NormalizedLink) ToKey() string {
	return domain.AssetKey(l.ToType, l.ToValue)
}

// Normalized es la salida del normalizer para un ConnectorResult.
type Normalized struct {
	Result     *domain.ConnectorResult
	Candidates []domain.Candidate
	Links      []NormalizedLink
	// Dropped cuenta findings descartados por valores no canonicalizables
	Dropped int
}

// Provenance construye la provenance de un candidato de este resultado.
func (n *Normalized) Provenance(c domain.Candidate) domain.Provenance {
	return domain.Provenance{
		Connector:  n.Result.Connector,
		ResultID:   n.Result.ID,
		RunID:      n.Result.RunID,
		ObservedAt: n.Result.FetchedAt,
		Confidence: c.Confidence,
	}
}

// Normalizer convierte un ConnectorResult en candidatos canónicos.
// Es puro: no toca el grafo ni el storage.
type Normalizer struct {
	logger logx.Logger
}

// NewNormalizer crea un normalizer.
func NewNormalizer(logger logx.Logger) *Normalizer {
	if logger == nil {
		logger = logx.Discard()
	}
	return &Normalizer{logger: logger.With("component", "normalizer")}
}

// Normalize valida el payload y canonicaliza sus findings. Los findings con
// la misma clave dentro de un resultado se combinan en un único candidato
// (atributos en orden de aparición, confianza máxima).
//
// Un payload malformado (resultado vacío, tipo de asset desconocido, link
// inválido) devuelve ErrNormalization y el resultado entero se descarta.
// Un valor que no se puede canonicalizar solo descarta ese finding.
func (n *Normalizer) Normalize(result *domain.ConnectorResult) (*Normalized, error) {
	if result == nil {
		return nil, errors.Wrap(errors.ErrNormalization, "nil result")
	}
	if result.Connector == "" || result.ID == "" {
		return nil, errors.Wrapf(errors.ErrNormalization, "result without connector or id (connector=%q id=%q)", result.Connector, result.ID)
	}

	out := &Normalized{Result: result}
	index := make(map[string]int)

	for i, f := range result.Findings {
		if !f.Type.IsValid() {
			return nil, errors.Wrapf(errors.ErrNormalization, "%s: finding %d has unknown asset type %q", result.Connector, i, f.Type)
		}
		value, err := domain.Canonicalize(f.Type, f.Value)
		if err != nil {
			out.Dropped++
			n.logger.Debug("finding dropped", "connector", result.Connector, "type", string(f.Type), "value", f.Value, "error", err.Error())
			continue
		}

		attrs, err := normalizeAttributes(f.Attributes)
		if err != nil {
			return nil, errors.Wrapf(errors.ErrNormalization, "%s: finding %s:%s: %v", result.Connector, f.Type, value, err)
		}

		cand := domain.Candidate{Type: f.Type, Value: value, Attributes: attrs, Confidence: defaultConfidence(f.Confidence)}
		if pos, ok := index[cand.Key()]; ok {
			out.Candidates[pos] = coalesce(out.Candidates[pos], cand)
		} else {
			index[cand.Key()] = len(out.Candidates)
			out.Candidates = append(out.Candidates, cand)
		}

		for _, l := range f.Links {
			link, err := normalizeLink(cand, l)
			if err != nil {
				return nil, errors.Wrapf(errors.ErrNormalization, "%s: link from %s: %v", result.Connector, cand.Key(), err)
			}
			out.Links = append(out.Links, link)
		}
	}

	// los links se resuelven contra el candidato ya combinado
	for i := range out.Links {
		out.Links[i].From = out.Candidates[index[out.Links[i].From.Key()]]
	}
	return out, nil
}

func normalizeLink(from domain.Candidate, l domain.Link) (NormalizedLink, error) {
	if !l.Kind.IsValid() {
		return NormalizedLink{}, errors.Errorf("unknown relationship kind %q", l.Kind)
	}
	if !l.ToType.IsValid() {
		return NormalizedLink{}, errors.Errorf("unknown asset type %q", l.ToType)
	}
	to, err := domain.Canonicalize(l.ToType, l.ToValue)
	if err != nil {
		return NormalizedLink{}, err
	}
	if l.Confidence < 0 || l.Confidence > 1 {
		return NormalizedLink{}, errors.Errorf("confidence %v out of range", l.Confidence)
	}
	return NormalizedLink{Kind: l.Kind, From: from, ToType: l.ToType, ToValue: to, Confidence: l.Confidence}, nil
}

func defaultConfidence(c float64) float64 {
	switch {
	case c <= 0:
		return domain.ConfidenceMedium
	case c > 1:
		return 1
	default:
		return c
	}
}

func coalesce(a, b domain.Candidate) domain.Candidate {
	if a.Attributes == nil {
		a.Attributes = make(map[string]any, len(b.Attributes))
	}
	for k, v := range b.Attributes {
		a.Attributes[k] = v
	}
	if b.Confidence > a.Confidence {
		a.Confidence = b.Confidence
	}
	return a
}

// normalizeAttributes deja los valores en tipos estables para comparar,
// serializar y evaluar en CEL: enteros a int64, slices a []any.
func normalizeAttributes(in map[string]any) (map[string]any, error) {
	if len(in) == 0 {
		return map[string]any{}, nil
	}
	out := make(map[string]any, len(in))
	keys := make([]string, 0, len(in))
	for k := range in {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if k == "" {
			return nil, errors.New("empty attribute name")
		}
		v, err := normalizeValue(in[k])
		if err != nil {
			return nil, errors.Wrapf(err, "attribute %s", k)
		}
		out[k] = v
	}
	return out, nil
}

func normalizeValue(v any) (any, error) {
	switch t := v.(type) {
	case nil, string, bool, int64, float64:
		return t, nil
	case int:
		return int64(t), nil
	case int32:
		return int64(t), nil
	case uint32:
		return int64(t), nil
	case float32:
		return float64(t), nil
	case []string:
		out := make([]any, len(t))
		for i, s := range t {
			out[i] = s
		}
		return out, nil
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			n, err := normalizeValue(e)
			if err != nil {
				return nil, err
			}
			out[i] = n
		}
		return out, nil
	case map[string]any:
		return normalizeAttributes(t)
	default:
		return nil, errors.Errorf("unsupported value type %T", v)
	}
}
