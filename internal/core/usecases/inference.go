// internal/core/usecases/inference.go
package usecases

import (
	"context"
	"sort"
	"strings"
	"time"

	"baykus/internal/core/domain"
	"baykus/internal/core/ports"
	"baykus/internal/platform/errors"
	"baykus/internal/platform/keylock"
	"baykus/internal/platform/logx"
	"baykus/internal/platform/validator"
)

// Atributos que las reglas consultan.
var (
	ownerAttributes   = []string{"registrant_email", "owner_email", "admin_email"}
	profileEmailAttrs = []string{"email", "public_email"}
	profileSiteAttrs  = []string{"blog", "website", "homepage"}
	addressAttrs      = []string{"a", "aaaa"}
)

// DefaultConfidences son las confianzas base de cada regla.
func DefaultConfidences() map[domain.RelationshipKind]float64 {
	return map[domain.RelationshipKind]float64{
		domain.RelSameOwner:     0.7,
		domain.RelCoOccurrence:  0.3,
		domain.RelSubdomainOf:   0.9,
		domain.RelLinkedAccount: 0.6,
		domain.RelResolvesTo:    0.8,
		domain.RelMailHandledBy: 0.5,
	}
}

// InferenceOptions configura el motor de inferencia.
type InferenceOptions struct {
	Confidences map[domain.RelationshipKind]float64
	Combine     domain.CombineFunc
	Logger      logx.Logger
}

// InferenceEngine deriva relaciones entre assets. Infer es incremental: solo
// mira el asset cambiado contra los candidatos que devuelven los índices de
// atributos; Reconcile recorre todo el grafo.
type InferenceEngine struct {
	graphs  *Graphs
	store   ports.Storage
	locks   *keylock.Map
	conf    map[domain.RelationshipKind]float64
	combine domain.CombineFunc
	logger  logx.Logger
}

// NewInferenceEngine crea el motor. Confianzas ausentes usan los defaults.
func NewInferenceEngine(graphs *Graphs, store ports.Storage, locks *keylock.Map, opts InferenceOptions) *InferenceEngine {
	conf := DefaultConfidences()
	for k, v := range opts.Confidences {
		conf[k] = v
	}
	if opts.Combine == nil {
		opts.Combine = domain.CombineIndependent
	}
	if opts.Logger == nil {
		opts.Logger = logx.Discard()
	}
	if locks == nil {
		locks = keylock.New()
	}
	return &InferenceEngine{
		graphs:  graphs,
		store:   store,
		locks:   locks,
		conf:    conf,
		combine: opts.Combine,
		logger:  opts.Logger.With("component", "inference"),
	}
}

// RegisterLinks guarda los links explícitos de un resultado normalizado.
// Se materializan como aristas cuando ambos extremos existen.
func (e *InferenceEngine) RegisterLinks(ctx context.Context, targetID string, n *Normalized) error {
	if len(n.Links) == 0 {
		return nil
	}
	g, err := e.graphs.Open(ctx, targetID)
	if err != nil {
		return err
	}
	for _, l := range n.Links {
		g.AddLink(pendingLink{
			kind:       l.Kind,
			fromKey:    l.From.Key(),
			toKey:      l.ToKey(),
			confidence: l.Confidence,
			connector:  n.Result.Connector,
			resultID:   n.Result.ID,
		})
	}
	return nil
}

// edgeProposal es una arista candidata con su evidencia.
type edgeProposal struct {
	kind     domain.RelationshipKind
	from, to *domain.Asset
	evidence domain.Evidence
}

// Infer evalúa las reglas para changed y persiste las aristas nuevas o
// reforzadas. Devuelve las relaciones modificadas.
func (e *InferenceEngine) Infer(ctx context.Context, targetID string, changed *domain.Asset) ([]*domain.Relationship, error) {
	g, err := e.graphs.Open(ctx, targetID)
	if err != nil {
		return nil, err
	}
	a, ok := g.Asset(changed.Key())
	if !ok {
		return nil, errors.Wrapf(errors.ErrInvariant, "inference on unknown asset %s", changed.Key())
	}

	proposals := e.propose(g, a)

	var out []*domain.Relationship
	for _, p := range proposals {
		if err := ctx.Err(); err != nil {
			return out, errors.Wrapf(errors.ErrCancellationRequested, "inference %s: %v", a.Key(), err)
		}
		rel, updated, err := e.apply(ctx, targetID, g, p)
		if err != nil {
			return out, err
		}
		if updated {
			out = append(out, rel)
		}
	}
	return out, nil
}

// Reconcile reevalúa todas las reglas sobre todos los assets del target.
func (e *InferenceEngine) Reconcile(ctx context.Context, targetID string) ([]*domain.Relationship, error) {
	g, err := e.graphs.Open(ctx, targetID)
	if err != nil {
		return nil, err
	}
	var out []*domain.Relationship
	for _, key := range g.AssetKeys() {
		a, ok := g.Asset(key)
		if !ok {
			continue
		}
		rels, err := e.Infer(ctx, targetID, a)
		out = append(out, rels...)
		if err != nil {
			return out, err
		}
	}
	return out, nil
}

// apply añade la evidencia a la arista dentro de su lock y la persiste.
func (e *InferenceEngine) apply(ctx context.Context, targetID string, g *AssetGraph, p edgeProposal) (*domain.Relationship, bool, error) {
	key, _, _ := domain.RelationshipKey(p.kind, p.from.ID, p.to.ID)
	unlock, err := e.locks.Lock(ctx, "rel|"+targetID+"|"+key)
	if err != nil {
		return nil, false, errors.Wrapf(errors.ErrCancellationRequested, "relationship %s: %v", key, err)
	}
	defer unlock()

	rel, exists := g.Relationship(key)
	if !exists {
		rel, err = domain.NewRelationship(targetID, p.kind, p.from.ID, p.to.ID)
		if err != nil {
			return nil, false, errors.Wrap(errors.Join(errors.ErrInvariant, err), "new relationship")
		}
	}
	if !rel.AddEvidence(p.evidence, e.combine) {
		return rel, false, nil
	}

	saved, err := e.store.SaveRelationship(context.WithoutCancel(ctx), targetID, rel)
	if err != nil {
		return nil, false, storageErr(err, "save relationship %s", key)
	}
	if saved == nil {
		saved = rel
	}
	g.PutRelationship(saved)
	e.logger.Debug("relationship updated", "kind", string(p.kind), "from", p.from.Key(), "to", p.to.Key(), "confidence", saved.Confidence)
	return saved.Clone(), true, nil
}

// propose aplica la tabla de reglas al asset a.
func (e *InferenceEngine) propose(g *AssetGraph, a *domain.Asset) []edgeProposal {
	var out []edgeProposal
	add := func(kind domain.RelationshipKind, from, to *domain.Asset, basis string, conf float64, connector, resultID string) {
		if from == nil || to == nil || from.ID == to.ID {
			return
		}
		if conf <= 0 {
			conf = e.conf[kind]
		}
		out = append(out, edgeProposal{kind: kind, from: from, to: to, evidence: domain.Evidence{
			Rule:       string(kind),
			Basis:      basis,
			Connector:  connector,
			ResultID:   resultID,
			Confidence: conf,
			ObservedAt: observedAt(from, to),
		}})
	}
	byIDs := func(ids []string) []*domain.Asset {
		assets := make([]*domain.Asset, 0, len(ids))
		for _, id := range ids {
			if o, ok := g.AssetByID(id); ok && o.ID != a.ID {
				assets = append(assets, o)
			}
		}
		return assets
	}
	byKey := func(t domain.AssetType, value string) *domain.Asset {
		if value == "" {
			return nil
		}
		o, _ := g.Asset(domain.AssetKey(t, value))
		return o
	}

	// co_occurrence: mismo ConnectorResult
	for _, p := range a.Provenance {
		for _, o := range byIDs(g.Lookup("result:" + p.ResultID)) {
			add(domain.RelCoOccurrence, a, o, "result:"+p.ResultID, 0, p.Connector, p.ResultID)
		}
	}

	// same_owner: email de registrante/propietario compartido
	for _, owner := range ownerKeys(a) {
		for _, o := range byIDs(g.Lookup("owner:" + owner)) {
			add(domain.RelSameOwner, a, o, "owner:"+owner, 0, "", "")
		}
	}

	// same_owner y demás kinds reportados explícitamente
	for _, l := range g.LinksFrom(a.Key()) {
		if to, ok := g.Asset(l.toKey); ok {
			add(l.kind, a, to, linkBasis(l), l.confidence, l.connector, l.resultID)
		}
	}
	for _, l := range g.LinksTo(a.Key()) {
		if from, ok := g.Asset(l.fromKey); ok {
			add(l.kind, from, a, linkBasis(l), l.confidence, l.connector, l.resultID)
		}
	}

	switch a.Type {
	case domain.AssetDomain:
		// subdomain_of: hijo -> padre directo y registrable
		for _, parent := range parentDomains(a.Value) {
			add(domain.RelSubdomainOf, a, byKey(domain.AssetDomain, parent), "parent:"+parent, 0, "", "")
		}
		for _, child := range byIDs(g.Lookup("parent:" + a.Value)) {
			add(domain.RelSubdomainOf, child, a, "parent:"+a.Value, 0, "", "")
		}
		// resolves_to: registros A/AAAA
		for _, ip := range stringValues(a, addressAttrs...) {
			if v, err := domain.Canonicalize(domain.AssetIP, ip); err == nil {
				add(domain.RelResolvesTo, a, byKey(domain.AssetIP, v), "a:"+v, 0, "", "")
			}
		}
		// mail_handled_by: emails de este dominio
		for _, email := range byIDs(g.Lookup("mail:" + a.Value)) {
			add(domain.RelMailHandledBy, email, a, "mail:"+a.Value, 0, "", "")
		}
		for _, acc := range byIDs(g.Lookup("profile:domain:" + a.Value)) {
			add(domain.RelLinkedAccount, acc, a, "profile:domain:"+a.Value, 0, "", "")
		}

	case domain.AssetIP:
		for _, d := range byIDs(g.Lookup("resolves:" + a.Value)) {
			add(domain.RelResolvesTo, d, a, "a:"+a.Value, 0, "", "")
		}

	case domain.AssetEmail:
		if d := validator.EmailDomain(a.Value); d != "" {
			add(domain.RelMailHandledBy, a, byKey(domain.AssetDomain, d), "mail:"+d, 0, "", "")
		}
		for _, acc := range byIDs(g.Lookup("profile:email:" + a.Value)) {
			add(domain.RelLinkedAccount, acc, a, "profile:email:"+a.Value, 0, "", "")
		}

	case domain.AssetAccount, domain.AssetUsername:
		if u := usernameOf(a); u != "" {
			for _, o := range byIDs(g.Lookup("username:" + u)) {
				add(domain.RelLinkedAccount, a, o, "username:"+u, 0, "", "")
			}
		}
		if a.Type == domain.AssetAccount {
			for _, email := range profileEmails(a) {
				add(domain.RelLinkedAccount, a, byKey(domain.AssetEmail, email), "profile:email:"+email, 0, "", "")
			}
			for _, site := range profileDomains(a) {
				add(domain.RelLinkedAccount, a, byKey(domain.AssetDomain, site), "profile:domain:"+site, 0, "", "")
			}
		}
	}

	return out
}

// linkBasis: un co_occurrence explícito describe el mismo ConnectorResult que
// la regla implícita, así que comparte su basis y se fusiona con ella.
func linkBasis(l pendingLink) string {
	if l.kind == domain.RelCoOccurrence {
		return "result:" + l.resultID
	}
	return "link:" + l.resultID
}

// observedAt es determinista: el más reciente de los dos extremos.
func observedAt(a, b *domain.Asset) time.Time {
	if b.LastSeen.After(a.LastSeen) {
		return b.LastSeen
	}
	return a.LastSeen
}

// indexKeys calcula las entradas de índice de un asset. El grafo las mantiene
// al día en cada PutAsset.
func indexKeys(a *domain.Asset) []string {
	set := make(map[string]struct{})
	put := func(k string) { set[k] = struct{}{} }

	for _, p := range a.Provenance {
		if p.ResultID != "" {
			put("result:" + p.ResultID)
		}
	}
	for _, owner := range ownerKeys(a) {
		put("owner:" + owner)
	}

	switch a.Type {
	case domain.AssetDomain:
		for _, parent := range parentDomains(a.Value) {
			put("parent:" + parent)
		}
		for _, ip := range stringValues(a, addressAttrs...) {
			if v, err := domain.Canonicalize(domain.AssetIP, ip); err == nil {
				put("resolves:" + v)
			}
		}
	case domain.AssetEmail:
		if d := validator.EmailDomain(a.Value); d != "" {
			put("mail:" + d)
		}
	case domain.AssetAccount, domain.AssetUsername:
		if u := usernameOf(a); u != "" {
			put("username:" + u)
		}
		if a.Type == domain.AssetAccount {
			for _, e := range profileEmails(a) {
				put("profile:email:" + e)
			}
			for _, d := range profileDomains(a) {
				put("profile:domain:" + d)
			}
		}
	}

	keys := make([]string, 0, len(set))
	for k := range set {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// ownerKeys: emails de propietario del asset. Un email es su propio propietario.
func ownerKeys(a *domain.Asset) []string {
	var out []string
	if a.Type == domain.AssetEmail {
		out = append(out, a.Value)
	}
	for _, raw := range stringValues(a, ownerAttributes...) {
		if v, err := domain.Canonicalize(domain.AssetEmail, raw); err == nil && validator.IsEmail(v) {
			out = append(out, v)
		}
	}
	return dedupStrings(out)
}

func parentDomains(d string) []string {
	var out []string
	if p := validator.ParentDomain(d); p != "" {
		out = append(out, p)
	}
	if r := validator.RegistrableDomain(d); r != "" && r != d {
		out = append(out, r)
	}
	return dedupStrings(out)
}

// usernameOf devuelve el username de un asset account (platform:user) o username.
func usernameOf(a *domain.Asset) string {
	switch a.Type {
	case domain.AssetUsername:
		return a.Value
	case domain.AssetAccount:
		if i := strings.IndexByte(a.Value, ':'); i >= 0 {
			return a.Value[i+1:]
		}
		return a.Value
	}
	return ""
}

func profileEmails(a *domain.Asset) []string {
	var out []string
	for _, raw := range stringValues(a, profileEmailAttrs...) {
		if v, err := domain.Canonicalize(domain.AssetEmail, raw); err == nil && validator.IsEmail(v) {
			out = append(out, v)
		}
	}
	return dedupStrings(out)
}

func profileDomains(a *domain.Asset) []string {
	var out []string
	for _, raw := range stringValues(a, profileSiteAttrs...) {
		if v, err := domain.Canonicalize(domain.AssetDomain, raw); err == nil {
			out = append(out, v)
		}
	}
	return dedupStrings(out)
}

// stringValues junta los valores string de los atributos dados, aceptando
// string o listas de strings.
func stringValues(a *domain.Asset, keys ...string) []string {
	var out []string
	for _, k := range keys {
		switch v := a.Attributes[k].(type) {
		case string:
			if v != "" {
				out = append(out, v)
			}
		case []any:
			for _, e := range v {
				if s, ok := e.(string); ok && s != "" {
					out = append(out, s)
				}
			}
		case []string:
			for _, s := range v {
				if s != "" {
					out = append(out, s)
				}
			}
		}
	}
	return out
}

func dedupStrings(in []string) []string {
	if len(in) < 2 {
		return in
	}
	sort.Strings(in)
	out := in[:1]
	for _, s := range in[1:] {
		if s != out[len(out)-1] {
			out = append(out, s)
		}
	}
	return out
}
