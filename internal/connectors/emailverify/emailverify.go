// Package emailverify checks the email addresses of a target without sending
// mail: syntax, MX presence, disposable providers and role accounts.
package emailverify

import (
	"context"
	"math"
	"strings"

	"github.com/miekg/dns"

	"baykus/internal/core/domain"
	"baykus/internal/core/ports"
	"baykus/internal/platform/dnsclient"
	"baykus/internal/platform/errors"
	"baykus/internal/platform/logx"
	"baykus/internal/platform/registry"
	"baykus/internal/platform/validator"
)

func init() {
	registry.Global().MustRegister(Descriptor, func(cfg ports.ConnectorConfig, deps ports.Deps) (ports.Connector, error) {
		return New(cfg, deps.Logger), nil
	})
}

const connectorName = "emailverify"

var Descriptor = ports.ConnectorDescriptor{
	Name:             connectorName,
	Kind:             domain.ConnectorEmailVerify,
	Description:      "Email verification (syntax, MX, disposable, role account)",
	Version:          "1.0.0",
	Capabilities:     []domain.AttributeType{domain.AttributeEmail},
	DefaultRateLimit: 5,
	Priority:         7,
}

// Pesos de la confianza de una dirección. Sin SMTP ni edad de dominio el
// máximo alcanzable aquí es 0.7.
const (
	weightValid         = 0.3
	weightNotDisposable = 0.2
	weightNotRole       = 0.1
	weightAgedDomain    = 0.2
	weightMX            = 0.1
	weightSMTP          = 0.1

	agedDomainDays = 365
)

var defaultDisposable = []string{
	"mailinator.com", "guerrillamail.com", "10minutemail.com", "tempmail.com",
	"temp-mail.org", "yopmail.com", "trashmail.com", "sharklasers.com",
	"getnada.com", "dispostable.com", "maildrop.cc", "throwawaymail.com",
}

var defaultRoles = []string{
	"admin", "administrator", "abuse", "billing", "contact", "help", "info",
	"hostmaster", "marketing", "noc", "noreply", "no-reply", "office", "postmaster",
	"root", "sales", "security", "support", "webmaster",
}

// Verifier implementa ports.Connector.
type Verifier struct {
	resolver   *dnsclient.Resolver
	disposable map[string]bool
	roles      map[string]bool
	logger     logx.Logger
}

// New crea el verificador. Custom "server" elige el resolver, "disposable" y
// "roles" amplían las listas por defecto.
func New(cfg ports.ConnectorConfig, logger logx.Logger) *Verifier {
	if logger == nil {
		logger = logx.Discard()
	}
	return &Verifier{
		resolver: dnsclient.New(dnsclient.Config{
			Connector: connectorName,
			Server:    registry.GetStringConfig(cfg.Custom, "server", cfg.BaseURL),
			Timeout:   registry.GetDurationConfig(cfg.Custom, "query_timeout", 0),
		}, logger),
		disposable: set(defaultDisposable, registry.GetSliceConfig(cfg.Custom, "disposable", nil)),
		roles:      set(defaultRoles, registry.GetSliceConfig(cfg.Custom, "roles", nil)),
		logger:     logger.With("connector", connectorName),
	}
}

func (v *Verifier) Name() string                         { return connectorName }
func (v *Verifier) Kind() domain.ConnectorKind           { return Descriptor.Kind }
func (v *Verifier) Capabilities() []domain.AttributeType { return Descriptor.Capabilities }

// Ping verifica el resolver con una dirección conocida.
func (v *Verifier) Ping(ctx context.Context) error {
	_, err := v.Verify(ctx, "test@example.com")
	return err
}

// Verification es el resultado de comprobar una dirección.
type Verification struct {
	Email         string
	Valid         bool
	Disposable    bool
	RoleAccount   bool
	MXRecords     []string
	DomainAgeDays int64
	SMTPCheck     bool
	Confidence    float64
}

// Confidence aplica los pesos a una verificación.
func Confidence(v Verification) float64 {
	score := 0.0
	if v.Valid {
		score += weightValid
	}
	if !v.Disposable {
		score += weightNotDisposable
	}
	if !v.RoleAccount {
		score += weightNotRole
	}
	if v.DomainAgeDays > agedDomainDays {
		score += weightAgedDomain
	}
	if len(v.MXRecords) > 0 {
		score += weightMX
	}
	if v.SMTPCheck {
		score += weightSMTP
	}
	return math.Min(math.Round(score*100)/100, 1)
}

// Verify comprueba una dirección. Un email con sintaxis inválida no es un
// error: se devuelve con Valid=false.
func (v *Verifier) Verify(ctx context.Context, email string) (Verification, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	out := Verification{Email: email, Valid: validator.IsEmail(email)}
	if !out.Valid {
		out.Confidence = Confidence(out)
		return out, nil
	}

	local, host := validator.EmailLocalPart(email), validator.EmailDomain(email)
	out.Disposable = v.disposable[host] || v.disposable[validator.RegistrableDomain(host)]
	out.RoleAccount = v.roles[strings.SplitN(local, "+", 2)[0]]

	mx, err := v.resolver.Values(ctx, host, dns.TypeMX)
	if err != nil {
		return out, err
	}
	out.MXRecords = mx
	out.Confidence = Confidence(out)
	return out, nil
}

func (v *Verifier) Fetch(ctx context.Context, target domain.Target) (*domain.ConnectorResult, error) {
	emails := target.Values(domain.AttributeEmail)
	if len(emails) == 0 {
		return nil, errors.Permanent(connectorName, errors.Wrap(errors.ErrInvalidInput, "no email to verify"))
	}

	result := domain.NewConnectorResult(connectorName, target.ID)
	for _, e := range emails {
		ver, err := v.Verify(ctx, e)
		if err != nil {
			return nil, err
		}
		if !ver.Valid {
			v.logger.Debug("invalid email skipped", "email", e)
			continue
		}
		attrs := map[string]any{
			"is_valid":         ver.Valid,
			"is_disposable":    ver.Disposable,
			"is_role_account":  ver.RoleAccount,
			"confidence_score": ver.Confidence,
		}
		if len(ver.MXRecords) > 0 {
			attrs["mx_records"] = ver.MXRecords
		}
		result.Add(domain.Finding{Type: domain.AssetEmail, Value: ver.Email, Attributes: attrs, Confidence: ver.Confidence})
	}
	return result, nil
}

func set(base, extra []string) map[string]bool {
	out := make(map[string]bool, len(base)+len(extra))
	for _, s := range append(append([]string(nil), base...), extra...) {
		out[strings.ToLower(strings.TrimSpace(s))] = true
	}
	return out
}
