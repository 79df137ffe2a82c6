// internal/core/domain/canonical.go
package domain

import (
	"fmt"
	"net/url"
	"strings"

	"baykus/internal/platform/validator"
)

// Canonicalizer convierte un valor crudo en su forma única comparable.
// Debe ser determinista: el mismo input siempre produce el mismo output.
type Canonicalizer func(raw string) (string, error)

var canonicalizers = map[AssetType]Canonicalizer{
	AssetEmail:        canonicalEmail,
	AssetDomain:       canonicalDomain,
	AssetIP:           canonicalIP,
	AssetAccount:      canonicalAccount,
	AssetUsername:     canonicalUsername,
	AssetPhone:        canonicalPhone,
	AssetDocument:     canonicalText,
	AssetURL:          canonicalURL,
	AssetPerson:       canonicalText,
	AssetOrganization: canonicalText,
}

// Canonicalize aplica el canonicalizador del tipo.
func Canonicalize(t AssetType, raw string) (string, error) {
	fn, ok := canonicalizers[t]
	if !ok {
		return "", fmt.Errorf("%w: %q", ErrInvalidAssetType, t)
	}
	if strings.TrimSpace(raw) == "" {
		return "", ErrEmptyAssetValue
	}
	v, err := fn(raw)
	if err != nil {
		return "", fmt.Errorf("%w: %s %q: %v", ErrInvalidValue, t, raw, err)
	}
	return v, nil
}

func canonicalEmail(raw string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	v = strings.TrimPrefix(v, "mailto:")
	if !validator.IsEmail(v) {
		return "", fmt.Errorf("malformed email")
	}
	return v, nil
}

// canonicalDomain acepta también URLs y wildcards: "HTTPS://WWW.Example.com:443/path" -> "example.com".
func canonicalDomain(raw string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	if i := strings.Index(v, "://"); i >= 0 {
		v = v[i+3:]
	}
	if i := strings.IndexAny(v, "/?#"); i >= 0 {
		v = v[:i]
	}
	if i := strings.LastIndexByte(v, '@'); i >= 0 {
		v = v[i+1:]
	}
	if i := strings.LastIndexByte(v, ':'); i >= 0 {
		v = v[:i]
	}
	v = strings.TrimSuffix(v, ".")
	v = strings.TrimPrefix(v, "*.")
	v = strings.TrimPrefix(v, "www.")

	if !validator.IsDomain(v) {
		return "", fmt.Errorf("malformed domain")
	}
	if validator.RegistrableDomain(v) == "" {
		return "", fmt.Errorf("public suffix is not a domain")
	}
	return v, nil
}

func canonicalIP(raw string) (string, error) {
	v := validator.NormalizeIP(raw)
	if v == "" {
		return "", fmt.Errorf("malformed ip")
	}
	return v, nil
}

func canonicalUsername(raw string) (string, error) {
	v := strings.ToLower(strings.TrimSpace(raw))
	v = strings.TrimPrefix(v, "@")
	if !validator.IsUsername(v) {
		return "", fmt.Errorf("malformed username")
	}
	return v, nil
}

// canonicalAccount espera "platform:username".
func canonicalAccount(raw string) (string, error) {
	platform, user, ok := strings.Cut(strings.TrimSpace(raw), ":")
	if !ok {
		return "", fmt.Errorf("account must be platform:username")
	}
	platform = strings.ToLower(strings.TrimSpace(platform))
	if platform == "" {
		return "", fmt.Errorf("empty platform")
	}
	u, err := canonicalUsername(user)
	if err != nil {
		return "", err
	}
	return platform + ":" + u, nil
}

func canonicalPhone(raw string) (string, error) {
	var b strings.Builder
	for i, r := range strings.TrimSpace(raw) {
		switch {
		case r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == '+' && i == 0:
			b.WriteRune(r)
		case r == ' ' || r == '-' || r == '.' || r == '(' || r == ')':
		default:
			return "", fmt.Errorf("unexpected character %q", r)
		}
	}
	v := b.String()
	if !validator.IsPhone(v) {
		return "", fmt.Errorf("malformed phone")
	}
	return v, nil
}

// canonicalURL baja a minúsculas scheme y host, quita fragmento y puerto por defecto.
func canonicalURL(raw string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return "", err
	}
	if u.Scheme == "" || u.Host == "" {
		return "", fmt.Errorf("url must be absolute")
	}
	u.Scheme = strings.ToLower(u.Scheme)
	u.Host = strings.ToLower(u.Host)
	switch {
	case u.Scheme == "http" && strings.HasSuffix(u.Host, ":80"):
		u.Host = strings.TrimSuffix(u.Host, ":80")
	case u.Scheme == "https" && strings.HasSuffix(u.Host, ":443"):
		u.Host = strings.TrimSuffix(u.Host, ":443")
	}
	u.Fragment = ""
	u.RawFragment = ""
	if u.Path == "/" && u.RawQuery == "" {
		u.Path = ""
	}
	return u.String(), nil
}

func canonicalText(raw string) (string, error) {
	return strings.ToLower(strings.Join(strings.Fields(raw), " ")), nil
}
