// internal/platform/validator/validator.go
package validator

import (
	"net/netip"
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"
)

var (
	domainRegex   = regexp.MustCompile(`^([a-z0-9]([a-z0-9\-]{0,61}[a-z0-9])?\.)+[a-z0-9]([a-z0-9\-]{0,61}[a-z0-9])?$`)
	emailRegex    = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	usernameRegex = regexp.MustCompile(`^[a-zA-Z0-9._-]+$`)
	phoneRegex    = regexp.MustCompile(`^\+?[0-9]{6,15}$`)
)

// MaxUsernameLength es el límite aceptado por las búsquedas de username.
const MaxUsernameLength = 30

// Domain validators

// IsDomain verifica si un string (ya en minúsculas) es un dominio con al menos dos labels.
func IsDomain(domain string) bool {
	if len(domain) == 0 || len(domain) > 253 {
		return false
	}
	if !domainRegex.MatchString(strings.ToLower(domain)) {
		return false
	}
	// "1.2.3.4" cumple la regex
	if _, err := netip.ParseAddr(domain); err == nil {
		return false
	}
	return true
}

// IsSubdomain verifica si subdomain cuelga de baseDomain.
func IsSubdomain(subdomain, baseDomain string) bool {
	subdomain = strings.ToLower(strings.TrimSpace(subdomain))
	baseDomain = strings.ToLower(strings.TrimSpace(baseDomain))
	if subdomain == baseDomain || baseDomain == "" {
		return false
	}
	return strings.HasSuffix(subdomain, "."+baseDomain)
}

// RegistrableDomain devuelve eTLD+1 ("a.b.example.co.uk" -> "example.co.uk").
// Retorna "" si domain es un sufijo público o no es válido.
func RegistrableDomain(domain string) string {
	d, err := publicsuffix.EffectiveTLDPlusOne(strings.ToLower(domain))
	if err != nil {
		return ""
	}
	return d
}

// ParentDomain quita el primer label si el resultado sigue siendo registrable.
// "api.dev.example.com" -> "dev.example.com"; "example.com" -> "".
func ParentDomain(domain string) string {
	i := strings.IndexByte(domain, '.')
	if i < 0 {
		return ""
	}
	parent := domain[i+1:]
	if RegistrableDomain(parent) == "" {
		return ""
	}
	return parent
}

// Email validators

// IsEmail valida formato de email (RFC 5322 simplificado).
func IsEmail(email string) bool {
	if len(email) == 0 || len(email) > 254 {
		return false
	}
	return emailRegex.MatchString(email)
}

// EmailDomain devuelve la parte tras la última '@'.
func EmailDomain(email string) string {
	i := strings.LastIndexByte(email, '@')
	if i < 0 || i == len(email)-1 {
		return ""
	}
	return email[i+1:]
}

// EmailLocalPart devuelve la parte antes de la última '@'.
func EmailLocalPart(email string) string {
	i := strings.LastIndexByte(email, '@')
	if i <= 0 {
		return ""
	}
	return email[:i]
}

// Network validators

// IsIP verifica si un string es una dirección IP válida (v4 o v6).
func IsIP(ip string) bool {
	_, err := netip.ParseAddr(strings.TrimSpace(ip))
	return err == nil
}

// NormalizeIP devuelve la forma canónica o "" si no es una IP.
// IPv4 mapeada en IPv6 se reduce a IPv4.
func NormalizeIP(ip string) string {
	addr, err := netip.ParseAddr(strings.TrimSpace(ip))
	if err != nil {
		return ""
	}
	return addr.Unmap().WithZone("").String()
}

// URL validators

// IsURL verifica si un string es una URL absoluta con host.
func IsURL(urlStr string) bool {
	if urlStr == "" {
		return false
	}
	parsed, err := url.Parse(urlStr)
	if err != nil {
		return false
	}
	return parsed.Scheme != "" && parsed.Host != ""
}

// Handle validators

// IsUsername acepta alfanuméricos, punto, guion y guion bajo, hasta 30 caracteres.
func IsUsername(username string) bool {
	return username != "" && len(username) <= MaxUsernameLength && usernameRegex.MatchString(username)
}

// IsPhone acepta E.164 tras quitar separadores.
func IsPhone(phone string) bool {
	return phoneRegex.MatchString(phone)
}

// Generic validators

// IsEmpty verifica si un string está vacío o solo contiene espacios.
func IsEmpty(s string) bool {
	return len(strings.TrimSpace(s)) == 0
}
