// internal/connectors/webarchive/analyzer.go
package webarchive

import (
	"net/url"
	"path"
	"sort"
	"strings"
)

// Categorías de URL archivada que merecen un asset propio.
const (
	CategorySensitive  = "sensitive_file"
	CategoryBackup     = "backup_file"
	CategoryRepository = "repository"
	CategoryAPI        = "api"
	CategoryAdmin      = "admin_panel"
)

var (
	// ficheros que nunca deberían ser públicos
	sensitiveNames = []string{
		".env", "config.php", "database.yml", "credentials.json",
		"web.config", ".htpasswd", ".htaccess", "id_rsa", "id_dsa",
		"authorized_keys", "secrets.yml", "settings.py", "application.properties",
		"wp-config.php",
	}

	backupSuffixes = []string{
		".bak", ".old", ".backup", ".sql", ".sql.gz", ".sql.bz2",
		".tar.gz", ".zip", ".rar", ".7z", ".dump", ".orig", ".save",
	}

	repoMarkers = []string{"/.git/", "/.svn/", "/.hg/", "/.bzr/", "/.cvs/"}

	apiMarkers = []string{
		"/api/", "/rest/", "/graphql", "/v1/", "/v2/", "/v3/",
		"/restapi/", "/webapi/", "swagger", "openapi.json",
	}

	// prefijo de ruta -> tecnología
	techMarkers = map[string]string{
		"/wp-admin/":      "WordPress",
		"/wp-login.php":   "WordPress",
		"/phpmyadmin/":    "phpMyAdmin",
		"/administrator/": "Joomla",
		"/user/login":     "Drupal",
		"/cpanel":         "cPanel",
		"/webmail/":       "Webmail",
		"/admin/":         "",
	}
)

// Analysis es la clasificación de una URL archivada.
type Analysis struct {
	Host       string
	Categories []string
	Technology string
}

// Sensitive indica si la URL expone ficheros que no deberían estar publicados.
func (a Analysis) Sensitive() bool {
	for _, c := range a.Categories {
		switch c {
		case CategorySensitive, CategoryBackup, CategoryRepository:
			return true
		}
	}
	return false
}

// Analyze clasifica u. Categories vacío = URL sin interés propio.
func Analyze(u *url.URL) Analysis {
	a := Analysis{Host: strings.ToLower(u.Hostname())}
	p := strings.ToLower(u.EscapedPath())
	if p == "" {
		return a
	}
	base := path.Base(p)

	set := make(map[string]bool)
	for _, name := range sensitiveNames {
		if base == name {
			set[CategorySensitive] = true
			break
		}
	}
	for _, suffix := range backupSuffixes {
		if strings.HasSuffix(base, suffix) {
			set[CategoryBackup] = true
			break
		}
	}
	for _, m := range repoMarkers {
		if strings.Contains(p+"/", m) {
			set[CategoryRepository] = true
			break
		}
	}
	for _, m := range apiMarkers {
		if strings.Contains(p, m) {
			set[CategoryAPI] = true
			break
		}
	}
	for prefix, tech := range techMarkers {
		if strings.HasPrefix(p, prefix) {
			set[CategoryAdmin] = true
			if tech != "" {
				a.Technology = tech
			}
		}
	}

	for c := range set {
		a.Categories = append(a.Categories, c)
	}
	sort.Strings(a.Categories)
	return a
}
