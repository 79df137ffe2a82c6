// internal/testutil/fixtures.go
package testutil

import "time"

// Fixture data para tests (valores primitivos solamente, sin dependencias de domain)

// FixtureTime es un instante fijo para que los tests no dependan del reloj.
var FixtureTime = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

// FixtureDomains contiene dominios válidos.
var FixtureDomains = []string{
	"example.com",
	"test.example.com",
	"subdomain.example.com",
	"example.co.uk",
}

// FixtureInvalidDomains contiene dominios inválidos.
var FixtureInvalidDomains = []string{
	"",
	"not a domain",
	"192.168.1.1",
	"-invalid.com",
	"invalid-.com",
	"example..com",
}

// FixtureEmails contiene emails válidos.
var FixtureEmails = []string{
	"admin@example.com",
	"contact@example.com",
	"info@subdomain.example.com",
}

// FixtureUsernames contiene usernames válidos.
var FixtureUsernames = []string{
	"octocat",
	"john.doe",
	"j_doe-99",
}
