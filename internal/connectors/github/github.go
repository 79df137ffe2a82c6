// Package github implements a GitHub connector: profile lookup by username,
// account discovery by email and commit author emails from public events.
package github

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	gh "github.com/google/go-github/v53/github"
	"golang.org/x/oauth2"

	"baykus/internal/core/domain"
	"baykus/internal/core/ports"
	"baykus/internal/platform/errors"
	"baykus/internal/platform/logx"
	"baykus/internal/platform/registry"
	"baykus/internal/platform/validator"
)

func init() {
	registry.Global().MustRegister(Descriptor, func(cfg ports.ConnectorConfig, deps ports.Deps) (ports.Connector, error) {
		return New(cfg, deps.Logger)
	})
}

const connectorName = "github"

var Descriptor = ports.ConnectorDescriptor{
	Name:             connectorName,
	Kind:             domain.ConnectorUsernameSearch,
	Description:      "GitHub profiles, accounts by email and commit emails",
	Version:          "1.0.0",
	Capabilities:     []domain.AttributeType{domain.AttributeUsername, domain.AttributeEmail},
	RequiresAuth:     false, // sin token el límite es 60 req/h
	DefaultRateLimit: 1,
	Priority:         6,
}

// Connector implementa ports.Connector sobre go-github.
type Connector struct {
	client        *gh.Client
	commitEmails  bool
	maxEventPages int
	logger        logx.Logger
}

// New crea el connector. APIKey es un token personal; BaseURL apunta a
// GitHub Enterprise o a un servidor de tests.
func New(cfg ports.ConnectorConfig, logger logx.Logger) (*Connector, error) {
	if logger == nil {
		logger = logx.Discard()
	}

	var hc *http.Client
	if cfg.APIKey != "" {
		ts := oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.APIKey})
		hc = oauth2.NewClient(context.Background(), ts)
	} else {
		hc = &http.Client{}
	}
	if cfg.Timeout > 0 {
		hc.Timeout = cfg.Timeout
	}

	client := gh.NewClient(hc)
	if cfg.BaseURL != "" {
		base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/") + "/")
		if err != nil {
			return nil, errors.Wrapf(errors.ErrInvalidInput, "github base url: %v", err)
		}
		client.BaseURL = base
	}
	client.UserAgent = "Baykus/1.0"

	return &Connector{
		client:        client,
		commitEmails:  registry.GetBoolConfig(cfg.Custom, "commit_emails", true),
		maxEventPages: registry.GetIntConfig(cfg.Custom, "max_event_pages", 1),
		logger:        logger.With("connector", connectorName),
	}, nil
}

func (c *Connector) Name() string                         { return connectorName }
func (c *Connector) Kind() domain.ConnectorKind           { return Descriptor.Kind }
func (c *Connector) Capabilities() []domain.AttributeType { return Descriptor.Capabilities }

// Ping consulta el rate limit, que no consume cuota.
func (c *Connector) Ping(ctx context.Context) error {
	_, resp, err := c.client.RateLimits(ctx)
	return c.classify(ctx, resp, err)
}

func (c *Connector) Fetch(ctx context.Context, target domain.Target) (*domain.ConnectorResult, error) {
	result := domain.NewConnectorResult(connectorName, target.ID)

	logins := make(map[string]bool)
	for _, u := range target.Values(domain.AttributeUsername) {
		logins[strings.ToLower(u)] = true
	}
	for _, email := range target.Values(domain.AttributeEmail) {
		found, err := c.searchByEmail(ctx, email)
		if err != nil {
			return nil, err
		}
		for _, login := range found {
			logins[strings.ToLower(login)] = true
		}
	}

	for login := range logins {
		if err := c.profile(ctx, result, login); err != nil {
			return nil, err
		}
	}
	c.logger.Debug("github lookup completed", "logins", len(logins), "findings", len(result.Findings))
	return result, nil
}

func (c *Connector) searchByEmail(ctx context.Context, email string) ([]string, error) {
	res, resp, err := c.client.Search.Users(ctx, email+" in:email", &gh.SearchOptions{ListOptions: gh.ListOptions{PerPage: 10}})
	if err != nil {
		return nil, c.classify(ctx, resp, err)
	}
	out := make([]string, 0, len(res.Users))
	for _, u := range res.Users {
		if login := u.GetLogin(); login != "" {
			out = append(out, login)
		}
	}
	return out, nil
}

func (c *Connector) profile(ctx context.Context, result *domain.ConnectorResult, login string) error {
	user, resp, err := c.client.Users.Get(ctx, login)
	if err != nil {
		if resp != nil && resp.Response != nil && resp.StatusCode == http.StatusNotFound {
			c.logger.Debug("github user not found", "login", login)
			return nil
		}
		return c.classify(ctx, resp, err)
	}

	attrs := map[string]any{
		"platform":     "github",
		"html_url":     user.GetHTMLURL(),
		"public_repos": int64(user.GetPublicRepos()),
		"followers":    int64(user.GetFollowers()),
	}
	setIf(attrs, "name", user.GetName())
	setIf(attrs, "company", strings.TrimPrefix(user.GetCompany(), "@"))
	setIf(attrs, "location", user.GetLocation())
	setIf(attrs, "email", user.GetEmail())
	setIf(attrs, "blog", user.GetBlog())
	setIf(attrs, "twitter", user.GetTwitterUsername())
	if created := user.GetCreatedAt(); !created.IsZero() {
		attrs["created_at"] = created.UTC().Format("2006-01-02T15:04:05Z")
	}

	account := "github:" + strings.ToLower(user.GetLogin())
	result.Add(domain.Finding{Type: domain.AssetAccount, Value: account, Attributes: attrs, Confidence: domain.ConfidenceVerified})
	result.Add(domain.Finding{Type: domain.AssetUsername, Value: user.GetLogin(), Confidence: domain.ConfidenceVerified})

	if email := user.GetEmail(); validator.IsEmail(email) {
		result.Add(domain.Finding{
			Type:       domain.AssetEmail,
			Value:      email,
			Confidence: domain.ConfidenceHigh,
			Links:      []domain.Link{{Kind: domain.RelLinkedAccount, ToType: domain.AssetAccount, ToValue: account}},
		})
	}
	if blog := user.GetBlog(); blog != "" {
		if !strings.Contains(blog, "://") {
			blog = "https://" + blog
		}
		result.Add(domain.Finding{Type: domain.AssetURL, Value: blog, Confidence: domain.ConfidenceMedium})
	}

	if c.commitEmails {
		emails, err := c.commitAuthors(ctx, user.GetLogin())
		if err != nil {
			return err
		}
		for _, email := range emails {
			result.Add(domain.Finding{
				Type:       domain.AssetEmail,
				Value:      email,
				Attributes: map[string]any{"commit_author": true},
				Confidence: domain.ConfidenceMedium,
				Links:      []domain.Link{{Kind: domain.RelLinkedAccount, ToType: domain.AssetAccount, ToValue: account, Confidence: 0.5}},
			})
		}
	}
	return nil
}

// commitAuthors saca los emails de autor de los PushEvent públicos,
// descartando las direcciones noreply de GitHub.
func (c *Connector) commitAuthors(ctx context.Context, login string) ([]string, error) {
	seen := make(map[string]bool)
	var out []string

	opts := &gh.ListOptions{PerPage: 100}
	for page := 0; page < c.maxEventPages; page++ {
		events, resp, err := c.client.Activity.ListEventsPerformedByUser(ctx, login, true, opts)
		if err != nil {
			return nil, c.classify(ctx, resp, err)
		}
		for _, ev := range events {
			if ev.GetType() != "PushEvent" {
				continue
			}
			payload, err := ev.ParsePayload()
			if err != nil {
				continue
			}
			push, ok := payload.(*gh.PushEvent)
			if !ok {
				continue
			}
			for _, commit := range push.Commits {
				email := strings.ToLower(commit.GetAuthor().GetEmail())
				if !validator.IsEmail(email) || strings.HasSuffix(email, "noreply.github.com") || seen[email] {
					continue
				}
				seen[email] = true
				out = append(out, email)
			}
		}
		if resp.NextPage == 0 {
			break
		}
		opts.Page = resp.NextPage
	}
	return out, nil
}

// classify traduce los errores de go-github a la taxonomía del runner.
func (c *Connector) classify(ctx context.Context, resp *gh.Response, err error) error {
	if err == nil {
		return nil
	}
	if ctxErr := ctx.Err(); ctxErr != nil {
		return ctxErr
	}

	var rle *gh.RateLimitError
	var abuse *gh.AbuseRateLimitError
	switch {
	case errors.As(err, &rle), errors.As(err, &abuse):
		return &errors.ConnectorError{Connector: connectorName, StatusCode: http.StatusTooManyRequests, Temporary: true, Reason: "rate_limited", Cause: err}
	case resp != nil && resp.Response != nil:
		var ce *errors.ConnectorError
		if errors.As(errors.FromStatus(connectorName, resp.StatusCode), &ce) {
			ce.Cause = err
			return ce
		}
	}
	return errors.Transient(connectorName, fmt.Errorf("github: %w", err))
}

func setIf(attrs map[string]any, key, value string) {
	if value = strings.TrimSpace(value); value != "" {
		attrs[key] = value
	}
}
