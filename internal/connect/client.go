// Package connect is the client for the Pipedream Connect OAuth proxy.
// The pipeline treats the proxy as opaque: it hands out connect tokens for the
// handshake, resolves completed handshakes to stable account IDs, and proxies
// authenticated requests to provider APIs with transparent credential refresh.
package connect

import (
	"context"
	"encoding/base64"
	"fmt"
	"net/url"
	"time"

	"github.com/go-resty/resty/v2"

	"github.com/synapta-ai/synapta/internal/config"
	"github.com/synapta-ai/synapta/internal/model"
)

// ConnectToken is the handshake descriptor handed to the UI layer.
type ConnectToken struct {
	Token          string `json:"token"`
	ConnectLinkURL string `json:"connectLinkUrl"`
}

// Account describes one proxy-side connected account.
type Account struct {
	ID  string `json:"id"`
	App struct {
		NameSlug string `json:"name_slug"`
	} `json:"app"`
}

// Client talks to the Connect API using client-credential basic auth.
type Client struct {
	http        *resty.Client
	projectID   string
	environment string
	externalUID string
}

// NewClient builds a Client from configuration.
func NewClient(cfg *config.Config) *Client {
	c := resty.New().
		SetBaseURL(cfg.PipedreamBaseURL).
		SetBasicAuth(cfg.PipedreamClientID, cfg.PipedreamClientSecret).
		SetHeader("Content-Type", "application/json").
		SetTimeout(30 * time.Second)

	return &Client{
		http:        c,
		projectID:   cfg.PipedreamProjectID,
		environment: cfg.PipedreamEnv,
		externalUID: cfg.ExternalUserID,
	}
}

// CreateConnectToken generates a connect token plus a ready-to-use link URL
// for the OAuth handshake.
func (c *Client) CreateConnectToken(ctx context.Context) (*ConnectToken, error) {
	var out struct {
		Token          string `json:"token"`
		ConnectLinkURL string `json:"connect_link_url"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetBody(map[string]string{
			"project_id":          c.projectID,
			"external_user_id":    c.externalUID,
			"project_environment": c.environment,
		}).
		SetResult(&out).
		Post("/connect/tokens")
	if err != nil {
		return nil, fmt.Errorf("create connect token: %w", classifyTransport(err))
	}
	if resp.IsError() {
		return nil, fmt.Errorf("create connect token: %w", classifyStatus(resp.StatusCode(), resp.String()))
	}
	return &ConnectToken{Token: out.Token, ConnectLinkURL: out.ConnectLinkURL}, nil
}

// ListAccounts returns every account the external user has connected.
func (c *Client) ListAccounts(ctx context.Context) ([]Account, error) {
	var out struct {
		Data []Account `json:"data"`
	}
	resp, err := c.http.R().
		SetContext(ctx).
		SetQueryParam("external_user_id", c.externalUID).
		SetResult(&out).
		Get("/connect/accounts")
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", classifyTransport(err))
	}
	if resp.IsError() {
		return nil, fmt.Errorf("list accounts: %w", classifyStatus(resp.StatusCode(), resp.String()))
	}
	return out.Data, nil
}

// AccountForApp returns the account ID connected for the given app slug, or
// model.ErrNotConnected when none exists.
func (c *Client) AccountForApp(ctx context.Context, appSlug string) (string, error) {
	accounts, err := c.ListAccounts(ctx)
	if err != nil {
		return "", err
	}
	for _, a := range accounts {
		if a.App.NameSlug == appSlug {
			return a.ID, nil
		}
	}
	return "", model.ErrNotConnected
}

// Proxy performs an authenticated GET against a provider API through the
// Connect proxy, decoding the JSON response into out. The proxy injects and
// refreshes the account's provider credential; an unrecoverable credential
// failure surfaces as model.ErrAuthExpired.
func (c *Client) Proxy(ctx context.Context, accountID, targetURL string, query url.Values, out interface{}) error {
	encoded := base64.URLEncoding.WithPadding(base64.NoPadding).EncodeToString([]byte(targetURL))

	req := c.http.R().
		SetContext(ctx).
		SetQueryParam("external_user_id", c.externalUID).
		SetQueryParam("account_id", accountID).
		SetHeader("x-pd-environment", c.environment)
	for k, vs := range query {
		for _, v := range vs {
			req.SetQueryParam(k, v)
		}
	}
	if out != nil {
		req.SetResult(out)
	}

	resp, err := req.Get(fmt.Sprintf("/connect/%s/proxy/%s", c.projectID, encoded))
	if err != nil {
		return classifyTransport(err)
	}
	if resp.IsError() {
		return classifyStatus(resp.StatusCode(), resp.String())
	}
	return nil
}

// classifyStatus maps proxy/provider HTTP statuses onto the pipeline's error
// taxonomy so callers can decide between abort and retry.
func classifyStatus(status int, body string) error {
	switch {
	case status == 401 || status == 403:
		return fmt.Errorf("status %d: %s: %w", status, truncate(body, 200), model.ErrAuthExpired)
	case status == 429:
		return fmt.Errorf("status %d: %w", status, model.ErrRateLimited)
	case status >= 500:
		return fmt.Errorf("status %d: %s: %w", status, truncate(body, 200), model.ErrTransient)
	default:
		return fmt.Errorf("unexpected status %d: %s", status, truncate(body, 200))
	}
}

// classifyTransport treats network-level failures (DNS, refused, deadline) as
// transient; the page-level retry loop owns the backoff.
func classifyTransport(err error) error {
	return fmt.Errorf("%v: %w", err, model.ErrTransient)
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
