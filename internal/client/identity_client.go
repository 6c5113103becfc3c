package client

import (
	"context"
	_ "embed"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-resty/resty/v2"

	"github.com/pesio-ai/be-ar-nonpayment/internal/domain"
	"github.com/pesio-ai/be-ar-nonpayment/internal/platform/errors"
)

// IdentityHTTPClient resolves staff accounts against the identity service.
type IdentityHTTPClient struct {
	http *resty.Client
}

// NewIdentityHTTPClient creates a new identity client. Lookups are
// idempotent and retried on transport errors.
func NewIdentityHTTPClient(baseURL string, timeout time.Duration) *IdentityHTTPClient {
	c := newRESTClient(baseURL, timeout).
		SetRetryCount(2).
		SetRetryWaitTime(200 * time.Millisecond).
		SetRetryMaxWaitTime(time.Second)
	return &IdentityHTTPClient{http: c}
}

// LookupUser returns the active user for account. An unknown account is
// UNAUTHORIZED.
func (c *IdentityHTTPClient) LookupUser(ctx context.Context, account string) (*domain.ActiveUser, error) {
	var user domain.ActiveUser
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("account", account).
		SetResult(&user).
		Get("/api/v1/accounts/{account}")
	if err != nil {
		return nil, errors.Unavailable("identity service unreachable", err)
	}
	switch {
	case resp.StatusCode() == http.StatusNotFound:
		return nil, errors.Unauthorized(fmt.Sprintf("unknown account %q", account))
	case resp.IsError():
		return nil, errors.Unavailable("identity lookup failed", fmt.Errorf("status %d", resp.StatusCode()))
	}
	if user.Account == "" {
		user.Account = account
	}
	return &user, nil
}

//go:embed staff.toml
var defaultStaff []byte

// StaticIdentityClient serves a fixed staff directory. It backs local
// development and tests when no identity service is configured.
type StaticIdentityClient struct {
	users map[string]domain.ActiveUser
}

type staffFile struct {
	Staff []domain.ActiveUser `toml:"staff"`
}

// LoadStaticIdentity reads a TOML staff directory. An empty path loads the
// bundled directory.
func LoadStaticIdentity(path string) (*StaticIdentityClient, error) {
	data := defaultStaff
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read staff directory: %w", err)
		}
		data = b
	}

	var f staffFile
	if _, err := toml.Decode(string(data), &f); err != nil {
		return nil, fmt.Errorf("failed to decode staff directory: %w", err)
	}
	return NewStaticIdentityClient(f.Staff...), nil
}

// NewStaticIdentityClient builds a directory from users.
func NewStaticIdentityClient(users ...domain.ActiveUser) *StaticIdentityClient {
	m := make(map[string]domain.ActiveUser, len(users))
	for _, u := range users {
		m[u.Account] = u
	}
	return &StaticIdentityClient{users: m}
}

func (c *StaticIdentityClient) LookupUser(ctx context.Context, account string) (*domain.ActiveUser, error) {
	u, ok := c.users[account]
	if !ok {
		return nil, errors.Unauthorized(fmt.Sprintf("unknown account %q", account))
	}
	return &u, nil
}
