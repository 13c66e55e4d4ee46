// Package auth attaches bearer credentials to outgoing API requests.
package auth

import (
	"context"
	"fmt"
	"net/http"
	"sync"

	"golang.org/x/oauth2"
)

// Authenticator decorates a request with credentials.
type Authenticator interface {
	SetAuthHeader(r *http.Request) error
}

// StaticToken sends a fixed bearer token. The empty token sends nothing.
type StaticToken string

func (t StaticToken) SetAuthHeader(r *http.Request) error {
	if t != "" {
		r.Header.Set("Authorization", "Bearer "+string(t))
	}
	return nil
}

// ClientCred obtains tokens with the OAuth2 client credentials grant and
// reuses them until they expire.
type ClientCred struct {
	conf  oauth2.TokenSource
	mu    sync.Mutex
	fresh func() oauth2.TokenSource
	token *oauth2.Token
}

func NewClientCred(conf Conf) *ClientCred {
	cc := conf.toOauth2Config()
	fresh := func() oauth2.TokenSource { return cc.TokenSource(context.Background()) }
	return &ClientCred{conf: fresh(), fresh: fresh}
}

// New returns a ClientCred when conf is enabled and a StaticToken otherwise.
func New(conf Conf, token string) Authenticator {
	if conf.Enabled() {
		return NewClientCred(conf)
	}
	return StaticToken(token)
}

// GetToken returns a valid access token, requesting a new one when the
// cached token has expired.
func (c *ClientCred) GetToken() (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.token != nil && c.token.Valid() {
		return c.token.AccessToken, nil
	}
	tok, err := c.conf.Token()
	if err != nil {
		return "", fmt.Errorf("failed to get token: %w", err)
	}
	c.token = tok
	return tok.AccessToken, nil
}

// ForceRefresh discards the cached token and requests a new one.
func (c *ClientCred) ForceRefresh() (string, error) {
	c.mu.Lock()
	c.token = nil
	c.conf = c.fresh()
	c.mu.Unlock()
	return c.GetToken()
}

func (c *ClientCred) SetAuthHeader(r *http.Request) error {
	if _, err := c.GetToken(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.token.SetAuthHeader(r)
	return nil
}
