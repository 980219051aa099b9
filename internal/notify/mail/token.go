package mail

import (
	"context"
	"fmt"
	"sync"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"

	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/notify/secrets"
)

// Default identity platform endpoints.
const (
	DefaultAuthority  = "https://login.microsoftonline.com"
	DefaultGraphScope = "https://graph.microsoft.com/.default"
)

// TokenSource yields bearer tokens.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
}

// ClientCredentialsTokens fetches Graph tokens with the client-credentials
// grant. Tokens are cached until expiry and concurrent refreshes collapse
// into one request.
type ClientCredentialsTokens struct {
	creds     secrets.Source
	authority string
	scope     string

	group  singleflight.Group
	mu     sync.Mutex
	cached *oauth2.Token
}

// TokenOption configures ClientCredentialsTokens.
type TokenOption func(*ClientCredentialsTokens)

// WithAuthority overrides the token endpoint host.
func WithAuthority(url string) TokenOption {
	return func(t *ClientCredentialsTokens) { t.authority = url }
}

// NewClientCredentialsTokens reads credentials from creds on each refresh.
func NewClientCredentialsTokens(creds secrets.Source, opts ...TokenOption) *ClientCredentialsTokens {
	t := &ClientCredentialsTokens{creds: creds, authority: DefaultAuthority, scope: DefaultGraphScope}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

func (t *ClientCredentialsTokens) AccessToken(ctx context.Context) (string, error) {
	t.mu.Lock()
	if t.cached.Valid() {
		tok := t.cached.AccessToken
		t.mu.Unlock()
		return tok, nil
	}
	t.mu.Unlock()

	v, err, _ := t.group.Do("token", func() (any, error) {
		c, err := t.creds.GraphCredentials(ctx)
		if err != nil {
			return nil, err
		}
		cfg := clientcredentials.Config{
			ClientID:     c.ClientID,
			ClientSecret: c.ClientSecret,
			TokenURL:     fmt.Sprintf("%s/%s/oauth2/v2.0/token", t.authority, c.TenantID),
			Scopes:       []string{t.scope},
			AuthStyle:    oauth2.AuthStyleInParams,
		}
		tok, err := cfg.Token(ctx)
		if err != nil {
			return nil, err
		}
		t.mu.Lock()
		t.cached = tok
		t.mu.Unlock()
		return tok.AccessToken, nil
	})
	if err != nil {
		return "", noAccessToken(err)
	}
	return v.(string), nil
}
