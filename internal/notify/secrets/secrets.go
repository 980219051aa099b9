// Package secrets loads the mail-service client credentials.
package secrets

import (
	"context"
	"encoding/json"
	"sync"

	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
)

// GraphCredentials are client-credential grant parameters.
type GraphCredentials struct {
	TenantID     string `json:"TENANT_ID"`
	ClientID     string `json:"CLIENT_ID"`
	ClientSecret string `json:"CLIENT_SECRET"`
}

// Source yields credentials.
type Source interface {
	GraphCredentials(ctx context.Context) (GraphCredentials, error)
}

func decode(raw []byte, origin string) (GraphCredentials, error) {
	var c GraphCredentials
	if err := json.Unmarshal(raw, &c); err != nil {
		return GraphCredentials{}, ferrors.WrapError(err, ferrors.CategoryAuth, "decode credentials").
			WithContext("source", origin).
			Build()
	}
	var missing []string
	if c.TenantID == "" {
		missing = append(missing, "TENANT_ID")
	}
	if c.ClientID == "" {
		missing = append(missing, "CLIENT_ID")
	}
	if c.ClientSecret == "" {
		missing = append(missing, "CLIENT_SECRET")
	}
	if len(missing) > 0 {
		return GraphCredentials{}, ferrors.NewError(ferrors.CategoryAuth, "credentials incomplete").
			UserAction().
			WithContext("source", origin).
			WithContext("missing", missing).
			Build()
	}
	return c, nil
}

// Cached memoizes a successful load. Failures are not cached so the next
// call tries again.
type Cached struct {
	src  Source
	mu   sync.Mutex
	have bool
	val  GraphCredentials
}

// NewCached wraps src.
func NewCached(src Source) *Cached { return &Cached{src: src} }

func (c *Cached) GraphCredentials(ctx context.Context) (GraphCredentials, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.have {
		return c.val, nil
	}
	v, err := c.src.GraphCredentials(ctx)
	if err != nil {
		return GraphCredentials{}, err
	}
	c.val, c.have = v, true
	return v, nil
}
