// Package mail delivers report emails through Microsoft Graph or Amazon SES.
package mail

import (
	"context"

	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
)

// Message is one HTML email.
type Message struct {
	From    string
	To      []string
	CC      []string
	Subject string
	HTML    string
}

// Transport sends messages.
type Transport interface {
	Send(ctx context.Context, msg Message) error
}

// ErrNoAccessToken is matched (errors.Is) when a transport could not obtain
// an access token. Callers treat it as terminal: nothing is sent and nothing
// is retried.
var ErrNoAccessToken = ferrors.NewError(ferrors.CategoryAuth, "error obtaining access token").Build()

func noAccessToken(cause error) error {
	return ferrors.WrapError(cause, ferrors.CategoryAuth, ErrNoAccessToken.Message()).Build()
}

// recipients drops blank addresses.
func recipients(addrs []string) []string {
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		if a != "" {
			out = append(out, a)
		}
	}
	return out
}
