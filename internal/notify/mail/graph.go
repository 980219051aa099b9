package mail

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"

	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
)

// DefaultGraphURL is the Graph API root.
const DefaultGraphURL = "https://graph.microsoft.com/v1.0"

// GraphTransport sends mail as the sender's mailbox via Graph sendMail.
type GraphTransport struct {
	tokens  TokenSource
	client  *http.Client
	baseURL string
}

// NewGraphTransport creates a transport. A nil client uses http.DefaultClient.
func NewGraphTransport(tokens TokenSource, client *http.Client, baseURL string) *GraphTransport {
	if client == nil {
		client = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultGraphURL
	}
	return &GraphTransport{tokens: tokens, client: client, baseURL: baseURL}
}

type graphAddress struct {
	EmailAddress struct {
		Address string `json:"address"`
	} `json:"emailAddress"`
}

func addresses(addrs []string) []graphAddress {
	out := make([]graphAddress, 0, len(addrs))
	for _, a := range recipients(addrs) {
		var ga graphAddress
		ga.EmailAddress.Address = a
		out = append(out, ga)
	}
	return out
}

type graphBody struct {
	ContentType string `json:"contentType"`
	Content     string `json:"content"`
}

type graphMessage struct {
	Subject      string         `json:"subject"`
	Body         graphBody      `json:"body"`
	ToRecipients []graphAddress `json:"toRecipients"`
	CCRecipients []graphAddress `json:"ccRecipients"`
	From         graphAddress   `json:"from"`
	Attachments  []any          `json:"attachments"`
}

type sendMailRequest struct {
	Message         graphMessage `json:"message"`
	SaveToSentItems string       `json:"saveToSentItems"`
}

func (g *GraphTransport) Send(ctx context.Context, msg Message) error {
	token, err := g.tokens.AccessToken(ctx)
	if err != nil {
		return err
	}

	from := addresses([]string{msg.From})
	payload := sendMailRequest{
		Message: graphMessage{
			Subject:      msg.Subject,
			Body:         graphBody{ContentType: "HTML", Content: msg.HTML},
			ToRecipients: addresses(msg.To),
			CCRecipients: addresses(msg.CC),
			Attachments:  []any{},
		},
		SaveToSentItems: "false",
	}
	if len(from) == 1 {
		payload.Message.From = from[0]
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNotify, "encode message").Build()
	}

	endpoint := fmt.Sprintf("%s/users/%s/sendMail", g.baseURL, url.PathEscape(msg.From))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return ferrors.WrapError(err, ferrors.CategoryNotify, "build request").Build()
	}
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return ferrors.RemoteServiceError(ferrors.CategoryNotify, "graph.sendMail", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusAccepted {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return ferrors.NewError(ferrors.CategoryNotify, "graph.sendMail rejected").
			WithContext("status", resp.StatusCode).
			WithContext("body", string(detail)).
			Build()
	}
	return nil
}
