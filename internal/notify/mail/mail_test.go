package mail

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
	"github.com/dipmndl/cdk-digital-twin-r2ex/internal/notify/secrets"
)

type staticCreds struct {
	creds secrets.GraphCredentials
	err   error
}

func (s staticCreds) GraphCredentials(context.Context) (secrets.GraphCredentials, error) {
	return s.creds, s.err
}

func tokenServer(t *testing.T, hits *atomic.Int32, status int) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/tenant-1/oauth2/v2.0/token", r.URL.Path)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
		assert.Equal(t, DefaultGraphScope, r.PostForm.Get("scope"))
		assert.Equal(t, "client-1", r.PostForm.Get("client_id"))
		if status != http.StatusOK {
			w.WriteHeader(status)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"tok-1","token_type":"Bearer","expires_in":3600}`)
	}))
	t.Cleanup(srv.Close)
	return srv
}

var creds = staticCreds{creds: secrets.GraphCredentials{TenantID: "tenant-1", ClientID: "client-1", ClientSecret: "s"}}

func TestClientCredentialsTokensCaches(t *testing.T) {
	var hits atomic.Int32
	srv := tokenServer(t, &hits, http.StatusOK)
	tokens := NewClientCredentialsTokens(creds, WithAuthority(srv.URL))

	var wg sync.WaitGroup
	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tok, err := tokens.AccessToken(t.Context())
			assert.NoError(t, err)
			assert.Equal(t, "tok-1", tok)
		}()
	}
	wg.Wait()

	_, err := tokens.AccessToken(t.Context())
	require.NoError(t, err)
	assert.LessOrEqual(t, hits.Load(), int32(5))
	before := hits.Load()
	_, _ = tokens.AccessToken(t.Context())
	assert.Equal(t, before, hits.Load(), "valid token is reused")
}

func TestClientCredentialsTokensFailure(t *testing.T) {
	var hits atomic.Int32
	srv := tokenServer(t, &hits, http.StatusUnauthorized)

	_, err := NewClientCredentialsTokens(creds, WithAuthority(srv.URL)).AccessToken(t.Context())
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrNoAccessToken)

	_, err = NewClientCredentialsTokens(staticCreds{err: errors.New("no secret")}).AccessToken(t.Context())
	assert.ErrorIs(t, err, ErrNoAccessToken)
}

type fixedToken string

func (f fixedToken) AccessToken(context.Context) (string, error) { return string(f), nil }

type failingToken struct{}

func (failingToken) AccessToken(context.Context) (string, error) {
	return "", noAccessToken(errors.New("denied"))
}

func TestGraphTransportSend(t *testing.T) {
	var got sendMailRequest
	var path, auth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path, _ = url.PathUnescape(r.URL.EscapedPath())
		auth = r.Header.Get("Authorization")
		assert.NoError(t, json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusAccepted)
	}))
	defer srv.Close()

	g := NewGraphTransport(fixedToken("tok-1"), srv.Client(), srv.URL)
	err := g.Send(t.Context(), Message{
		From:    "builds@example.com",
		To:      []string{"ravi@example.com"},
		CC:      []string{"lead@example.com", ""},
		Subject: "subject",
		HTML:    "<p>hi</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, "/users/builds@example.com/sendMail", path)
	assert.Equal(t, "Bearer tok-1", auth)
	assert.Equal(t, "HTML", got.Message.Body.ContentType)
	assert.Equal(t, "false", got.SaveToSentItems)
	require.Len(t, got.Message.ToRecipients, 1)
	assert.Equal(t, "ravi@example.com", got.Message.ToRecipients[0].EmailAddress.Address)
	assert.Len(t, got.Message.CCRecipients, 1)
}

func TestGraphTransportErrors(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = io.WriteString(w, `{"error":"denied"}`)
	}))
	defer srv.Close()

	err := NewGraphTransport(fixedToken("t"), srv.Client(), srv.URL).Send(t.Context(), Message{From: "a@b"})
	require.Error(t, err)
	assert.True(t, ferrors.HasCategory(err, ferrors.CategoryNotify))

	calls := 0
	counting := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		calls++
		w.WriteHeader(http.StatusAccepted)
	}))
	defer counting.Close()
	err = NewGraphTransport(failingToken{}, counting.Client(), counting.URL).Send(t.Context(), Message{From: "a@b"})
	assert.ErrorIs(t, err, ErrNoAccessToken)
	assert.Zero(t, calls, "nothing is sent without a token")
}

type fakeSES struct{ in *sesv2.SendEmailInput }

func (f *fakeSES) SendEmail(_ context.Context, in *sesv2.SendEmailInput, _ ...func(*sesv2.Options)) (*sesv2.SendEmailOutput, error) {
	f.in = in
	return &sesv2.SendEmailOutput{}, nil
}

func TestSESTransport(t *testing.T) {
	api := &fakeSES{}
	err := NewSESTransport(api).Send(t.Context(), Message{
		From: "builds@example.com", To: []string{"ravi@example.com"}, CC: []string{"lead@example.com"},
		Subject: "s", HTML: "<p>x</p>",
	})
	require.NoError(t, err)
	assert.Equal(t, []string{"lead@example.com"}, api.in.Destination.CcAddresses)
	assert.Equal(t, "<p>x</p>", *api.in.Content.Simple.Body.Html.Data)
}
