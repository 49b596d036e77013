package strava

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/fitflow/internal/domain/model"
	"github.com/ericfisherdev/fitflow/internal/domain/port/driven"
)

func TestOAuthClient_AuthCodeURL(t *testing.T) {
	c := NewOAuthClient(http.DefaultClient, DefaultEndpoints)

	u := c.AuthCodeURL("42", "http://localhost:1880/strava-credentials/auth/callback", "n2:tok")
	assert.True(t, strings.HasPrefix(u, "https://www.strava.com/oauth/authorize/?"))
	assert.Contains(t, u, "state=n2%3Atok")
	assert.Contains(t, u, "response_type=code")
}

func TestOAuthClient_ExchangeReadsAthlete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())
		assert.Equal(t, "the-code", r.PostForm.Get("code"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok","token_type":"Bearer","athlete":{"id":7,"username":"rider"}}`))
	}))
	defer srv.Close()

	c := NewOAuthClient(&http.Client{Timeout: 5 * time.Second}, Endpoints{AuthorizeURL: srv.URL + "/oauth/authorize/", TokenURL: srv.URL + "/oauth/token"})
	grant, err := c.Exchange(context.Background(), driven.Consumer{Key: "42", Secret: "s"}, "http://localhost/cb", "the-code")
	require.NoError(t, err)
	assert.Equal(t, driven.Grant{AccessToken: "tok", Username: "rider"}, grant)
}

func TestOAuthClient_ExchangeWithoutAthlete(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"access_token":"tok"}`))
	}))
	defer srv.Close()

	c := NewOAuthClient(&http.Client{Timeout: 5 * time.Second}, Endpoints{TokenURL: srv.URL + "/oauth/token"})
	grant, err := c.Exchange(context.Background(), driven.Consumer{Key: "42", Secret: "s"}, "http://localhost/cb", "code")
	require.NoError(t, err)
	assert.Equal(t, "tok", grant.AccessToken)
	assert.Empty(t, grant.Username)
}

func TestOAuthClient_ExchangeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusBadRequest)
		_, _ = w.Write([]byte(`{"message":"Bad Request","errors":[{"resource":"AuthorizationCode","field":"code","code":"invalid"}]}`))
	}))
	defer srv.Close()

	c := NewOAuthClient(&http.Client{Timeout: 5 * time.Second}, Endpoints{TokenURL: srv.URL + "/oauth/token"})
	_, err := c.Exchange(context.Background(), driven.Consumer{Key: "42", Secret: "s"}, "http://localhost/cb", "code")
	assert.ErrorIs(t, err, model.ErrAuthorization)
}
