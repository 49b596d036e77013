// Package fitbit implements the OAuth 1.0a handshake and the authenticated
// user API reads for Fitbit using the dghubble/oauth1 library.
package fitbit

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"regexp"
	"strconv"

	"github.com/dghubble/oauth1"
	"github.com/tidwall/gjson"

	"github.com/ericfisherdev/fitflow/internal/adapter/driven/httpx"
	"github.com/ericfisherdev/fitflow/internal/domain/model"
	"github.com/ericfisherdev/fitflow/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.OAuth1Client = (*OAuthClient)(nil)

// Endpoints holds the Fitbit OAuth and API URLs. Tests point these at an
// httptest server.
type Endpoints struct {
	RequestTokenURL string
	AuthorizeURL    string
	AccessTokenURL  string
	// APIBaseURL is the user-scoped API root; resource paths are appended.
	APIBaseURL string
}

// DefaultEndpoints are the production Fitbit URLs.
var DefaultEndpoints = Endpoints{
	RequestTokenURL: "https://api.fitbit.com/oauth/request_token",
	AuthorizeURL:    "https://www.fitbit.com/oauth/authorize",
	AccessTokenURL:  "https://api.fitbit.com/oauth/access_token",
	APIBaseURL:      "https://api.fitbit.com/1/user/-/",
}

const profilePath = "profile.json"

// invalidStatus matches the error oauth1 returns for a non-success token response.
var invalidStatus = regexp.MustCompile(`(?s)^oauth1: invalid status (\d+): (.*)$`)

// OAuthClient implements driven.OAuth1Client for Fitbit.
type OAuthClient struct {
	endpoints  Endpoints
	httpClient *http.Client
}

// NewOAuthClient creates an OAuthClient. httpClient bounds every request the
// handshake makes; its Timeout also applies to the profile fetch.
func NewOAuthClient(httpClient *http.Client, endpoints Endpoints) *OAuthClient {
	return &OAuthClient{endpoints: endpoints, httpClient: httpClient}
}

// config builds an oauth1 configuration whose token requests run under ctx.
func (c *OAuthClient) config(ctx context.Context, consumer driven.Consumer, callbackURL string) *oauth1.Config {
	return &oauth1.Config{
		ConsumerKey:    consumer.Key,
		ConsumerSecret: consumer.Secret,
		CallbackURL:    callbackURL,
		Endpoint: oauth1.Endpoint{
			RequestTokenURL: c.endpoints.RequestTokenURL,
			AuthorizeURL:    c.endpoints.AuthorizeURL,
			AccessTokenURL:  c.endpoints.AccessTokenURL,
		},
		HTTPClient: &http.Client{
			Transport: &contextTransport{ctx: ctx, base: c.httpClient.Transport},
			Timeout:   c.httpClient.Timeout,
		},
	}
}

// RequestToken obtains a request token signed with HMAC-SHA1.
func (c *OAuthClient) RequestToken(ctx context.Context, consumer driven.Consumer, callbackURL string) (driven.TokenPair, error) {
	token, secret, err := c.config(ctx, consumer, callbackURL).RequestToken()
	if err != nil {
		return driven.TokenPair{}, fmt.Errorf("fitbit request token: %w", classify(err))
	}
	return driven.TokenPair{Token: token, Secret: secret}, nil
}

// AuthorizeURL returns the Fitbit consent URL for requestToken.
func (c *OAuthClient) AuthorizeURL(requestToken string) (string, error) {
	cfg := oauth1.Config{Endpoint: oauth1.Endpoint{AuthorizeURL: c.endpoints.AuthorizeURL}}
	u, err := cfg.AuthorizationURL(requestToken)
	if err != nil {
		return "", fmt.Errorf("%w: fitbit authorize url: %w", model.ErrConfiguration, err)
	}
	return u.String(), nil
}

// AccessToken exchanges the request token and verifier for an access token.
func (c *OAuthClient) AccessToken(ctx context.Context, consumer driven.Consumer, request driven.TokenPair, verifier string) (driven.TokenPair, error) {
	token, secret, err := c.config(ctx, consumer, "").AccessToken(request.Token, request.Secret, verifier)
	if err != nil {
		return driven.TokenPair{}, fmt.Errorf("fitbit access token: %w", classify(err))
	}
	return driven.TokenPair{Token: token, Secret: secret}, nil
}

// Username fetches the user's profile and returns user.fullName.
func (c *OAuthClient) Username(ctx context.Context, consumer driven.Consumer, access driven.TokenPair) (string, error) {
	body, err := signedGet(ctx, c.httpClient, consumer, access, c.endpoints.APIBaseURL+profilePath)
	if err != nil {
		return "", fmt.Errorf("fitbit profile: %w", err)
	}

	name := gjson.GetBytes(body, "user.fullName")
	if !name.Exists() {
		return "", fmt.Errorf("%w: fitbit profile has no user.fullName", model.ErrData)
	}
	return name.String(), nil
}

// signedGet issues an OAuth 1.0a signed GET through httpClient's transport.
// Resource URLs do not name the user, so responses are cached per access token.
func signedGet(ctx context.Context, httpClient *http.Client, consumer driven.Consumer, access driven.TokenPair, url string) ([]byte, error) {
	ctx = httpx.WithCacheScope(ctx, access.Token)
	cfg := oauth1.NewConfig(consumer.Key, consumer.Secret)
	client := cfg.Client(context.WithValue(ctx, oauth1.HTTPClient, httpClient), oauth1.NewToken(access.Token, access.Secret))
	client.Timeout = httpClient.Timeout

	return httpx.Get(ctx, client, url)
}

// classify maps an oauth1 token error onto the domain error classes. Provider
// rejections keep their status code and body.
func classify(err error) error {
	if m := invalidStatus.FindStringSubmatch(err.Error()); m != nil {
		code, _ := strconv.Atoi(m[1])
		return fmt.Errorf("%w: %w", model.ErrAuthorization, &model.ProviderError{StatusCode: code, Body: m[2]})
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: %w", model.ErrTransient, err)
	}
	return fmt.Errorf("%w: %w", model.ErrAuthorization, err)
}

// contextTransport attaches ctx to requests built without one.
type contextTransport struct {
	ctx  context.Context
	base http.RoundTripper
}

func (t *contextTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	base := t.base
	if base == nil {
		base = http.DefaultTransport
	}
	return base.RoundTrip(req.WithContext(t.ctx))
}
