// Package instagram implements the OAuth 2.0 handshake and the media
// listings for Instagram.
package instagram

import (
	"context"
	"fmt"
	"net/http"
	"net/url"

	"github.com/tidwall/gjson"

	"github.com/ericfisherdev/fitflow/internal/adapter/driven/authcode"
	"github.com/ericfisherdev/fitflow/internal/adapter/driven/httpx"
	"github.com/ericfisherdev/fitflow/internal/domain/model"
	"github.com/ericfisherdev/fitflow/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.OAuth2Client = (*OAuthClient)(nil)

// Endpoints holds the Instagram OAuth and API URLs.
type Endpoints struct {
	AuthorizeURL string
	TokenURL     string
	// APIBaseURL is the versioned API root; resource paths are appended.
	APIBaseURL string
}

// DefaultEndpoints are the production Instagram URLs.
var DefaultEndpoints = Endpoints{
	AuthorizeURL: "https://api.instagram.com/oauth/authorize/",
	TokenURL:     "https://api.instagram.com/oauth/access_token",
	APIBaseURL:   "https://api.instagram.com/v1/",
}

// OAuthClient implements driven.OAuth2Client for Instagram. After the code
// exchange the username is resolved from users/self.
type OAuthClient struct {
	code       *authcode.Client
	apiBaseURL string
	httpClient *http.Client
}

// NewOAuthClient creates an OAuthClient.
func NewOAuthClient(httpClient *http.Client, endpoints Endpoints) *OAuthClient {
	return &OAuthClient{
		code:       authcode.NewClient(httpClient, endpoints.AuthorizeURL, endpoints.TokenURL),
		apiBaseURL: endpoints.APIBaseURL,
		httpClient: httpClient,
	}
}

// AuthCodeURL returns the Instagram consent URL.
func (c *OAuthClient) AuthCodeURL(clientID, redirectURI, state string) string {
	return c.code.AuthCodeURL(clientID, redirectURI, state)
}

// Exchange trades code for an access token and looks up the username.
func (c *OAuthClient) Exchange(ctx context.Context, consumer driven.Consumer, redirectURI, code string) (driven.Grant, error) {
	token, err := c.code.Exchange(ctx, consumer, redirectURI, code)
	if err != nil {
		return driven.Grant{}, fmt.Errorf("instagram: %w", err)
	}

	username, err := c.username(ctx, token.AccessToken)
	if err != nil {
		return driven.Grant{}, err
	}
	return driven.Grant{AccessToken: token.AccessToken, Username: username}, nil
}

func (c *OAuthClient) username(ctx context.Context, accessToken string) (string, error) {
	q := url.Values{"access_token": {accessToken}}
	body, err := httpx.Get(ctx, c.httpClient, c.apiBaseURL+"users/self?"+q.Encode())
	if err != nil {
		return "", fmt.Errorf("instagram users/self: %w", err)
	}

	name := gjson.GetBytes(body, "data.username")
	if !name.Exists() {
		return "", fmt.Errorf("%w: instagram users/self has no data.username", model.ErrData)
	}
	return name.String(), nil
}
