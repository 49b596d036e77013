// Package authcode wraps golang.org/x/oauth2 for providers that issue a
// long-lived access token from a single authorization-code exchange.
package authcode

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"

	"golang.org/x/oauth2"

	"github.com/ericfisherdev/fitflow/internal/domain/model"
	"github.com/ericfisherdev/fitflow/internal/domain/port/driven"
)

// Client performs the OAuth 2.0 authorization-code grant against one provider.
type Client struct {
	endpoint   oauth2.Endpoint
	scopes     []string
	httpClient *http.Client
}

// NewClient creates a Client. Client credentials are always sent in the
// request body.
func NewClient(httpClient *http.Client, authURL, tokenURL string, scopes ...string) *Client {
	return &Client{
		endpoint: oauth2.Endpoint{
			AuthURL:   authURL,
			TokenURL:  tokenURL,
			AuthStyle: oauth2.AuthStyleInParams,
		},
		scopes:     scopes,
		httpClient: httpClient,
	}
}

func (c *Client) config(consumer driven.Consumer, redirectURI string) *oauth2.Config {
	return &oauth2.Config{
		ClientID:     consumer.Key,
		ClientSecret: consumer.Secret,
		RedirectURL:  redirectURI,
		Scopes:       c.scopes,
		Endpoint:     c.endpoint,
	}
}

// AuthCodeURL returns the consent URL with response_type=code and state.
func (c *Client) AuthCodeURL(clientID, redirectURI, state string) string {
	return c.config(driven.Consumer{Key: clientID}, redirectURI).AuthCodeURL(state)
}

// Exchange posts the authorization code with grant_type=authorization_code
// and returns the provider's token response.
func (c *Client) Exchange(ctx context.Context, consumer driven.Consumer, redirectURI, code string) (*oauth2.Token, error) {
	ctx = context.WithValue(ctx, oauth2.HTTPClient, c.httpClient)

	token, err := c.config(consumer, redirectURI).Exchange(ctx, code)
	if err != nil {
		return nil, classify(err)
	}
	return token, nil
}

// classify maps an oauth2 exchange error onto the domain error classes.
// Provider rejections keep their status code and body.
func classify(err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) && retrieveErr.Response != nil {
		return fmt.Errorf("%w: %w", model.ErrAuthorization, &model.ProviderError{
			StatusCode: retrieveErr.Response.StatusCode,
			Body:       string(retrieveErr.Body),
		})
	}

	var netErr net.Error
	if errors.As(err, &netErr) || errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return fmt.Errorf("%w: token exchange: %w", model.ErrTransient, err)
	}
	return fmt.Errorf("%w: token exchange: %w", model.ErrAuthorization, err)
}
