package fitbit

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/ericfisherdev/fitflow/internal/domain/model"
	"github.com/ericfisherdev/fitflow/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.FitbitAPI = (*Client)(nil)

// Client implements driven.FitbitAPI with OAuth 1.0a signed requests.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// NewClient creates a Client that reads resources below baseURL.
func NewClient(httpClient *http.Client, baseURL string) *Client {
	return &Client{baseURL: baseURL, httpClient: httpClient}
}

// Query fetches path for the authorizing user and returns the decoded JSON.
func (c *Client) Query(ctx context.Context, creds model.Credentials, path string) (any, error) {
	if !creds.AuthorizedOAuth1() {
		return nil, model.ErrNotAuthorized
	}

	consumer := driven.Consumer{Key: creds.ClientID, Secret: creds.ClientSecret}
	access := driven.TokenPair{Token: creds.AccessToken, Secret: creds.AccessTokenSecret}

	body, err := signedGet(ctx, c.httpClient, consumer, access, c.baseURL+path)
	if err != nil {
		return nil, fmt.Errorf("fitbit query %s: %w", path, err)
	}

	var payload any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decoding fitbit %s: %w", model.ErrData, path, err)
	}
	return payload, nil
}
