// Package strava implements the OAuth 2.0 handshake for Strava.
package strava

import (
	"context"
	"fmt"
	"net/http"

	"github.com/ericfisherdev/fitflow/internal/adapter/driven/authcode"
	"github.com/ericfisherdev/fitflow/internal/domain/port/driven"
)

// Compile-time interface satisfaction check.
var _ driven.OAuth2Client = (*OAuthClient)(nil)

// Endpoints holds the Strava OAuth URLs.
type Endpoints struct {
	AuthorizeURL string
	TokenURL     string
}

// DefaultEndpoints are the production Strava URLs.
var DefaultEndpoints = Endpoints{
	AuthorizeURL: "https://www.strava.com/oauth/authorize/",
	TokenURL:     "https://www.strava.com/oauth/token",
}

// OAuthClient implements driven.OAuth2Client for Strava. The username is read
// from the athlete object of the token response.
type OAuthClient struct {
	code *authcode.Client
}

// NewOAuthClient creates an OAuthClient.
func NewOAuthClient(httpClient *http.Client, endpoints Endpoints) *OAuthClient {
	return &OAuthClient{code: authcode.NewClient(httpClient, endpoints.AuthorizeURL, endpoints.TokenURL)}
}

// AuthCodeURL returns the Strava consent URL.
func (c *OAuthClient) AuthCodeURL(clientID, redirectURI, state string) string {
	return c.code.AuthCodeURL(clientID, redirectURI, state)
}

// Exchange trades code for an access token.
func (c *OAuthClient) Exchange(ctx context.Context, consumer driven.Consumer, redirectURI, code string) (driven.Grant, error) {
	token, err := c.code.Exchange(ctx, consumer, redirectURI, code)
	if err != nil {
		return driven.Grant{}, fmt.Errorf("strava: %w", err)
	}

	grant := driven.Grant{AccessToken: token.AccessToken}
	if athlete, ok := token.Extra("athlete").(map[string]any); ok {
		grant.Username, _ = athlete["username"].(string)
	}
	return grant, nil
}
