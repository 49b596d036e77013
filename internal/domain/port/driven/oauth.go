package driven

import "context"

// Consumer identifies an OAuth client registration.
type Consumer struct {
	Key    string
	Secret string
}

// TokenPair is an OAuth 1.0a token and its secret.
type TokenPair struct {
	Token  string
	Secret string
}

// OAuth1Client performs the three-legged OAuth 1.0a handshake against a
// single provider.
type OAuth1Client interface {
	// RequestToken obtains temporary credentials. The provider will redirect
	// the user back to callbackURL after consent.
	RequestToken(ctx context.Context, consumer Consumer, callbackURL string) (TokenPair, error)

	// AuthorizeURL returns the consent URL for a request token.
	AuthorizeURL(requestToken string) (string, error)

	// AccessToken exchanges the request token and verifier for a durable token.
	AccessToken(ctx context.Context, consumer Consumer, request TokenPair, verifier string) (TokenPair, error)

	// Username performs one authenticated profile fetch and returns the
	// human-readable name of the authorizing user.
	Username(ctx context.Context, consumer Consumer, access TokenPair) (string, error)
}

// Grant is the result of an OAuth 2.0 authorization-code exchange.
type Grant struct {
	AccessToken string
	Username    string
}

// OAuth2Client performs the OAuth 2.0 authorization-code exchange against a
// single provider.
type OAuth2Client interface {
	// AuthCodeURL returns the consent URL carrying state.
	AuthCodeURL(clientID, redirectURI, state string) string

	// Exchange trades an authorization code for an access token and resolves
	// the username where the provider makes it available.
	Exchange(ctx context.Context, consumer Consumer, redirectURI, code string) (Grant, error)
}
