package model

// Credential keys as persisted by the CredentialStore. Each key is stored as
// its own encrypted row so a handshake can populate the record incrementally.
const (
	CredClientID           = "client_id"
	CredClientSecret       = "client_secret"
	CredRedirectURI        = "redirect_uri"
	CredCSRFToken          = "csrf_token"
	CredRequestToken       = "request_token"
	CredRequestTokenSecret = "request_token_secret"
	CredAccessToken        = "access_token"
	CredAccessTokenSecret  = "access_token_secret"
	CredUsername           = "username"
)

// Credentials holds the per-connection OAuth state. A connection starts empty,
// is populated across the handshake steps and keeps only the long-lived
// fields once the handshake completes.
type Credentials struct {
	ConnectionID       string
	ClientID           string
	ClientSecret       string
	RedirectURI        string
	CSRFToken          string
	RequestToken       string
	RequestTokenSecret string
	AccessToken        string
	AccessTokenSecret  string
	Username           string
}

// CredentialsFromFields builds Credentials from the key/value rows returned by
// the store. Unknown keys are ignored.
func CredentialsFromFields(connectionID string, fields map[string]string) Credentials {
	return Credentials{
		ConnectionID:       connectionID,
		ClientID:           fields[CredClientID],
		ClientSecret:       fields[CredClientSecret],
		RedirectURI:        fields[CredRedirectURI],
		CSRFToken:          fields[CredCSRFToken],
		RequestToken:       fields[CredRequestToken],
		RequestTokenSecret: fields[CredRequestTokenSecret],
		AccessToken:        fields[CredAccessToken],
		AccessTokenSecret:  fields[CredAccessTokenSecret],
		Username:           fields[CredUsername],
	}
}

// Fields returns the non-empty fields keyed by their store key.
func (c Credentials) Fields() map[string]string {
	all := map[string]string{
		CredClientID:           c.ClientID,
		CredClientSecret:       c.ClientSecret,
		CredRedirectURI:        c.RedirectURI,
		CredCSRFToken:          c.CSRFToken,
		CredRequestToken:       c.RequestToken,
		CredRequestTokenSecret: c.RequestTokenSecret,
		CredAccessToken:        c.AccessToken,
		CredAccessTokenSecret:  c.AccessTokenSecret,
		CredUsername:           c.Username,
	}

	fields := make(map[string]string, len(all))
	for k, v := range all {
		if v != "" {
			fields[k] = v
		}
	}
	return fields
}

// LongLived returns a copy with the transient handshake fields cleared.
func (c Credentials) LongLived() Credentials {
	c.CSRFToken = ""
	c.RequestToken = ""
	c.RequestTokenSecret = ""
	return c
}

// HasClient reports whether the client registration fields are present.
func (c Credentials) HasClient() bool {
	return c.ClientID != "" && c.ClientSecret != "" && c.RedirectURI != ""
}

// Authorized reports whether an access token is present. OAuth 1.0a
// connections also need the token secret; see AuthorizedOAuth1.
func (c Credentials) Authorized() bool {
	return c.AccessToken != ""
}

// AuthorizedOAuth1 reports whether both halves of an OAuth 1.0a access token
// are present.
func (c Credentials) AuthorizedOAuth1() bool {
	return c.AccessToken != "" && c.AccessTokenSecret != ""
}
