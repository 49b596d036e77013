// Package application contains use-case orchestration services.
package application

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"encoding/base64"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"

	"github.com/ericfisherdev/fitflow/internal/domain/model"
	"github.com/ericfisherdev/fitflow/internal/domain/port/driven"
)

// csrfTokenBytes is the entropy of the CSRF token embedded in OAuth 2.0 state.
const csrfTokenBytes = 18

// Request validation errors. All of them are configuration errors and map to
// a 400 response.
var (
	ErrMissingClientParams = fmt.Errorf("%w: client_id, client_secret and redirect_uri are required", model.ErrConfiguration)
	ErrMissingConnection   = fmt.Errorf("%w: connection id is required", model.ErrConfiguration)
	ErrMissingState        = fmt.Errorf("%w: state is required", model.ErrConfiguration)
	ErrMissingCode         = fmt.Errorf("%w: code is required", model.ErrConfiguration)
	ErrMissingVerifier     = fmt.Errorf("%w: oauth_verifier is required", model.ErrConfiguration)
	ErrNoPendingHandshake  = fmt.Errorf("%w: no authorization in progress for this connection", model.ErrConfiguration)
	ErrUnknownProvider     = fmt.Errorf("%w: unknown provider", model.ErrConfiguration)
)

// HandshakeStage names the provider interaction that failed.
type HandshakeStage string

const (
	StageRequestToken HandshakeStage = "request token"
	StageExchange     HandshakeStage = "token exchange"
	StageProfile      HandshakeStage = "profile fetch"
)

// HandshakeError reports a failed provider interaction during a handshake.
// It is shown to the user as a failure page rather than an error status.
type HandshakeError struct {
	Provider model.Provider
	Stage    HandshakeStage
	Err      error
}

func (e *HandshakeError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Provider, e.Stage, e.Err)
}

func (e *HandshakeError) Unwrap() error {
	return e.Err
}

// ClientParams are the client registration values supplied when a handshake
// begins.
type ClientParams struct {
	ClientID     string
	ClientSecret string
	RedirectURI  string
}

func (p ClientParams) complete() bool {
	return p.ClientID != "" && p.ClientSecret != "" && p.RedirectURI != ""
}

// Completion describes a finished handshake.
type Completion struct {
	Provider     model.Provider
	ConnectionID string
	Username     string
}

// AuthService runs the OAuth 1.0a and OAuth 2.0 handshakes and keeps the
// credential store in step with them. Callbacks for the same connection are
// serialised so a CSRF token or request token is consumed exactly once.
type AuthService struct {
	store  driven.CredentialStore
	oauth1 map[model.Provider]driven.OAuth1Client
	oauth2 map[model.Provider]driven.OAuth2Client
	locks  keyedMutex
}

// NewAuthService creates an AuthService for the given provider clients.
func NewAuthService(
	store driven.CredentialStore,
	oauth1 map[model.Provider]driven.OAuth1Client,
	oauth2 map[model.Provider]driven.OAuth2Client,
) *AuthService {
	return &AuthService{
		store:  store,
		oauth1: oauth1,
		oauth2: oauth2,
	}
}

// BeginOAuth1 stores the client registration for connectionID, obtains a
// request token and returns the provider consent URL.
func (s *AuthService) BeginOAuth1(ctx context.Context, provider model.Provider, connectionID string, params ClientParams) (string, error) {
	client, ok := s.oauth1[provider]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	if connectionID == "" {
		return "", ErrMissingConnection
	}
	if !params.complete() {
		return "", ErrMissingClientParams
	}

	unlock := s.locks.lock(connectionID)
	defer unlock()

	creds := model.Credentials{
		ConnectionID: connectionID,
		ClientID:     params.ClientID,
		ClientSecret: params.ClientSecret,
		RedirectURI:  params.RedirectURI,
	}
	if err := s.store.Replace(ctx, connectionID, creds.Fields()); err != nil {
		return "", fmt.Errorf("storing client registration: %w", err)
	}

	consumer := driven.Consumer{Key: params.ClientID, Secret: params.ClientSecret}
	request, err := client.RequestToken(ctx, consumer, params.RedirectURI)
	if err != nil {
		return "", &HandshakeError{Provider: provider, Stage: StageRequestToken, Err: err}
	}

	creds.RequestToken = request.Token
	creds.RequestTokenSecret = request.Secret
	if err := s.store.Replace(ctx, connectionID, creds.Fields()); err != nil {
		return "", fmt.Errorf("storing request token: %w", err)
	}

	authURL, err := client.AuthorizeURL(request.Token)
	if err != nil {
		return "", err
	}

	slog.Info("authorization started", "provider", provider, "connection", connectionID)
	return authURL, nil
}

// CompleteOAuth1 exchanges the pending request token and verifier for an
// access token, resolves the username and keeps only the long-lived fields.
func (s *AuthService) CompleteOAuth1(ctx context.Context, provider model.Provider, connectionID, verifier string) (Completion, error) {
	client, ok := s.oauth1[provider]
	if !ok {
		return Completion{}, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}

	unlock := s.locks.lock(connectionID)
	defer unlock()

	creds, err := s.load(ctx, connectionID)
	if err != nil {
		return Completion{}, err
	}
	if creds.RequestToken == "" || creds.RequestTokenSecret == "" || !creds.HasClient() {
		return Completion{}, ErrNoPendingHandshake
	}
	if verifier == "" {
		return Completion{}, ErrMissingVerifier
	}

	consumer := driven.Consumer{Key: creds.ClientID, Secret: creds.ClientSecret}
	request := driven.TokenPair{Token: creds.RequestToken, Secret: creds.RequestTokenSecret}

	access, err := client.AccessToken(ctx, consumer, request, verifier)
	if err != nil {
		return Completion{}, &HandshakeError{Provider: provider, Stage: StageExchange, Err: err}
	}

	username, err := client.Username(ctx, consumer, access)
	if err != nil {
		return Completion{}, &HandshakeError{Provider: provider, Stage: StageProfile, Err: err}
	}

	creds.AccessToken = access.Token
	creds.AccessTokenSecret = access.Secret
	creds.Username = username
	if err := s.store.Replace(ctx, connectionID, creds.LongLived().Fields()); err != nil {
		return Completion{}, fmt.Errorf("storing access token: %w", err)
	}

	slog.Info("authorization completed", "provider", provider, "connection", connectionID)
	return Completion{Provider: provider, ConnectionID: connectionID, Username: username}, nil
}

// BeginOAuth2 stores the client registration and a fresh CSRF token for
// connectionID and returns the provider consent URL. The URL carries
// state=<connectionID>:<csrfToken>.
func (s *AuthService) BeginOAuth2(ctx context.Context, provider model.Provider, connectionID string, params ClientParams) (string, error) {
	client, ok := s.oauth2[provider]
	if !ok {
		return "", fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	if connectionID == "" {
		return "", ErrMissingConnection
	}
	if !params.complete() {
		return "", ErrMissingClientParams
	}

	csrf, err := generateCSRFToken()
	if err != nil {
		return "", err
	}

	unlock := s.locks.lock(connectionID)
	defer unlock()

	creds := model.Credentials{
		ConnectionID: connectionID,
		ClientID:     params.ClientID,
		ClientSecret: params.ClientSecret,
		RedirectURI:  params.RedirectURI,
		CSRFToken:    csrf,
	}
	if err := s.store.Replace(ctx, connectionID, creds.Fields()); err != nil {
		return "", fmt.Errorf("storing client registration: %w", err)
	}

	slog.Info("authorization started", "provider", provider, "connection", connectionID)
	return client.AuthCodeURL(params.ClientID, params.RedirectURI, joinState(connectionID, csrf)), nil
}

// CompleteOAuth2 validates state against the stored CSRF token, consumes it,
// exchanges code for an access token and keeps only the long-lived fields.
// A consumed or mismatched state yields model.ErrCSRFMismatch.
func (s *AuthService) CompleteOAuth2(ctx context.Context, provider model.Provider, state, code string) (Completion, error) {
	client, ok := s.oauth2[provider]
	if !ok {
		return Completion{}, fmt.Errorf("%w: %s", ErrUnknownProvider, provider)
	}
	if state == "" {
		return Completion{}, ErrMissingState
	}

	connectionID, csrf, ok := splitState(state)
	if !ok {
		return Completion{}, model.ErrCSRFMismatch
	}

	unlock := s.locks.lock(connectionID)
	defer unlock()

	creds, err := s.load(ctx, connectionID)
	if err != nil {
		return Completion{}, err
	}
	if !creds.HasClient() {
		return Completion{}, ErrNoPendingHandshake
	}

	if creds.CSRFToken == "" || subtle.ConstantTimeCompare([]byte(creds.CSRFToken), []byte(csrf)) != 1 {
		if creds.CSRFToken != "" {
			if err := s.consumeCSRF(ctx, connectionID); err != nil {
				slog.Error("failed to delete csrf token", "connection", connectionID, "error", err)
			}
		}
		slog.Warn("authorization callback rejected", "provider", provider, "connection", connectionID, "reason", "csrf mismatch")
		return Completion{}, model.ErrCSRFMismatch
	}
	if err := s.consumeCSRF(ctx, connectionID); err != nil {
		return Completion{}, err
	}

	if code == "" {
		return Completion{}, ErrMissingCode
	}

	consumer := driven.Consumer{Key: creds.ClientID, Secret: creds.ClientSecret}
	grant, err := client.Exchange(ctx, consumer, creds.RedirectURI, code)
	if err != nil {
		return Completion{}, &HandshakeError{Provider: provider, Stage: StageExchange, Err: err}
	}

	creds.AccessToken = grant.AccessToken
	creds.Username = grant.Username
	if err := s.store.Replace(ctx, connectionID, creds.LongLived().Fields()); err != nil {
		return Completion{}, fmt.Errorf("storing access token: %w", err)
	}

	slog.Info("authorization completed", "provider", provider, "connection", connectionID)
	return Completion{Provider: provider, ConnectionID: connectionID, Username: grant.Username}, nil
}

// Credentials returns the stored credentials of a connection.
func (s *AuthService) Credentials(ctx context.Context, connectionID string) (model.Credentials, error) {
	return s.load(ctx, connectionID)
}

// Disconnect removes everything stored for a connection.
func (s *AuthService) Disconnect(ctx context.Context, connectionID string) error {
	unlock := s.locks.lock(connectionID)
	defer unlock()

	if err := s.store.DeleteConnection(ctx, connectionID); err != nil {
		return fmt.Errorf("deleting connection %q: %w", connectionID, err)
	}
	slog.Info("connection deleted", "connection", connectionID)
	return nil
}

func (s *AuthService) load(ctx context.Context, connectionID string) (model.Credentials, error) {
	fields, err := s.store.GetAll(ctx, connectionID)
	if err != nil {
		return model.Credentials{}, fmt.Errorf("loading credentials for %q: %w", connectionID, err)
	}
	return model.CredentialsFromFields(connectionID, fields), nil
}

// consumeCSRF deletes the stored CSRF token. The caller holds the connection lock.
func (s *AuthService) consumeCSRF(ctx context.Context, connectionID string) error {
	if err := s.store.Delete(ctx, connectionID, model.CredCSRFToken); err != nil {
		return fmt.Errorf("deleting csrf token for %q: %w", connectionID, err)
	}
	return nil
}

// joinState builds the OAuth 2.0 state parameter.
func joinState(connectionID, csrf string) string {
	return connectionID + ":" + csrf
}

// splitState splits state on its last colon. CSRF tokens are URL-safe base64
// and never contain a colon, so connection ids may.
func splitState(state string) (connectionID, csrf string, ok bool) {
	i := strings.LastIndex(state, ":")
	if i <= 0 || i == len(state)-1 {
		return "", "", false
	}
	return state[:i], state[i+1:], true
}

func generateCSRFToken() (string, error) {
	b := make([]byte, csrfTokenBytes)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating csrf token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(b), nil
}

// keyedMutex hands out one mutex per key.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*refMutex
}

type refMutex struct {
	sync.Mutex
	refs int
}

// lock acquires the mutex for key and returns its release function. Entries
// are dropped once no caller holds or waits for them.
func (k *keyedMutex) lock(key string) func() {
	k.mu.Lock()
	if k.locks == nil {
		k.locks = make(map[string]*refMutex)
	}
	m, ok := k.locks[key]
	if !ok {
		m = &refMutex{}
		k.locks[key] = m
	}
	m.refs++
	k.mu.Unlock()

	m.Lock()
	return func() {
		m.Unlock()
		k.mu.Lock()
		m.refs--
		if m.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}

// IsHandshakeError reports whether err is a provider failure to be shown on a
// failure page.
func IsHandshakeError(err error) bool {
	var hsErr *HandshakeError
	return errors.As(err, &hsErr)
}
