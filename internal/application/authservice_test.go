package application

import (
	"context"
	"errors"
	"net/url"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ericfisherdev/fitflow/internal/domain/model"
	"github.com/ericfisherdev/fitflow/internal/domain/port/driven"
)

var testParams = ClientParams{
	ClientID:     "123456789",
	ClientSecret: "987654321",
	RedirectURI:  "http://localhost:1880/instagram-credentials/auth/callback",
}

func newTestAuthService() (*AuthService, *mockCredentialStore, *mockOAuth1Client, *mockOAuth2Client) {
	store := newMockCredentialStore()
	o1 := &mockOAuth1Client{}
	o2 := &mockOAuth2Client{}
	svc := NewAuthService(store,
		map[model.Provider]driven.OAuth1Client{model.ProviderFitbit: o1},
		map[model.Provider]driven.OAuth2Client{model.ProviderInstagram: o2, model.ProviderStrava: o2},
	)
	return svc, store, o1, o2
}

// stateFrom extracts the state parameter from a consent URL.
func stateFrom(t *testing.T, rawURL string) string {
	t.Helper()
	u, err := url.Parse(rawURL)
	require.NoError(t, err)
	state := u.Query().Get("state")
	require.NotEmpty(t, state)
	return state
}

func TestAuthService_BeginRequiresClientParams(t *testing.T) {
	tests := []struct {
		name   string
		params ClientParams
	}{
		{name: "missing client id", params: ClientParams{ClientSecret: "s", RedirectURI: "http://cb"}},
		{name: "missing client secret", params: ClientParams{ClientID: "id", RedirectURI: "http://cb"}},
		{name: "missing redirect uri", params: ClientParams{ClientID: "id", ClientSecret: "s"}},
		{name: "all missing", params: ClientParams{}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			svc, store, o1, _ := newTestAuthService()
			ctx := context.Background()

			_, err := svc.BeginOAuth2(ctx, model.ProviderInstagram, "n2", tc.params)
			assert.ErrorIs(t, err, ErrMissingClientParams)
			assert.ErrorIs(t, err, model.ErrConfiguration)

			_, err = svc.BeginOAuth1(ctx, model.ProviderFitbit, "fb1", tc.params)
			assert.ErrorIs(t, err, ErrMissingClientParams)

			assert.Empty(t, store.data, "nothing may be persisted")
			assert.Zero(t, o1.requestCalls, "no provider call may be made")
		})
	}
}

func TestAuthService_BeginRequiresConnection(t *testing.T) {
	svc, store, _, _ := newTestAuthService()

	_, err := svc.BeginOAuth2(context.Background(), model.ProviderStrava, "", testParams)
	assert.ErrorIs(t, err, ErrMissingConnection)
	assert.Empty(t, store.data)
}

func TestAuthService_UnknownProvider(t *testing.T) {
	svc, _, _, _ := newTestAuthService()

	_, err := svc.BeginOAuth2(context.Background(), model.ProviderFitbit, "n2", testParams)
	assert.ErrorIs(t, err, ErrUnknownProvider)

	_, err = svc.BeginOAuth1(context.Background(), model.ProviderStrava, "n2", testParams)
	assert.ErrorIs(t, err, ErrUnknownProvider)
}

func TestAuthService_OAuth2RoundTrip(t *testing.T) {
	svc, store, _, o2 := newTestAuthService()
	ctx := context.Background()

	consentURL, err := svc.BeginOAuth2(ctx, model.ProviderInstagram, "n2", testParams)
	require.NoError(t, err)

	state := stateFrom(t, consentURL)
	assert.True(t, strings.HasPrefix(state, "n2:"))
	assert.Equal(t, store.fields("n2")[model.CredCSRFToken], strings.TrimPrefix(state, "n2:"))

	done, err := svc.CompleteOAuth2(ctx, model.ProviderInstagram, state, "SOME_CODE_FROM_INSTAGRAM")
	require.NoError(t, err)
	assert.Equal(t, Completion{Provider: model.ProviderInstagram, ConnectionID: "n2", Username: "UserJoe"}, done)
	assert.Equal(t, "SOME_CODE_FROM_INSTAGRAM", o2.lastCode)

	assert.Equal(t, map[string]string{
		model.CredClientID:     testParams.ClientID,
		model.CredClientSecret: testParams.ClientSecret,
		model.CredRedirectURI:  testParams.RedirectURI,
		model.CredAccessToken:  "AN_ACCESS_TOKEN",
		model.CredUsername:     "UserJoe",
	}, store.fields("n2"))
}

func TestAuthService_OAuth2MutatedCSRF(t *testing.T) {
	svc, store, _, o2 := newTestAuthService()
	ctx := context.Background()

	consentURL, err := svc.BeginOAuth2(ctx, model.ProviderStrava, "n2", testParams)
	require.NoError(t, err)
	state := stateFrom(t, consentURL)

	mutated := state[:len(state)-1] + "x"
	if mutated == state {
		mutated = state[:len(state)-1] + "y"
	}

	_, err = svc.CompleteOAuth2(ctx, model.ProviderStrava, mutated, "code")
	require.Error(t, err)
	assert.ErrorIs(t, err, model.ErrCSRFMismatch)
	assert.ErrorIs(t, err, model.ErrAuthorization)

	assert.Zero(t, o2.exchangeCalls)
	assert.Empty(t, store.fields("n2")[model.CredAccessToken])

	// The handshake is aborted: the genuine state no longer works either.
	_, err = svc.CompleteOAuth2(ctx, model.ProviderStrava, state, "code")
	assert.ErrorIs(t, err, model.ErrCSRFMismatch)
}

func TestAuthService_OAuth2ReplayFails(t *testing.T) {
	svc, store, _, o2 := newTestAuthService()
	ctx := context.Background()

	consentURL, err := svc.BeginOAuth2(ctx, model.ProviderInstagram, "n2", testParams)
	require.NoError(t, err)
	state := stateFrom(t, consentURL)

	_, err = svc.CompleteOAuth2(ctx, model.ProviderInstagram, state, "code")
	require.NoError(t, err)

	_, err = svc.CompleteOAuth2(ctx, model.ProviderInstagram, state, "code")
	assert.ErrorIs(t, err, model.ErrCSRFMismatch)
	assert.Equal(t, 1, o2.exchangeCalls, "the code must not be exchanged twice")
	assert.Equal(t, "AN_ACCESS_TOKEN", store.fields("n2")[model.CredAccessToken])
}

func TestAuthService_OAuth2StateErrors(t *testing.T) {
	svc, _, _, _ := newTestAuthService()
	ctx := context.Background()

	_, err := svc.CompleteOAuth2(ctx, model.ProviderInstagram, "", "code")
	assert.ErrorIs(t, err, ErrMissingState)

	_, err = svc.CompleteOAuth2(ctx, model.ProviderInstagram, "no-delimiter", "code")
	assert.ErrorIs(t, err, model.ErrCSRFMismatch)

	_, err = svc.CompleteOAuth2(ctx, model.ProviderInstagram, "unknown:token", "code")
	assert.ErrorIs(t, err, ErrNoPendingHandshake)
}

func TestAuthService_OAuth2MissingCodeConsumesState(t *testing.T) {
	svc, store, _, o2 := newTestAuthService()
	ctx := context.Background()

	consentURL, err := svc.BeginOAuth2(ctx, model.ProviderInstagram, "n2", testParams)
	require.NoError(t, err)
	state := stateFrom(t, consentURL)

	_, err = svc.CompleteOAuth2(ctx, model.ProviderInstagram, state, "")
	assert.ErrorIs(t, err, ErrMissingCode)
	assert.Zero(t, o2.exchangeCalls)
	assert.Empty(t, store.fields("n2")[model.CredCSRFToken])
}

func TestAuthService_OAuth2ConnectionIDWithColon(t *testing.T) {
	svc, store, _, _ := newTestAuthService()
	ctx := context.Background()

	consentURL, err := svc.BeginOAuth2(ctx, model.ProviderInstagram, "flow:n2", testParams)
	require.NoError(t, err)

	done, err := svc.CompleteOAuth2(ctx, model.ProviderInstagram, stateFrom(t, consentURL), "code")
	require.NoError(t, err)
	assert.Equal(t, "flow:n2", done.ConnectionID)
	assert.Equal(t, "AN_ACCESS_TOKEN", store.fields("flow:n2")[model.CredAccessToken])
}

func TestAuthService_OAuth2ProviderRejects(t *testing.T) {
	svc, store, _, o2 := newTestAuthService()
	ctx := context.Background()
	o2.exchangeErr = &model.ProviderError{StatusCode: 400, Body: "No matching code found."}

	consentURL, err := svc.BeginOAuth2(ctx, model.ProviderInstagram, "n2", testParams)
	require.NoError(t, err)

	_, err = svc.CompleteOAuth2(ctx, model.ProviderInstagram, stateFrom(t, consentURL), "code")
	require.Error(t, err)

	var hsErr *HandshakeError
	require.True(t, errors.As(err, &hsErr))
	assert.Equal(t, StageExchange, hsErr.Stage)
	assert.True(t, IsHandshakeError(err))

	var perr *model.ProviderError
	require.True(t, errors.As(err, &perr))
	assert.Equal(t, 400, perr.StatusCode)

	assert.Empty(t, store.fields("n2")[model.CredAccessToken])
}

func TestAuthService_OAuth2CSRFDeleteFailure(t *testing.T) {
	svc, store, _, o2 := newTestAuthService()
	ctx := context.Background()

	consentURL, err := svc.BeginOAuth2(ctx, model.ProviderInstagram, "n2", testParams)
	require.NoError(t, err)

	store.delErr = errors.New("disk full")
	_, err = svc.CompleteOAuth2(ctx, model.ProviderInstagram, stateFrom(t, consentURL), "code")
	require.Error(t, err)
	assert.Zero(t, o2.exchangeCalls)
}

func TestAuthService_OAuth1RoundTrip(t *testing.T) {
	svc, store, o1, _ := newTestAuthService()
	ctx := context.Background()

	authURL, err := svc.BeginOAuth1(ctx, model.ProviderFitbit, "fb1", testParams)
	require.NoError(t, err)
	assert.Equal(t, "https://provider.test/oauth/authorize?oauth_token=rt", authURL)
	assert.Equal(t, "rt", store.fields("fb1")[model.CredRequestToken])
	assert.Equal(t, "rts", store.fields("fb1")[model.CredRequestTokenSecret])

	done, err := svc.CompleteOAuth1(ctx, model.ProviderFitbit, "fb1", "verifier")
	require.NoError(t, err)
	assert.Equal(t, "Jane Runner", done.Username)
	assert.Equal(t, "verifier", o1.lastVerifier)

	assert.Equal(t, map[string]string{
		model.CredClientID:          testParams.ClientID,
		model.CredClientSecret:      testParams.ClientSecret,
		model.CredRedirectURI:       testParams.RedirectURI,
		model.CredAccessToken:       "at",
		model.CredAccessTokenSecret: "ats",
		model.CredUsername:          "Jane Runner",
	}, store.fields("fb1"))

	_, err = svc.CompleteOAuth1(ctx, model.ProviderFitbit, "fb1", "verifier")
	assert.ErrorIs(t, err, ErrNoPendingHandshake, "request token is consumed")
	assert.Equal(t, 1, o1.accessCalls)
}

func TestAuthService_OAuth1RequestTokenFails(t *testing.T) {
	svc, store, o1, _ := newTestAuthService()
	o1.requestErr = &model.ProviderError{StatusCode: 401, Body: "Invalid signature"}

	_, err := svc.BeginOAuth1(context.Background(), model.ProviderFitbit, "fb1", testParams)
	require.Error(t, err)

	var hsErr *HandshakeError
	require.True(t, errors.As(err, &hsErr))
	assert.Equal(t, StageRequestToken, hsErr.Stage)
	assert.Empty(t, store.fields("fb1")[model.CredRequestToken])
}

func TestAuthService_OAuth1CallbackErrors(t *testing.T) {
	svc, _, o1, _ := newTestAuthService()
	ctx := context.Background()

	_, err := svc.CompleteOAuth1(ctx, model.ProviderFitbit, "fb1", "verifier")
	assert.ErrorIs(t, err, ErrNoPendingHandshake)

	_, err = svc.BeginOAuth1(ctx, model.ProviderFitbit, "fb1", testParams)
	require.NoError(t, err)

	_, err = svc.CompleteOAuth1(ctx, model.ProviderFitbit, "fb1", "")
	assert.ErrorIs(t, err, ErrMissingVerifier)
	assert.Zero(t, o1.accessCalls)
}

func TestAuthService_OAuth1ProfileFailureStoresNothing(t *testing.T) {
	svc, store, o1, _ := newTestAuthService()
	ctx := context.Background()
	o1.usernameErr = &model.ProviderError{StatusCode: 500, Body: "oops"}

	_, err := svc.BeginOAuth1(ctx, model.ProviderFitbit, "fb1", testParams)
	require.NoError(t, err)

	_, err = svc.CompleteOAuth1(ctx, model.ProviderFitbit, "fb1", "verifier")
	var hsErr *HandshakeError
	require.True(t, errors.As(err, &hsErr))
	assert.Equal(t, StageProfile, hsErr.Stage)
	assert.Empty(t, store.fields("fb1")[model.CredAccessToken])
}

func TestAuthService_Disconnect(t *testing.T) {
	svc, store, _, _ := newTestAuthService()
	ctx := context.Background()

	_, err := svc.BeginOAuth2(ctx, model.ProviderStrava, "s1", testParams)
	require.NoError(t, err)

	require.NoError(t, svc.Disconnect(ctx, "s1"))
	assert.Empty(t, store.fields("s1"))
}

func TestSplitState(t *testing.T) {
	tests := []struct {
		state  string
		conn   string
		csrf   string
		wantOK bool
	}{
		{state: "n2:abc", conn: "n2", csrf: "abc", wantOK: true},
		{state: "flow:n2:abc", conn: "flow:n2", csrf: "abc", wantOK: true},
		{state: "n2abc", wantOK: false},
		{state: ":abc", wantOK: false},
		{state: "n2:", wantOK: false},
	}

	for _, tc := range tests {
		t.Run(tc.state, func(t *testing.T) {
			conn, csrf, ok := splitState(tc.state)
			assert.Equal(t, tc.wantOK, ok)
			assert.Equal(t, tc.conn, conn)
			assert.Equal(t, tc.csrf, csrf)
		})
	}
}

func TestGenerateCSRFToken(t *testing.T) {
	a, err := generateCSRFToken()
	require.NoError(t, err)
	b, err := generateCSRFToken()
	require.NoError(t, err)

	assert.Len(t, a, 24)
	assert.NotEqual(t, a, b)
	assert.NotContains(t, a, ":")
}
