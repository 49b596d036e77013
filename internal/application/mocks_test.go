package application

import (
	"context"
	"fmt"
	"net/url"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ericfisherdev/fitflow/internal/domain/model"
	"github.com/ericfisherdev/fitflow/internal/domain/port/driven"
)

// --- CredentialStore ---

type mockCredentialStore struct {
	mu     sync.Mutex
	data   map[string]map[string]string
	getErr error
	delErr error
}

func newMockCredentialStore() *mockCredentialStore {
	return &mockCredentialStore{data: make(map[string]map[string]string)}
}

func (m *mockCredentialStore) Set(_ context.Context, conn, key, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[conn] == nil {
		m.data[conn] = make(map[string]string)
	}
	m.data[conn][key] = value
	return nil
}

func (m *mockCredentialStore) Get(_ context.Context, conn, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return "", m.getErr
	}
	return m.data[conn][key], nil
}

func (m *mockCredentialStore) GetAll(_ context.Context, conn string) (map[string]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	out := make(map[string]string, len(m.data[conn]))
	for k, v := range m.data[conn] {
		out[k] = v
	}
	return out, nil
}

func (m *mockCredentialStore) Replace(_ context.Context, conn string, fields map[string]string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := make(map[string]string, len(fields))
	for k, v := range fields {
		cp[k] = v
	}
	m.data[conn] = cp
	return nil
}

func (m *mockCredentialStore) Delete(_ context.Context, conn, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.delErr != nil {
		return m.delErr
	}
	delete(m.data[conn], key)
	return nil
}

func (m *mockCredentialStore) DeleteConnection(_ context.Context, conn string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data, conn)
	return nil
}

func (m *mockCredentialStore) ListConnections(_ context.Context) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	ids := make([]string, 0, len(m.data))
	for id := range m.data {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids, nil
}

// fields returns a copy of what is stored for conn.
func (m *mockCredentialStore) fields(conn string) map[string]string {
	out, _ := m.GetAll(context.Background(), conn)
	return out
}

// --- OAuth clients ---

type mockOAuth1Client struct {
	requestErr  error
	accessErr   error
	usernameErr error

	requestCalls int
	accessCalls  int
	lastVerifier string
}

func (m *mockOAuth1Client) RequestToken(_ context.Context, _ driven.Consumer, _ string) (driven.TokenPair, error) {
	m.requestCalls++
	if m.requestErr != nil {
		return driven.TokenPair{}, m.requestErr
	}
	return driven.TokenPair{Token: "rt", Secret: "rts"}, nil
}

func (m *mockOAuth1Client) AuthorizeURL(requestToken string) (string, error) {
	return "https://provider.test/oauth/authorize?oauth_token=" + requestToken, nil
}

func (m *mockOAuth1Client) AccessToken(_ context.Context, _ driven.Consumer, request driven.TokenPair, verifier string) (driven.TokenPair, error) {
	m.accessCalls++
	m.lastVerifier = verifier
	if m.accessErr != nil {
		return driven.TokenPair{}, m.accessErr
	}
	if request.Token != "rt" || request.Secret != "rts" {
		return driven.TokenPair{}, fmt.Errorf("%w: unexpected request token", model.ErrAuthorization)
	}
	return driven.TokenPair{Token: "at", Secret: "ats"}, nil
}

func (m *mockOAuth1Client) Username(_ context.Context, _ driven.Consumer, _ driven.TokenPair) (string, error) {
	if m.usernameErr != nil {
		return "", m.usernameErr
	}
	return "Jane Runner", nil
}

type mockOAuth2Client struct {
	mu            sync.Mutex
	exchangeErr   error
	exchangeCalls int
	lastCode      string
	usedCodes     map[string]bool
}

func (m *mockOAuth2Client) AuthCodeURL(clientID, redirectURI, state string) string {
	q := url.Values{
		"client_id":     {clientID},
		"redirect_uri":  {redirectURI},
		"response_type": {"code"},
		"state":         {state},
	}
	return "https://provider.test/oauth/authorize/?" + q.Encode()
}

func (m *mockOAuth2Client) Exchange(_ context.Context, _ driven.Consumer, _ string, code string) (driven.Grant, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.exchangeCalls++
	m.lastCode = code
	if m.exchangeErr != nil {
		return driven.Grant{}, m.exchangeErr
	}
	if m.usedCodes == nil {
		m.usedCodes = make(map[string]bool)
	}
	if m.usedCodes[code] {
		return driven.Grant{}, fmt.Errorf("%w: code already used", model.ErrAuthorization)
	}
	m.usedCodes[code] = true
	return driven.Grant{AccessToken: "AN_ACCESS_TOKEN", Username: "UserJoe"}, nil
}

// --- FitbitAPI ---

type mockFitbitAPI struct {
	payload any
	err     error
	calls   int
	paths   []string
}

func (m *mockFitbitAPI) Query(_ context.Context, _ model.Credentials, path string) (any, error) {
	m.calls++
	m.paths = append(m.paths, path)
	if m.err != nil {
		return nil, m.err
	}
	return m.payload, nil
}

// --- MediaSource ---

type mockMediaSource struct {
	mu sync.Mutex

	latest    model.MediaItem
	latestOK  bool
	latestErr error

	since    [][]model.MediaItem // successive Since results
	sinceErr error
	onSince  func()

	files       map[string][]byte
	downloadErr error

	latestCalls int
	sinceCalls  int
	sinceIDs    []string
}

func (m *mockMediaSource) Latest(_ context.Context, _ model.Credentials, _ model.InputType) (model.MediaItem, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.latestCalls++
	return m.latest, m.latestOK, m.latestErr
}

func (m *mockMediaSource) Since(_ context.Context, _ model.Credentials, _ model.InputType, sinceID string) ([]model.MediaItem, error) {
	m.mu.Lock()
	m.sinceCalls++
	m.sinceIDs = append(m.sinceIDs, sinceID)
	hook := m.onSince
	err := m.sinceErr
	var items []model.MediaItem
	if len(m.since) > 0 {
		items = m.since[0]
		m.since = m.since[1:]
	}
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	if err != nil {
		return nil, err
	}
	return items, nil
}

func (m *mockMediaSource) Download(_ context.Context, mediaURL string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.downloadErr != nil {
		return nil, m.downloadErr
	}
	body, ok := m.files[mediaURL]
	if !ok {
		return nil, fmt.Errorf("%w: no file at %s", model.ErrTransient, mediaURL)
	}
	return body, nil
}

// --- Scheduler ---

// fakeScheduler runs the task once synchronously on Every, like the real
// scheduler's immediate start, and afterwards only when a test calls tick.
type fakeScheduler struct {
	handles []*fakeHandle
	err     error
}

type fakeHandle struct {
	name      string
	interval  time.Duration
	task      func(ctx context.Context)
	cancelled atomic.Bool
	cancels   atomic.Int32
}

func (s *fakeScheduler) Every(interval time.Duration, name string, task func(ctx context.Context)) (driven.TaskHandle, error) {
	if s.err != nil {
		return nil, s.err
	}
	h := &fakeHandle{name: name, interval: interval, task: task}
	s.handles = append(s.handles, h)
	task(context.Background())
	return h, nil
}

func (h *fakeHandle) Cancel() {
	h.cancels.Add(1)
	h.cancelled.Store(true)
}

func (h *fakeHandle) Active() bool {
	return !h.cancelled.Load()
}

// tick runs the task as the next scheduled run would, unless cancelled.
func (h *fakeHandle) tick() {
	if h.cancelled.Load() {
		return
	}
	h.task(context.Background())
}

// --- Output ---

type recordingOutput struct {
	mu       sync.Mutex
	messages []model.Message
	statuses []model.NodeStatus
}

func (o *recordingOutput) Send(msg model.Message) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.messages = append(o.messages, msg)
}

func (o *recordingOutput) Status(status model.NodeStatus) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.statuses = append(o.statuses, status)
}

func (o *recordingOutput) sent() []model.Message {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]model.Message(nil), o.messages...)
}

func (o *recordingOutput) lastStatus() model.NodeStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	if len(o.statuses) == 0 {
		return model.NodeStatus{}
	}
	return o.statuses[len(o.statuses)-1]
}

func (o *recordingOutput) allStatuses() []model.NodeStatus {
	o.mu.Lock()
	defer o.mu.Unlock()
	return append([]model.NodeStatus(nil), o.statuses...)
}
