// Package web implements the HTML driving adapter that serves the OAuth
// authorization endpoints using templ components.
package web

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"net/http"
	"strings"

	"github.com/ericfisherdev/fitflow/internal/adapter/driving/web/templates"
	"github.com/ericfisherdev/fitflow/internal/adapter/driving/web/templates/pages"
	vm "github.com/ericfisherdev/fitflow/internal/adapter/driving/web/viewmodel"
	"github.com/ericfisherdev/fitflow/internal/application"
	"github.com/ericfisherdev/fitflow/internal/domain/model"
)

// Authorizer runs the provider handshakes. *application.AuthService
// satisfies it.
type Authorizer interface {
	BeginOAuth1(ctx context.Context, provider model.Provider, connectionID string, params application.ClientParams) (string, error)
	CompleteOAuth1(ctx context.Context, provider model.Provider, connectionID, verifier string) (application.Completion, error)
	BeginOAuth2(ctx context.Context, provider model.Provider, connectionID string, params application.ClientParams) (string, error)
	CompleteOAuth2(ctx context.Context, provider model.Provider, state, code string) (application.Completion, error)
}

var _ Authorizer = (*application.AuthService)(nil)

// Handler is the web driving adapter for the authorization endpoints.
type Handler struct {
	auth   Authorizer
	logger *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(auth Authorizer, logger *slog.Logger) *Handler {
	return &Handler{
		auth:   auth,
		logger: logger,
	}
}

// BeginOAuth1 stores the client registration, fetches a request token and
// redirects to the provider consent page. Accepts client_key and callback as
// aliases of client_id and redirect_uri.
func (h *Handler) BeginOAuth1(provider model.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		params := application.ClientParams{
			ClientID:     firstNonEmpty(q.Get("client_id"), q.Get("client_key")),
			ClientSecret: q.Get("client_secret"),
			RedirectURI:  firstNonEmpty(q.Get("redirect_uri"), q.Get("callback")),
		}

		authURL, err := h.auth.BeginOAuth1(r.Context(), provider, r.PathValue("id"), params)
		if err != nil {
			h.renderError(w, r, provider, err)
			return
		}
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// CompleteOAuth1 handles the provider redirect carrying oauth_verifier.
func (h *Handler) CompleteOAuth1(provider model.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		completion, err := h.auth.CompleteOAuth1(r.Context(), provider, r.PathValue("id"), r.URL.Query().Get("oauth_verifier"))
		if err != nil {
			h.renderError(w, r, provider, err)
			return
		}
		h.render(w, r, http.StatusOK, toSuccessViewModel(completion))
	}
}

// BeginOAuth2 stores the client registration and a CSRF token for node_id and
// redirects to the provider consent page.
func (h *Handler) BeginOAuth2(provider model.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		params := application.ClientParams{
			ClientID:     q.Get("client_id"),
			ClientSecret: q.Get("client_secret"),
			RedirectURI:  q.Get("redirect_uri"),
		}

		authURL, err := h.auth.BeginOAuth2(r.Context(), provider, q.Get("node_id"), params)
		if err != nil {
			h.renderError(w, r, provider, err)
			return
		}
		http.Redirect(w, r, authURL, http.StatusFound)
	}
}

// CompleteOAuth2 handles the provider redirect carrying code and state.
func (h *Handler) CompleteOAuth2(provider model.Provider) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		completion, err := h.auth.CompleteOAuth2(r.Context(), provider, q.Get("state"), q.Get("code"))
		if err != nil {
			h.renderError(w, r, provider, err)
			return
		}
		h.render(w, r, http.StatusOK, toSuccessViewModel(completion))
	}
}

// renderError maps a handshake error to a result page. Provider failures are
// reported with 200 so the browser shows the page rather than an error.
func (h *Handler) renderError(w http.ResponseWriter, r *http.Request, provider model.Provider, err error) {
	var hsErr *application.HandshakeError
	switch {
	case errors.As(err, &hsErr):
		h.logger.Warn("authorization failed",
			"provider", provider,
			"stage", hsErr.Stage,
			"error", err,
		)
		h.render(w, r, http.StatusOK, toHandshakeFailureViewModel(hsErr))
	case errors.Is(err, model.ErrCSRFMismatch):
		h.render(w, r, http.StatusUnauthorized, toRejectionViewModel(provider, "Authorization rejected",
			"The authorization response did not match a pending request. Start the authorization again."))
	case errors.Is(err, model.ErrConfiguration):
		h.render(w, r, http.StatusBadRequest, toRejectionViewModel(provider, "Bad request", capitalize(err.Error())+"."))
	default:
		h.logger.Error("authorization error", "provider", provider, "error", err)
		h.render(w, r, http.StatusInternalServerError, toRejectionViewModel(provider, "Internal server error",
			"Something went wrong while storing the credentials."))
	}
}

func (h *Handler) render(w http.ResponseWriter, r *http.Request, status int, page vm.ResultViewModel) {
	var buf bytes.Buffer
	layout := templates.Layout(page.Title, pages.Result(page))
	if err := layout.Render(r.Context(), &buf); err != nil {
		h.logger.Error("failed to render result page", "error", err)
		http.Error(w, "internal server error", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_, _ = buf.WriteTo(w)
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
