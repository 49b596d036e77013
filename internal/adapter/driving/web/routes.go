package web

import (
	"net/http"

	"github.com/ericfisherdev/fitflow/internal/domain/model"
)

// RegisterRoutes registers the authorization endpoints on the provided mux.
// Fitbit carries the connection id in the path; the OAuth 2.0 providers carry
// it in node_id on begin and inside state on the callback.
func RegisterRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("GET /fitbit-credentials/{id}/auth", h.BeginOAuth1(model.ProviderFitbit))
	mux.HandleFunc("GET /fitbit-credentials/{id}/auth/callback", h.CompleteOAuth1(model.ProviderFitbit))

	for _, provider := range []model.Provider{model.ProviderStrava, model.ProviderInstagram} {
		prefix := "GET /" + string(provider) + "-credentials/auth"
		mux.HandleFunc(prefix, h.BeginOAuth2(provider))
		mux.HandleFunc(prefix+"/callback", h.CompleteOAuth2(provider))
	}
}
