package httphandler

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/ericfisherdev/fitflow/internal/application"
	"github.com/ericfisherdev/fitflow/internal/domain/model"
)

// maxTriggerBody bounds the size of a trigger request body.
const maxTriggerBody = 64 << 10

// NodeHost is the node runtime as seen by the API. *application.NodeRuntime
// satisfies it.
type NodeHost interface {
	List() []application.NodeInfo
	Get(id string) (application.NodeInfo, error)
	Trigger(ctx context.Context, id string, msg model.Message) error
}

var _ NodeHost = (*application.NodeRuntime)(nil)

// Handler is the HTTP driving adapter that serves the REST API.
type Handler struct {
	nodes  NodeHost
	logger *slog.Logger
}

// NewHandler creates a Handler with all required dependencies.
func NewHandler(nodes NodeHost, logger *slog.Logger) *Handler {
	return &Handler{
		nodes:  nodes,
		logger: logger,
	}
}

// RegisterAPIRoutes registers the JSON API routes on the provided mux.
func RegisterAPIRoutes(mux *http.ServeMux, h *Handler) {
	mux.HandleFunc("GET /api/v1/health", h.Health)
	mux.HandleFunc("GET /api/v1/nodes", h.ListNodes)
	mux.HandleFunc("GET /api/v1/nodes/{id}", h.GetNode)
	mux.HandleFunc("POST /api/v1/nodes/{id}/trigger", h.TriggerNode)
}

// ListNodes returns every hosted node with its status and recent messages.
func (h *Handler) ListNodes(w http.ResponseWriter, _ *http.Request) {
	infos := h.nodes.List()

	resp := make([]NodeResponse, 0, len(infos))
	for _, info := range infos {
		resp = append(resp, toNodeResponse(info))
	}

	writeJSON(w, http.StatusOK, resp)
}

// GetNode returns a single node by id.
func (h *Handler) GetNode(w http.ResponseWriter, r *http.Request) {
	info, err := h.nodes.Get(r.PathValue("id"))
	if err != nil {
		if errors.Is(err, application.ErrNodeNotFound) {
			writeError(w, http.StatusNotFound, "node not found")
			return
		}
		h.logger.Error("failed to get node", "node", r.PathValue("id"), "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}

	writeJSON(w, http.StatusOK, toNodeResponse(info))
}

// TriggerNode delivers a message to a node and returns the node afterwards.
// The JSON body is optional; an empty body triggers with today's date.
func (h *Handler) TriggerNode(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	var req TriggerRequest
	if err := json.NewDecoder(io.LimitReader(r.Body, maxTriggerBody)).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	err := h.nodes.Trigger(r.Context(), id, model.Message{
		ID:    RequestID(r.Context()),
		Topic: req.Topic,
		Date:  req.Date,
	})
	if err != nil {
		h.writeTriggerError(w, id, err)
		return
	}

	info, err := h.nodes.Get(id)
	if err != nil {
		h.logger.Error("failed to get node after trigger", "node", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
		return
	}
	writeJSON(w, http.StatusOK, toNodeResponse(info))
}

func (h *Handler) writeTriggerError(w http.ResponseWriter, id string, err error) {
	switch {
	case errors.Is(err, application.ErrNodeNotFound):
		writeError(w, http.StatusNotFound, "node not found")
	case errors.Is(err, model.ErrConfiguration):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, model.ErrTransient), errors.Is(err, model.ErrData), errors.Is(err, model.ErrAuthorization):
		h.logger.Warn("node trigger failed", "node", id, "error", err)
		writeError(w, http.StatusBadGateway, "provider request failed")
	default:
		h.logger.Error("node trigger failed", "node", id, "error", err)
		writeError(w, http.StatusInternalServerError, "internal server error")
	}
}

// Health returns a simple health check response.
func (h *Handler) Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, HealthResponse{
		Status: "ok",
		Time:   time.Now().UTC().Format(time.RFC3339),
	})
}
