package httphandler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/ericfisherdev/fitflow/internal/application"
	"github.com/ericfisherdev/fitflow/internal/domain/model"
)

// writeJSON marshals v to JSON and writes it to the response with the given
// status code. If marshaling fails, a 500 error is written instead.
func writeJSON(w http.ResponseWriter, status int, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(`{"error":"internal server error"}`))
		return
	}

	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_, _ = w.Write(data)
}

// writeError writes a JSON error response with the given status code and message.
func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, errorResponse{Error: message})
}

// errorResponse is the standard error response body.
type errorResponse struct {
	Error string `json:"error"`
}

// HealthResponse is the JSON representation of a health check.
type HealthResponse struct {
	Status string `json:"status"`
	Time   string `json:"time"`
}

// TriggerRequest is the optional JSON body of a node trigger.
type TriggerRequest struct {
	Date  string `json:"date,omitempty"`
	Topic string `json:"topic,omitempty"`
}

// StatusResponse is the JSON representation of a node status indicator.
type StatusResponse struct {
	Fill  string `json:"fill"`
	Shape string `json:"shape"`
	Text  string `json:"text"`
}

// MessageResponse is the JSON representation of an emitted message. Byte
// payloads are base64 encoded and flagged with PayloadEncoding.
type MessageResponse struct {
	ID              string `json:"id"`
	Topic           string `json:"topic,omitempty"`
	Date            string `json:"date,omitempty"`
	Payload         any    `json:"payload"`
	PayloadEncoding string `json:"payload_encoding,omitempty"`
}

// NodeResponse is the JSON representation of a hosted node.
type NodeResponse struct {
	ID              string            `json:"id"`
	Type            string            `json:"type"`
	Active          bool              `json:"active"`
	Status          StatusResponse    `json:"status"`
	StatusUpdatedAt *string           `json:"status_updated_at"`
	Messages        []MessageResponse `json:"messages"`
}

func toNodeResponse(info application.NodeInfo) NodeResponse {
	msgs := make([]MessageResponse, 0, len(info.Messages))
	for _, m := range info.Messages {
		msgs = append(msgs, toMessageResponse(m))
	}

	var statusAt *string
	if !info.StatusAt.IsZero() {
		s := info.StatusAt.UTC().Format(time.RFC3339)
		statusAt = &s
	}

	return NodeResponse{
		ID:     info.ID,
		Type:   string(info.Type),
		Active: info.Active,
		Status: StatusResponse{
			Fill:  info.Status.Fill,
			Shape: info.Status.Shape,
			Text:  info.Status.Text,
		},
		StatusUpdatedAt: statusAt,
		Messages:        msgs,
	}
}

func toMessageResponse(m model.Message) MessageResponse {
	resp := MessageResponse{
		ID:      m.ID,
		Topic:   m.Topic,
		Date:    m.Date,
		Payload: m.Payload,
	}
	if _, ok := m.Payload.([]byte); ok {
		resp.PayloadEncoding = "base64"
	}
	return resp
}
