package model

// Message is the unit passed between flow nodes. Payload carries the parsed
// API response: a decoded JSON value, a link string or raw bytes.
type Message struct {
	ID      string `json:"_msgid,omitempty"`
	Topic   string `json:"topic,omitempty"`
	Date    string `json:"date,omitempty"`
	Payload any    `json:"payload"`
}

// NodeStatus is the status indicator shown next to a node. The zero value
// clears the indicator.
type NodeStatus struct {
	Fill  string `json:"fill,omitempty"`
	Shape string `json:"shape,omitempty"`
	Text  string `json:"text,omitempty"`
}

// IsClear reports whether the status carries no indicator.
func (s NodeStatus) IsClear() bool {
	return s == NodeStatus{}
}

// Common node statuses.
var (
	StatusQuerying     = NodeStatus{Fill: "blue", Shape: "dot", Text: "querying"}
	StatusPolling      = NodeStatus{Fill: "green", Shape: "dot", Text: "watching"}
	StatusInvalidType  = NodeStatus{Fill: "red", Shape: "ring", Text: "invalid type"}
	StatusInvalidDate  = NodeStatus{Fill: "red", Shape: "ring", Text: "invalid date"}
	StatusFailed       = NodeStatus{Fill: "red", Shape: "ring", Text: "failed"}
	StatusUnauthorized = NodeStatus{Fill: "red", Shape: "ring", Text: "missing credentials"}
	StatusClear        = NodeStatus{}
)
