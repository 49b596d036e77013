package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ericfisherdev/fitflow/internal/domain/model"
	"github.com/ericfisherdev/fitflow/internal/domain/port/driven"
)

// DefaultHistory is the number of recent messages kept per node.
const DefaultHistory = 20

// ErrNodeNotFound is returned for an unknown node id.
var ErrNodeNotFound = errors.New("node not found")

// Node is a flow node hosted by the runtime.
type Node interface {
	Start(ctx context.Context) error
	Stop()
	Active() bool
	Input(ctx context.Context, msg model.Message) error
}

// NodeInfo is a snapshot of a hosted node.
type NodeInfo struct {
	ID       string
	Type     model.NodeType
	Active   bool
	Status   model.NodeStatus
	StatusAt time.Time
	Messages []model.Message
}

type nodeEntry struct {
	id       string
	typ      model.NodeType
	node     Node
	status   model.NodeStatus
	statusAt time.Time
	messages []model.Message
}

// NodeRuntime hosts nodes, records what they emit and routes triggers to them.
// It is the driven.Output of every node it hosts.
type NodeRuntime struct {
	mu      sync.RWMutex
	nodes   map[string]*nodeEntry
	order   []string
	history int
}

// NewNodeRuntime creates a runtime that keeps the last history messages of
// each node.
func NewNodeRuntime(history int) *NodeRuntime {
	if history <= 0 {
		history = DefaultHistory
	}
	return &NodeRuntime{
		nodes:   make(map[string]*nodeEntry),
		history: history,
	}
}

// Add registers a node. build receives the node's output.
func (r *NodeRuntime) Add(id string, typ model.NodeType, build func(out driven.Output) (Node, error)) error {
	if id == "" {
		return fmt.Errorf("%w: node id is required", model.ErrConfiguration)
	}

	r.mu.Lock()
	if _, exists := r.nodes[id]; exists {
		r.mu.Unlock()
		return fmt.Errorf("%w: duplicate node id %q", model.ErrConfiguration, id)
	}
	entry := &nodeEntry{id: id, typ: typ}
	r.nodes[id] = entry
	r.order = append(r.order, id)
	r.mu.Unlock()

	node, err := build(&nodeOutput{runtime: r, id: id})
	if err != nil {
		r.remove(id)
		return fmt.Errorf("building node %q: %w", id, err)
	}

	r.mu.Lock()
	entry.node = node
	r.mu.Unlock()
	return nil
}

func (r *NodeRuntime) remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	delete(r.nodes, id)
	for i, v := range r.order {
		if v == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
}

// StartAll starts every node. A node that fails to start is logged and left
// stopped; the others still start.
func (r *NodeRuntime) StartAll(ctx context.Context) {
	for _, e := range r.entries() {
		if err := e.node.Start(ctx); err != nil {
			slog.Error("node failed to start", "node", e.id, "type", e.typ, "error", err)
		}
	}
}

// StopAll stops every node.
func (r *NodeRuntime) StopAll() {
	for _, e := range r.entries() {
		e.node.Stop()
	}
}

// Trigger delivers msg to the node with the given id. A message without an id
// is assigned one.
func (r *NodeRuntime) Trigger(ctx context.Context, id string, msg model.Message) error {
	node := r.node(id)
	if node == nil {
		return fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}

	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	return node.Input(ctx, msg)
}

// List returns a snapshot of every node in registration order.
func (r *NodeRuntime) List() []NodeInfo {
	entries := r.entries()
	infos := make([]NodeInfo, 0, len(entries))
	for _, e := range entries {
		infos = append(infos, r.info(e))
	}
	return infos
}

// Get returns a snapshot of one node.
func (r *NodeRuntime) Get(id string) (NodeInfo, error) {
	r.mu.RLock()
	e, ok := r.nodes[id]
	built := ok && e.node != nil
	r.mu.RUnlock()
	if !built {
		return NodeInfo{}, fmt.Errorf("%w: %s", ErrNodeNotFound, id)
	}
	return r.info(e), nil
}

// node returns the built node registered under id, or nil.
func (r *NodeRuntime) node(id string) Node {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if e, ok := r.nodes[id]; ok {
		return e.node
	}
	return nil
}

func (r *NodeRuntime) entries() []*nodeEntry {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]*nodeEntry, 0, len(r.order))
	for _, id := range r.order {
		if e := r.nodes[id]; e.node != nil {
			out = append(out, e)
		}
	}
	return out
}

func (r *NodeRuntime) info(e *nodeEntry) NodeInfo {
	active := e.node.Active()

	r.mu.RLock()
	defer r.mu.RUnlock()

	msgs := make([]model.Message, len(e.messages))
	copy(msgs, e.messages)
	return NodeInfo{
		ID:       e.id,
		Type:     e.typ,
		Active:   active,
		Status:   e.status,
		StatusAt: e.statusAt,
		Messages: msgs,
	}
}

func (r *NodeRuntime) record(id string, msg model.Message) {
	r.mu.Lock()
	defer r.mu.Unlock()

	e, ok := r.nodes[id]
	if !ok {
		return
	}
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	e.messages = append(e.messages, msg)
	if over := len(e.messages) - r.history; over > 0 {
		e.messages = append([]model.Message(nil), e.messages[over:]...)
	}
}

func (r *NodeRuntime) setStatus(id string, status model.NodeStatus) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if e, ok := r.nodes[id]; ok {
		e.status = status
		e.statusAt = time.Now()
	}
}

// nodeOutput is the driven.Output handed to one node.
type nodeOutput struct {
	runtime *NodeRuntime
	id      string
}

// Compile-time interface satisfaction check.
var _ driven.Output = (*nodeOutput)(nil)

func (o *nodeOutput) Send(msg model.Message) {
	o.runtime.record(o.id, msg)
	slog.Debug("node emitted message", "node", o.id, "msg_id", msg.ID)
}

func (o *nodeOutput) Status(status model.NodeStatus) {
	o.runtime.setStatus(o.id, status)
}
