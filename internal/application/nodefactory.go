package application

import (
	"fmt"
	"time"

	"github.com/ericfisherdev/fitflow/internal/domain/model"
	"github.com/ericfisherdev/fitflow/internal/domain/port/driven"
)

// NodeSpec declares one node of a flow.
type NodeSpec struct {
	ID           string
	Type         model.NodeType
	ConnectionID string
	DataType     model.DataType
	InputType    model.InputType
	OutputType   model.OutputType
	// Interval applies to "instagram in" nodes; zero selects the factory default.
	Interval time.Duration
}

// NodeFactory builds nodes from their specs.
type NodeFactory struct {
	store           driven.CredentialStore
	fitbit          driven.FitbitAPI
	media           driven.MediaSource
	scheduler       driven.Scheduler
	defaultInterval time.Duration
}

// NewNodeFactory creates a NodeFactory.
func NewNodeFactory(
	store driven.CredentialStore,
	fitbit driven.FitbitAPI,
	media driven.MediaSource,
	scheduler driven.Scheduler,
	defaultInterval time.Duration,
) *NodeFactory {
	return &NodeFactory{
		store:           store,
		fitbit:          fitbit,
		media:           media,
		scheduler:       scheduler,
		defaultInterval: defaultInterval,
	}
}

// Register adds every spec to runtime.
func (f *NodeFactory) Register(runtime *NodeRuntime, specs []NodeSpec) error {
	for _, spec := range specs {
		if err := runtime.Add(spec.ID, spec.Type, func(out driven.Output) (Node, error) {
			return f.Build(spec, out)
		}); err != nil {
			return err
		}
	}
	return nil
}

// Build creates the node described by spec.
func (f *NodeFactory) Build(spec NodeSpec, out driven.Output) (Node, error) {
	if spec.ConnectionID == "" {
		return nil, fmt.Errorf("%w: node %s has no connection", model.ErrConfiguration, spec.ID)
	}

	switch spec.Type {
	case model.NodeTypeFitbit:
		return NewQueryNode(spec.ID, spec.ConnectionID, spec.DataType, f.store, f.fitbit, out), nil
	case model.NodeTypeInstagram, model.NodeTypeInstagramIn:
		cfg := WatcherConfig{
			NodeID:       spec.ID,
			ConnectionID: spec.ConnectionID,
			Input:        spec.InputType,
			Output:       spec.OutputType,
			Mode:         WatchOnInput,
			Interval:     spec.Interval,
		}
		if spec.Type == model.NodeTypeInstagramIn {
			cfg.Mode = WatchOnTimer
			if cfg.Interval <= 0 {
				cfg.Interval = f.defaultInterval
			}
		}
		return NewWatcher(cfg, f.store, f.media, f.scheduler, out), nil
	default:
		return nil, fmt.Errorf("%w: unknown node type %q", model.ErrConfiguration, spec.Type)
	}
}
