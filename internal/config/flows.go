package config

import (
	"bytes"
	"fmt"
	"os"
	"time"

	"github.com/pelletier/go-toml/v2"

	"github.com/ericfisherdev/fitflow/internal/application"
	"github.com/ericfisherdev/fitflow/internal/domain/model"
)

// Flows is the parsed flows file.
//
//	[[node]]
//	id = "daily-steps"
//	type = "fitbit"
//	connection = "fitbit-main"
//	data_type = "activities"
//
//	[[node]]
//	id = "new-likes"
//	type = "instagram in"
//	connection = "insta"
//	input_type = "like"
//	output_type = "link"
//	interval = "5m"
type Flows struct {
	Nodes []NodeDef `toml:"node"`
}

// NodeDef declares one node in the flows file.
type NodeDef struct {
	ID         string `toml:"id"`
	Type       string `toml:"type"`
	Connection string `toml:"connection"`
	DataType   string `toml:"data_type"`
	InputType  string `toml:"input_type"`
	OutputType string `toml:"output_type"`
	Interval   string `toml:"interval"`
}

// LoadFlows reads and parses the flows file at path. A missing file is
// reported with an error wrapping fs.ErrNotExist.
func LoadFlows(path string) (*Flows, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading flows file: %w", err)
	}
	return ParseFlows(data)
}

// ParseFlows parses a flows document. Unknown keys are rejected so typos do
// not silently produce a misconfigured node.
func ParseFlows(data []byte) (*Flows, error) {
	var flows Flows
	dec := toml.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&flows); err != nil {
		return nil, fmt.Errorf("parsing flows file: %w", err)
	}
	return &flows, nil
}

// NodeSpecs converts the node definitions to application specs.
func (f *Flows) NodeSpecs() ([]application.NodeSpec, error) {
	specs := make([]application.NodeSpec, 0, len(f.Nodes))
	for i, n := range f.Nodes {
		if n.ID == "" {
			return nil, fmt.Errorf("node #%d: id is required", i+1)
		}

		var interval time.Duration
		if n.Interval != "" {
			d, err := time.ParseDuration(n.Interval)
			if err != nil {
				return nil, fmt.Errorf("node %s: invalid interval %q: %w", n.ID, n.Interval, err)
			}
			interval = d
		}

		specs = append(specs, application.NodeSpec{
			ID:           n.ID,
			Type:         model.NodeType(n.Type),
			ConnectionID: n.Connection,
			DataType:     model.DataType(n.DataType),
			InputType:    model.InputType(n.InputType),
			OutputType:   model.OutputType(n.OutputType),
			Interval:     interval,
		})
	}
	return specs, nil
}
