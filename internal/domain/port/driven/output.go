package driven

import "github.com/ericfisherdev/fitflow/internal/domain/model"

// Output is a node's connection to the flow: messages sent here go to the
// downstream nodes and status updates are shown next to the node.
type Output interface {
	Send(msg model.Message)
	Status(status model.NodeStatus)
}
