package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/ericfisherdev/fitflow/internal/domain/model"
	"github.com/ericfisherdev/fitflow/internal/domain/port/driven"
)

// dateLayout is the YYYY-MM-DD form of the optional date input.
const dateLayout = "2006-01-02"

// ErrInvalidDataType and ErrInvalidDate reject a query before any network call.
var (
	ErrInvalidDataType = fmt.Errorf("%w: invalid data type", model.ErrConfiguration)
	ErrInvalidDate     = fmt.Errorf("%w: invalid date, want YYYY-MM-DD", model.ErrConfiguration)
)

// QueryNode fetches one Fitbit resource per input message and forwards the
// decoded response as the message payload.
type QueryNode struct {
	id           string
	connectionID string
	dataType     model.DataType
	store        driven.CredentialStore
	api          driven.FitbitAPI
	out          driven.Output
	now          func() time.Time
}

// NewQueryNode creates a QueryNode. The data type is validated on each input
// so a misconfigured node reports its status instead of failing to load.
func NewQueryNode(
	id, connectionID string,
	dataType model.DataType,
	store driven.CredentialStore,
	api driven.FitbitAPI,
	out driven.Output,
) *QueryNode {
	return &QueryNode{
		id:           id,
		connectionID: connectionID,
		dataType:     dataType,
		store:        store,
		api:          api,
		out:          out,
		now:          time.Now,
	}
}

// Start implements Node. A query node does nothing until it receives input.
func (n *QueryNode) Start(context.Context) error { return nil }

// Stop implements Node.
func (n *QueryNode) Stop() {}

// Active implements Node.
func (n *QueryNode) Active() bool { return false }

// Input queries the configured resource for msg.Date (today when empty) and
// sends msg on with the decoded response as payload. Failures are reported
// through the node status and returned.
func (n *QueryNode) Input(ctx context.Context, msg model.Message) error {
	if !n.dataType.Valid() {
		n.out.Status(model.StatusInvalidType)
		return fmt.Errorf("%w: %q", ErrInvalidDataType, n.dataType)
	}

	path := string(n.dataType) + ".json"
	if n.dataType.DateScoped() {
		date := msg.Date
		if date == "" {
			date = n.now().Format(dateLayout)
		} else if _, err := time.Parse(dateLayout, date); err != nil {
			n.out.Status(model.StatusInvalidDate)
			return fmt.Errorf("%w: %q", ErrInvalidDate, date)
		}
		path = string(n.dataType) + "/date/" + date + ".json"
	}

	fields, err := n.store.GetAll(ctx, n.connectionID)
	if err != nil {
		slog.Error("loading credentials failed", "node", n.id, "connection", n.connectionID, "error", err)
		n.out.Status(model.StatusFailed)
		return fmt.Errorf("loading credentials: %w", err)
	}
	creds := model.CredentialsFromFields(n.connectionID, fields)
	if !creds.AuthorizedOAuth1() {
		n.out.Status(model.StatusUnauthorized)
		return model.ErrNotAuthorized
	}

	n.out.Status(model.StatusQuerying)

	payload, err := n.api.Query(ctx, creds, path)
	if err != nil {
		slog.Error("fitbit query failed", "node", n.id, "resource", path, "error", err)
		n.out.Status(model.StatusFailed)
		if errors.Is(err, model.ErrData) || errors.Is(err, model.ErrTransient) {
			return err
		}
		return fmt.Errorf("%w: %w", model.ErrTransient, err)
	}

	n.out.Status(model.StatusClear)
	msg.Payload = payload
	n.out.Send(msg)
	return nil
}
