package backup

import (
	"context"
	"fmt"

	"github.com/SundaeSwap-finance/ddb-continuous-backup/resources"
)

// Status is a read-only view of how far a table is from being backed up.
type Status struct {
	Table         string
	StreamEnabled bool
	StreamArn     string
	PipeName      string
	PipeArn       string
	BindingUUID   string
}

func (s Status) Bound() bool {
	return s.BindingUUID != ""
}

// BackedUp holds iff the stream is enabled, the delivery pipe exists, and the
// stream is bound to the routing function.
func (s Status) BackedUp() bool {
	return s.StreamEnabled && s.PipeArn != "" && s.Bound()
}

// Status describes the table's backup resources without changing anything.
func (e *Engine) Status(ctx context.Context, tableName string) (Status, error) {
	status := Status{
		Table:    tableName,
		PipeName: DeliveryPipeName(tableName),
	}

	table, err := e.clients.Tables.Describe(ctx, tableName)
	if err != nil {
		return Status{}, fmt.Errorf("unable to describe table %v: %w", tableName, err)
	}
	status.StreamEnabled = table.StreamEnabled
	status.StreamArn = table.StreamArn

	pipe, err := e.clients.Pipes.Describe(ctx, status.PipeName)
	switch {
	case err == nil:
		status.PipeArn = pipe.Arn
	case !resources.IsNotFound(err):
		return Status{}, fmt.Errorf("unable to describe delivery pipe %v: %w", status.PipeName, err)
	}

	if status.StreamEnabled && status.StreamArn != "" {
		bindings, err := e.clients.Routing.ListBindings(ctx, e.config.RoutingFunction.Name, status.StreamArn)
		switch {
		case err == nil:
			if len(bindings) > 0 {
				status.BindingUUID = bindings[0].UUID
			}
		case !resources.IsNotFound(err):
			return Status{}, fmt.Errorf("unable to list bindings for %v: %w", status.StreamArn, err)
		}
	}

	return status, nil
}
