package backupevents

import (
	"context"

	"github.com/SundaeSwap-finance/ddb-continuous-backup/optin"
	"github.com/rs/zerolog"
)

// Provisioner converges tables to and from the backed up state; backup.Engine
// satisfies it.
type Provisioner interface {
	Provision(ctx context.Context, tableName string) error
	Deprovision(ctx context.Context, tableName string) error
}

type Dispatcher struct {
	Engine Provisioner
	Filter optin.Filter
	Logger zerolog.Logger
}

// Dispatch applies events in order. Creates are gated by the opt-in filter;
// deletes always tear down. A failing table is logged and the remaining events
// are still applied. Returns the number of events that failed.
func (d *Dispatcher) Dispatch(ctx context.Context, events []Event) (failed int) {
	filter := d.Filter
	if filter == nil {
		filter = optin.All
	}

	for _, event := range events {
		logger := d.Logger.With().Str("event", string(event.Name)).Str("table", event.TableName).Logger()

		var err error
		switch event.Name {
		case CreateTable:
			if !filter.Eligible(event.TableName) {
				logger.Info().Msg("table not opted in, suppressing backup")
				continue
			}
			err = d.Engine.Provision(ctx, event.TableName)

		case DeleteTable:
			err = d.Engine.Deprovision(ctx, event.TableName)

		default:
			logger.Debug().Msg("ignoring event")
			continue
		}

		if err != nil {
			logger.Error().Err(err).Msg("unable to apply event")
			failed++
			continue
		}
		logger.Info().Msg("applied event")
	}
	return failed
}
