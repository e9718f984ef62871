package backup

import (
	"context"
	"fmt"
	"time"

	backupcli "github.com/SundaeSwap-finance/ddb-continuous-backup/backup-cli"
	"github.com/SundaeSwap-finance/ddb-continuous-backup/resources"
)

// Provision converges the table to the backed up state: stream enabled,
// delivery pipe present, and stream bound to the routing function. Steps run
// in order; the first failure aborts this table only.
func (e *Engine) Provision(ctx context.Context, tableName string) (err error) {
	logger := e.logger.With().Str("table", tableName).Logger()
	defer func(begin time.Time) {
		if err != nil {
			e.record(ctx, backupcli.TableFailedMetric, tableName)
			logger.Error().Err(err).Dur("elapsed", time.Since(begin)).Msg("unable to provision table")
			return
		}
		e.record(ctx, backupcli.TableProvisionedMetric, tableName)
		logger.Info().Dur("elapsed", time.Since(begin)).Msg("provisioned table")
	}(time.Now())

	streamArn, err := e.EnsureStream(ctx, tableName)
	if err != nil {
		return fmt.Errorf("unable to provision table %v: %w", tableName, err)
	}
	logger.Debug().Str("streamArn", streamArn).Msg("resolved stream")

	pipeArn, err := e.EnsureDeliveryPipe(ctx, tableName)
	if err != nil {
		return fmt.Errorf("unable to provision table %v: %w", tableName, err)
	}
	logger.Debug().Str("pipeArn", pipeArn).Msg("resolved delivery pipe")

	if err := e.EnsureRoutingBinding(ctx, tableName, streamArn); err != nil {
		return fmt.Errorf("unable to provision table %v: %w", tableName, err)
	}
	return nil
}

// Deprovision removes the routing bindings and delivery pipe of the table.
// Archived data in s3 is never touched, and the table stream is left as is.
func (e *Engine) Deprovision(ctx context.Context, tableName string) (err error) {
	logger := e.logger.With().Str("table", tableName).Logger()
	var removed int
	defer func(begin time.Time) {
		if err != nil {
			e.record(ctx, backupcli.TableFailedMetric, tableName)
			logger.Error().Err(err).Dur("elapsed", time.Since(begin)).Msg("unable to deprovision table")
			return
		}
		e.record(ctx, backupcli.TableDeprovisionedMetric, tableName)
		logger.Info().Int("bindingsRemoved", removed).Dur("elapsed", time.Since(begin)).Msg("deprovisioned table")
	}(time.Now())

	removed, err = e.removeBindings(ctx, tableName)
	if err != nil {
		return fmt.Errorf("unable to deprovision table %v: %w", tableName, err)
	}
	if removed > 0 {
		logger.Info().Msgf("removed %v bindings", removed)
	}
	if err := e.deleteDeliveryPipe(ctx, tableName); err != nil {
		return fmt.Errorf("unable to deprovision table %v: %w", tableName, err)
	}
	return nil
}

func (e *Engine) deleteDeliveryPipe(ctx context.Context, tableName string) error {
	name := DeliveryPipeName(tableName)
	logger := e.logger.With().Str("table", tableName).Str("resource", resources.PipeResource).Str("pipe", name).Logger()

	if _, err := e.clients.Pipes.Describe(ctx, name); err != nil {
		if resources.IsNotFound(err) {
			logger.Info().Msg("no delivery pipe found - ok")
			return nil
		}
		return fmt.Errorf("unable to describe delivery pipe %v: %w", name, err)
	}

	if e.config.Dry {
		logger.Info().Msg("dry run, would delete delivery pipe")
		return nil
	}

	if err := e.clients.Pipes.Delete(ctx, name); err != nil {
		if resources.IsNotFound(err) {
			logger.Info().Msg("no delivery pipe found - ok")
			return nil
		}
		return fmt.Errorf("unable to delete delivery pipe %v: %w", name, err)
	}
	logger.Info().Msg("deleted delivery pipe")
	return nil
}
