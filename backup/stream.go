package backup

import (
	"context"
	"fmt"
	"time"

	"github.com/SundaeSwap-finance/ddb-continuous-backup/resources"
)

// EnsureStream makes sure the table has a stream enabled and returns its arn.
// When the stream is already enabled no mutation is issued and no polling
// happens. A table that is still being created or updated is polled until it
// is ACTIVE before the stream is enabled, and again afterwards until the
// stream is reported. All waiting shares one StreamActivationTimeout bound.
func (e *Engine) EnsureStream(ctx context.Context, tableName string) (string, error) {
	logger := e.logger.With().Str("table", tableName).Str("resource", resources.TableResource).Logger()

	table, err := e.clients.Tables.Describe(ctx, tableName)
	if err != nil {
		return "", fmt.Errorf("unable to describe table %v: %w", tableName, err)
	}
	if table.StreamEnabled && table.StreamArn != "" {
		return table.StreamArn, nil
	}

	if e.config.Dry {
		logger.Info().Msg("dry run, would enable stream")
		return "", nil
	}

	deadline := e.now().Add(e.config.StreamActivationTimeout)
	for {
		if table.Status == resources.TableStatusActive {
			err := e.clients.Tables.EnableStream(ctx, tableName)
			if err == nil {
				break
			}
			if !resources.IsConflict(err) {
				return "", fmt.Errorf("unable to enable stream on table %v: %w", tableName, err)
			}
			logger.Debug().Err(err).Msg("table busy, retrying stream enable")
		} else {
			logger.Debug().Str("status", table.Status).Msg("table not yet active, waiting to enable stream")
		}

		table, err = e.waitTable(ctx, tableName, deadline, table.Status)
		if err != nil {
			return "", err
		}
		if table.StreamEnabled && table.StreamArn != "" {
			return table.StreamArn, nil
		}
	}
	logger.Info().Msg("enabling stream, waiting for table to become active")

	for {
		table, err = e.waitTable(ctx, tableName, deadline, table.Status)
		if err != nil {
			return "", err
		}
		if table.Status == resources.TableStatusActive && table.StreamArn != "" {
			logger.Info().Str("streamArn", table.StreamArn).Msg("enabled stream")
			return table.StreamArn, nil
		}
		logger.Debug().Str("status", table.Status).Msg("table not yet active")
	}
}

// waitTable sleeps one poll interval and describes the table again, failing
// with a Timeout error once the deadline has passed.
func (e *Engine) waitTable(ctx context.Context, tableName string, deadline time.Time, status string) (resources.Table, error) {
	if !e.now().Before(deadline) {
		return resources.Table{}, resources.Errorf(resources.Timeout, resources.TableResource, tableName,
			"stream not active after %v (status %v)", e.config.StreamActivationTimeout, status)
	}
	if err := e.sleep(ctx, e.config.PollInterval); err != nil {
		return resources.Table{}, fmt.Errorf("unable to wait for stream on table %v: %w", tableName, err)
	}
	table, err := e.clients.Tables.Describe(ctx, tableName)
	if err != nil {
		return resources.Table{}, fmt.Errorf("unable to describe table %v: %w", tableName, err)
	}
	return table, nil
}
