package backup

import (
	"context"
	"fmt"

	"github.com/SundaeSwap-finance/ddb-continuous-backup/resources"
)

// EnsureDeliveryPipe makes sure the table's delivery pipe exists and returns
// its arn. Throttled describes are retried with capped exponential backoff, at
// most DescribeMaxAttempts times.
func (e *Engine) EnsureDeliveryPipe(ctx context.Context, tableName string) (string, error) {
	name := DeliveryPipeName(tableName)
	logger := e.logger.With().Str("table", tableName).Str("resource", resources.PipeResource).Str("pipe", name).Logger()

	for attempt := 0; attempt < e.config.DescribeMaxAttempts; attempt++ {
		pipe, err := e.clients.Pipes.Describe(ctx, name)
		switch {
		case err == nil:
			return pipe.Arn, nil

		case resources.IsNotFound(err):
			return e.createDeliveryPipe(ctx, tableName, name)

		case resources.IsThrottled(err):
			if attempt == e.config.DescribeMaxAttempts-1 {
				logger.Warn().Err(err).Int("attempt", attempt+1).Msg("delivery pipe describe throttled")
				continue
			}
			interval := e.backoff(attempt)
			logger.Warn().Err(err).Int("attempt", attempt+1).Dur("backoff", interval).Msg("delivery pipe describe throttled, backing off")
			if err := e.sleep(ctx, interval); err != nil {
				return "", fmt.Errorf("unable to describe delivery pipe %v: %w", name, err)
			}

		default:
			return "", fmt.Errorf("unable to describe delivery pipe %v: %w", name, err)
		}
	}

	logger.Error().Int("attempts", e.config.DescribeMaxAttempts).Msg("unable to resolve delivery pipe presence, giving up")
	return "", resources.Errorf(resources.Fatal, resources.PipeResource, name,
		"unable to resolve delivery pipe presence in %v attempts", e.config.DescribeMaxAttempts)
}

func (e *Engine) createDeliveryPipe(ctx context.Context, tableName, name string) (string, error) {
	logger := e.logger.With().Str("table", tableName).Str("resource", resources.PipeResource).Str("pipe", name).Logger()

	spec := resources.PipeSpec{
		Name:            name,
		RoleArn:         e.config.DeliveryRoleArn,
		BucketArn:       BucketArn(e.config.DeliveryBucket),
		Prefix:          DeliveryPrefix(e.config.DeliveryPrefix, tableName),
		SizeMB:          e.config.DeliverySizeMB,
		IntervalSeconds: e.config.DeliveryIntervalSeconds,
	}

	if e.config.Dry {
		logger.Info().Str("bucket", spec.BucketArn).Str("prefix", spec.Prefix).Msg("dry run, would create delivery pipe")
		return "", nil
	}

	pipeArn, err := e.clients.Pipes.Create(ctx, spec)
	if resources.IsConflict(err) {
		// created concurrently; take whatever is there now
		pipe, err := e.clients.Pipes.Describe(ctx, name)
		if err != nil {
			return "", fmt.Errorf("unable to describe delivery pipe %v after conflict: %w", name, err)
		}
		return pipe.Arn, nil
	}
	if err != nil {
		return "", fmt.Errorf("unable to create delivery pipe %v: %w", name, err)
	}

	logger.Info().Str("pipeArn", pipeArn).Str("prefix", spec.Prefix).Msg("created delivery pipe")
	return pipeArn, nil
}
