// Package backupevents turns table lifecycle notifications into provision and
// deprovision calls.
//
// Notifications arrive from cloudtrail through an eventbridge rule, a
// cloudwatch logs subscription, or a kinesis stream fed by one. The handler
// runs as a lambda, or in console mode as a kinesis consumer that checkpoints
// its progress in dynamodb.
package backupevents

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	backupcli "github.com/SundaeSwap-finance/ddb-continuous-backup/backup-cli"
	"github.com/SundaeSwap-finance/ddb-continuous-backup/backup-events/cursordao"
	"github.com/aws/aws-lambda-go/lambda"
	consumer "github.com/harlow/kinesis-consumer"
	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"
)

type Handler struct {
	Service    backupcli.Service
	Logger     zerolog.Logger
	dispatcher *Dispatcher
	metrics    backupcli.Metrics
	cursor     *cursordao.DAO
}

type HandlerOption func(*Handler)

func WithMetrics(metrics backupcli.Metrics) HandlerOption {
	return func(h *Handler) {
		h.metrics = metrics
	}
}

// WithCheckpoints enables checkpointing for the console consumer.
func WithCheckpoints(cursor *cursordao.DAO) HandlerOption {
	return func(h *Handler) {
		h.cursor = cursor
	}
}

func NewHandler(service backupcli.Service, logger zerolog.Logger, dispatcher *Dispatcher, opts ...HandlerOption) *Handler {
	h := &Handler{
		Service:    service,
		Logger:     logger,
		dispatcher: dispatcher,
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Handler) Start(c *cli.Context) error {
	if !backupcli.CommonOpts.Console {
		lambda.Start(h.HandleEvent)
		return nil
	}
	return h.handleRealtime(c.Context)
}

// HandleEvent is the lambda entry point. Malformed payloads are logged and
// acknowledged so they are not redelivered; per-table failures are logged by
// the dispatcher.
func (h *Handler) HandleEvent(ctx context.Context, raw json.RawMessage) error {
	ctx = h.Logger.WithContext(ctx)

	result, err := Normalize(ctx, raw)
	if err != nil {
		h.Logger.Error().Err(err).Int("size", len(raw)).Msg("dropping malformed event")
		return nil
	}
	h.dispatch(ctx, result)
	return nil
}

func (h *Handler) dispatch(ctx context.Context, result Result) {
	defer func(begin time.Time) {
		h.metrics.Timing(ctx, backupcli.ReconcileDurationMetric, begin)
	}(time.Now())

	failed := h.dispatcher.Dispatch(ctx, result.Events)
	h.metrics.Gauge(ctx, backupcli.EventsProcessedMetric, float64(result.Processed))
	h.Logger.Info().
		Int("processed", result.Processed).
		Int("dropped", result.Dropped).
		Int("malformed", result.Malformed).
		Int("dispatched", len(result.Events)).
		Int("failed", failed).
		Msg("handled event")
}

func (h *Handler) handleRealtime(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, cancel := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer cancel()
	ctx = h.Logger.WithContext(ctx)

	streamName := EventsOpts.StreamName
	if streamName == "" {
		streamName = fmt.Sprintf("%v-ddb-continuous-backup--audit", backupcli.CommonOpts.Env)
	}

	var options []consumer.Option
	if EventsOpts.Replay {
		options = append(options, consumer.WithShardIteratorType("TRIM_HORIZON"))
	} else {
		options = append(options, consumer.WithShardIteratorType("LATEST"))
	}
	if h.cursor != nil && !backupcli.CommonOpts.Dry {
		options = append(options, consumer.WithStore(h.cursor.Store(ctx)))
	}

	c, err := consumer.New(streamName, options...)
	if err != nil {
		return fmt.Errorf("unable to create consumer for stream %v: %w", streamName, err)
	}

	callback := func(record *consumer.Record) error {
		result, err := NormalizeLogs(ctx, record.Data)
		if err != nil {
			h.Logger.Error().Err(err).Msg("dropping malformed record")
			return nil
		}
		h.dispatch(ctx, result)
		return nil
	}
	h.Logger.Info().Str("stream", streamName).Msg("listening")
	if err := c.Scan(ctx, callback); err != nil && ctx.Err() == nil {
		return fmt.Errorf("unable to scan stream %v: %w", streamName, err)
	}
	return nil
}
