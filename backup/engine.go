// Package backup converges a dynamodb table to (or from) a continuously
// backed up state: a stream on the table, a firehose delivery pipe that
// archives to s3, and a binding from the stream to the shared routing
// function which forwards stream records into the pipe.
//
// Every operation is idempotent and safe to repeat. The engine holds no
// durable state; everything is derived by describing the resources.
package backup

import (
	"context"
	"sync"
	"time"

	backupcli "github.com/SundaeSwap-finance/ddb-continuous-backup/backup-cli"
	"github.com/SundaeSwap-finance/ddb-continuous-backup/resources"
	"github.com/rs/zerolog"
	"golang.org/x/sync/singleflight"
)

const (
	DefaultPollInterval            = time.Second
	DefaultStreamActivationTimeout = 10 * time.Minute
	DefaultDescribeMaxAttempts     = 100
	DefaultBackoffBase             = 100 * time.Millisecond
	DefaultBackoffMax              = 3 * time.Second
)

// Clients holds the resource capabilities the engine drives. It is built once
// at process start and shared by every component.
type Clients struct {
	Tables    resources.TableStore
	Pipes     resources.DeliveryPipes
	Routing   resources.RoutingRegistry
	Functions resources.FunctionRegistry
}

type Config struct {
	DeliveryRoleArn         string
	DeliveryBucket          string
	DeliveryPrefix          string
	DeliverySizeMB          int64
	DeliveryIntervalSeconds int64
	StreamsMaxRecordsBatch  int64

	// RoutingFunction describes the shared function every table stream is
	// bound to, and the artifact it is deployed from when absent.
	RoutingFunction resources.FunctionSpec

	PollInterval            time.Duration
	StreamActivationTimeout time.Duration
	DescribeMaxAttempts     int
	BackoffBase             time.Duration
	BackoffMax              time.Duration

	// Dry logs intended mutations instead of issuing them.
	Dry bool
}

func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = DefaultPollInterval
	}
	if c.StreamActivationTimeout <= 0 {
		c.StreamActivationTimeout = DefaultStreamActivationTimeout
	}
	if c.DescribeMaxAttempts <= 0 {
		c.DescribeMaxAttempts = DefaultDescribeMaxAttempts
	}
	if c.BackoffBase <= 0 {
		c.BackoffBase = DefaultBackoffBase
	}
	if c.BackoffMax <= 0 {
		c.BackoffMax = DefaultBackoffMax
	}
	return c
}

// Recorder receives per-table outcome metrics; backupcli.Metrics satisfies it.
type Recorder interface {
	Event(ctx context.Context, name backupcli.MetricName, dimensions ...map[backupcli.DimensionName]string)
}

type Engine struct {
	clients Clients
	config  Config
	logger  zerolog.Logger
	metrics Recorder

	sleep func(ctx context.Context, d time.Duration) error
	now   func() time.Time

	resolve  singleflight.Group
	mu       sync.Mutex
	function resources.Function
}

type Option func(*Engine)

func WithMetrics(metrics Recorder) Option {
	return func(e *Engine) {
		e.metrics = metrics
	}
}

func New(clients Clients, config Config, logger zerolog.Logger, opts ...Option) *Engine {
	e := &Engine{
		clients: clients,
		config:  config.withDefaults(),
		logger:  logger,
		sleep:   sleepContext,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *Engine) Config() Config {
	return e.config
}

func (e *Engine) record(ctx context.Context, name backupcli.MetricName, table string) {
	if e.metrics == nil {
		return
	}
	e.metrics.Event(ctx, name, map[backupcli.DimensionName]string{backupcli.TableNameDimension: table})
}

// backoff returns the capped exponential interval for the given attempt.
func (e *Engine) backoff(attempt int) time.Duration {
	if attempt > 30 {
		return e.config.BackoffMax
	}
	interval := e.config.BackoffBase << uint(attempt)
	if interval <= 0 || interval > e.config.BackoffMax {
		return e.config.BackoffMax
	}
	return interval
}

func sleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
