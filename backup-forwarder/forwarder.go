// Package backupforwarder is the shared routing function: it receives
// dynamodb stream batches from every backed up table and writes each record,
// as a line of json, into the table's firehose delivery stream.
package backupforwarder

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/SundaeSwap-finance/ddb-continuous-backup/backup"
	"github.com/SundaeSwap-finance/ddb-continuous-backup/resources"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/firehose"
	"github.com/aws/aws-sdk-go/service/firehose/firehoseiface"
	"github.com/rs/zerolog"
	"github.com/savaki/ddb"
	"golang.org/x/sync/errgroup"
)

const (
	// MaxBatchRecords and MaxBatchBytes are the firehose PutRecordBatch limits.
	MaxBatchRecords = 500
	MaxBatchBytes   = 4 * 1024 * 1024

	DefaultMaxAttempts = 8
	DefaultBackoffBase = 100 * time.Millisecond
	DefaultBackoffMax  = 3 * time.Second
)

type Forwarder struct {
	firehose firehoseiface.FirehoseAPI
	logger   zerolog.Logger

	maxAttempts int
	backoffBase time.Duration
	backoffMax  time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
}

func New(api firehoseiface.FirehoseAPI, logger zerolog.Logger) *Forwarder {
	return &Forwarder{
		firehose:    api,
		logger:      logger,
		maxAttempts: DefaultMaxAttempts,
		backoffBase: DefaultBackoffBase,
		backoffMax:  DefaultBackoffMax,
		sleep:       sleepContext,
	}
}

// rawEvent keeps each stream record verbatim so it is archived exactly as
// received.
type rawEvent struct {
	Records []json.RawMessage `json:"Records"`
}

type recordSource struct {
	EventSourceARN string `json:"eventSourceARN"`
}

// HandleEvent forwards a dynamodb stream batch. Records are grouped by source
// table, keeping their order, and each group is written to that table's
// delivery pipe. Any failure fails the batch so the stream redelivers it.
func (f *Forwarder) HandleEvent(ctx context.Context, raw json.RawMessage) error {
	var event rawEvent
	if err := json.Unmarshal(raw, &event); err != nil {
		return fmt.Errorf("unable to parse stream event: %w", err)
	}

	var (
		order  []string
		tables = map[string][][]byte{}
		counts = map[string]int{}
	)
	for i, record := range event.Records {
		var source recordSource
		if err := json.Unmarshal(record, &source); err != nil {
			return fmt.Errorf("unable to parse stream record %v: %w", i, err)
		}
		table, ok := resources.TableFromStreamArn(source.EventSourceARN)
		if !ok {
			f.logger.Warn().Str("eventSourceARN", source.EventSourceARN).Msg("skipping record from unknown source")
			continue
		}

		var r ddb.Record
		if err := json.Unmarshal(record, &r); err == nil {
			counts[r.EventName]++
		}

		if _, ok := tables[table]; !ok {
			order = append(order, table)
		}
		tables[table] = append(tables[table], append(record, '\n'))
	}

	f.logger.Debug().Int("records", len(event.Records)).Int("tables", len(order)).
		Int("inserts", counts["INSERT"]).Int("updates", counts["MODIFY"]).Int("removes", counts["REMOVE"]).
		Msg("forwarding stream batch")

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(16)
	for _, table := range order {
		table := table
		group.Go(func() error {
			return f.Put(ctx, backup.DeliveryPipeName(table), tables[table])
		})
	}
	return group.Wait()
}

// Put writes records to the delivery pipe, splitting them into batches within
// the firehose limits.
func (f *Forwarder) Put(ctx context.Context, pipe string, records [][]byte) error {
	for _, batch := range Batches(records) {
		if err := f.putBatch(ctx, pipe, batch); err != nil {
			return err
		}
	}
	return nil
}

// Batches splits records into consecutive groups of at most MaxBatchRecords
// records and MaxBatchBytes bytes.
func Batches(records [][]byte) [][][]byte {
	var (
		batches [][][]byte
		batch   [][]byte
		size    int
	)
	for _, record := range records {
		if len(batch) == MaxBatchRecords || (len(batch) > 0 && size+len(record) > MaxBatchBytes) {
			batches = append(batches, batch)
			batch, size = nil, 0
		}
		batch = append(batch, record)
		size += len(record)
	}
	if len(batch) > 0 {
		batches = append(batches, batch)
	}
	return batches
}

// putBatch sends one batch, resending only the entries firehose rejected,
// with capped exponential backoff between attempts.
func (f *Forwarder) putBatch(ctx context.Context, pipe string, batch [][]byte) error {
	logger := f.logger.With().Str("resource", resources.PipeResource).Str("pipe", pipe).Logger()

	pending := batch
	for attempt := 0; attempt < f.maxAttempts; attempt++ {
		if attempt > 0 {
			interval := f.backoff(attempt - 1)
			if err := f.sleep(ctx, interval); err != nil {
				return fmt.Errorf("unable to put records to %v: %w", pipe, err)
			}
		}

		input := &firehose.PutRecordBatchInput{
			DeliveryStreamName: aws.String(pipe),
		}
		for _, data := range pending {
			input.Records = append(input.Records, &firehose.Record{Data: data})
		}

		output, err := f.firehose.PutRecordBatchWithContext(ctx, input)
		if err != nil {
			err = resources.Classify(err, resources.PipeResource, pipe)
			if resources.IsThrottled(err) {
				logger.Warn().Err(err).Int("attempt", attempt+1).Msg("put throttled, backing off")
				continue
			}
			return fmt.Errorf("unable to put records to %v: %w", pipe, err)
		}

		if aws.Int64Value(output.FailedPutCount) == 0 {
			logger.Debug().Int("records", len(pending)).Msg("put records")
			return nil
		}

		var failed [][]byte
		for i, entry := range output.RequestResponses {
			if entry != nil && entry.ErrorCode != nil && i < len(pending) {
				failed = append(failed, pending[i])
			}
		}
		logger.Warn().Int("failed", len(failed)).Int("attempt", attempt+1).Msg("some records were rejected, retrying")
		pending = failed
		if len(pending) == 0 {
			return nil
		}
	}

	return resources.Errorf(resources.Fatal, resources.PipeResource, pipe,
		"unable to put %v records in %v attempts", len(pending), f.maxAttempts)
}

func (f *Forwarder) backoff(attempt int) time.Duration {
	if attempt > 30 {
		return f.backoffMax
	}
	interval := f.backoffBase << uint(attempt)
	if interval <= 0 || interval > f.backoffMax {
		return f.backoffMax
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
