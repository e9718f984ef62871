package backupforwarder

import (
	"context"
	"encoding/json"
	"fmt"

	backupcli "github.com/SundaeSwap-finance/ddb-continuous-backup/backup-cli"
	"github.com/SundaeSwap-finance/ddb-continuous-backup/backup"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/dynamodbstreams"
	"github.com/aws/aws-sdk-go/service/dynamodbstreams/dynamodbstreamsiface"
	"golang.org/x/sync/errgroup"
)

type Handler struct {
	service   backupcli.Service
	forwarder *Forwarder
	streams   dynamodbstreamsiface.DynamoDBStreamsAPI
}

func NewHandler(service backupcli.Service, forwarder *Forwarder, streams dynamodbstreamsiface.DynamoDBStreamsAPI) *Handler {
	return &Handler{
		service:   service,
		forwarder: forwarder,
		streams:   streams,
	}
}

func (h *Handler) Start() error {
	switch {
	case backupcli.CommonOpts.Console:
		return h.Replay(context.Background(), ForwarderOpts.TableName)

	default:
		lambda.Start(h.forwarder.HandleEvent)
	}
	return nil
}

// Replay reads every shard of the table's stream from the trim horizon and
// writes the records into the table's delivery pipe.
func (h *Handler) Replay(ctx context.Context, tableName string) error {
	if tableName == "" {
		return fmt.Errorf("unable to replay: table name required")
	}
	logger := h.forwarder.logger.With().Str("table", tableName).Logger()
	pipe := backup.DeliveryPipeName(tableName)

	ss, err := h.streams.ListStreamsWithContext(ctx, &dynamodbstreams.ListStreamsInput{
		TableName: aws.String(tableName),
	})
	if err != nil {
		return fmt.Errorf("unable to list streams for table %v: %w", tableName, err)
	}
	if len(ss.Streams) != 1 {
		return fmt.Errorf("too few or too many streams (%v) for table %v", len(ss.Streams), tableName)
	}
	stream := ss.Streams[0]

	var shards []*dynamodbstreams.Shard
	var lastShard *string
	for {
		ds, err := h.streams.DescribeStreamWithContext(ctx, &dynamodbstreams.DescribeStreamInput{
			StreamArn:             stream.StreamArn,
			ExclusiveStartShardId: lastShard,
		})
		if err != nil {
			return fmt.Errorf("unable to describe stream %v: %w", aws.StringValue(stream.StreamArn), err)
		}
		shards = append(shards, ds.StreamDescription.Shards...)
		if ds.StreamDescription.LastEvaluatedShardId == nil {
			break
		}
		lastShard = ds.StreamDescription.LastEvaluatedShardId
	}

	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(256)

	logger.Info().Str("pipe", pipe).Int("shardCount", len(shards)).Msg("replaying stream into delivery pipe")

	for _, shard := range shards {
		shard := shard
		group.Go(func() error {
			it, err := h.streams.GetShardIteratorWithContext(ctx, &dynamodbstreams.GetShardIteratorInput{
				StreamArn:         stream.StreamArn,
				ShardId:           shard.ShardId,
				ShardIteratorType: aws.String(dynamodbstreams.ShardIteratorTypeTrimHorizon),
			})
			if err != nil {
				return fmt.Errorf("unable to get shard iterator: %w", err)
			}

			iterator := it.ShardIterator
			for iterator != nil {
				out, err := h.streams.GetRecordsWithContext(ctx, &dynamodbstreams.GetRecordsInput{
					ShardIterator: iterator,
				})
				if err != nil {
					return fmt.Errorf("unable to get records: %w", err)
				}
				if len(out.Records) == 0 && out.NextShardIterator != nil {
					// open shard caught up
					break
				}

				var records [][]byte
				for _, record := range out.Records {
					raw, err := json.Marshal(record)
					if err != nil {
						return fmt.Errorf("unable to marshal record: %w", err)
					}
					records = append(records, append(raw, '\n'))
				}
				if err := h.forwarder.Put(ctx, pipe, records); err != nil {
					return err
				}
				iterator = out.NextShardIterator
			}
			return nil
		})
	}
	return group.Wait()
}
