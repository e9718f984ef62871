// Package cursordao persists kinesis shard checkpoints in dynamodb so a
// console consumer can resume where it left off.
package cursordao

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/rs/zerolog"
	"github.com/savaki/ddb"
)

// checkpoints not advanced for this long are expired by the table ttl
const retention = 15 * 24 * time.Hour

type Checkpoint struct {
	Stream string `dynamodbav:"stream" ddb:"hash"`
	Shard  string `dynamodbav:"shard" ddb:"range"`

	SequenceNumber string `dynamodbav:"sequence_number,omitempty"`
	UpdatedAt      int64  `dynamodbav:"updated_at,omitempty"`
	TTL            int64  `dynamodbav:"ttl,omitempty"`
}

type DAO struct {
	client *ddb.DDB
	table  *ddb.Table
	now    func() time.Time
}

func New(api dynamodbiface.DynamoDBAPI, tableName string) *DAO {
	client := ddb.New(api)
	return &DAO{
		client: client,
		table:  client.MustTable(tableName, Checkpoint{}),
		now:    time.Now,
	}
}

// Find returns the checkpoint for the shard. A shard that has never been
// checkpointed is reported with ddb.IsItemNotFoundError.
func (d *DAO) Find(ctx context.Context, stream, shard string) (Checkpoint, error) {
	get := d.table.Get(stream).Range(shard).
		ConsistentRead(true)

	var c Checkpoint
	if err := get.ScanWithContext(ctx, &c); err != nil {
		return Checkpoint{}, fmt.Errorf("failed to find checkpoint for stream, %v, and shard, %v: %w", stream, shard, err)
	}
	return c, nil
}

func (d *DAO) Save(ctx context.Context, stream, shard, sequenceNumber string) (err error) {
	defer func(begin time.Time) {
		zerolog.Ctx(ctx).Debug().
			Dur("elapsed", time.Since(begin)).
			Err(err).
			Str("stream", stream).
			Str("shard", shard).
			Str("sequenceNumber", sequenceNumber).
			Msg("saved checkpoint")
	}(time.Now())

	now := d.now()
	c := Checkpoint{
		Stream:         stream,
		Shard:          shard,
		SequenceNumber: sequenceNumber,
		UpdatedAt:      now.Unix(),
		TTL:            now.Add(retention).Unix(),
	}
	if err := d.table.Put(c).RunWithContext(ctx); err != nil {
		return fmt.Errorf("failed to save checkpoint for stream, %v, and shard, %v: %w", stream, shard, err)
	}
	return nil
}

// Store adapts the dao to the kinesis consumer's checkpoint store, whose
// methods carry no context; ctx is used for every call.
type Store struct {
	ctx context.Context
	dao *DAO
}

func (d *DAO) Store(ctx context.Context) *Store {
	return &Store{ctx: ctx, dao: d}
}

// GetCheckpoint returns the last saved sequence number, or "" when the shard
// has not been checkpointed yet.
func (s *Store) GetCheckpoint(streamName, shardID string) (string, error) {
	c, err := s.dao.Find(s.ctx, streamName, shardID)
	if err != nil {
		if ddb.IsItemNotFoundError(err) {
			return "", nil
		}
		return "", err
	}
	return c.SequenceNumber, nil
}

func (s *Store) SetCheckpoint(streamName, shardID, sequenceNumber string) error {
	if sequenceNumber == "" {
		return fmt.Errorf("failed to save checkpoint for stream, %v, and shard, %v: sequence number required", streamName, shardID)
	}
	return s.dao.Save(s.ctx, streamName, shardID, sequenceNumber)
}
