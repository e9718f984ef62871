package backupforwarder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"testing"
	"time"

	backupcli "github.com/SundaeSwap-finance/ddb-continuous-backup/backup-cli"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/request"
	"github.com/aws/aws-sdk-go/service/dynamodbstreams"
	"github.com/aws/aws-sdk-go/service/dynamodbstreams/dynamodbstreamsiface"
	"github.com/aws/aws-sdk-go/service/firehose"
	"github.com/aws/aws-sdk-go/service/firehose/firehoseiface"
	"github.com/rs/zerolog"
	"github.com/tj/assert"
)

type putCall struct {
	pipe    string
	records [][]byte
}

type fakeFirehose struct {
	firehoseiface.FirehoseAPI
	mu    sync.Mutex
	calls []putCall
	// respond, when set, decides the outcome of each call by index
	respond func(call int, input *firehose.PutRecordBatchInput) (*firehose.PutRecordBatchOutput, error)
}

func (f *fakeFirehose) PutRecordBatchWithContext(_ aws.Context, input *firehose.PutRecordBatchInput, _ ...request.Option) (*firehose.PutRecordBatchOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	call := putCall{pipe: aws.StringValue(input.DeliveryStreamName)}
	for _, r := range input.Records {
		call.records = append(call.records, r.Data)
	}
	f.calls = append(f.calls, call)

	if f.respond != nil {
		return f.respond(len(f.calls)-1, input)
	}
	return &firehose.PutRecordBatchOutput{FailedPutCount: aws.Int64(0)}, nil
}

func (f *fakeFirehose) byPipe() map[string][][]byte {
	got := map[string][][]byte{}
	for _, call := range f.calls {
		got[call.pipe] = append(got[call.pipe], call.records...)
	}
	return got
}

func newTestForwarder(api firehoseiface.FirehoseAPI) (*Forwarder, *[]time.Duration) {
	var sleeps []time.Duration
	f := New(api, zerolog.Nop())
	f.sleep = func(ctx context.Context, d time.Duration) error {
		sleeps = append(sleeps, d)
		return nil
	}
	return f, &sleeps
}

func streamRecord(table, name string, i int) string {
	return fmt.Sprintf(`{"eventID":"%v","eventName":"%v","eventSource":"aws:dynamodb","eventSourceARN":"arn:aws:dynamodb:us-east-2:123456789012:table/%v/stream/2024-01-01T00:00:00.000","dynamodb":{"Keys":{"id":{"S":"%v"}}}}`,
		i, name, table, i)
}

func TestHandleEvent(t *testing.T) {
	api := &fakeFirehose{}
	f, _ := newTestForwarder(api)

	raw := `{"Records":[` +
		streamRecord("orders", "INSERT", 1) + `,` +
		streamRecord("users", "MODIFY", 2) + `,` +
		`{"eventID":"3","eventSourceARN":"arn:aws:kinesis:us-east-2:123456789012:stream/other"},` +
		streamRecord("orders", "REMOVE", 4) +
		`]}`

	err := f.HandleEvent(context.Background(), json.RawMessage(raw))
	assert.Nil(t, err)

	got := api.byPipe()
	assert.Len(t, got, 2)
	assert.Len(t, got["orders"], 2)
	assert.Len(t, got["users"], 1)
	assert.Equal(t, streamRecord("orders", "INSERT", 1)+"\n", string(got["orders"][0]))
	assert.Equal(t, streamRecord("orders", "REMOVE", 4)+"\n", string(got["orders"][1]))

	t.Run("malformed", func(t *testing.T) {
		err := f.HandleEvent(context.Background(), json.RawMessage(`{"Records":`))
		assert.NotNil(t, err)
	})
}

func TestBatches(t *testing.T) {
	var records [][]byte
	for i := 0; i < 1201; i++ {
		records = append(records, []byte("x\n"))
	}
	batches := Batches(records)
	assert.Len(t, batches, 3)
	assert.Len(t, batches[0], 500)
	assert.Len(t, batches[1], 500)
	assert.Len(t, batches[2], 201)

	big := bytes.Repeat([]byte("y"), 1024*1024)
	batches = Batches([][]byte{big, big, big, big, big})
	assert.Len(t, batches, 2)
	assert.Len(t, batches[0], 4)
	assert.Len(t, batches[1], 1)

	assert.Len(t, Batches(nil), 0)
}

func TestPut(t *testing.T) {
	ctx := context.Background()
	records := [][]byte{[]byte("a\n"), []byte("b\n"), []byte("c\n")}

	t.Run("retries rejected entries only", func(t *testing.T) {
		api := &fakeFirehose{
			respond: func(call int, input *firehose.PutRecordBatchInput) (*firehose.PutRecordBatchOutput, error) {
				if call > 0 {
					return &firehose.PutRecordBatchOutput{FailedPutCount: aws.Int64(0)}, nil
				}
				return &firehose.PutRecordBatchOutput{
					FailedPutCount: aws.Int64(1),
					RequestResponses: []*firehose.PutRecordBatchResponseEntry{
						{RecordId: aws.String("1")},
						{ErrorCode: aws.String("ServiceUnavailableException"), ErrorMessage: aws.String("slow down")},
						{RecordId: aws.String("3")},
					},
				}, nil
			},
		}
		f, sleeps := newTestForwarder(api)

		err := f.Put(ctx, "orders", records)
		assert.Nil(t, err)
		assert.Len(t, api.calls, 2)
		assert.Equal(t, [][]byte{[]byte("b\n")}, api.calls[1].records)
		assert.Equal(t, []time.Duration{DefaultBackoffBase}, *sleeps)
	})

	t.Run("throttled until attempts run out", func(t *testing.T) {
		api := &fakeFirehose{
			respond: func(int, *firehose.PutRecordBatchInput) (*firehose.PutRecordBatchOutput, error) {
				return nil, awserr.New("ServiceUnavailableException", "slow down", nil)
			},
		}
		f, sleeps := newTestForwarder(api)

		err := f.Put(ctx, "orders", records)
		assert.NotNil(t, err)
		assert.Len(t, api.calls, DefaultMaxAttempts)
		assert.Len(t, *sleeps, DefaultMaxAttempts-1)
		for _, d := range *sleeps {
			assert.True(t, d <= DefaultBackoffMax)
		}
	})

	t.Run("fatal error", func(t *testing.T) {
		api := &fakeFirehose{
			respond: func(int, *firehose.PutRecordBatchInput) (*firehose.PutRecordBatchOutput, error) {
				return nil, awserr.New("ResourceNotFoundException", "no such pipe", nil)
			},
		}
		f, _ := newTestForwarder(api)

		err := f.Put(ctx, "orders", records)
		assert.NotNil(t, err)
		assert.Len(t, api.calls, 1)
	})
}

type fakeStreams struct {
	dynamodbstreamsiface.DynamoDBStreamsAPI
}

func (fakeStreams) ListStreamsWithContext(_ aws.Context, input *dynamodbstreams.ListStreamsInput, _ ...request.Option) (*dynamodbstreams.ListStreamsOutput, error) {
	return &dynamodbstreams.ListStreamsOutput{
		Streams: []*dynamodbstreams.Stream{{
			StreamArn: aws.String("arn:aws:dynamodb:us-east-2:123456789012:table/" + aws.StringValue(input.TableName) + "/stream/label"),
			TableName: input.TableName,
		}},
	}, nil
}

func (fakeStreams) DescribeStreamWithContext(_ aws.Context, input *dynamodbstreams.DescribeStreamInput, _ ...request.Option) (*dynamodbstreams.DescribeStreamOutput, error) {
	if input.ExclusiveStartShardId == nil {
		return &dynamodbstreams.DescribeStreamOutput{
			StreamDescription: &dynamodbstreams.StreamDescription{
				Shards:               []*dynamodbstreams.Shard{{ShardId: aws.String("shard-1")}},
				LastEvaluatedShardId: aws.String("shard-1"),
			},
		}, nil
	}
	return &dynamodbstreams.DescribeStreamOutput{
		StreamDescription: &dynamodbstreams.StreamDescription{
			Shards: []*dynamodbstreams.Shard{{ShardId: aws.String("shard-2")}},
		},
	}, nil
}

func (fakeStreams) GetShardIteratorWithContext(_ aws.Context, input *dynamodbstreams.GetShardIteratorInput, _ ...request.Option) (*dynamodbstreams.GetShardIteratorOutput, error) {
	return &dynamodbstreams.GetShardIteratorOutput{ShardIterator: aws.String(aws.StringValue(input.ShardId) + "/0")}, nil
}

func (fakeStreams) GetRecordsWithContext(_ aws.Context, input *dynamodbstreams.GetRecordsInput, _ ...request.Option) (*dynamodbstreams.GetRecordsOutput, error) {
	switch iterator := aws.StringValue(input.ShardIterator); iterator {
	case "shard-1/0", "shard-2/0":
		return &dynamodbstreams.GetRecordsOutput{
			Records: []*dynamodbstreams.Record{
				{EventID: aws.String(iterator + "/a"), EventName: aws.String("INSERT")},
				{EventID: aws.String(iterator + "/b"), EventName: aws.String("MODIFY")},
			},
			NextShardIterator: aws.String(iterator[:7] + "/1"),
		}, nil
	default:
		// closed shard exhausted
		return &dynamodbstreams.GetRecordsOutput{}, nil
	}
}

func TestReplay(t *testing.T) {
	api := &fakeFirehose{}
	f, _ := newTestForwarder(api)
	h := NewHandler(backupcli.Service{Name: "stream-forwarder"}, f, fakeStreams{})

	err := h.Replay(context.Background(), "orders")
	assert.Nil(t, err)

	got := api.byPipe()
	assert.Len(t, got["orders"], 4)

	err = h.Replay(context.Background(), "")
	assert.NotNil(t, err)
}
