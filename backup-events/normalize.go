package backupevents

import (
	"bytes"
	"compress/gzip"
	"context"
	"encoding/json"
	"fmt"
	"io"

	"github.com/SundaeSwap-finance/ddb-continuous-backup/resources"
	"github.com/aws/aws-lambda-go/events"
	"github.com/rs/zerolog"
)

type EventName string

const (
	CreateTable EventName = "CreateTable"
	DeleteTable EventName = "DeleteTable"
	Unknown     EventName = "Unknown"
)

const (
	// DynamoDBEventSource is the cloudtrail eventSource of dynamodb api calls.
	DynamoDBEventSource = "dynamodb.amazonaws.com"

	// controlMessage is sent by cloudwatch logs to check a subscription is reachable
	controlMessage = "CONTROL_MESSAGE"

	eventResource = "event"
)

// Event is a table lifecycle notification reduced to what the dispatcher needs.
type Event struct {
	Name      EventName
	TableName string
	HasError  bool
}

// Result holds the events worth dispatching along with counts of every audit
// record seen.
type Result struct {
	Events    []Event
	Processed int // audit records inspected
	Dropped   int // records that were not dynamodb create/delete table calls, or failed
	Malformed int // log entries that could not be parsed
}

type requestParameters struct {
	TableName string `json:"tableName"`
}

// auditRecord holds the cloudtrail fields of interest
type auditRecord struct {
	EventSource       string             `json:"eventSource"`
	EventName         string             `json:"eventName"`
	ErrorCode         json.RawMessage    `json:"errorCode"`
	RequestParameters *requestParameters `json:"requestParameters"`
}

func (r auditRecord) hasError() bool {
	code := bytes.TrimSpace(r.ErrorCode)
	return len(code) > 0 && !bytes.Equal(code, []byte("null")) && !bytes.Equal(code, []byte(`""`))
}

func (r auditRecord) event() Event {
	event := Event{
		Name:     Unknown,
		HasError: r.hasError(),
	}
	switch EventName(r.EventName) {
	case CreateTable, DeleteTable:
		event.Name = EventName(r.EventName)
	}
	if r.RequestParameters != nil {
		event.TableName = r.RequestParameters.TableName
	}
	return event
}

type kinesisRecord struct {
	Kinesis *struct {
		Data []byte `json:"data"`
	} `json:"kinesis"`
}

// envelope is the union of every supported wire shape; which fields are set
// decides how the payload is read.
type envelope struct {
	auditRecord
	Detail  json.RawMessage               `json:"detail"`
	AWSLogs *events.CloudwatchLogsRawData `json:"awslogs"`
	Records []kinesisRecord               `json:"Records"`
}

// Normalize reads a lifecycle notification in any of the supported shapes:
//
//   - an eventbridge event whose detail is a cloudtrail record
//   - a bare cloudtrail record
//   - a cloudwatch logs subscription payload (awslogs.data, base64 + gzip)
//   - a kinesis event whose records carry gzipped cloudwatch logs payloads
//
// An envelope that cannot be read at all is a Malformed error. Individual log
// entries that cannot be read are counted and skipped.
func Normalize(ctx context.Context, data []byte) (Result, error) {
	var env envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Result{}, resources.Errorf(resources.Malformed, eventResource, "", "unable to parse event: %v", err)
	}

	var result Result
	switch {
	case len(env.Detail) > 0 && !bytes.Equal(bytes.TrimSpace(env.Detail), []byte("null")):
		var record auditRecord
		if err := json.Unmarshal(env.Detail, &record); err != nil {
			return Result{}, resources.Errorf(resources.Malformed, eventResource, "", "unable to parse event detail: %v", err)
		}
		result.add(ctx, record)

	case env.EventSource != "" || env.RequestParameters != nil:
		result.add(ctx, env.auditRecord)

	case env.AWSLogs != nil && env.AWSLogs.Data != "":
		logs, err := env.AWSLogs.Parse()
		if err != nil {
			return Result{}, resources.Errorf(resources.Malformed, eventResource, "", "unable to decode awslogs data: %v", err)
		}
		result.addLogs(ctx, logs)

	case len(env.Records) > 0:
		for i, r := range env.Records {
			if r.Kinesis == nil {
				zerolog.Ctx(ctx).Warn().Int("record", i).Msg("skipping record without kinesis data")
				result.Malformed++
				continue
			}
			if err := result.addData(ctx, r.Kinesis.Data); err != nil {
				zerolog.Ctx(ctx).Warn().Err(err).Int("record", i).Msg("skipping unreadable kinesis record")
				result.Malformed++
			}
		}

	default:
		return Result{}, resources.Errorf(resources.Malformed, eventResource, "", "unrecognized event shape")
	}

	return result, nil
}

// NormalizeLogs reads a single cloudwatch logs payload, gzipped or plain, as
// delivered by a cloudwatch logs subscription to a kinesis stream.
func NormalizeLogs(ctx context.Context, data []byte) (Result, error) {
	var result Result
	if err := result.addData(ctx, data); err != nil {
		return Result{}, err
	}
	return result, nil
}

func (r *Result) addData(ctx context.Context, data []byte) error {
	raw, err := gunzip(data)
	if err != nil {
		return resources.Errorf(resources.Malformed, eventResource, "", "unable to decompress logs data: %v", err)
	}

	var logs events.CloudwatchLogsData
	if err := json.Unmarshal(raw, &logs); err != nil {
		return resources.Errorf(resources.Malformed, eventResource, "", "unable to parse logs data: %v", err)
	}
	r.addLogs(ctx, logs)
	return nil
}

func (r *Result) addLogs(ctx context.Context, logs events.CloudwatchLogsData) {
	logger := zerolog.Ctx(ctx).With().Str("logGroup", logs.LogGroup).Str("logStream", logs.LogStream).Logger()
	if logs.MessageType == controlMessage {
		logger.Debug().Msg("ignoring control message")
		return
	}

	for _, entry := range logs.LogEvents {
		var record auditRecord
		if err := json.Unmarshal([]byte(entry.Message), &record); err != nil {
			logger.Warn().Err(err).Str("id", entry.ID).Msg("skipping unparseable log entry")
			r.Malformed++
			continue
		}
		r.add(ctx, record)
	}
}

func (r *Result) add(ctx context.Context, record auditRecord) {
	r.Processed++

	event := record.event()
	logger := zerolog.Ctx(ctx).With().
		Str("eventSource", record.EventSource).
		Str("eventName", record.EventName).
		Str("table", event.TableName).
		Logger()

	switch {
	case record.EventSource != DynamoDBEventSource:
		logger.Debug().Msg("skipping event from another service")
	case event.Name == Unknown:
		logger.Debug().Msg("skipping unrelated dynamodb event")
	case event.HasError:
		logger.Info().RawJSON("errorCode", record.ErrorCode).Msg("skipping failed call")
	case event.TableName == "":
		logger.Warn().Msg("skipping event without table name")
	default:
		r.Events = append(r.Events, event)
		return
	}
	r.Dropped++
}

var gzipMagic = []byte{0x1f, 0x8b}

func gunzip(data []byte) ([]byte, error) {
	if !bytes.HasPrefix(data, gzipMagic) {
		return data, nil
	}
	zr, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("unable to read gzip header: %w", err)
	}
	defer zr.Close()

	raw, err := io.ReadAll(zr)
	if err != nil {
		return nil, fmt.Errorf("unable to decompress: %w", err)
	}
	return raw, nil
}
