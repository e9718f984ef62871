package backupbulk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path"
	"sort"
	"time"

	backupcli "github.com/SundaeSwap-finance/ddb-continuous-backup/backup-cli"
	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/s3"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/rs/zerolog"
)

const (
	// ServiceName is the service bulk reports are published under.
	ServiceName = "backup-tables"
	ReportName  = "reconcile"
)

// ReportKey is the s3 key a report generated at timestamp is stored under.
func ReportKey(serviceName, reportName string, timestamp time.Time) string {
	return fmt.Sprintf("%v/%v/%v/%v/%v", serviceName, reportName, timestamp.Format("2006-01-02"), timestamp.Format("15"), timestamp.Format("2006-01-02-15:04:05.json"))
}

// Publisher stores reports in s3, or locally in dry mode.
type Publisher struct {
	service backupcli.Service
	logger  zerolog.Logger
	s3      s3iface.S3API
	bucket  string
	outFile string
	dry     bool
	stdout  io.Writer
	now     func() time.Time
}

func NewPublisher(service backupcli.Service, logger zerolog.Logger, api s3iface.S3API, bucket, outFile string, dry bool) *Publisher {
	return &Publisher{
		service: service,
		logger:  logger,
		s3:      api,
		bucket:  bucket,
		outFile: outFile,
		dry:     dry,
		stdout:  os.Stdout,
		now:     time.Now,
	}
}

// Publish writes the report and returns where it went: the s3 key, the local
// filename, or "" when printed to stdout or when no bucket is configured.
func (p *Publisher) Publish(ctx context.Context, report interface{}) (string, error) {
	reportBytes, err := json.Marshal(report)
	if err != nil {
		return "", fmt.Errorf("failed to marshal report: %w", err)
	}

	now := p.now().UTC()
	switch {
	case p.dry && p.outFile == "":
		enc := json.NewEncoder(p.stdout)
		enc.SetIndent("", "  ")
		if err := enc.Encode(report); err != nil {
			return "", fmt.Errorf("failed to print report: %w", err)
		}
		return "", nil

	case p.dry:
		if err := os.MkdirAll(path.Dir(p.outFile), 0755); err != nil {
			return "", err
		}
		p.logger.Info().Str("filename", p.outFile).Int("size", len(reportBytes)).Msg("dry run, saving report locally")
		if err := os.WriteFile(p.outFile, reportBytes, 0644); err != nil {
			return "", fmt.Errorf("failed to save report, %v: %w", p.outFile, err)
		}
		return p.outFile, nil

	case p.bucket == "":
		p.logger.Debug().Msg("no report bucket configured, not saving report")
		return "", nil
	}

	key := ReportKey(p.service.Name, ReportName, now)
	p.logger.Info().Str("bucket", p.bucket).Str("key", key).Int("size", len(reportBytes)).Msg("saving report to s3")
	_, err = p.s3.PutObjectWithContext(ctx, &s3.PutObjectInput{
		Bucket:      aws.String(p.bucket),
		Body:        bytes.NewReader(reportBytes),
		Key:         aws.String(key),
		ContentType: aws.String("application/json"),
	})
	if err != nil {
		return "", fmt.Errorf("failed to save report to s3://%v/%v: %w", p.bucket, key, err)
	}
	return key, nil
}

// GetRawAsOf returns the most recent report stored on or before the day of
// timestamp, looking back at most 5 days.
func GetRawAsOf(ctx context.Context, s3Api s3iface.S3API, bucket, serviceName, reportName string, timestamp time.Time) ([]byte, string, error) {
	for count := 0; ; count++ {
		prefix := fmt.Sprintf("%v/%v/%v", serviceName, reportName, timestamp.Format("2006-01-02"))
		listOutput, err := s3Api.ListObjectsV2WithContext(ctx, &s3.ListObjectsV2Input{
			Bucket:  aws.String(bucket),
			MaxKeys: aws.Int64(1000),
			Prefix:  aws.String(prefix),
		})
		if err != nil {
			return nil, "", fmt.Errorf("failed to read most recent report: failed to list objects: %w", err)
		}

		if len(listOutput.Contents) == 0 {
			if count >= 5 {
				return nil, "", fmt.Errorf("failed to find latest report after 5 days: %v", timestamp)
			}
			yesterday := timestamp.AddDate(0, 0, -1)
			timestamp = time.Date(yesterday.Year(), yesterday.Month(), yesterday.Day(), 23, 59, 59, 0, time.UTC)
			continue
		}

		sort.Slice(listOutput.Contents, func(i, j int) bool {
			return aws.StringValue(listOutput.Contents[i].Key) > aws.StringValue(listOutput.Contents[j].Key)
		})
		key := listOutput.Contents[0].Key

		output, err := s3Api.GetObjectWithContext(ctx, &s3.GetObjectInput{
			Bucket: aws.String(bucket),
			Key:    key,
		})
		if err != nil {
			return nil, "", fmt.Errorf("failed to read most recent file in %v: failed to get object, %v: %w", prefix, aws.StringValue(key), err)
		}
		defer output.Body.Close()

		data, err := io.ReadAll(output.Body)
		if err != nil {
			return nil, "", fmt.Errorf("failed to read most recent file in %v: failed to read s3 response, %v: %w", prefix, aws.StringValue(key), err)
		}
		return data, aws.StringValue(key), nil
	}
}

// GetLatest decodes the most recent report into obj and returns its key.
func GetLatest(ctx context.Context, s3Api s3iface.S3API, bucket, serviceName string, obj interface{}) (string, error) {
	data, key, err := GetRawAsOf(ctx, s3Api, bucket, serviceName, ReportName, time.Now().UTC())
	if err != nil {
		return "", err
	}
	if err := json.Unmarshal(data, obj); err != nil {
		return "", fmt.Errorf("failed to unmarshal latest report: %w", err)
	}
	return key, nil
}
