package backupbulk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	backupcli "github.com/SundaeSwap-finance/ddb-continuous-backup/backup-cli"
	"github.com/SundaeSwap-finance/ddb-continuous-backup/resources"
	"github.com/aws/aws-lambda-go/lambda"
	"github.com/aws/aws-sdk-go/service/s3/s3iface"
	"github.com/rs/zerolog"
)

// Redeployer pushes the routing function artifact; backup.Engine satisfies it.
type Redeployer interface {
	RedeployRoutingFunction(ctx context.Context) (resources.Function, error)
}

// Handler runs one bulk pass, either once from the console or on a schedule
// as a lambda.
type Handler struct {
	service    backupcli.Service
	logger     zerolog.Logger
	reconciler *Reconciler
	redeployer Redeployer
	publisher  *Publisher
	metrics    backupcli.Metrics
	s3         s3iface.S3API

	// Whitelist restricts the pass to these tables; empty means every table.
	Whitelist []string
	stdout    io.Writer
}

func NewHandler(
	service backupcli.Service,
	logger zerolog.Logger,
	reconciler *Reconciler,
	redeployer Redeployer,
	publisher *Publisher,
	metrics backupcli.Metrics,
	api s3iface.S3API,
) *Handler {
	return &Handler{
		service:    service,
		logger:     logger,
		reconciler: reconciler,
		redeployer: redeployer,
		publisher:  publisher,
		metrics:    metrics,
		s3:         api,
		stdout:     os.Stdout,
	}
}

func (h *Handler) action() Action {
	if BulkOpts.Deprovision {
		return Deprovision
	}
	return Provision
}

// RunOnce performs a full pass. It returns an error when any table failed, so
// a scheduled invocation is reported as failed, but only after every table
// has been attempted.
func (h *Handler) RunOnce(ctx context.Context, _ json.RawMessage) error {
	ctx = h.logger.WithContext(ctx)
	h.logger.Info().Str("action", string(h.action())).Msg("running reconcile")

	if BulkOpts.Redeploy {
		fn, err := h.redeployer.RedeployRoutingFunction(ctx)
		if err != nil {
			return err
		}
		h.logger.Info().Str("function", fn.Name).Msg("redeployed routing function")
	}

	tables, err := h.reconciler.ResolveTables(ctx, h.Whitelist)
	if err != nil {
		return err
	}

	report := h.reconciler.Run(ctx, h.action(), tables)
	h.metrics.Gauge(ctx, backupcli.TableFailedMetric, float64(report.Failed))

	if _, err := h.publisher.Publish(ctx, report); err != nil {
		h.logger.Warn().Err(err).Msg("failed to publish report")
	}

	if report.Failed > 0 {
		return fmt.Errorf("unable to reconcile %v of %v tables", report.Failed, len(report.Tables))
	}
	return nil
}

func (h *Handler) printLatest(ctx context.Context) error {
	data, key, err := GetRawAsOf(ctx, h.s3, BulkOpts.ReportBucket, h.service.Name, ReportName, h.publisher.now().UTC())
	if err != nil {
		return err
	}
	h.logger.Info().Str("key", key).Msg("found latest report")

	if BulkOpts.OutFile != "" {
		return os.WriteFile(BulkOpts.OutFile, data, 0644)
	}
	var pretty bytes.Buffer
	if err := json.Indent(&pretty, data, "", "  "); err != nil {
		return err
	}
	_, err = h.stdout.Write(pretty.Bytes())
	return err
}

func (h *Handler) Start() error {
	switch {
	case BulkOpts.GetLatest:
		return h.printLatest(context.Background())

	case backupcli.CommonOpts.Console:
		return h.RunOnce(context.Background(), nil)

	default:
		lambda.Start(h.RunOnce)
	}
	return nil
}
