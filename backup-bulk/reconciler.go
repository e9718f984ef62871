// Package backupbulk reconciles every table, or a whitelist of tables, in a
// single pass and reports the per-table outcome.
package backupbulk

import (
	"context"
	"fmt"
	"time"

	"github.com/SundaeSwap-finance/ddb-continuous-backup/optin"
	"github.com/SundaeSwap-finance/ddb-continuous-backup/resources"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"
)

type Action string

const (
	Provision   Action = "provision"
	Deprovision Action = "deprovision"
)

type Outcome string

const (
	OK      Outcome = "ok"
	Skipped Outcome = "skipped"
	Failed  Outcome = "failed"
)

// Provisioner converges a single table; backup.Engine satisfies it.
type Provisioner interface {
	Provision(ctx context.Context, tableName string) error
	Deprovision(ctx context.Context, tableName string) error
}

type TableResult struct {
	Table   string  `json:"table"`
	Action  Action  `json:"action"`
	Outcome Outcome `json:"outcome"`
	Error   string  `json:"error,omitempty"`
}

type Report struct {
	Action    Action        `json:"action"`
	Dry       bool          `json:"dry,omitempty"`
	StartedAt time.Time     `json:"startedAt"`
	Elapsed   string        `json:"elapsed"`
	Tables    []TableResult `json:"tables"`
	OK        int           `json:"ok"`
	Skipped   int           `json:"skipped"`
	Failed    int           `json:"failed"`
}

type Reconciler struct {
	Engine Provisioner
	Tables resources.TableStore
	Filter optin.Filter
	Logger zerolog.Logger

	// Concurrency bounds how many tables converge at once; less than 1 means 1.
	Concurrency int
	Dry         bool
}

// ResolveTables returns the whitelist when one is given, otherwise every table
// in the account, paging through the listing until it is exhausted.
func (r *Reconciler) ResolveTables(ctx context.Context, whitelist []string) ([]string, error) {
	if len(whitelist) > 0 {
		return whitelist, nil
	}

	var (
		tables     []string
		startAfter string
	)
	for {
		names, next, err := r.Tables.List(ctx, startAfter)
		if err != nil {
			return nil, fmt.Errorf("unable to list tables: %w", err)
		}
		tables = append(tables, names...)
		if next == "" {
			break
		}
		startAfter = next
	}

	r.Logger.Info().Int("tables", len(tables)).Msg("resolved tables")
	return tables, nil
}

// Run applies the action to every table. A failing table is recorded in the
// report and never stops the pass. Provisioning honours the opt-in filter;
// deprovisioning does not.
func (r *Reconciler) Run(ctx context.Context, action Action, tables []string) Report {
	begin := time.Now()
	filter := r.Filter
	if filter == nil {
		filter = optin.All
	}
	limit := r.Concurrency
	if limit < 1 {
		limit = 1
	}

	results := make([]TableResult, len(tables))
	var g errgroup.Group
	g.SetLimit(limit)
	for i, table := range tables {
		i, table := i, table
		g.Go(func() error {
			results[i] = r.reconcile(ctx, filter, action, table)
			return nil
		})
	}
	_ = g.Wait()

	report := Report{
		Action:    action,
		Dry:       r.Dry,
		StartedAt: begin.UTC(),
		Elapsed:   time.Since(begin).String(),
		Tables:    results,
	}
	for _, result := range results {
		switch result.Outcome {
		case OK:
			report.OK++
		case Skipped:
			report.Skipped++
		case Failed:
			report.Failed++
		}
	}

	r.Logger.Info().
		Str("action", string(action)).
		Int("ok", report.OK).
		Int("skipped", report.Skipped).
		Int("failed", report.Failed).
		Str("elapsed", report.Elapsed).
		Msg("reconciled tables")
	return report
}

func (r *Reconciler) reconcile(ctx context.Context, filter optin.Filter, action Action, table string) TableResult {
	result := TableResult{Table: table, Action: action, Outcome: OK}
	logger := r.Logger.With().Str("table", table).Str("action", string(action)).Logger()

	var err error
	switch action {
	case Provision:
		if !filter.Eligible(table) {
			logger.Info().Msg("table not opted in, skipping")
			result.Outcome = Skipped
			return result
		}
		err = r.Engine.Provision(ctx, table)

	case Deprovision:
		err = r.Engine.Deprovision(ctx, table)

	default:
		err = fmt.Errorf("unknown action, %v", action)
	}

	if err != nil {
		logger.Error().Err(err).Msg("unable to reconcile table")
		result.Outcome = Failed
		result.Error = err.Error()
	}
	return result
}
