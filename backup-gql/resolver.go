package backupgql

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/SundaeSwap-finance/ddb-continuous-backup/backup"
	"github.com/SundaeSwap-finance/ddb-continuous-backup/optin"
	"github.com/SundaeSwap-finance/ddb-continuous-backup/resources"
	"golang.org/x/sync/errgroup"
)

const (
	defaultPageSize = 25
	maxPageSize     = 100
)

// StatusReader describes a table's backup resources; backup.Engine satisfies it.
type StatusReader interface {
	Status(ctx context.Context, tableName string) (backup.Status, error)
}

// LatestReport loads the most recent bulk report, returning its key.
type LatestReport func(ctx context.Context) (string, json.RawMessage, error)

type StatusResolver struct {
	config *BaseConfig
	engine StatusReader
	tables resources.TableStore
	filter optin.Filter
	latest LatestReport
}

func NewStatusResolver(config BaseConfig, engine StatusReader, tables resources.TableStore, filter optin.Filter, latest LatestReport) *StatusResolver {
	if filter == nil {
		filter = optin.All
	}
	return &StatusResolver{
		config: &config,
		engine: engine,
		tables: tables,
		filter: filter,
		latest: latest,
	}
}

func (r *StatusResolver) Schema() string {
	return MergeSchemas(StatusSchema, Common)
}

func (r *StatusResolver) Config() *BaseConfig {
	return r.config
}

func (r *StatusResolver) Table(ctx context.Context, args struct{ Name string }) (*TableStatus, error) {
	status, err := r.engine.Status(ctx, args.Name)
	if err != nil {
		return nil, err
	}
	return &TableStatus{status: status, eligible: r.filter.Eligible(args.Name)}, nil
}

func (r *StatusResolver) Tables(ctx context.Context, args struct {
	First *int32
	After *string
}) (*TablePage, error) {
	first := defaultPageSize
	if args.First != nil {
		first = int(*args.First)
	}
	if first < 1 || first > maxPageSize {
		return nil, fmt.Errorf("first must be between 1 and %v", maxPageSize)
	}
	var after string
	if args.After != nil {
		after = *args.After
	}

	var names []string
	for len(names) < first {
		page, next, err := r.tables.List(ctx, after)
		if err != nil {
			return nil, err
		}
		names = append(names, page...)
		after = next
		if next == "" {
			break
		}
	}
	if len(names) > first {
		names = names[:first]
		after = names[first-1]
	}

	statuses := make([]*TableStatus, len(names))
	group, ctx := errgroup.WithContext(ctx)
	group.SetLimit(8)
	for i, name := range names {
		i, name := i, name
		group.Go(func() error {
			status, err := r.engine.Status(ctx, name)
			if err != nil {
				return err
			}
			statuses[i] = &TableStatus{status: status, eligible: r.filter.Eligible(name)}
			return nil
		})
	}
	if err := group.Wait(); err != nil {
		return nil, err
	}

	page := &TablePage{tables: statuses}
	if after != "" {
		page.next = &after
	}
	return page, nil
}

func (r *StatusResolver) LastReport(ctx context.Context) (*Report, error) {
	if r.latest == nil {
		return nil, nil
	}
	key, raw, err := r.latest(ctx)
	if err != nil {
		return nil, err
	}
	body, err := FromRaw(raw)
	if err != nil {
		return nil, fmt.Errorf("unable to parse report %v: %w", key, err)
	}
	return &Report{key: key, body: body}, nil
}

type TableStatus struct {
	status   backup.Status
	eligible bool
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func (t *TableStatus) Name() string { return t.status.Table }
func (t *TableStatus) Eligible() bool { return t.eligible }
func (t *TableStatus) StreamEnabled() bool { return t.status.StreamEnabled }
func (t *TableStatus) StreamArn() *string { return optional(t.status.StreamArn) }
func (t *TableStatus) PipeName() string { return t.status.PipeName }
func (t *TableStatus) PipeArn() *string { return optional(t.status.PipeArn) }
func (t *TableStatus) BindingUuid() *string { return optional(t.status.BindingUUID) }
func (t *TableStatus) Bound() bool { return t.status.Bound() }
func (t *TableStatus) BackedUp() bool { return t.status.BackedUp() }

type TablePage struct {
	tables []*TableStatus
	next   *string
}

func (p *TablePage) Tables() []*TableStatus { return p.tables }
func (p *TablePage) Next() *string { return p.next }

type Report struct {
	key  string
	body JSON
}

func (r *Report) Key() string { return r.key }
func (r *Report) Body() JSON { return r.body }
