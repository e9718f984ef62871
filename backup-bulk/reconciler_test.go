package backupbulk

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"

	"github.com/SundaeSwap-finance/ddb-continuous-backup/optin"
	"github.com/SundaeSwap-finance/ddb-continuous-backup/resources"
	"github.com/rs/zerolog"
	"github.com/tj/assert"
)

type fakeEngine struct {
	mu    sync.Mutex
	calls []string
	fail  map[string]error
}

func (f *fakeEngine) Provision(_ context.Context, tableName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "provision:"+tableName)
	return f.fail[tableName]
}

func (f *fakeEngine) Deprovision(_ context.Context, tableName string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "deprovision:"+tableName)
	return f.fail[tableName]
}

func (f *fakeEngine) RedeployRoutingFunction(_ context.Context) (resources.Function, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls = append(f.calls, "redeploy")
	return resources.Function{Name: "ddb-stream-forwarder"}, nil
}

// fakeTables pages through names two at a time
type fakeTables struct {
	resources.TableStore
	names []string
	pages int
	err   error
}

func (f *fakeTables) List(_ context.Context, startAfter string) ([]string, string, error) {
	if f.err != nil {
		return nil, "", f.err
	}
	f.pages++
	start := sort.SearchStrings(f.names, startAfter)
	if start < len(f.names) && f.names[start] == startAfter {
		start++
	}
	end := start + 2
	if end >= len(f.names) {
		return f.names[start:], "", nil
	}
	return f.names[start:end], f.names[end-1], nil
}

func TestResolveTables(t *testing.T) {
	ctx := context.Background()

	t.Run("whitelist", func(t *testing.T) {
		tables := &fakeTables{}
		r := &Reconciler{Tables: tables, Logger: zerolog.Nop()}

		got, err := r.ResolveTables(ctx, []string{"orders", "users"})
		assert.Nil(t, err)
		assert.Equal(t, []string{"orders", "users"}, got)
		assert.Equal(t, 0, tables.pages)
	})

	t.Run("paginated", func(t *testing.T) {
		tables := &fakeTables{names: []string{"a", "b", "c", "d", "e"}}
		r := &Reconciler{Tables: tables, Logger: zerolog.Nop()}

		got, err := r.ResolveTables(ctx, nil)
		assert.Nil(t, err)
		assert.Equal(t, []string{"a", "b", "c", "d", "e"}, got)
		assert.Equal(t, 3, tables.pages)
	})

	t.Run("list error", func(t *testing.T) {
		r := &Reconciler{Tables: &fakeTables{err: errors.New("boom")}, Logger: zerolog.Nop()}

		_, err := r.ResolveTables(ctx, nil)
		assert.NotNil(t, err)
	})
}

func TestRun(t *testing.T) {
	ctx := context.Background()

	t.Run("failure is isolated", func(t *testing.T) {
		engine := &fakeEngine{fail: map[string]error{"table2": errors.New("boom")}}
		r := &Reconciler{Engine: engine, Logger: zerolog.Nop()}

		report := r.Run(ctx, Provision, []string{"table1", "table2", "table3"})
		assert.Equal(t, []string{"provision:table1", "provision:table2", "provision:table3"}, engine.calls)
		assert.Equal(t, []TableResult{
			{Table: "table1", Action: Provision, Outcome: OK},
			{Table: "table2", Action: Provision, Outcome: Failed, Error: "boom"},
			{Table: "table3", Action: Provision, Outcome: OK},
		}, report.Tables)
		assert.Equal(t, 2, report.OK)
		assert.Equal(t, 1, report.Failed)
	})

	t.Run("opt in applies to provision only", func(t *testing.T) {
		engine := &fakeEngine{}
		r := &Reconciler{Engine: engine, Filter: optin.Regex("^prod_"), Logger: zerolog.Nop()}

		report := r.Run(ctx, Provision, []string{"prod_orders", "dev_orders"})
		assert.Equal(t, []string{"provision:prod_orders"}, engine.calls)
		assert.Equal(t, Skipped, report.Tables[1].Outcome)
		assert.Equal(t, 1, report.Skipped)

		report = r.Run(ctx, Deprovision, []string{"prod_orders", "dev_orders"})
		assert.Equal(t, 2, report.OK)
		assert.Contains(t, engine.calls, "deprovision:dev_orders")
	})

	t.Run("concurrent", func(t *testing.T) {
		engine := &fakeEngine{fail: map[string]error{"c": errors.New("boom")}}
		r := &Reconciler{Engine: engine, Logger: zerolog.Nop(), Concurrency: 4}

		tables := []string{"a", "b", "c", "d", "e", "f", "g", "h"}
		report := r.Run(ctx, Provision, tables)
		assert.Len(t, engine.calls, len(tables))
		assert.Equal(t, 7, report.OK)
		assert.Equal(t, 1, report.Failed)
		for i, table := range tables {
			assert.Equal(t, table, report.Tables[i].Table)
		}
		assert.Equal(t, Failed, report.Tables[2].Outcome)
	})

	t.Run("empty", func(t *testing.T) {
		r := &Reconciler{Engine: &fakeEngine{}, Logger: zerolog.Nop()}

		report := r.Run(ctx, Provision, nil)
		assert.Len(t, report.Tables, 0)
		assert.Equal(t, 0, report.Failed)
	})
}
