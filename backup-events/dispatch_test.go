package backupevents

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	backupcli "github.com/SundaeSwap-finance/ddb-continuous-backup/backup-cli"
	"github.com/SundaeSwap-finance/ddb-continuous-backup/optin"
	"github.com/rs/zerolog"
	"github.com/tj/assert"
)

type fakeEngine struct {
	calls []string
	fail  map[string]error
}

func (f *fakeEngine) Provision(_ context.Context, tableName string) error {
	f.calls = append(f.calls, "provision:"+tableName)
	return f.fail[tableName]
}

func (f *fakeEngine) Deprovision(_ context.Context, tableName string) error {
	f.calls = append(f.calls, "deprovision:"+tableName)
	return f.fail[tableName]
}

func TestDispatcher(t *testing.T) {
	ctx := context.Background()

	t.Run("opt in gates creates only", func(t *testing.T) {
		engine := &fakeEngine{}
		d := &Dispatcher{Engine: engine, Filter: optin.Regex("^prod_"), Logger: zerolog.Nop()}

		failed := d.Dispatch(ctx, []Event{
			{Name: CreateTable, TableName: "prod_orders"},
			{Name: CreateTable, TableName: "dev_orders"},
			{Name: DeleteTable, TableName: "dev_users"},
			{Name: Unknown, TableName: "prod_users"},
		})
		assert.Equal(t, 0, failed)
		assert.Equal(t, []string{"provision:prod_orders", "deprovision:dev_users"}, engine.calls)
	})

	t.Run("failure does not stop the batch", func(t *testing.T) {
		engine := &fakeEngine{fail: map[string]error{"b": errors.New("boom")}}
		d := &Dispatcher{Engine: engine, Logger: zerolog.Nop()}

		failed := d.Dispatch(ctx, []Event{
			{Name: CreateTable, TableName: "a"},
			{Name: CreateTable, TableName: "b"},
			{Name: DeleteTable, TableName: "c"},
		})
		assert.Equal(t, 1, failed)
		assert.Equal(t, []string{"provision:a", "provision:b", "deprovision:c"}, engine.calls)
	})

	t.Run("delete before stale create", func(t *testing.T) {
		engine := &fakeEngine{}
		d := &Dispatcher{Engine: engine, Logger: zerolog.Nop()}

		d.Dispatch(ctx, []Event{
			{Name: DeleteTable, TableName: "orders"},
			{Name: CreateTable, TableName: "orders"},
		})
		assert.Equal(t, []string{"deprovision:orders", "provision:orders"}, engine.calls)
	})
}

func TestHandleEvent(t *testing.T) {
	engine := &fakeEngine{}
	d := &Dispatcher{Engine: engine, Logger: zerolog.Nop()}
	h := NewHandler(backupcli.NewService("ensure-backup"), zerolog.Nop(), d)

	raw := json.RawMessage(`{"detail":{"eventSource":"dynamodb.amazonaws.com","eventName":"CreateTable","requestParameters":{"tableName":"orders"}}}`)
	err := h.HandleEvent(context.Background(), raw)
	assert.Nil(t, err)
	assert.Equal(t, []string{"provision:orders"}, engine.calls)

	err = h.HandleEvent(context.Background(), json.RawMessage(`{"unexpected":true}`))
	assert.Nil(t, err)
	assert.Len(t, engine.calls, 1)
}
