// Package resources defines the capability interfaces the backup engine
// drives, and their AWS SDK implementations.
//
// Every adapter classifies aws errors at the point of the call (see Kind), so
// callers branch on IsNotFound / IsConflict / IsThrottled rather than on
// service specific error codes.
package resources

import "context"

const (
	TableResource    = "table"
	PipeResource     = "delivery-pipe"
	BindingResource  = "binding"
	FunctionResource = "function"
)

// TableStatusActive is the status reported once a table update has settled.
const TableStatusActive = "ACTIVE"

type Table struct {
	Name          string
	Status        string
	StreamEnabled bool
	StreamArn     string
}

type TableStore interface {
	Describe(ctx context.Context, tableName string) (Table, error)
	EnableStream(ctx context.Context, tableName string) error
	// List returns one page of table names, and the name to continue after,
	// which is empty once the last page has been returned.
	List(ctx context.Context, startAfter string) (names []string, next string, err error)
}

type DeliveryPipe struct {
	Name   string
	Arn    string
	Status string
}

type PipeSpec struct {
	Name            string
	RoleArn         string
	BucketArn       string
	Prefix          string
	SizeMB          int64
	IntervalSeconds int64
}

type DeliveryPipes interface {
	Describe(ctx context.Context, name string) (DeliveryPipe, error)
	Create(ctx context.Context, spec PipeSpec) (string, error)
	Delete(ctx context.Context, name string) error
}

type Binding struct {
	UUID        string
	SourceArn   string
	FunctionArn string
	State       string
}

type RoutingRegistry interface {
	// ListBindings lists bindings targeting the function, optionally limited
	// to a single source arn.
	ListBindings(ctx context.Context, functionName, sourceArn string) ([]Binding, error)
	CreateBinding(ctx context.Context, sourceArn, functionArn string, batchSize int64) (Binding, error)
	DeleteBinding(ctx context.Context, uuid string) error
}

type Function struct {
	Name string
	Arn  string
}

type FunctionSpec struct {
	Name        string
	Runtime     string
	Handler     string
	RoleArn     string
	Bucket      string
	Key         string
	Description string
	TimeoutSecs int64
	MemoryMB    int64
}

type FunctionRegistry interface {
	Get(ctx context.Context, name string) (Function, error)
	Deploy(ctx context.Context, spec FunctionSpec) (Function, error)
	Redeploy(ctx context.Context, spec FunctionSpec) (Function, error)
}
