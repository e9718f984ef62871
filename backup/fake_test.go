package backup

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	backupcli "github.com/SundaeSwap-finance/ddb-continuous-backup/backup-cli"
	"github.com/SundaeSwap-finance/ddb-continuous-backup/resources"
	"github.com/rs/zerolog"
)

// world is an in-memory account implementing every resource capability.
type world struct {
	mu sync.Mutex

	tables    map[string]*resources.Table
	pending   map[string]int
	pipes     map[string]resources.DeliveryPipe
	specs     map[string]resources.PipeSpec
	bindings  map[string]resources.Binding
	functions map[string]resources.Function

	// activateAfter is how many describes a table stays UPDATING after its
	// stream is enabled
	activateAfter int
	// creating is how many describes a table reports CREATING for
	creating map[string]int
	// enableConflicts is how many stream enables are rejected as in use
	enableConflicts int
	// pipeDescribeErr, when set, fails every pipe describe
	pipeDescribeErr  error
	conflictOnCreate bool

	pipeDescribes int
	mutations     []string
	nextUUID      int
}

func newWorld(tables ...string) *world {
	w := &world{
		tables:    map[string]*resources.Table{},
		pending:   map[string]int{},
		creating:  map[string]int{},
		pipes:     map[string]resources.DeliveryPipe{},
		specs:     map[string]resources.PipeSpec{},
		bindings:  map[string]resources.Binding{},
		functions: map[string]resources.Function{},
	}
	for _, name := range tables {
		w.tables[name] = &resources.Table{Name: name, Status: resources.TableStatusActive}
	}
	return w
}

func streamArnFor(table string) string {
	return fmt.Sprintf("arn:aws:dynamodb:us-east-2:123456789012:table/%v/stream/2024-01-01T00:00:00.000", table)
}

func (w *world) mutate(format string, args ...interface{}) {
	w.mutations = append(w.mutations, fmt.Sprintf(format, args...))
}

func (w *world) Mutations() []string {
	w.mu.Lock()
	defer w.mu.Unlock()
	return append([]string(nil), w.mutations...)
}

func (w *world) withEnabledStream(table string) *world {
	w.tables[table].StreamEnabled = true
	w.tables[table].StreamArn = streamArnFor(table)
	return w
}

func (w *world) Describe(_ context.Context, name string) (resources.Table, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	t, ok := w.tables[name]
	if !ok {
		return resources.Table{}, resources.Errorf(resources.NotFound, resources.TableResource, name, "no such table")
	}
	if w.creating[name] > 0 {
		w.creating[name]--
		return resources.Table{Name: name, Status: "CREATING"}, nil
	}
	if w.pending[name] > 0 {
		w.pending[name]--
		return resources.Table{Name: name, Status: "UPDATING", StreamEnabled: true}, nil
	}
	if t.StreamEnabled && t.StreamArn == "" {
		t.StreamArn = streamArnFor(name)
		t.Status = resources.TableStatusActive
	}
	return *t, nil
}

func (w *world) EnableStream(_ context.Context, name string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.creating[name] > 0 || w.enableConflicts > 0 {
		if w.enableConflicts > 0 {
			w.enableConflicts--
		}
		return resources.Errorf(resources.Conflict, resources.TableResource, name, "ResourceInUseException: table is being created")
	}
	w.mutate("enable-stream:%v", name)
	w.tables[name].StreamEnabled = true
	w.tables[name].Status = "UPDATING"
	w.pending[name] = w.activateAfter
	return nil
}

func (w *world) List(_ context.Context, startAfter string) ([]string, string, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	var names []string
	for name := range w.tables {
		if name > startAfter {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	if len(names) > 2 {
		return names[:2], names[1], nil
	}
	return names, "", nil
}

type pipes struct{ *world }

func (p pipes) Describe(_ context.Context, name string) (resources.DeliveryPipe, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pipeDescribes++
	if p.pipeDescribeErr != nil {
		return resources.DeliveryPipe{}, p.pipeDescribeErr
	}
	pipe, ok := p.pipes[name]
	if !ok {
		return resources.DeliveryPipe{}, resources.Errorf(resources.NotFound, resources.PipeResource, name, "no such pipe")
	}
	return pipe, nil
}

func (p pipes) Create(_ context.Context, spec resources.PipeSpec) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mutate("create-pipe:%v", spec.Name)
	pipe := resources.DeliveryPipe{Name: spec.Name, Arn: "arn:aws:firehose:us-east-2:123456789012:deliverystream/" + spec.Name, Status: "CREATING"}
	p.pipes[spec.Name] = pipe
	p.specs[spec.Name] = spec
	return pipe.Arn, nil
}

func (p pipes) Delete(_ context.Context, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.mutate("delete-pipe:%v", name)
	if _, ok := p.pipes[name]; !ok {
		return resources.Errorf(resources.NotFound, resources.PipeResource, name, "no such pipe")
	}
	delete(p.pipes, name)
	return nil
}

func (w *world) ListBindings(_ context.Context, functionName, sourceArn string) ([]resources.Binding, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if _, ok := w.functions[functionName]; !ok {
		return nil, resources.Errorf(resources.NotFound, resources.FunctionResource, functionName, "no such function")
	}
	var bindings []resources.Binding
	for _, b := range w.bindings {
		if sourceArn == "" || b.SourceArn == sourceArn {
			bindings = append(bindings, b)
		}
	}
	sort.Slice(bindings, func(i, j int) bool { return bindings[i].UUID < bindings[j].UUID })
	return bindings, nil
}

func (w *world) CreateBinding(_ context.Context, sourceArn, functionArn string, batchSize int64) (resources.Binding, error) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.mutate("create-binding:%v", sourceArn)
	if w.conflictOnCreate {
		return resources.Binding{}, resources.Errorf(resources.Conflict, resources.BindingResource, sourceArn, "exists")
	}
	w.nextUUID++
	b := resources.Binding{UUID: fmt.Sprintf("uuid-%03d", w.nextUUID), SourceArn: sourceArn, FunctionArn: functionArn}
	w.bindings[b.UUID] = b
	return b, nil
}

func (w *world) DeleteBinding(_ context.Context, uuid string) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.mutate("delete-binding:%v", uuid)
	delete(w.bindings, uuid)
	return nil
}

type functions struct{ *world }

func (f functions) Get(_ context.Context, name string) (resources.Function, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn, ok := f.functions[name]
	if !ok {
		return resources.Function{}, resources.Errorf(resources.NotFound, resources.FunctionResource, name, "no such function")
	}
	return fn, nil
}

func (f functions) Deploy(_ context.Context, spec resources.FunctionSpec) (resources.Function, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.mutate("deploy-function:%v", spec.Name)
	if _, ok := f.functions[spec.Name]; ok {
		return resources.Function{}, resources.Errorf(resources.Conflict, resources.FunctionResource, spec.Name, "exists")
	}
	fn := resources.Function{Name: spec.Name, Arn: "arn:aws:lambda:us-east-2:123456789012:function:" + spec.Name}
	f.functions[spec.Name] = fn
	return fn, nil
}

func (f functions) Redeploy(_ context.Context, spec resources.FunctionSpec) (resources.Function, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	fn, ok := f.functions[spec.Name]
	if !ok {
		return resources.Function{}, resources.Errorf(resources.NotFound, resources.FunctionResource, spec.Name, "no such function")
	}
	f.mutate("redeploy-function:%v", spec.Name)
	return fn, nil
}

func (w *world) clients() Clients {
	return Clients{
		Tables:    w,
		Pipes:     pipes{w},
		Routing:   w,
		Functions: functions{w},
	}
}

func (w *world) withFunction(name string) *world {
	w.functions[name] = resources.Function{Name: name, Arn: "arn:aws:lambda:us-east-2:123456789012:function:" + name}
	return w
}

// clock is a fake time source advanced by the engine's sleeps.
type clock struct {
	mu     sync.Mutex
	now    time.Time
	sleeps []time.Duration
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sleeps = append(c.sleeps, d)
	c.now = c.now.Add(d)
	return nil
}

type recorder struct {
	mu     sync.Mutex
	events []string
}

func (r *recorder) Event(_ context.Context, name backupcli.MetricName, dimensions ...map[backupcli.DimensionName]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, fmt.Sprintf("%v:%v", name, dimensions[0][backupcli.TableNameDimension]))
}

func testConfig() Config {
	return Config{
		DeliveryRoleArn:         "arn:aws:iam::123456789012:role/firehose",
		DeliveryBucket:          "backups",
		DeliveryPrefix:          "ddb",
		DeliverySizeMB:          5,
		DeliveryIntervalSeconds: 300,
		StreamsMaxRecordsBatch:  100,
		RoutingFunction: resources.FunctionSpec{
			Name:    "LambdaStreamToFirehose",
			Runtime: "nodejs18.x",
			Handler: "index.handler",
			Bucket:  "awslabs-code-us-east-2",
			Key:     "LambdaStreamToFirehose/LambdaStreamToFirehose-1.5.1.zip",
		},
	}
}

func newTestEngine(w *world, config Config, opts ...Option) (*Engine, *clock) {
	c := &clock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	e := New(w.clients(), config, zerolog.Nop(), opts...)
	e.sleep = c.Sleep
	e.now = c.Now
	return e, c
}
