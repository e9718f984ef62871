package backup

import (
	"context"
	"fmt"

	"github.com/SundaeSwap-finance/ddb-continuous-backup/resources"
)

// RoutingFunction resolves the shared routing function, deploying it when it
// is absent. Concurrent callers share a single resolution and the result is
// kept for the life of the engine.
func (e *Engine) RoutingFunction(ctx context.Context) (resources.Function, error) {
	e.mu.Lock()
	fn := e.function
	e.mu.Unlock()
	if fn.Arn != "" {
		return fn, nil
	}

	name := e.config.RoutingFunction.Name
	v, err, _ := e.resolve.Do(name, func() (interface{}, error) {
		fn, err := e.resolveFunction(ctx)
		if err != nil {
			return resources.Function{}, err
		}
		if fn.Arn != "" {
			e.mu.Lock()
			e.function = fn
			e.mu.Unlock()
		}
		return fn, nil
	})
	if err != nil {
		return resources.Function{}, err
	}
	return v.(resources.Function), nil
}

func (e *Engine) resolveFunction(ctx context.Context) (resources.Function, error) {
	spec := e.config.RoutingFunction
	logger := e.logger.With().Str("resource", resources.FunctionResource).Str("function", spec.Name).Logger()

	fn, err := e.clients.Functions.Get(ctx, spec.Name)
	if err == nil {
		return fn, nil
	}
	if !resources.IsNotFound(err) {
		return resources.Function{}, fmt.Errorf("unable to get routing function %v: %w", spec.Name, err)
	}

	if e.config.Dry {
		logger.Info().Str("bucket", spec.Bucket).Str("key", spec.Key).Msg("dry run, would deploy routing function")
		return resources.Function{Name: spec.Name}, nil
	}

	logger.Info().Str("bucket", spec.Bucket).Str("key", spec.Key).Msg("deploying routing function")
	fn, err = e.clients.Functions.Deploy(ctx, spec)
	if resources.IsConflict(err) {
		// deployed by someone else between the get and the create
		fn, err = e.clients.Functions.Get(ctx, spec.Name)
	}
	if err != nil {
		return resources.Function{}, fmt.Errorf("unable to deploy routing function %v: %w", spec.Name, err)
	}

	logger.Info().Str("functionArn", fn.Arn).Msg("deployed routing function")
	return fn, nil
}

// RedeployRoutingFunction pushes the configured artifact to the routing
// function, deploying it if it does not exist yet.
func (e *Engine) RedeployRoutingFunction(ctx context.Context) (resources.Function, error) {
	spec := e.config.RoutingFunction
	logger := e.logger.With().Str("resource", resources.FunctionResource).Str("function", spec.Name).Logger()

	if e.config.Dry {
		logger.Info().Str("bucket", spec.Bucket).Str("key", spec.Key).Msg("dry run, would redeploy routing function")
		return resources.Function{Name: spec.Name}, nil
	}

	fn, err := e.clients.Functions.Redeploy(ctx, spec)
	if resources.IsNotFound(err) {
		fn, err = e.clients.Functions.Deploy(ctx, spec)
	}
	if err != nil {
		return resources.Function{}, fmt.Errorf("unable to redeploy routing function %v: %w", spec.Name, err)
	}

	e.mu.Lock()
	e.function = fn
	e.mu.Unlock()

	logger.Info().Str("functionArn", fn.Arn).Msg("redeployed routing function")
	return fn, nil
}

// EnsureRoutingBinding binds the stream to the routing function unless a
// binding already exists.
func (e *Engine) EnsureRoutingBinding(ctx context.Context, tableName, streamArn string) error {
	logger := e.logger.With().Str("table", tableName).Str("resource", resources.BindingResource).Str("streamArn", streamArn).Logger()

	if streamArn == "" {
		// only reachable in dry mode, where the stream was not enabled
		logger.Info().Msg("dry run, would bind stream to routing function")
		return nil
	}

	fn, err := e.RoutingFunction(ctx)
	if err != nil {
		return err
	}

	existing, err := e.clients.Routing.ListBindings(ctx, fn.Name, streamArn)
	if err != nil && !(e.config.Dry && resources.IsNotFound(err)) {
		return fmt.Errorf("unable to list bindings for %v: %w", streamArn, err)
	}
	if len(existing) > 0 {
		logger.Debug().Str("uuid", existing[0].UUID).Msg("stream already bound to routing function")
		return nil
	}

	if e.config.Dry {
		logger.Info().Str("function", fn.Name).Msg("dry run, would bind stream to routing function")
		return nil
	}

	binding, err := e.clients.Routing.CreateBinding(ctx, streamArn, fn.Arn, e.config.StreamsMaxRecordsBatch)
	if resources.IsConflict(err) {
		logger.Debug().Msg("binding already exists")
		return nil
	}
	if err != nil {
		return fmt.Errorf("unable to bind stream %v to %v: %w", streamArn, fn.Name, err)
	}

	logger.Info().Str("uuid", binding.UUID).Str("functionArn", fn.Arn).Msg("bound stream to routing function")
	return nil
}

// removeBindings deletes every binding on the routing function whose source
// is a stream of the table, returning how many were removed.
func (e *Engine) removeBindings(ctx context.Context, tableName string) (int, error) {
	name := e.config.RoutingFunction.Name
	logger := e.logger.With().Str("table", tableName).Str("resource", resources.BindingResource).Str("function", name).Logger()

	bindings, err := e.clients.Routing.ListBindings(ctx, name, "")
	if resources.IsNotFound(err) {
		logger.Info().Msg("routing function not deployed, no bindings to remove")
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("unable to list bindings for %v: %w", name, err)
	}

	matched, removed := 0, 0
	for _, binding := range bindings {
		source, ok := resources.TableFromStreamArn(binding.SourceArn)
		if !ok || source != tableName {
			continue
		}
		matched++

		if e.config.Dry {
			logger.Info().Str("uuid", binding.UUID).Str("streamArn", binding.SourceArn).Msg("dry run, would remove binding")
			continue
		}

		if err := e.clients.Routing.DeleteBinding(ctx, binding.UUID); err != nil && !resources.IsNotFound(err) {
			return removed, fmt.Errorf("unable to remove binding %v: %w", binding.UUID, err)
		}
		removed++
		logger.Info().Str("uuid", binding.UUID).Str("streamArn", binding.SourceArn).Msg("removed binding")
	}

	if matched == 0 {
		logger.Info().Msg("no bindings found routing this table - ok")
	}
	return removed, nil
}
