package resources

import (
	"context"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/service/lambda"
	"github.com/aws/aws-sdk-go/service/lambda/lambdaiface"
)

// LambdaRegistry serves both as the RoutingRegistry (event source mappings)
// and the FunctionRegistry.
type LambdaRegistry struct {
	api lambdaiface.LambdaAPI
}

func NewLambdaRegistry(api lambdaiface.LambdaAPI) *LambdaRegistry {
	return &LambdaRegistry{api: api}
}

func (l *LambdaRegistry) ListBindings(ctx context.Context, functionName, sourceArn string) ([]Binding, error) {
	input := &lambda.ListEventSourceMappingsInput{
		FunctionName: aws.String(functionName),
	}
	if sourceArn != "" {
		input.EventSourceArn = aws.String(sourceArn)
	}

	var bindings []Binding
	for {
		out, err := l.api.ListEventSourceMappingsWithContext(ctx, input)
		if err != nil {
			return nil, Classify(err, FunctionResource, functionName)
		}
		for _, m := range out.EventSourceMappings {
			bindings = append(bindings, bindingFrom(m))
		}
		if aws.StringValue(out.NextMarker) == "" {
			break
		}
		input.Marker = out.NextMarker
	}
	return bindings, nil
}

func (l *LambdaRegistry) CreateBinding(ctx context.Context, sourceArn, functionArn string, batchSize int64) (Binding, error) {
	out, err := l.api.CreateEventSourceMappingWithContext(ctx, &lambda.CreateEventSourceMappingInput{
		EventSourceArn:   aws.String(sourceArn),
		FunctionName:     aws.String(functionArn),
		Enabled:          aws.Bool(true),
		BatchSize:        aws.Int64(batchSize),
		StartingPosition: aws.String(lambda.EventSourcePositionTrimHorizon),
	})
	if err != nil {
		return Binding{}, Classify(err, BindingResource, sourceArn)
	}
	return bindingFrom(out), nil
}

func (l *LambdaRegistry) DeleteBinding(ctx context.Context, uuid string) error {
	_, err := l.api.DeleteEventSourceMappingWithContext(ctx, &lambda.DeleteEventSourceMappingInput{
		UUID: aws.String(uuid),
	})
	return Classify(err, BindingResource, uuid)
}

func (l *LambdaRegistry) Get(ctx context.Context, name string) (Function, error) {
	out, err := l.api.GetFunctionWithContext(ctx, &lambda.GetFunctionInput{
		FunctionName: aws.String(name),
	})
	if err != nil {
		return Function{}, Classify(err, FunctionResource, name)
	}
	if out.Configuration == nil || aws.StringValue(out.Configuration.FunctionArn) == "" {
		return Function{}, Errorf(NotFound, FunctionResource, name, "get returned no function arn")
	}
	return Function{Name: name, Arn: aws.StringValue(out.Configuration.FunctionArn)}, nil
}

func (l *LambdaRegistry) Deploy(ctx context.Context, spec FunctionSpec) (Function, error) {
	out, err := l.api.CreateFunctionWithContext(ctx, &lambda.CreateFunctionInput{
		FunctionName: aws.String(spec.Name),
		Runtime:      aws.String(spec.Runtime),
		Role:         aws.String(spec.RoleArn),
		Handler:      aws.String(spec.Handler),
		Code: &lambda.FunctionCode{
			S3Bucket: aws.String(spec.Bucket),
			S3Key:    aws.String(spec.Key),
		},
		Description: aws.String(spec.Description),
		Timeout:     aws.Int64(spec.TimeoutSecs),
		MemorySize:  aws.Int64(spec.MemoryMB),
		Publish:     aws.Bool(true),
	})
	if err != nil {
		return Function{}, Classify(err, FunctionResource, spec.Name)
	}
	return Function{Name: spec.Name, Arn: aws.StringValue(out.FunctionArn)}, nil
}

func (l *LambdaRegistry) Redeploy(ctx context.Context, spec FunctionSpec) (Function, error) {
	out, err := l.api.UpdateFunctionCodeWithContext(ctx, &lambda.UpdateFunctionCodeInput{
		FunctionName: aws.String(spec.Name),
		S3Bucket:     aws.String(spec.Bucket),
		S3Key:        aws.String(spec.Key),
		Publish:      aws.Bool(true),
	})
	if err != nil {
		return Function{}, Classify(err, FunctionResource, spec.Name)
	}
	return Function{Name: spec.Name, Arn: UnqualifiedFunctionArn(aws.StringValue(out.FunctionArn))}, nil
}

func bindingFrom(m *lambda.EventSourceMappingConfiguration) Binding {
	if m == nil {
		return Binding{}
	}
	return Binding{
		UUID:        aws.StringValue(m.UUID),
		SourceArn:   aws.StringValue(m.EventSourceArn),
		FunctionArn: aws.StringValue(m.FunctionArn),
		State:       aws.StringValue(m.State),
	}
}
