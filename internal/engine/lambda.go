package engine

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/service/lambda"
	lambdatypes "github.com/aws/aws-sdk-go-v2/service/lambda/types"
)

// Invoker abstracts serverless function invocation so adapters can be
// tested without AWS.
type Invoker interface {
	// InvokeSync calls the function and waits for its response payload.
	InvokeSync(ctx context.Context, function string, payload []byte) ([]byte, error)

	// InvokeAsync submits the event and returns once the platform has
	// acknowledged receipt, not completion.
	InvokeAsync(ctx context.Context, function string, payload []byte) error
}

// LambdaInvoker implements Invoker against AWS Lambda.
type LambdaInvoker struct {
	client *lambda.Client
}

// Compile-time check that LambdaInvoker implements Invoker.
var _ Invoker = (*LambdaInvoker)(nil)

// NewLambdaInvoker creates a Lambda-backed invoker using the default AWS
// credential chain.
func NewLambdaInvoker(ctx context.Context, region string) (*LambdaInvoker, error) {
	var opts []func(*awsconfig.LoadOptions) error
	if region != "" {
		opts = append(opts, awsconfig.WithRegion(region))
	}

	cfg, err := awsconfig.LoadDefaultConfig(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("load aws config: %w", err)
	}

	return &LambdaInvoker{client: lambda.NewFromConfig(cfg)}, nil
}

// NewLambdaInvokerFromClient wraps an existing Lambda client.
func NewLambdaInvokerFromClient(client *lambda.Client) *LambdaInvoker {
	return &LambdaInvoker{client: client}
}

// InvokeSync runs the function with RequestResponse semantics.
func (l *LambdaInvoker) InvokeSync(ctx context.Context, function string, payload []byte) ([]byte, error) {
	out, err := l.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(function),
		InvocationType: lambdatypes.InvocationTypeRequestResponse,
		Payload:        payload,
	})
	if err != nil {
		return nil, fmt.Errorf("invoke %s: %w", function, err)
	}
	if out.FunctionError != nil {
		return nil, fmt.Errorf("invoke %s: function error: %s", function, *out.FunctionError)
	}
	return out.Payload, nil
}

// InvokeAsync submits the event with Event semantics. Lambda acknowledges
// with 202; the function runs in the background.
func (l *LambdaInvoker) InvokeAsync(ctx context.Context, function string, payload []byte) error {
	out, err := l.client.Invoke(ctx, &lambda.InvokeInput{
		FunctionName:   aws.String(function),
		InvocationType: lambdatypes.InvocationTypeEvent,
		Payload:        payload,
	})
	if err != nil {
		return fmt.Errorf("invoke %s: %w", function, err)
	}
	if out.StatusCode != 202 {
		return fmt.Errorf("invoke %s: unexpected status %d", function, out.StatusCode)
	}
	return nil
}
