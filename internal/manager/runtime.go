package manager

import (
	"context"
	"strings"

	"galemind/pkg/types"
)

// Runtime is the model-execution collaborator. The engine treats a batch
// run as opaque: it submits requests in FIFO order and expects one result
// per request in the same order, or a single error covering the whole
// batch. Retry policy, if any, belongs to the implementation.
type Runtime interface {
	ExecuteBatch(ctx context.Context, model, version string, batch []*types.InferenceRequest) ([]*types.InferenceResult, error)
}

// Loader is the model lifecycle collaborator, invoked once per
// registration. The manager does not retry loads itself.
type Loader interface {
	LoadModel(ctx context.Context, name, version string) error
}

// NopLoader accepts every load immediately.
type NopLoader struct{}

func (NopLoader) LoadModel(context.Context, string, string) error { return nil }

// EchoRuntime is an in-process runtime that echoes request content back as
// the result. It stands in for a real execution backend in development and
// tests.
type EchoRuntime struct{}

func (EchoRuntime) ExecuteBatch(ctx context.Context, model, version string, batch []*types.InferenceRequest) ([]*types.InferenceResult, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	results := make([]*types.InferenceResult, 0, len(batch))
	for _, req := range batch {
		results = append(results, &types.InferenceResult{
			RequestID:    req.ID,
			Model:        model,
			Content:      req.Content,
			FinishReason: "stop",
			Usage:        echoUsage(req.Content),
		})
	}
	return results, nil
}

func echoUsage(c types.Content) types.Usage {
	prompt := c.Len()
	if c.Kind == types.ContentText {
		prompt = len(strings.Fields(c.Text))
	}
	return types.Usage{
		PromptTokens:     prompt,
		CompletionTokens: prompt,
		TotalTokens:      2 * prompt,
	}
}
