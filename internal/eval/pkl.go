package eval

import (
	"context"
	"fmt"

	"github.com/apple/pkl-go/pkl"
)

func loadPKL(ctx context.Context, path string) (*fileDeclaration, error) {
	evaluator, err := pkl.NewEvaluator(ctx, pkl.PreconfiguredOptions)
	if err != nil {
		return nil, fmt.Errorf("failed to create PKL evaluator: %w", err)
	}
	defer evaluator.Close()

	var fd fileDeclaration
	if err := evaluator.EvaluateModule(ctx, pkl.FileSource(path), &fd); err != nil {
		return nil, fmt.Errorf("failed to evaluate declaration: %w", err)
	}
	return &fd, nil
}
