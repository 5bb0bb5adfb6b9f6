package interpreter

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"

	"interp_lib/nn"
	"interp_lib/tensor"
)

// chunkSteps is how many steps run between cancellation checks.
const chunkSteps = 50

// ExplainAll runs an independent Interpreter for every input on a bounded
// pool of goroutines and returns their explanations in input order. phi is
// shared and must be safe for concurrent evaluation. When a seed is set,
// input i uses seed+i. The context is checked every chunkSteps steps.
func ExplainAll(ctx context.Context, inputs []*tensor.Tensor, phi nn.Function, regular *tensor.Tensor, iterations int, opts ...Option) ([]Explanation, error) {
	base := DefaultConfig()
	for _, opt := range opts {
		opt(&base)
	}

	results := make([]Explanation, len(inputs))
	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.GOMAXPROCS(0))
	for i, x := range inputs {
		i, x := i, x
		g.Go(func() error {
			own := append([]Option(nil), opts...)
			if base.Seeded {
				own = append(own, WithSeed(base.Seed+uint64(i)))
			}
			in, err := New(x, phi, regular, own...)
			if err != nil {
				return fmt.Errorf("input %d: %w", i, err)
			}
			if err := in.Optimize(iterations, withContext(ctx)); err != nil {
				return fmt.Errorf("input %d: %w", i, err)
			}
			results[i] = in.Explain()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
