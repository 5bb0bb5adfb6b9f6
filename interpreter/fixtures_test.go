package interpreter

import (
	"errors"
	"math"

	"golang.org/x/exp/rand"

	"interp_lib/nn"
	"interp_lib/nn/layers"
	"interp_lib/tensor"
)

// linearPhi is 10·x0 + 20·x1 - 20·x2 - 10·x3 over the positions of a
// (4, 10) input, giving a (10,) output.
func linearPhi() *layers.PositionWeights {
	return layers.NewPositionWeights(10, 20, -20, -10)
}

func gaussian(seed uint64, shape ...int) *tensor.Tensor {
	r := rand.New(rand.NewSource(seed))
	t := tensor.New(shape...)
	for i := range t.Data {
		t.Data[i] = r.NormFloat64()
	}
	return t
}

func fixedDataset(n int) []*tensor.Tensor {
	out := make([]*tensor.Tensor, n)
	for i := range out {
		out[i] = gaussian(uint64(100+i), 4, 10)
	}
	return out
}

// flakyPhi returns NaN on every third Forward call.
type flakyPhi struct {
	inner nn.Differentiable
	calls int
}

func (f *flakyPhi) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	f.calls++
	y, err := f.inner.Forward(x)
	if err != nil {
		return nil, err
	}
	if f.calls%3 == 0 {
		for i := range y.Data {
			y.Data[i] = math.NaN()
		}
	}
	return y, nil
}

func (f *flakyPhi) Backward(x, gradOut *tensor.Tensor) (*tensor.Tensor, error) {
	return f.inner.Backward(x, gradOut)
}

var errPhiBroken = errors.New("phi broken")

// scriptedPhi delegates to inner until the call numbered failAt, then either
// fails or changes its output shape.
type scriptedPhi struct {
	inner       nn.Differentiable
	calls       int
	failAt      int
	changeShape bool
}

func (s *scriptedPhi) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	s.calls++
	if s.calls >= s.failAt {
		if s.changeShape {
			return tensor.New(3), nil
		}
		return nil, errPhiBroken
	}
	return s.inner.Forward(x)
}

func (s *scriptedPhi) Backward(x, gradOut *tensor.Tensor) (*tensor.Tensor, error) {
	return s.inner.Backward(x, gradOut)
}
