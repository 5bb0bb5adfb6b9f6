package nn

import (
	"fmt"

	"interp_lib/tensor"
)

// DefaultFiniteDiffStep is the perturbation used by Differentiate when eps <= 0.
const DefaultFiniteDiffStep = 1e-4

// Func adapts a plain function to the Function interface.
type Func func(x *tensor.Tensor) (*tensor.Tensor, error)

// Forward calls f(x).
func (f Func) Forward(x *tensor.Tensor) (*tensor.Tensor, error) { return f(x) }

// Differentiate returns fn itself when it already implements Differentiable,
// otherwise wraps it with a central finite-difference Backward. The numeric
// gradient costs two Forward calls per input element.
func Differentiate(fn Function, eps float64) Differentiable {
	if d, ok := fn.(Differentiable); ok {
		return d
	}
	if eps <= 0 {
		eps = DefaultFiniteDiffStep
	}
	return &numeric{fn: fn, eps: eps}
}

type numeric struct {
	fn  Function
	eps float64
}

func (n *numeric) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	return n.fn.Forward(x)
}

func (n *numeric) Backward(x, gradOut *tensor.Tensor) (*tensor.Tensor, error) {
	gradIn := tensor.New(x.Shape...)
	probe := x.Clone()
	for i := range probe.Data {
		orig := probe.Data[i]

		probe.Data[i] = orig + n.eps
		plus, err := n.fn.Forward(probe)
		if err != nil {
			return nil, err
		}
		probe.Data[i] = orig - n.eps
		minus, err := n.fn.Forward(probe)
		if err != nil {
			return nil, err
		}
		probe.Data[i] = orig

		if len(plus.Data) != len(gradOut.Data) || len(minus.Data) != len(gradOut.Data) {
			return nil, fmt.Errorf("gradOut has %d elements, output has %d", len(gradOut.Data), len(plus.Data))
		}
		g := 0.0
		for k, gk := range gradOut.Data {
			g += gk * (plus.Data[k] - minus.Data[k])
		}
		gradIn.Data[i] = g / (2 * n.eps)
	}
	return gradIn, nil
}
