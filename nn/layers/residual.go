package layers

import (
	"fmt"

	"interp_lib/nn"
	"interp_lib/tensor"
)

// ResidualBlock computes x + Main(x). Main must preserve the input shape.
type ResidualBlock struct {
	Main *nn.Sequential
}

func NewResidualBlock(mods ...nn.Layer) *ResidualBlock {
	return &ResidualBlock{Main: nn.NewSequential(mods...)}
}

func (r *ResidualBlock) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	y, err := r.Main.Forward(x)
	if err != nil {
		return nil, err
	}
	if !tensor.SameShape(x.Shape, y.Shape) {
		return nil, fmt.Errorf("ResidualBlock: main path changed shape %v -> %v", x.Shape, y.Shape)
	}
	return tensor.Add(y, x)
}

func (r *ResidualBlock) Backward(x, gradOut *tensor.Tensor) (*tensor.Tensor, error) {
	g, err := r.Main.Backward(x, gradOut)
	if err != nil {
		return nil, err
	}
	return tensor.Add(g, gradOut)
}

func (r *ResidualBlock) Encrypted() bool { return r.Main.Encrypted() }
func (r *ResidualBlock) Tag() string     { return "Residual[" + r.Main.Tag() + "]" }
