package layers

import "interp_lib/tensor"

// Flatten reshapes its input to 1-D.
type Flatten struct{}

func NewFlatten() *Flatten { return &Flatten{} }

func (f *Flatten) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	y := tensor.New(len(x.Data))
	copy(y.Data, x.Data)
	return y, nil
}

func (f *Flatten) Backward(x, gradOut *tensor.Tensor) (*tensor.Tensor, error) {
	g := gradOut.Clone()
	return g.Reshape(x.Shape...)
}

func (f *Flatten) Encrypted() bool { return false }
func (f *Flatten) Tag() string     { return "Flatten" }
