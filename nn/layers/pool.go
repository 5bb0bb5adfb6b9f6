package layers

import (
	"fmt"

	"interp_lib/tensor"
)

// SumPool sums over one axis, keeping it with size 1. With Axis 0 a
// [S, D] sequence becomes [1, D] regardless of S.
type SumPool struct {
	Axis int
}

func NewSumPool(axis int) *SumPool { return &SumPool{Axis: axis} }

func (p *SumPool) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	return tensor.SumAxis(x, p.Axis, true)
}

// Backward copies gradOut back along the pooled axis.
func (p *SumPool) Backward(x, gradOut *tensor.Tensor) (*tensor.Tensor, error) {
	return tensor.BroadcastTo(gradOut, x.Shape)
}

func (p *SumPool) Encrypted() bool { return false }
func (p *SumPool) Tag() string     { return fmt.Sprintf("SumPool_%d", p.Axis) }

// PositionWeights mixes positions with fixed coefficients:
// y = Σ_i C[i]·x[i] over the first axis. Positions beyond len(C) are ignored.
type PositionWeights struct {
	C []float64
}

func NewPositionWeights(c ...float64) *PositionWeights {
	return &PositionWeights{C: append([]float64(nil), c...)}
}

func (p *PositionWeights) check(x *tensor.Tensor) (int, error) {
	if len(x.Shape) < 1 || x.Shape[0] < len(p.C) {
		return 0, fmt.Errorf("PositionWeights needs at least %d positions, got shape %v", len(p.C), x.Shape)
	}
	return tensor.Volume(x.Shape[1:]), nil
}

func (p *PositionWeights) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	inner, err := p.check(x)
	if err != nil {
		return nil, err
	}
	out := tensor.New(x.Shape[1:]...)
	for i, c := range p.C {
		row := x.Data[i*inner : (i+1)*inner]
		for k, v := range row {
			out.Data[k] += c * v
		}
	}
	return out, nil
}

func (p *PositionWeights) Backward(x, gradOut *tensor.Tensor) (*tensor.Tensor, error) {
	inner, err := p.check(x)
	if err != nil {
		return nil, err
	}
	if len(gradOut.Data) != inner {
		return nil, fmt.Errorf("PositionWeights: gradOut shape %v, want %v", gradOut.Shape, x.Shape[1:])
	}
	gradIn := tensor.New(x.Shape...)
	for i, c := range p.C {
		for k, g := range gradOut.Data {
			gradIn.Data[i*inner+k] = c * g
		}
	}
	return gradIn, nil
}

func (p *PositionWeights) Encrypted() bool { return false }
func (p *PositionWeights) Tag() string     { return fmt.Sprintf("PositionWeights_%d", len(p.C)) }
