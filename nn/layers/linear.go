package layers

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"

	"interp_lib/nn"
	"interp_lib/tensor"
)

// Linear is a fully-connected layer applied to every position of its input:
// for x of shape [S, inDim] it returns x·Wᵀ + B of shape [S, outDim].
// A 1-D input [inDim] yields a 1-D output [outDim].
type Linear struct {
	W *tensor.Tensor // [outDim, inDim]
	B *tensor.Tensor // [outDim]
}

// NewLinear(inDim→outDim) allocates zero weights.
func NewLinear(inDim, outDim int) *Linear {
	return &Linear{W: tensor.New(outDim, inDim), B: tensor.New(outDim)}
}

// NewLinearRandom allocates weights drawn uniformly from ±1/sqrt(inDim).
func NewLinearRandom(inDim, outDim int, src rand.Source) *Linear {
	l := NewLinear(inDim, outDim)
	nn.InitUniform(l.W, inDim, src)
	nn.InitUniform(l.B, inDim, src)
	return l
}

func (l *Linear) dims() (int, int) { return l.W.Shape[1], l.W.Shape[0] }

// rows views x as a [rows, inDim] matrix. gonum rejects zero-row matrices,
// so an empty sequence is an error.
func (l *Linear) rows(x *tensor.Tensor) (*mat.Dense, error) {
	inDim, _ := l.dims()
	n := 0
	switch {
	case len(x.Shape) == 1 && x.Shape[0] == inDim:
		n = 1
	case len(x.Shape) == 2 && x.Shape[1] == inDim:
		n = x.Shape[0]
	default:
		return nil, fmt.Errorf("Linear_%d expects [S, %d] or [%d] input, got %v", inDim, inDim, inDim, x.Shape)
	}
	if n == 0 {
		return nil, fmt.Errorf("Linear_%d: empty input %v", inDim, x.Shape)
	}
	if len(x.Data) != n*inDim {
		return nil, fmt.Errorf("Linear_%d: shape %v holds %d values", inDim, x.Shape, len(x.Data))
	}
	return mat.NewDense(n, inDim, x.Data), nil
}

// Forward computes x·Wᵀ + B.
func (l *Linear) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	in, err := l.rows(x)
	if err != nil {
		return nil, err
	}
	inDim, outDim := l.dims()
	w := mat.NewDense(outDim, inDim, l.W.Data)
	r, _ := in.Dims()

	var y mat.Dense
	y.Mul(in, w.T())
	out := tensor.New(r, outDim)
	for i := 0; i < r; i++ {
		for j := 0; j < outDim; j++ {
			out.Data[i*outDim+j] = y.At(i, j) + l.B.Data[j]
		}
	}
	if len(x.Shape) == 1 {
		out.Shape = []int{outDim}
	}
	return out, nil
}

// Backward returns gradOut·W, shaped like x.
func (l *Linear) Backward(x, gradOut *tensor.Tensor) (*tensor.Tensor, error) {
	in, err := l.rows(x)
	if err != nil {
		return nil, err
	}
	inDim, outDim := l.dims()
	r, _ := in.Dims()
	if len(gradOut.Data) != r*outDim {
		return nil, fmt.Errorf("Linear_%d_%d: gradOut shape %v does not match %d rows", inDim, outDim, gradOut.Shape, r)
	}
	g := mat.NewDense(r, outDim, gradOut.Data)
	w := mat.NewDense(outDim, inDim, l.W.Data)

	var gin mat.Dense
	gin.Mul(g, w)
	out := tensor.New(x.Shape...)
	copy(out.Data, gin.RawMatrix().Data)
	return out, nil
}

func (l *Linear) Encrypted() bool { return false }

func (l *Linear) Tag() string {
	inDim, outDim := l.dims()
	return fmt.Sprintf("Linear_%d_%d", inDim, outDim)
}
