package layers

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"interp_lib/nn"
	"interp_lib/tensor"
)

// RNN is an Elman recurrent layer over the first axis:
//
//	h_t = tanh(Wx·x_t + Wh·h_{t-1} + B),  h_{-1} = 0
//
// It maps a [S, inDim] sequence of any length S to the [S, hidden] states.
type RNN struct {
	Wx *tensor.Tensor // [hidden, inDim]
	Wh *tensor.Tensor // [hidden, hidden]
	B  *tensor.Tensor // [hidden]
}

func NewRNN(inDim, hidden int) *RNN {
	return &RNN{
		Wx: tensor.New(hidden, inDim),
		Wh: tensor.New(hidden, hidden),
		B:  tensor.New(hidden),
	}
}

// NewRNNRandom initializes weights uniformly in ±1/sqrt(hidden).
func NewRNNRandom(inDim, hidden int, src rand.Source) *RNN {
	r := NewRNN(inDim, hidden)
	nn.InitUniform(r.Wx, hidden, src)
	nn.InitUniform(r.Wh, hidden, src)
	nn.InitUniform(r.B, hidden, src)
	return r
}

func (r *RNN) dims() (int, int) { return r.Wx.Shape[1], r.Wx.Shape[0] }

func (r *RNN) check(x *tensor.Tensor) (int, error) {
	inDim, _ := r.dims()
	if len(x.Shape) != 2 || x.Shape[1] != inDim {
		return 0, fmt.Errorf("%s expects [S, %d] input, got %v", r.Tag(), inDim, x.Shape)
	}
	return x.Shape[0], nil
}

// states returns h as [S, hidden].
func (r *RNN) states(x *tensor.Tensor, steps int) *tensor.Tensor {
	inDim, hidden := r.dims()
	h := tensor.New(steps, hidden)
	for t := 0; t < steps; t++ {
		xt := x.Data[t*inDim : (t+1)*inDim]
		for j := 0; j < hidden; j++ {
			a := r.B.Data[j]
			for i, v := range xt {
				a += r.Wx.Data[j*inDim+i] * v
			}
			if t > 0 {
				prev := h.Data[(t-1)*hidden : t*hidden]
				for k, v := range prev {
					a += r.Wh.Data[j*hidden+k] * v
				}
			}
			h.Data[t*hidden+j] = math.Tanh(a)
		}
	}
	return h
}

func (r *RNN) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	steps, err := r.check(x)
	if err != nil {
		return nil, err
	}
	return r.states(x, steps), nil
}

// Backward runs backpropagation through time from gradOut [S, hidden].
func (r *RNN) Backward(x, gradOut *tensor.Tensor) (*tensor.Tensor, error) {
	steps, err := r.check(x)
	if err != nil {
		return nil, err
	}
	_, hidden := r.dims()
	if len(gradOut.Data) != steps*hidden {
		return nil, fmt.Errorf("%s: gradOut shape %v, want [%d %d]", r.Tag(), gradOut.Shape, steps, hidden)
	}
	h := r.states(x, steps)

	// pre-activation gradients for every step, then one product with Wx
	pre := tensor.New(steps, hidden)
	carry := make([]float64, hidden)
	for t := steps - 1; t >= 0; t-- {
		da := pre.Data[t*hidden : (t+1)*hidden]
		for j := 0; j < hidden; j++ {
			ht := h.Data[t*hidden+j]
			da[j] = (gradOut.Data[t*hidden+j] + carry[j]) * (1 - ht*ht)
		}
		for k := 0; k < hidden; k++ {
			g := 0.0
			for j := 0; j < hidden; j++ {
				g += r.Wh.Data[j*hidden+k] * da[j]
			}
			carry[k] = g
		}
	}
	return tensor.MatMul(pre, r.Wx)
}

func (r *RNN) Encrypted() bool { return false }

func (r *RNN) Tag() string {
	inDim, hidden := r.dims()
	return fmt.Sprintf("RNN_%d_%d", inDim, hidden)
}
