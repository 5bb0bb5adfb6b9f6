package layers

import (
	"fmt"
	"math"

	"interp_lib/nn"
	"interp_lib/tensor"
)

// Activator is an element-wise function with its derivative.
type Activator interface {
	Activate(v float64) float64
	// Derivative is evaluated at the pre-activation value v.
	Derivative(v float64) float64
	fmt.Stringer
}

// ActivatorLookup maps names accepted by NewActivation to activators.
var ActivatorLookup = map[string]Activator{
	"sigmoid": Sigmoid{},
	"tanh":    Tanh{},
	"relu":    ReLU{},
}

type Sigmoid struct{}

func (Sigmoid) Activate(v float64) float64 { return 1.0 / (1.0 + math.Exp(-v)) }
func (s Sigmoid) Derivative(v float64) float64 {
	y := s.Activate(v)
	return y * (1 - y)
}
func (Sigmoid) String() string { return "sigmoid" }

type Tanh struct{}

func (Tanh) Activate(v float64) float64 { return math.Tanh(v) }
func (Tanh) Derivative(v float64) float64 {
	t := math.Tanh(v)
	return 1.0 - t*t
}
func (Tanh) String() string { return "tanh" }

type ReLU struct{}

func (ReLU) Activate(v float64) float64 {
	if v > 0 {
		return v
	}
	return 0
}
func (ReLU) Derivative(v float64) float64 {
	if v > 0 {
		return 1
	}
	return 0
}
func (ReLU) String() string { return "relu" }

// Activation is a layer that applies an Activator element-wise.
type Activation struct {
	act Activator
}

// NewActivation creates a new activation layer.
func NewActivation(name string) (*Activation, error) {
	act, ok := ActivatorLookup[name]
	if !ok {
		return nil, fmt.Errorf("unsupported activation: %s", name)
	}
	return &Activation{act: act}, nil
}

func (a *Activation) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	y := tensor.New(x.Shape...)
	for i, v := range x.Data {
		y.Data[i] = a.act.Activate(v)
	}
	return y, nil
}

func (a *Activation) Backward(x, gradOut *tensor.Tensor) (*tensor.Tensor, error) {
	if len(gradOut.Data) != len(x.Data) {
		return nil, fmt.Errorf("%s: gradOut shape %v does not match input %v", a.Tag(), gradOut.Shape, x.Shape)
	}
	gradIn := tensor.New(x.Shape...)
	for i, v := range x.Data {
		gradIn.Data[i] = gradOut.Data[i] * a.act.Derivative(v)
	}
	return gradIn, nil
}

func (a *Activation) Encrypted() bool { return false }
func (a *Activation) Tag() string     { return "Activation_" + a.act.String() }

// Name is the ActivatorLookup key of the activator.
func (a *Activation) Name() string { return a.act.String() }

// Softmax normalizes the last axis.
type Softmax struct{}

func (Softmax) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	return nn.Softmax(x), nil
}

func (Softmax) Backward(x, gradOut *tensor.Tensor) (*tensor.Tensor, error) {
	if len(gradOut.Data) != len(x.Data) {
		return nil, fmt.Errorf("Softmax: gradOut shape %v does not match input %v", gradOut.Shape, x.Shape)
	}
	return nn.SoftmaxBackward(nn.Softmax(x), gradOut), nil
}

func (Softmax) Encrypted() bool { return false }
func (Softmax) Tag() string     { return "Softmax" }
