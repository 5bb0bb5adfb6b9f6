package nn

import (
	"fmt"

	"interp_lib/tensor"
)

// Function is a mapping from an input tensor to an output tensor.
type Function interface {
	Forward(x *tensor.Tensor) (*tensor.Tensor, error)
}

// Differentiable is a Function that can propagate gradients back to its input.
type Differentiable interface {
	Function
	// Backward takes the input x and the gradient of the loss with respect to
	// Forward(x), and returns the gradient of the loss with respect to x.
	// Implementations must not rely on state cached by an earlier Forward call.
	Backward(x, gradOut *tensor.Tensor) (*tensor.Tensor, error)
}

// Layer defines a single unit in the network.
type Layer interface {
	Differentiable
	Encrypted() bool
	Tag() string
}

// Sequential chains multiple Layers in order.
type Sequential struct {
	Layers []Layer
}

// NewSequential builds a Sequential from layers.
func NewSequential(layers ...Layer) *Sequential {
	return &Sequential{Layers: layers}
}

// Forward applies each layer in sequence.
func (s *Sequential) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	out := x
	for i, layer := range s.Layers {
		var err error
		out, err = layer.Forward(out)
		if err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", i, layer.Tag(), err)
		}
	}
	return out, nil
}

// Backward replays the forward pass to recover every layer input, then
// applies Backward in reverse order.
func (s *Sequential) Backward(x, gradOut *tensor.Tensor) (*tensor.Tensor, error) {
	inputs := make([]*tensor.Tensor, len(s.Layers))
	out := x
	for i, layer := range s.Layers {
		inputs[i] = out
		var err error
		out, err = layer.Forward(out)
		if err != nil {
			return nil, fmt.Errorf("layer %d (%s): %w", i, layer.Tag(), err)
		}
	}
	grad := gradOut
	for i := len(s.Layers) - 1; i >= 0; i-- {
		var err error
		grad, err = s.Layers[i].Backward(inputs[i], grad)
		if err != nil {
			return nil, fmt.Errorf("layer %d (%s) backward: %w", i, s.Layers[i].Tag(), err)
		}
	}
	return grad, nil
}

// Encrypted returns true if any layer is encrypted.
func (s *Sequential) Encrypted() bool {
	for _, layer := range s.Layers {
		if layer.Encrypted() {
			return true
		}
	}
	return false
}

// Tag lists the layer tags.
func (s *Sequential) Tag() string {
	tag := "Sequential("
	for i, layer := range s.Layers {
		if i > 0 {
			tag += ","
		}
		tag += layer.Tag()
	}
	return tag + ")"
}
