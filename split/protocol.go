// Package split lets a client explain a model that lives on another host:
// the client keeps the input and the optimizer, the server holds Φ and
// answers forward and backward requests over a gob stream.
package split

import (
	"encoding/gob"
	"fmt"
	"io"

	"interp_lib/tensor"
)

func init() {
	gob.Register(TensorPayload{})
	gob.Register(GradientPayload{})
}

// MessageType defines message types for the split protocol
type MessageType int

const (
	MsgForwardInput MessageType = iota
	MsgForwardOutput
	MsgBackwardGrad
	MsgBackwardOutput
	MsgDone
	MsgError
)

func (t MessageType) String() string {
	switch t {
	case MsgForwardInput:
		return "forward-input"
	case MsgForwardOutput:
		return "forward-output"
	case MsgBackwardGrad:
		return "backward-grad"
	case MsgBackwardOutput:
		return "backward-output"
	case MsgDone:
		return "done"
	case MsgError:
		return "error"
	}
	return fmt.Sprintf("message(%d)", int(t))
}

// Message represents a message in the split protocol
type Message struct {
	Type    MessageType
	Payload interface{}
}

// TensorPayload carries one tensor tagged with the request it belongs to.
type TensorPayload struct {
	RequestID int
	Shape     []int
	Data      []float64
}

func newTensorPayload(id int, t *tensor.Tensor) TensorPayload {
	return TensorPayload{RequestID: id, Shape: t.Shape, Data: t.Data}
}

// Tensor rebuilds the tensor, checking that shape and data agree.
func (p TensorPayload) Tensor() (*tensor.Tensor, error) {
	return tensor.FromData(p.Data, p.Shape...)
}

// GradientPayload asks for dL/dx given the input and dL/dΦ(x).
type GradientPayload struct {
	RequestID int
	Input     TensorPayload
	GradOut   TensorPayload
}

// Protocol handles split communication
type Protocol struct {
	encoder *gob.Encoder
	decoder *gob.Decoder
}

// NewProtocol creates a new protocol handler
func NewProtocol(r io.Reader, w io.Writer) *Protocol {
	return &Protocol{
		encoder: gob.NewEncoder(w),
		decoder: gob.NewDecoder(r),
	}
}

// Send sends a message
func (p *Protocol) Send(msg *Message) error {
	return p.encoder.Encode(msg)
}

// Receive receives a message
func (p *Protocol) Receive() (*Message, error) {
	var msg Message
	if err := p.decoder.Decode(&msg); err != nil {
		return nil, err
	}
	return &msg, nil
}

// SendForward asks the server to evaluate Φ on x
func (p *Protocol) SendForward(id int, x *tensor.Tensor) error {
	return p.Send(&Message{Type: MsgForwardInput, Payload: newTensorPayload(id, x)})
}

// SendForwardOutput answers a forward request
func (p *Protocol) SendForwardOutput(id int, y *tensor.Tensor) error {
	return p.Send(&Message{Type: MsgForwardOutput, Payload: newTensorPayload(id, y)})
}

// SendGradient asks the server to backpropagate gradOut through Φ at x
func (p *Protocol) SendGradient(id int, x, gradOut *tensor.Tensor) error {
	return p.Send(&Message{
		Type: MsgBackwardGrad,
		Payload: GradientPayload{
			RequestID: id,
			Input:     newTensorPayload(id, x),
			GradOut:   newTensorPayload(id, gradOut),
		},
	})
}

// SendBackwardOutput answers a gradient request
func (p *Protocol) SendBackwardOutput(id int, g *tensor.Tensor) error {
	return p.Send(&Message{Type: MsgBackwardOutput, Payload: newTensorPayload(id, g)})
}

// SendDone signals completion
func (p *Protocol) SendDone() error {
	return p.Send(&Message{Type: MsgDone})
}

// SendError sends an error message
func (p *Protocol) SendError(err error) error {
	return p.Send(&Message{
		Type:    MsgError,
		Payload: err.Error(),
	})
}

// ReceiveTensor receives a tensor message of the given type. MsgDone is
// reported as io.EOF.
func (p *Protocol) ReceiveTensor(want MessageType) (*TensorPayload, error) {
	msg, err := p.Receive()
	if err != nil {
		return nil, err
	}
	if msg.Type == MsgError {
		return nil, fmt.Errorf("remote error: %v", msg.Payload)
	}
	if msg.Type == MsgDone {
		return nil, io.EOF
	}
	if msg.Type != want {
		return nil, fmt.Errorf("expected %s message, got %s", want, msg.Type)
	}
	payload, ok := msg.Payload.(TensorPayload)
	if !ok {
		return nil, fmt.Errorf("invalid %s payload type %T", want, msg.Payload)
	}
	return &payload, nil
}
