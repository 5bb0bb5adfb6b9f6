package split

import (
	"errors"
	"fmt"
	"io"
	"sync"

	"interp_lib/nn"
	"interp_lib/tensor"
)

// Serve answers forward and gradient requests with phi until the client
// sends MsgDone or closes the stream. Errors from phi are sent back to the
// client and do not end the session.
func Serve(p *Protocol, phi nn.Differentiable) error {
	for {
		msg, err := p.Receive()
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("receive: %w", err)
		}

		switch msg.Type {
		case MsgDone:
			return nil
		case MsgForwardInput:
			req, ok := msg.Payload.(TensorPayload)
			if !ok {
				return fmt.Errorf("invalid forward payload type %T", msg.Payload)
			}
			err = answer(p, req.RequestID, func() (*tensor.Tensor, error) {
				x, err := req.Tensor()
				if err != nil {
					return nil, err
				}
				return phi.Forward(x)
			}, p.SendForwardOutput)
		case MsgBackwardGrad:
			req, ok := msg.Payload.(GradientPayload)
			if !ok {
				return fmt.Errorf("invalid gradient payload type %T", msg.Payload)
			}
			err = answer(p, req.RequestID, func() (*tensor.Tensor, error) {
				x, err := req.Input.Tensor()
				if err != nil {
					return nil, err
				}
				g, err := req.GradOut.Tensor()
				if err != nil {
					return nil, err
				}
				return phi.Backward(x, g)
			}, p.SendBackwardOutput)
		default:
			err = p.SendError(fmt.Errorf("unexpected %s message", msg.Type))
		}
		if err != nil {
			return fmt.Errorf("send: %w", err)
		}
	}
}

func answer(p *Protocol, id int, compute func() (*tensor.Tensor, error), send func(int, *tensor.Tensor) error) error {
	out, err := compute()
	if err != nil {
		return p.SendError(err)
	}
	return send(id, out)
}

// RemoteFunction is a Φ evaluated by a Serve loop on the other end of a
// Protocol. Requests are serialized, so one RemoteFunction may be shared.
type RemoteFunction struct {
	mu    sync.Mutex
	proto *Protocol
	next  int
}

func NewRemoteFunction(p *Protocol) *RemoteFunction {
	return &RemoteFunction{proto: p}
}

func (r *RemoteFunction) call(want MessageType, send func(id int) error) (*tensor.Tensor, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	id := r.next
	r.next++
	if err := send(id); err != nil {
		return nil, fmt.Errorf("send request %d: %w", id, err)
	}
	resp, err := r.proto.ReceiveTensor(want)
	if err != nil {
		return nil, fmt.Errorf("request %d: %w", id, err)
	}
	if resp.RequestID != id {
		return nil, fmt.Errorf("response for request %d, want %d", resp.RequestID, id)
	}
	return resp.Tensor()
}

func (r *RemoteFunction) Forward(x *tensor.Tensor) (*tensor.Tensor, error) {
	return r.call(MsgForwardOutput, func(id int) error {
		return r.proto.SendForward(id, x)
	})
}

func (r *RemoteFunction) Backward(x, gradOut *tensor.Tensor) (*tensor.Tensor, error) {
	return r.call(MsgBackwardOutput, func(id int) error {
		return r.proto.SendGradient(id, x, gradOut)
	})
}

// Close ends the server's Serve loop.
func (r *RemoteFunction) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.proto.SendDone()
}
