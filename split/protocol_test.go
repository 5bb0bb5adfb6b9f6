package split

import (
	"bytes"
	"io"
	"strings"
	"testing"

	"interp_lib/tensor"
)

func TestProtocolForwardRoundTrip(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)

	x := &tensor.Tensor{Data: []float64{1, 2, 3, 4, 5, 6}, Shape: []int{2, 3}}
	if err := writer.SendForward(7, x); err != nil {
		t.Fatalf("SendForward failed: %v", err)
	}

	reader := NewProtocol(&buf, nil)
	payload, err := reader.ReceiveTensor(MsgForwardInput)
	if err != nil {
		t.Fatalf("ReceiveTensor failed: %v", err)
	}
	if payload.RequestID != 7 {
		t.Errorf("RequestID = %d, want 7", payload.RequestID)
	}
	got, err := payload.Tensor()
	if err != nil {
		t.Fatalf("Tensor failed: %v", err)
	}
	if !tensor.SameShape(got.Shape, x.Shape) {
		t.Fatalf("Shape = %v, want %v", got.Shape, x.Shape)
	}
	for i := range x.Data {
		if got.Data[i] != x.Data[i] {
			t.Errorf("Data[%d] = %f, want %f", i, got.Data[i], x.Data[i])
		}
	}
}

func TestProtocolGradient(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)

	x := tensor.Full(1, 2, 2)
	g := tensor.Full(0.5, 3)
	if err := writer.SendGradient(42, x, g); err != nil {
		t.Fatalf("SendGradient failed: %v", err)
	}

	reader := NewProtocol(&buf, nil)
	msg, err := reader.Receive()
	if err != nil {
		t.Fatalf("Receive failed: %v", err)
	}
	if msg.Type != MsgBackwardGrad {
		t.Fatalf("Type = %s, want %s", msg.Type, MsgBackwardGrad)
	}
	payload, ok := msg.Payload.(GradientPayload)
	if !ok {
		t.Fatalf("Payload type %T", msg.Payload)
	}
	if payload.RequestID != 42 {
		t.Errorf("RequestID = %d, want 42", payload.RequestID)
	}
	if len(payload.GradOut.Data) != 3 || payload.GradOut.Data[2] != 0.5 {
		t.Errorf("GradOut = %v", payload.GradOut.Data)
	}
	if len(payload.Input.Shape) != 2 {
		t.Errorf("Input shape = %v", payload.Input.Shape)
	}
}

func TestProtocolWrongType(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)
	if err := writer.SendBackwardOutput(1, tensor.New(2)); err != nil {
		t.Fatal(err)
	}
	reader := NewProtocol(&buf, nil)
	_, err := reader.ReceiveTensor(MsgForwardOutput)
	if err == nil || !strings.Contains(err.Error(), "backward-output") {
		t.Errorf("expected type mismatch error, got %v", err)
	}
}

func TestPayloadShapeMismatch(t *testing.T) {
	p := TensorPayload{Shape: []int{2, 2}, Data: []float64{1, 2, 3}}
	if _, err := p.Tensor(); err == nil {
		t.Error("expected error for inconsistent payload")
	}
}

func TestProtocolDone(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)

	err := writer.SendDone()
	if err != nil {
		t.Fatalf("SendDone failed: %v", err)
	}

	reader := NewProtocol(&buf, nil)
	_, err = reader.ReceiveTensor(MsgForwardOutput)
	if err != io.EOF {
		t.Errorf("Expected io.EOF after done, got %v", err)
	}
}

func TestProtocolError(t *testing.T) {
	var buf bytes.Buffer
	writer := NewProtocol(nil, &buf)

	err := writer.SendError(io.ErrUnexpectedEOF)
	if err != nil {
		t.Fatalf("SendError failed: %v", err)
	}

	reader := NewProtocol(&buf, nil)
	_, err = reader.ReceiveTensor(MsgForwardOutput)
	if err == nil || !strings.Contains(err.Error(), "unexpected EOF") {
		t.Errorf("Expected remote error, got %v", err)
	}
}

func TestMessageTypes(t *testing.T) {
	if MsgForwardInput != 0 {
		t.Errorf("MsgForwardInput = %d, want 0", MsgForwardInput)
	}
	if MsgForwardOutput != 1 {
		t.Errorf("MsgForwardOutput = %d, want 1", MsgForwardOutput)
	}
	if MsgBackwardGrad != 2 {
		t.Errorf("MsgBackwardGrad = %d, want 2", MsgBackwardGrad)
	}
	if MsgBackwardOutput != 3 {
		t.Errorf("MsgBackwardOutput = %d, want 3", MsgBackwardOutput)
	}
	if MsgDone != 4 {
		t.Errorf("MsgDone = %d, want 4", MsgDone)
	}
	if MsgError != 5 {
		t.Errorf("MsgError = %d, want 5", MsgError)
	}
}
