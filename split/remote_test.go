package split

import (
	"errors"
	"math"
	"net"
	"strings"
	"testing"

	"golang.org/x/exp/rand"

	"interp_lib/interpreter"
	"interp_lib/nn"
	"interp_lib/nn/layers"
	"interp_lib/tensor"
)

type failingPhi struct{}

func (failingPhi) Forward(*tensor.Tensor) (*tensor.Tensor, error) {
	return nil, errors.New("model unavailable")
}

func (failingPhi) Backward(x, _ *tensor.Tensor) (*tensor.Tensor, error) {
	return tensor.New(x.Shape...), nil
}

// startServer runs Serve on one end of a pipe and returns the client.
func startServer(t *testing.T, phi nn.Differentiable) (*RemoteFunction, <-chan error) {
	t.Helper()
	serverConn, clientConn := net.Pipe()
	done := make(chan error, 1)
	go func() {
		defer serverConn.Close()
		done <- Serve(NewProtocol(serverConn, serverConn), phi)
	}()
	t.Cleanup(func() { clientConn.Close() })
	return NewRemoteFunction(NewProtocol(clientConn, clientConn)), done
}

func randomInput(seed uint64, shape ...int) *tensor.Tensor {
	r := rand.New(rand.NewSource(seed))
	x := tensor.New(shape...)
	for i := range x.Data {
		x.Data[i] = r.NormFloat64()
	}
	return x
}

func TestRemoteMatchesLocal(t *testing.T) {
	local := nn.NewSequential(
		layers.NewRNNRandom(6, 5, rand.NewSource(1)),
		layers.NewSumPool(0),
	)
	remote, done := startServer(t, local)

	x := randomInput(2, 4, 6)
	want, _ := local.Forward(x)
	got, err := remote.Forward(x)
	if err != nil {
		t.Fatalf("remote Forward: %v", err)
	}
	if !tensor.SameShape(got.Shape, want.Shape) {
		t.Fatalf("shape %v, want %v", got.Shape, want.Shape)
	}
	for i := range want.Data {
		if got.Data[i] != want.Data[i] {
			t.Fatalf("forward differs at %d", i)
		}
	}

	gradOut := tensor.Full(1, want.Shape...)
	wantGrad, _ := local.Backward(x, gradOut)
	gotGrad, err := remote.Backward(x, gradOut)
	if err != nil {
		t.Fatalf("remote Backward: %v", err)
	}
	for i := range wantGrad.Data {
		if gotGrad.Data[i] != wantGrad.Data[i] {
			t.Fatalf("backward differs at %d", i)
		}
	}

	if err := remote.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := <-done; err != nil {
		t.Fatalf("Serve returned %v", err)
	}
}

func TestRemoteErrorKeepsSession(t *testing.T) {
	remote, done := startServer(t, failingPhi{})

	_, err := remote.Forward(tensor.New(2, 2))
	if err == nil || !strings.Contains(err.Error(), "model unavailable") {
		t.Fatalf("expected remote error, got %v", err)
	}
	g, err := remote.Backward(tensor.New(2, 2), tensor.New(1))
	if err != nil {
		t.Fatalf("session should survive a failed request: %v", err)
	}
	if len(g.Data) != 4 {
		t.Fatalf("gradient shape %v", g.Shape)
	}
	remote.Close()
	if err := <-done; err != nil {
		t.Fatalf("Serve returned %v", err)
	}
}

func TestInterpreterOverRemotePhi(t *testing.T) {
	local := layers.NewPositionWeights(10, 20, -20, -10)
	remote, _ := startServer(t, local)
	defer remote.Close()

	x := randomInput(3, 4, 10)
	seed := interpreter.WithSeed(5)
	viaRemote, err := interpreter.New(x, remote, tensor.Full(1, 10), seed)
	if err != nil {
		t.Fatal(err)
	}
	direct, err := interpreter.New(x, local, tensor.Full(1, 10), seed)
	if err != nil {
		t.Fatal(err)
	}
	if err := viaRemote.Optimize(10); err != nil {
		t.Fatal(err)
	}
	if err := direct.Optimize(10); err != nil {
		t.Fatal(err)
	}

	a, b := viaRemote.Sigma().Data, direct.Sigma().Data
	for i := range a {
		if math.Abs(a[i]-b[i]) > 1e-12 {
			t.Errorf("sigma[%d]: remote %f, local %f", i, a[i], b[i])
		}
	}
}
