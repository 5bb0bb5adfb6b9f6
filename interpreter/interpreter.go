// Package interpreter explains a differentiable function Φ by learning, for
// one input, how much Gaussian noise every position tolerates before Φ's
// output moves. Positions with a small σ are the informative ones.
package interpreter

import (
	"fmt"
	"log/slog"
	"math"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"interp_lib/nn"
	"interp_lib/tensor"
)

// rawLimit bounds the unconstrained parameters so sigmoid never saturates
// to exactly 0 or 1.
const rawLimit = 40

// Interpreter optimizes σ for a single input x. Optimize calls are
// serialized; the other methods may be called at any time.
type Interpreter struct {
	mu  sync.Mutex
	cfg Config
	log *slog.Logger

	x   *tensor.Tensor
	phi nn.Differentiable
	y   *tensor.Tensor
	// regSq is the regularization squared and broadcast to y's shape, nil
	// when the fidelity term is normalized by yPower instead.
	regSq   *tensor.Tensor
	regular *tensor.Tensor
	yPower  float64
	s, d    int

	raw     []float64
	adam    *nn.Adam
	noise   distuv.Normal
	losses  []float64
	skipped []int
}

// New builds an Interpreter for x, which must have at least two dimensions:
// positions first, features after. phi is wrapped with nn.Differentiate when
// it has no Backward. regular is the per-output baseline from
// EstimateRegularization and may be nil.
func New(x *tensor.Tensor, phi nn.Function, regular *tensor.Tensor, opts ...Option) (*Interpreter, error) {
	cfg := DefaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, &ConstructionError{Reason: "invalid configuration", Err: err}
	}
	if x == nil || len(x.Shape) < 2 {
		var shape []int
		if x != nil {
			shape = x.Shape
		}
		return nil, &ConstructionError{Reason: fmt.Sprintf("input must have at least 2 dimensions, got shape %v", shape)}
	}
	if phi == nil {
		return nil, &ConstructionError{Reason: "phi must not be nil"}
	}
	s, d := x.Shape[0], tensor.Volume(x.Shape[1:])
	if s == 0 || d == 0 || len(x.Data) != s*d {
		return nil, &ConstructionError{Reason: fmt.Sprintf("input shape %v holds %d values", x.Shape, len(x.Data))}
	}
	if !x.IsFinite() {
		return nil, &ConstructionError{Reason: "input contains non-finite values"}
	}
	if cfg.Words != nil && len(cfg.Words) != s {
		return nil, &ConstructionError{Reason: fmt.Sprintf("got %d words for %d positions", len(cfg.Words), s)}
	}

	in := &Interpreter{
		cfg: cfg,
		x:   x.Clone(),
		phi: nn.Differentiate(phi, nn.DefaultFiniteDiffStep),
		s:   s,
		d:   d,
	}
	in.log = cfg.Logger.With("run_id", uuid.NewString(), "positions", s, "features", d)

	y, err := in.phi.Forward(in.x)
	if err != nil {
		return nil, &ConstructionError{Reason: "evaluating phi on the input", Err: err}
	}
	if !y.IsFinite() {
		return nil, &ConstructionError{Reason: "phi returned non-finite values for the input"}
	}
	in.y = y

	if regular != nil {
		rb, err := tensor.BroadcastTo(regular, y.Shape)
		if err != nil {
			return nil, &ConstructionError{
				Reason: "regularization does not broadcast to phi's output",
				Err:    &ShapeError{Op: "regularization", Step: -1, Got: regular.Shape, Want: y.Shape},
			}
		}
		for i, v := range rb.Data {
			if v == 0 || math.IsNaN(v) || math.IsInf(v, 0) {
				return nil, &ConstructionError{Reason: fmt.Sprintf("regularization entry %d is %v", i, v)}
			}
			rb.Data[i] = v * v
		}
		in.regSq = rb
		in.regular = regular.Clone()
	} else {
		sq, err := tensor.MulElem(y, y)
		if err != nil {
			return nil, &ConstructionError{Reason: "measuring phi output power", Err: err}
		}
		in.yPower = sq.Mean()
		if in.yPower == 0 {
			return nil, &ConstructionError{Reason: "phi output is identically zero and no regularization was given"}
		}
	}

	p := cfg.InitSigma / cfg.Scale
	r0 := math.Log(p / (1 - p))
	in.raw = make([]float64, s)
	for i := range in.raw {
		in.raw[i] = r0
	}
	in.adam = nn.NewAdam(s, cfg.LearningRate)
	in.adam.Beta1, in.adam.Beta2, in.adam.Eps = cfg.Beta1, cfg.Beta2, cfg.Epsilon

	seed := cfg.Seed
	if !cfg.Seeded {
		seed = uint64(time.Now().UnixNano())
	}
	in.noise = distuv.Normal{Mu: 0, Sigma: 1, Src: rand.NewSource(seed)}
	return in, nil
}

func sigmoid(v float64) float64 { return 1 / (1 + math.Exp(-v)) }

// logSigmoid is log(sigmoid(v)) without underflow for negative v.
func logSigmoid(v float64) float64 {
	if v < 0 {
		return v - math.Log1p(math.Exp(v))
	}
	return -math.Log1p(math.Exp(-v))
}

// Optimize runs exactly iterations steps, continuing from the current σ and
// loss trace. Steps with a non-finite loss or gradient leave σ untouched and
// are listed by Skipped. On error, progress made before the failing step is
// kept.
func (in *Interpreter) Optimize(iterations int, opts ...StepOption) error {
	if iterations < 0 {
		return fmt.Errorf("iterations must be non-negative, got %d", iterations)
	}
	sc := stepConfig{learningRate: in.cfg.LearningRate}
	for _, opt := range opts {
		opt(&sc)
	}
	if err := positive("learning rate", sc.learningRate); err != nil {
		return err
	}

	in.mu.Lock()
	defer in.mu.Unlock()
	if iterations == 0 {
		return nil
	}
	in.adam.LR = sc.learningRate

	bestLoss := math.Inf(1)
	var best []float64
	if in.cfg.KeepBest {
		defer func() {
			if best != nil {
				copy(in.raw, best)
			}
		}()
	}

	start := time.Now()
	skippedBefore := len(in.skipped)
	for it := 0; it < iterations; it++ {
		if sc.ctx != nil && it%chunkSteps == 0 {
			if err := sc.ctx.Err(); err != nil {
				return err
			}
		}
		idx := len(in.losses)
		stepStart := time.Now()
		loss, grad, err := in.step(idx)
		if err != nil {
			return err
		}
		in.losses = append(in.losses, loss)

		ok := isFinite(loss) && allFinite(grad)
		in.cfg.Metrics.observe(loss, time.Since(stepStart).Seconds(), !ok)
		if !ok {
			in.skipped = append(in.skipped, idx)
			in.log.Warn("skipping non-finite step", "step", idx, "loss", loss)
			if in.cfg.StrictNumerics {
				return &NumericalError{Step: idx, Loss: loss}
			}
			continue
		}
		if in.cfg.KeepBest && loss < bestLoss {
			bestLoss = loss
			best = append(best[:0], in.raw...)
		}
		in.adam.Step(in.raw, grad)
		for i, r := range in.raw {
			in.raw[i] = math.Max(-rawLimit, math.Min(rawLimit, r))
		}
		in.log.Debug("step", "step", idx, "loss", loss)
	}

	in.log.Info("optimization finished",
		"iterations", iterations,
		"steps", len(in.losses),
		"skipped", len(in.skipped)-skippedBefore,
		"loss", in.losses[len(in.losses)-1],
		"elapsed", time.Since(start),
	)
	return nil
}

// step evaluates the loss at the current parameters for one noise draw and
// returns it with the gradient with respect to the raw parameters.
func (in *Interpreter) step(idx int) (float64, []float64, error) {
	scale, rate := in.cfg.Scale, in.cfg.Rate
	sigma := in.sigma()

	eps := tensor.New(in.x.Shape...)
	for i := range eps.Data {
		eps.Data[i] = in.noise.Rand()
	}
	xt := in.x.Clone()
	for i, sg := range sigma {
		w := in.cfg.Transform.Apply(sg)
		for j := i * in.d; j < (i+1)*in.d; j++ {
			xt.Data[j] += w * eps.Data[j]
		}
	}

	yt, err := in.phi.Forward(xt)
	if err != nil {
		return 0, nil, fmt.Errorf("step %d: evaluating phi: %w", idx, err)
	}
	if !tensor.SameShape(yt.Shape, in.y.Shape) {
		return 0, nil, &ShapeError{Op: "phi output", Step: idx, Got: yt.Shape, Want: in.y.Shape}
	}

	delta, err := tensor.Sub(yt, in.y)
	if err != nil {
		return 0, nil, fmt.Errorf("step %d: %w", idx, err)
	}
	n := float64(len(in.y.Data))
	gradOut := tensor.New(in.y.Shape...)
	fidelity := 0.0
	for k, diff := range delta.Data {
		denom := in.yPower
		if in.regSq != nil {
			denom = in.regSq.Data[k]
		}
		fidelity += diff * diff / denom
		gradOut.Data[k] = 2 * diff / (denom * n)
	}
	fidelity /= n

	complexity := 0.0
	for _, r := range in.raw {
		complexity -= logSigmoid(r)
	}
	complexity *= rate / float64(in.s)
	loss := fidelity + complexity

	gx, err := in.phi.Backward(xt, gradOut)
	if err != nil {
		return 0, nil, fmt.Errorf("step %d: phi backward: %w", idx, err)
	}
	if len(gx.Data) != len(xt.Data) {
		return 0, nil, &ShapeError{Op: "phi gradient", Step: idx, Got: gx.Shape, Want: xt.Shape}
	}

	grad := make([]float64, in.s)
	for i, r := range in.raw {
		acc := 0.0
		for j := i * in.d; j < (i+1)*in.d; j++ {
			acc += gx.Data[j] * eps.Data[j]
		}
		p := sigmoid(r)
		dSigma := scale * p * (1 - p)
		grad[i] = in.cfg.Transform.Derivative(sigma[i])*acc*dSigma - rate/float64(in.s)*(1-p)
	}
	return loss, grad, nil
}

func (in *Interpreter) sigma() []float64 {
	out := make([]float64, len(in.raw))
	for i, r := range in.raw {
		out[i] = in.cfg.Scale * sigmoid(r)
	}
	return out
}

func isFinite(v float64) bool { return !math.IsNaN(v) && !math.IsInf(v, 0) }

func allFinite(vs []float64) bool {
	for _, v := range vs {
		if !isFinite(v) {
			return false
		}
	}
	return true
}

// Sigma returns a copy of the current σ with shape (s,).
func (in *Interpreter) Sigma() *tensor.Tensor {
	in.mu.Lock()
	defer in.mu.Unlock()
	return tensor.NewWithData(in.sigma())
}

// Losses returns the loss of every step run so far, in order.
func (in *Interpreter) Losses() []float64 {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]float64(nil), in.losses...)
}

// Skipped returns the indices of steps whose update was skipped.
func (in *Interpreter) Skipped() []int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return append([]int(nil), in.skipped...)
}

// Steps is the total number of steps run across all Optimize calls.
func (in *Interpreter) Steps() int {
	in.mu.Lock()
	defer in.mu.Unlock()
	return len(in.losses)
}

// S is the number of positions.
func (in *Interpreter) S() int { return in.s }

// D is the number of features per position.
func (in *Interpreter) D() int { return in.d }

// Regularization returns the tensor given to New, or nil.
func (in *Interpreter) Regularization() *tensor.Tensor {
	if in.regular == nil {
		return nil
	}
	return in.regular.Clone()
}
