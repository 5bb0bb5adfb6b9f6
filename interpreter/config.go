package interpreter

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"math"
)

// Defaults for Config.
const (
	DefaultScale        = 0.5
	DefaultRate         = 0.1
	DefaultLearningRate = 0.01
	DefaultBeta1        = 0.9
	DefaultBeta2        = 0.999
	DefaultEpsilon      = 1e-8
	DefaultInitSigma    = 0.1
)

// Config holds the hyperparameters of one Interpreter.
type Config struct {
	// Scale bounds σ to (0, Scale).
	Scale float64
	// Rate weights the complexity term against the fidelity term.
	Rate float64
	// LearningRate is the Adam step size for the raw σ parameters.
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	// InitSigma is the σ every position starts from.
	InitSigma float64
	Transform Transform
	// Seed fixes the noise source. Unseeded interpreters draw a random seed.
	Seed     uint64
	Seeded   bool
	Words    []string
	KeepBest bool
	// StrictNumerics aborts Optimize on the first non-finite step instead
	// of skipping it.
	StrictNumerics bool
	Logger         *slog.Logger
	Metrics        *Metrics
}

// DefaultConfig returns the configuration used when no option is given.
func DefaultConfig() Config {
	return Config{
		Scale:        DefaultScale,
		Rate:         DefaultRate,
		LearningRate: DefaultLearningRate,
		Beta1:        DefaultBeta1,
		Beta2:        DefaultBeta2,
		Epsilon:      DefaultEpsilon,
		InitSigma:    DefaultInitSigma,
		Transform:    Identity{},
		Logger:       slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
}

func positive(name string, v float64) error {
	if !(v > 0) || math.IsInf(v, 0) {
		return fmt.Errorf("%s must be a positive finite number, got %v", name, v)
	}
	return nil
}

// Validate checks every field, returning the first problem found.
func (c *Config) Validate() error {
	for _, f := range []struct {
		name string
		v    float64
	}{
		{"scale", c.Scale},
		{"learning rate", c.LearningRate},
		{"adam epsilon", c.Epsilon},
	} {
		if err := positive(f.name, f.v); err != nil {
			return err
		}
	}
	if c.Rate < 0 || math.IsNaN(c.Rate) || math.IsInf(c.Rate, 0) {
		return fmt.Errorf("rate must be a non-negative finite number, got %v", c.Rate)
	}
	if c.Beta1 < 0 || c.Beta1 >= 1 || c.Beta2 < 0 || c.Beta2 >= 1 {
		return fmt.Errorf("adam decay rates must lie in [0, 1), got %v and %v", c.Beta1, c.Beta2)
	}
	if !(c.InitSigma > 0 && c.InitSigma < c.Scale) {
		return fmt.Errorf("initial sigma %v must lie in (0, %v)", c.InitSigma, c.Scale)
	}
	if c.Transform == nil {
		return fmt.Errorf("transform must not be nil")
	}
	if c.Transform.Apply(0) != 0 {
		return fmt.Errorf("transform %s must map 0 to 0", c.Transform.Name())
	}
	return nil
}

// Option configures an Interpreter.
type Option func(*Config)

// WithScale sets the upper bound of σ.
func WithScale(scale float64) Option { return func(c *Config) { c.Scale = scale } }

// WithRate sets the weight of the complexity term.
func WithRate(rate float64) Option { return func(c *Config) { c.Rate = rate } }

// WithLearningRate sets the Adam step size used by every Optimize call.
func WithLearningRate(lr float64) Option { return func(c *Config) { c.LearningRate = lr } }

// WithAdam sets the Adam decay rates and epsilon.
func WithAdam(beta1, beta2, eps float64) Option {
	return func(c *Config) {
		c.Beta1, c.Beta2, c.Epsilon = beta1, beta2, eps
	}
}

// WithInitSigma sets the σ every position starts from.
func WithInitSigma(sigma float64) Option { return func(c *Config) { c.InitSigma = sigma } }

// WithTransform sets the map from σ to the noise amplitude.
func WithTransform(t Transform) Option { return func(c *Config) { c.Transform = t } }

// WithSeed makes the noise sequence reproducible.
func WithSeed(seed uint64) Option {
	return func(c *Config) {
		c.Seed, c.Seeded = seed, true
	}
}

// WithWords attaches one label per position, used by Explain.
func WithWords(words []string) Option {
	return func(c *Config) { c.Words = append([]string(nil), words...) }
}

// WithKeepBest restores the lowest-loss σ seen after every Optimize call.
func WithKeepBest() Option { return func(c *Config) { c.KeepBest = true } }

// WithStrictNumerics makes Optimize fail on a non-finite step instead of
// skipping it.
func WithStrictNumerics() Option { return func(c *Config) { c.StrictNumerics = true } }

// WithLogger sets the logger; nil keeps the current one.
func WithLogger(l *slog.Logger) Option {
	return func(c *Config) {
		if l != nil {
			c.Logger = l
		}
	}
}

// WithMetrics records every step in m.
func WithMetrics(m *Metrics) Option { return func(c *Config) { c.Metrics = m } }

// StepOption adjusts a single Optimize call.
type StepOption func(*stepConfig)

type stepConfig struct {
	learningRate float64
	ctx          context.Context
}

// WithStepLearningRate overrides the learning rate for one Optimize call.
func WithStepLearningRate(lr float64) StepOption {
	return func(s *stepConfig) { s.learningRate = lr }
}

// withContext makes Optimize stop early, every chunkSteps steps, once ctx is
// done.
func withContext(ctx context.Context) StepOption {
	return func(s *stepConfig) { s.ctx = ctx }
}
