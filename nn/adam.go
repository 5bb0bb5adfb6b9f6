package nn

import "math"

// Adam keeps first and second moment estimates for a flat parameter vector.
type Adam struct {
	M, V  []float64
	LR    float64
	Beta1 float64 // Typically 0.9
	Beta2 float64 // Typically 0.999
	Eps   float64
	T     int // Timestep (for bias correction)
}

func NewAdam(numParams int, lr float64) *Adam {
	return &Adam{
		M:     make([]float64, numParams),
		V:     make([]float64, numParams),
		LR:    lr,
		Beta1: 0.9,
		Beta2: 0.999,
		Eps:   1e-8,
	}
}

// Step applies one bias-corrected update to params in place.
func (opt *Adam) Step(params, grads []float64) {
	opt.T++

	bc1 := 1.0 - math.Pow(opt.Beta1, float64(opt.T))
	bc2 := 1.0 - math.Pow(opt.Beta2, float64(opt.T))

	for i := range params {
		g := grads[i]
		opt.M[i] = opt.Beta1*opt.M[i] + (1-opt.Beta1)*g
		opt.V[i] = opt.Beta2*opt.V[i] + (1-opt.Beta2)*g*g

		mHat := opt.M[i] / bc1
		vHat := opt.V[i] / bc2
		params[i] -= opt.LR * mHat / (math.Sqrt(vHat) + opt.Eps)
	}
}
