package interpreter

import "math"

// Transform maps σ to the noise weight applied to a position. Implementations
// must satisfy Apply(0) == 0 and be non-decreasing on [0, ∞).
type Transform interface {
	Apply(sigma float64) float64
	// Derivative of Apply at sigma.
	Derivative(sigma float64) float64
	Name() string
}

// Identity uses σ itself as the noise weight.
type Identity struct{}

func (Identity) Apply(s float64) float64    { return s }
func (Identity) Derivative(float64) float64 { return 1 }
func (Identity) Name() string               { return "identity" }

// Square uses σ².
type Square struct{}

func (Square) Apply(s float64) float64      { return s * s }
func (Square) Derivative(s float64) float64 { return 2 * s }
func (Square) Name() string                 { return "square" }

// ShiftedSoftplus uses softplus(σ) - log 2, which is zero at the origin.
type ShiftedSoftplus struct{}

func (ShiftedSoftplus) Apply(s float64) float64 {
	return math.Log1p(math.Exp(s)) - math.Ln2
}

func (ShiftedSoftplus) Derivative(s float64) float64 { return 1 / (1 + math.Exp(-s)) }
func (ShiftedSoftplus) Name() string                 { return "softplus" }

// TransformLookup maps the names accepted by configuration files to transforms.
var TransformLookup = map[string]Transform{
	"identity": Identity{},
	"square":   Square{},
	"softplus": ShiftedSoftplus{},
}
