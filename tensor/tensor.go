package tensor

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
)

// Tensor is a simple n-D array backed by a flat []float64 in row-major order.
type Tensor struct {
	Data  []float64
	Shape []int
}

// New allocates a zero Tensor of given shape (product of dims = len(Data)).
func New(shape ...int) *Tensor {
	return &Tensor{
		Data:  make([]float64, Volume(shape)),
		Shape: append([]int(nil), shape...),
	}
}

// NewWithData creates a 1-D tensor from existing data slice.
func NewWithData(data []float64) *Tensor {
	return &Tensor{
		Data:  append([]float64(nil), data...),
		Shape: []int{len(data)},
	}
}

// FromData copies data into a tensor of the given shape.
func FromData(data []float64, shape ...int) (*Tensor, error) {
	if Volume(shape) != len(data) {
		return nil, fmt.Errorf("data length %d does not match shape %v", len(data), shape)
	}
	return &Tensor{
		Data:  append([]float64(nil), data...),
		Shape: append([]int(nil), shape...),
	}, nil
}

// Full returns a tensor of the given shape with every element set to v.
func Full(v float64, shape ...int) *Tensor {
	t := New(shape...)
	for i := range t.Data {
		t.Data[i] = v
	}
	return t
}

// Volume is the number of elements described by shape.
func Volume(shape []int) int {
	total := 1
	for _, d := range shape {
		total *= d
	}
	return total
}

// Rank returns the number of dimensions.
func (t *Tensor) Rank() int { return len(t.Shape) }

// Size returns the number of elements.
func (t *Tensor) Size() int { return len(t.Data) }

// Clone returns a deep copy.
func (t *Tensor) Clone() *Tensor {
	return &Tensor{
		Data:  append([]float64(nil), t.Data...),
		Shape: append([]int(nil), t.Shape...),
	}
}

// Reshape returns a tensor sharing t's data with a new shape.
func (t *Tensor) Reshape(shape ...int) (*Tensor, error) {
	if Volume(shape) != len(t.Data) {
		return nil, fmt.Errorf("cannot reshape %v into %v", t.Shape, shape)
	}
	return &Tensor{Data: t.Data, Shape: append([]int(nil), shape...)}, nil
}

// Row returns a copy of the i-th slice along the first axis.
func (t *Tensor) Row(i int) *Tensor {
	if len(t.Shape) == 0 || i < 0 || i >= t.Shape[0] {
		panic(fmt.Sprintf("Row: index %d out of bounds for shape %v", i, t.Shape))
	}
	inner := Volume(t.Shape[1:])
	out := New(t.Shape[1:]...)
	copy(out.Data, t.Data[i*inner:(i+1)*inner])
	return out
}

// IsFinite reports whether no element is NaN or ±Inf.
func (t *Tensor) IsFinite() bool {
	for _, v := range t.Data {
		if math.IsNaN(v) || math.IsInf(v, 0) {
			return false
		}
	}
	return true
}

// SameShape reports whether a and b have identical shapes.
func SameShape(a, b []int) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func checkSame(op string, a, b *Tensor) error {
	if !SameShape(a.Shape, b.Shape) {
		return fmt.Errorf("%s: shape mismatch: %v vs %v", op, a.Shape, b.Shape)
	}
	return nil
}

// Add returns a+b (same shape), or error if shapes differ.
func Add(a, b *Tensor) (*Tensor, error) {
	if err := checkSame("Add", a, b); err != nil {
		return nil, err
	}
	out := New(a.Shape...)
	floats.AddTo(out.Data, a.Data, b.Data)
	return out, nil
}

// Sub returns a-b (same shape).
func Sub(a, b *Tensor) (*Tensor, error) {
	if err := checkSame("Sub", a, b); err != nil {
		return nil, err
	}
	out := New(a.Shape...)
	floats.SubTo(out.Data, a.Data, b.Data)
	return out, nil
}

// MulElem returns the element-wise product a⊙b (same shape).
func MulElem(a, b *Tensor) (*Tensor, error) {
	if err := checkSame("MulElem", a, b); err != nil {
		return nil, err
	}
	out := New(a.Shape...)
	floats.MulTo(out.Data, a.Data, b.Data)
	return out, nil
}

// Scale returns c·a.
func Scale(c float64, a *Tensor) *Tensor {
	out := New(a.Shape...)
	floats.ScaleTo(out.Data, c, a.Data)
	return out
}

// Sum returns the sum of all elements.
func (t *Tensor) Sum() float64 { return floats.Sum(t.Data) }

// Mean returns the mean of all elements, or 0 for an empty tensor.
func (t *Tensor) Mean() float64 {
	if len(t.Data) == 0 {
		return 0
	}
	return floats.Sum(t.Data) / float64(len(t.Data))
}

// MatMul returns a×b (2-D only), or error if dims mismatch.
func MatMul(a, b *Tensor) (*Tensor, error) {
	if len(a.Shape) != 2 || len(b.Shape) != 2 {
		return nil, fmt.Errorf("MatMul requires 2-D tensors, got %v and %v", a.Shape, b.Shape)
	}
	r, k := a.Shape[0], a.Shape[1]
	k2, c := b.Shape[0], b.Shape[1]
	if k != k2 {
		return nil, fmt.Errorf("inner dimensions must match: %d vs %d", k, k2)
	}
	out := New(r, c)
	col := make([]float64, k)
	for j := 0; j < c; j++ {
		for t := 0; t < k; t++ {
			col[t] = b.Data[t*c+j]
		}
		for i := 0; i < r; i++ {
			out.Data[i*c+j] = floats.Dot(a.Data[i*k:(i+1)*k], col)
		}
	}
	return out, nil
}

func (t *Tensor) offset(op string, indices []int) int {
	if len(indices) != len(t.Shape) {
		panic(fmt.Sprintf("%s: expected %d indices, got %d", op, len(t.Shape), len(indices)))
	}
	idx := 0
	stride := 1
	for i := len(indices) - 1; i >= 0; i-- {
		if indices[i] < 0 || indices[i] >= t.Shape[i] {
			panic(fmt.Sprintf("%s: index %d out of bounds for dimension %d (shape: %v)", op, indices[i], i, t.Shape))
		}
		idx += indices[i] * stride
		stride *= t.Shape[i]
	}
	return idx
}

// At returns the element at the given indices.
func (t *Tensor) At(indices ...int) float64 {
	return t.Data[t.offset("At", indices)]
}

// Set sets the element at the given indices to the given value.
func (t *Tensor) Set(value float64, indices ...int) {
	t.Data[t.offset("Set", indices)] = value
}

func (t *Tensor) String() string {
	return fmt.Sprintf("Tensor%v%v", t.Shape, t.Data)
}
