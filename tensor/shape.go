package tensor

import "fmt"

// BroadcastShape returns the shape a and b broadcast to, aligning trailing
// dimensions; a dimension of 1 stretches to match the other operand.
func BroadcastShape(a, b []int) ([]int, error) {
	n := len(a)
	if len(b) > n {
		n = len(b)
	}
	out := make([]int, n)
	for i := 0; i < n; i++ {
		da, db := 1, 1
		if j := len(a) - n + i; j >= 0 {
			da = a[j]
		}
		if j := len(b) - n + i; j >= 0 {
			db = b[j]
		}
		switch {
		case da == db:
			out[i] = da
		case da == 1:
			out[i] = db
		case db == 1:
			out[i] = da
		default:
			return nil, fmt.Errorf("shapes %v and %v are not broadcastable", a, b)
		}
	}
	return out, nil
}

// BroadcastTo expands t to shape. t must be broadcastable to shape without
// changing shape itself.
func BroadcastTo(t *Tensor, shape []int) (*Tensor, error) {
	full, err := BroadcastShape(t.Shape, shape)
	if err != nil {
		return nil, err
	}
	if !SameShape(full, shape) {
		return nil, fmt.Errorf("cannot broadcast %v to %v", t.Shape, shape)
	}
	if SameShape(t.Shape, shape) {
		return t.Clone(), nil
	}

	// strides of t aligned to the output rank; broadcast axes get stride 0
	rank := len(shape)
	strides := make([]int, rank)
	stride := 1
	for i := len(t.Shape) - 1; i >= 0; i-- {
		axis := rank - len(t.Shape) + i
		if t.Shape[i] != 1 {
			strides[axis] = stride
		}
		stride *= t.Shape[i]
	}

	out := New(shape...)
	idx := make([]int, rank)
	for flat := range out.Data {
		src := 0
		for a := 0; a < rank; a++ {
			src += idx[a] * strides[a]
		}
		out.Data[flat] = t.Data[src]
		for a := rank - 1; a >= 0; a-- {
			idx[a]++
			if idx[a] < shape[a] {
				break
			}
			idx[a] = 0
		}
	}
	return out, nil
}

// SumAxis sums t over axis. With keepDim the reduced axis stays with size 1.
func SumAxis(t *Tensor, axis int, keepDim bool) (*Tensor, error) {
	if axis < 0 || axis >= len(t.Shape) {
		return nil, fmt.Errorf("axis %d out of range for shape %v", axis, t.Shape)
	}
	outer := Volume(t.Shape[:axis])
	n := t.Shape[axis]
	inner := Volume(t.Shape[axis+1:])

	shape := make([]int, 0, len(t.Shape))
	shape = append(shape, t.Shape[:axis]...)
	if keepDim {
		shape = append(shape, 1)
	}
	shape = append(shape, t.Shape[axis+1:]...)

	out := New(shape...)
	for o := 0; o < outer; o++ {
		for k := 0; k < n; k++ {
			base := (o*n + k) * inner
			for i := 0; i < inner; i++ {
				out.Data[o*inner+i] += t.Data[base+i]
			}
		}
	}
	return out, nil
}

// Stack joins same-shaped tensors along a new leading axis.
func Stack(ts []*Tensor) (*Tensor, error) {
	if len(ts) == 0 {
		return nil, fmt.Errorf("Stack: no tensors")
	}
	shape := ts[0].Shape
	inner := Volume(shape)
	out := New(append([]int{len(ts)}, shape...)...)
	for i, t := range ts {
		if !SameShape(t.Shape, shape) {
			return nil, fmt.Errorf("Stack: tensor %d has shape %v, want %v", i, t.Shape, shape)
		}
		copy(out.Data[i*inner:(i+1)*inner], t.Data)
	}
	return out, nil
}
