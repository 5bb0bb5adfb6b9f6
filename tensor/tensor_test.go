package tensor

import (
	"math"
	"testing"
)

func TestNewShape(t *testing.T) {
	t1 := New(2, 3)
	if len(t1.Data) != 6 {
		t.Fatalf("expected 6 elements, got %d", len(t1.Data))
	}
	if len(t1.Shape) != 2 || t1.Shape[0] != 2 || t1.Shape[1] != 3 {
		t.Fatalf("unexpected shape: %v", t1.Shape)
	}
}

func TestAdd(t *testing.T) {
	a := &Tensor{Data: []float64{1, 2, 3}, Shape: []int{3}}
	b := &Tensor{Data: []float64{4, 5, 6}, Shape: []int{3}}
	c, err := Add(a, b)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{5, 7, 9}
	for i := range want {
		if c.Data[i] != want[i] {
			t.Errorf("at %d, got %f, want %f", i, c.Data[i], want[i])
		}
	}
	if _, err := Add(a, New(2)); err == nil {
		t.Fatal("expected shape mismatch error")
	}
}

func TestSubMulScale(t *testing.T) {
	a := &Tensor{Data: []float64{1, 2, 3}, Shape: []int{3}}
	b := &Tensor{Data: []float64{4, 5, 6}, Shape: []int{3}}
	d, err := Sub(b, a)
	if err != nil {
		t.Fatal(err)
	}
	m, err := MulElem(a, b)
	if err != nil {
		t.Fatal(err)
	}
	s := Scale(2, a)
	for i, want := range []float64{3, 3, 3} {
		if d.Data[i] != want {
			t.Errorf("Sub at %d: got %f, want %f", i, d.Data[i], want)
		}
	}
	for i, want := range []float64{4, 10, 18} {
		if m.Data[i] != want {
			t.Errorf("MulElem at %d: got %f, want %f", i, m.Data[i], want)
		}
	}
	for i, want := range []float64{2, 4, 6} {
		if s.Data[i] != want {
			t.Errorf("Scale at %d: got %f, want %f", i, s.Data[i], want)
		}
	}
}

func TestMatMul(t *testing.T) {
	a := &Tensor{Data: []float64{1, 2, 3, 4}, Shape: []int{2, 2}}
	b := &Tensor{Data: []float64{5, 6, 7, 8}, Shape: []int{2, 2}}
	c, err := MatMul(a, b)
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{19, 22, 43, 50}
	for i := range want {
		if c.Data[i] != want[i] {
			t.Errorf("at %d, got %f, want %f", i, c.Data[i], want[i])
		}
	}
}

func TestAtSetRow(t *testing.T) {
	x := New(2, 3)
	x.Set(7, 1, 2)
	if x.At(1, 2) != 7 || x.Data[5] != 7 {
		t.Fatalf("Set/At mismatch: %v", x.Data)
	}
	r := x.Row(1)
	if len(r.Shape) != 1 || r.Shape[0] != 3 || r.Data[2] != 7 {
		t.Fatalf("unexpected row %v", r)
	}
}

func TestIsFinite(t *testing.T) {
	x := NewWithData([]float64{1, 2})
	if !x.IsFinite() {
		t.Fatal("expected finite")
	}
	x.Data[1] = math.NaN()
	if x.IsFinite() {
		t.Fatal("expected NaN to be detected")
	}
	x.Data[1] = math.Inf(-1)
	if x.IsFinite() {
		t.Fatal("expected Inf to be detected")
	}
}

func TestBroadcastTo(t *testing.T) {
	row := &Tensor{Data: []float64{1, 2, 3}, Shape: []int{1, 3}}
	out, err := BroadcastTo(row, []int{2, 3})
	if err != nil {
		t.Fatal(err)
	}
	want := []float64{1, 2, 3, 1, 2, 3}
	for i := range want {
		if out.Data[i] != want[i] {
			t.Errorf("at %d, got %f, want %f", i, out.Data[i], want[i])
		}
	}

	col := &Tensor{Data: []float64{1, 2}, Shape: []int{2, 1}}
	out, err = BroadcastTo(col, []int{2, 3})
	if err != nil {
		t.Fatal(err)
	}
	want = []float64{1, 1, 1, 2, 2, 2}
	for i := range want {
		if out.Data[i] != want[i] {
			t.Errorf("col at %d, got %f, want %f", i, out.Data[i], want[i])
		}
	}

	vec := NewWithData([]float64{4, 5, 6})
	out, err = BroadcastTo(vec, []int{2, 3})
	if err != nil {
		t.Fatal(err)
	}
	if out.At(1, 0) != 4 || out.At(1, 2) != 6 {
		t.Errorf("unexpected vector broadcast %v", out.Data)
	}

	if _, err := BroadcastTo(NewWithData([]float64{1, 2}), []int{2, 3}); err == nil {
		t.Fatal("expected error for incompatible shapes")
	}
	if _, err := BroadcastTo(New(2, 3), []int{3}); err == nil {
		t.Fatal("expected error when broadcasting would grow the target")
	}
}

func TestSumAxis(t *testing.T) {
	x := &Tensor{Data: []float64{1, 2, 3, 4, 5, 6}, Shape: []int{2, 3}}
	s0, err := SumAxis(x, 0, true)
	if err != nil {
		t.Fatal(err)
	}
	if len(s0.Shape) != 2 || s0.Shape[0] != 1 || s0.Shape[1] != 3 {
		t.Fatalf("unexpected shape %v", s0.Shape)
	}
	for i, want := range []float64{5, 7, 9} {
		if s0.Data[i] != want {
			t.Errorf("axis 0 at %d: got %f, want %f", i, s0.Data[i], want)
		}
	}
	s1, err := SumAxis(x, 1, false)
	if err != nil {
		t.Fatal(err)
	}
	if len(s1.Shape) != 1 || s1.Shape[0] != 2 || s1.Data[0] != 6 || s1.Data[1] != 15 {
		t.Fatalf("unexpected axis 1 sum %v", s1)
	}
	if _, err := SumAxis(x, 2, true); err == nil {
		t.Fatal("expected axis error")
	}
}

func TestStack(t *testing.T) {
	a := NewWithData([]float64{1, 2})
	b := NewWithData([]float64{3, 4})
	s, err := Stack([]*Tensor{a, b})
	if err != nil {
		t.Fatal(err)
	}
	if s.Shape[0] != 2 || s.Shape[1] != 2 || s.At(1, 0) != 3 {
		t.Fatalf("unexpected stack %v", s)
	}
	if _, err := Stack([]*Tensor{a, New(3)}); err == nil {
		t.Fatal("expected mismatch error")
	}
}
