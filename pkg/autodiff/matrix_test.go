package autodiff

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/mat"
)

func TestMatrixSoftmax(t *testing.T) {
	tests := []struct {
		x   []float64
		exp []float64
	}{
		{
			x:   []float64{1, 1, 2},
			exp: []float64{0.21194155761708544, 0.21194155761708544, 0.5761168847658291},
		},
		{
			x:   []float64{0.5, -1, 12},
			exp: []float64{1.0129968084041115e-05, 2.260301400890577e-06, 0.999987609730515},
		},
		{
			x:   []float64{0.2, 7, 13},
			exp: []float64{2.753938637646471e-06, 0.002472616347182327, 0.9975246297141801},
		},
	}
	for i, tc := range tests {
		t.Run(fmt.Sprintf("%d: %v", i, tc.x), func(t *testing.T) {
			m, err := NewMatrixFromSlice(tc.x, 1, len(tc.x))
			if err != nil {
				t.Fatal(err)
			}
			s, err := m.Softmax()
			if err != nil {
				t.Fatal(err)
			}
			if diff := cmp.Diff(tc.exp, s.Row(0), cmpopts.EquateApprox(0, 1e-12)); diff != "" {
				t.Errorf("%s", diff)
			}
		})
	}
}

func TestMatrixMatMulAdd(t *testing.T) {
	a, _ := NewMatrixFromRows([][]float64{{1, 2}, {3, 4}, {5, 6}})
	b, _ := NewMatrixFromRows([][]float64{{1, 0, -1}, {2, 1, 0}})

	c, err := a.MatMul(b)
	if err != nil {
		t.Fatal(err)
	}
	exp := mat.NewDense(3, 3, []float64{5, 2, -1, 11, 4, -3, 17, 6, -5})
	if !mat.EqualApprox(c.Dense, exp, 1e-12) {
		t.Errorf("MatMul mismatch:\n%v", mat.Formatted(c.Dense))
	}

	if _, err := a.MatMul(a); err == nil {
		t.Error("expected dimension error for 3x2 * 3x2")
	}
	if _, err := a.Add(b); err == nil {
		t.Error("expected dimension error for 3x2 + 2x3")
	}

	sum, _ := a.Add(a)
	if total, _ := sum.Sum(); total != 42 {
		t.Errorf("got sum %v, exp 42", total)
	}
	if mean, _ := a.Mean(); mean != 3.5 {
		t.Errorf("got mean %v, exp 3.5", mean)
	}
}

func TestNewUniformMatrixReproducible(t *testing.T) {
	a, err := NewUniformMatrix(4, 3, -0.5, 0.5, rand.NewSource(7))
	if err != nil {
		t.Fatal(err)
	}
	b, _ := NewUniformMatrix(4, 3, -0.5, 0.5, rand.NewSource(7))
	c, _ := NewUniformMatrix(4, 3, -0.5, 0.5, rand.NewSource(8))

	if !mat.Equal(a.Dense, b.Dense) {
		t.Error("same seed produced different matrices")
	}
	if mat.Equal(a.Dense, c.Dense) {
		t.Error("different seeds produced identical matrices")
	}
	for i := 0; i < a.Rows; i++ {
		for _, v := range a.Row(i) {
			if v < -0.5 || v > 0.5 {
				t.Errorf("value %v outside [-0.5, 0.5]", v)
			}
		}
	}

	if _, err := NewUniformMatrix(2, 2, 1, -1, nil); err == nil {
		t.Error("expected error for min > max")
	}
}

func TestNewMatrixErrors(t *testing.T) {
	if _, err := NewMatrix(0, 3); err == nil {
		t.Error("expected error for zero rows")
	}
	if _, err := NewMatrixFromSlice([]float64{1, 2, 3}, 2, 2); err == nil {
		t.Error("expected error for wrong slice length")
	}
	if _, err := NewMatrixFromRows([][]float64{{1, 2}, {3}}); err == nil {
		t.Error("expected error for ragged rows")
	}
}

func TestNewMatrixFromSliceCopies(t *testing.T) {
	data := []float64{1, 2, 3, 4}
	m, err := NewMatrixFromSlice(data, 2, 2)
	if err != nil {
		t.Fatal(err)
	}
	data[0] = 100
	if m.At(0, 0) != 1 {
		t.Errorf("matrix shares caller storage: got %v", m.At(0, 0))
	}
}
