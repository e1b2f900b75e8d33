package autodiff

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Matrix represents a 2D matrix of float64 values backed by a gonum Dense
type Matrix struct {
	Rows  int
	Cols  int
	Dense *mat.Dense
}

// NewMatrix creates a new zero matrix with the specified dimensions
func NewMatrix(rows, cols int) (*Matrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid matrix dimensions: rows=%d, cols=%d (must be positive)", rows, cols)
	}

	return &Matrix{
		Rows:  rows,
		Cols:  cols,
		Dense: mat.NewDense(rows, cols, nil),
	}, nil
}

// NewMatrixFromSlice creates a matrix from a flat row-major slice.
// The slice is copied.
func NewMatrixFromSlice(data []float64, rows, cols int) (*Matrix, error) {
	if rows <= 0 || cols <= 0 {
		return nil, fmt.Errorf("invalid matrix dimensions: rows=%d, cols=%d (must be positive)", rows, cols)
	}
	if rows*cols != len(data) {
		return nil, fmt.Errorf("dimension mismatch: %d*%d != %d", rows, cols, len(data))
	}

	backing := make([]float64, len(data))
	copy(backing, data)

	return &Matrix{
		Rows:  rows,
		Cols:  cols,
		Dense: mat.NewDense(rows, cols, backing),
	}, nil
}

// NewMatrixFromRows creates a matrix from a slice of equally sized rows
func NewMatrixFromRows(rows [][]float64) (*Matrix, error) {
	if len(rows) == 0 {
		return nil, fmt.Errorf("cannot create matrix from zero rows")
	}
	cols := len(rows[0])
	flat := make([]float64, 0, len(rows)*cols)
	for i, r := range rows {
		if len(r) != cols {
			return nil, fmt.Errorf("row %d has %d columns, expected %d", i, len(r), cols)
		}
		flat = append(flat, r...)
	}
	return NewMatrixFromSlice(flat, len(rows), cols)
}

// NewUniformMatrix creates a matrix with values drawn from U(min, max).
// A nil src falls back to a fixed seed so initialisation stays reproducible.
func NewUniformMatrix(rows, cols int, min, max float64, src rand.Source) (*Matrix, error) {
	if min > max {
		return nil, fmt.Errorf("invalid uniform bounds: min=%f > max=%f", min, max)
	}
	m, err := NewMatrix(rows, cols)
	if err != nil {
		return nil, err
	}
	if src == nil {
		src = rand.NewSource(1)
	}

	dist := distuv.Uniform{Min: min, Max: max, Src: src}
	for i := 0; i < rows; i++ {
		row := m.Dense.RawRowView(i)
		for j := range row {
			row[j] = dist.Rand()
		}
	}

	return m, nil
}

// At returns the element at row i, column j
func (m *Matrix) At(i, j int) float64 {
	return m.Dense.At(i, j)
}

// Set sets the element at row i, column j
func (m *Matrix) Set(i, j int, v float64) {
	m.Dense.Set(i, j, v)
}

// Row returns row i as a slice sharing the matrix storage
func (m *Matrix) Row(i int) []float64 {
	return m.Dense.RawRowView(i)
}

// Zero sets every element to zero
func (m *Matrix) Zero() {
	m.Dense.Zero()
}

// MatMul performs matrix multiplication a*b
func (a *Matrix) MatMul(b *Matrix) (*Matrix, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("cannot multiply nil matrices")
	}

	if a.Cols != b.Rows {
		return nil, fmt.Errorf("matrix dimensions don't match for multiplication: a(%dx%d), b(%dx%d)",
			a.Rows, a.Cols, b.Rows, b.Cols)
	}

	result, err := NewMatrix(a.Rows, b.Cols)
	if err != nil {
		return nil, err
	}
	result.Dense.Mul(a.Dense, b.Dense)

	return result, nil
}

// Add adds two matrices element-wise
func (a *Matrix) Add(b *Matrix) (*Matrix, error) {
	if a == nil || b == nil {
		return nil, fmt.Errorf("cannot add nil matrices")
	}

	if a.Rows != b.Rows || a.Cols != b.Cols {
		return nil, fmt.Errorf("matrix dimensions don't match for addition: a(%dx%d), b(%dx%d)",
			a.Rows, a.Cols, b.Rows, b.Cols)
	}

	result, err := NewMatrix(a.Rows, a.Cols)
	if err != nil {
		return nil, err
	}
	result.Dense.Add(a.Dense, b.Dense)

	return result, nil
}

// Softmax applies the softmax function to each row of the matrix
func (m *Matrix) Softmax() (*Matrix, error) {
	if m == nil {
		return nil, fmt.Errorf("cannot apply softmax to nil matrix")
	}

	result, err := NewMatrix(m.Rows, m.Cols)
	if err != nil {
		return nil, err
	}

	for i := 0; i < m.Rows; i++ {
		src := m.Row(i)
		dst := result.Row(i)

		// subtract the row max so exp never overflows
		max := floats.Max(src)
		for j, v := range src {
			dst[j] = math.Exp(v - max)
		}
		floats.Scale(1/floats.Sum(dst), dst)
	}

	return result, nil
}

// Sum returns the sum of all elements in the matrix
func (m *Matrix) Sum() (float64, error) {
	if m == nil {
		return 0, fmt.Errorf("cannot sum nil matrix")
	}
	return mat.Sum(m.Dense), nil
}

// Mean returns the mean of all elements in the matrix
func (m *Matrix) Mean() (float64, error) {
	if m == nil {
		return 0, fmt.Errorf("cannot calculate mean of nil matrix")
	}
	return mat.Sum(m.Dense) / float64(m.Rows*m.Cols), nil
}

// HasNonFinite reports whether any element is NaN or ±Inf
func (m *Matrix) HasNonFinite() bool {
	for i := 0; i < m.Rows; i++ {
		for _, v := range m.Row(i) {
			if math.IsNaN(v) || math.IsInf(v, 0) {
				return true
			}
		}
	}
	return false
}
