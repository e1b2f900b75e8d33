package autodiff

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Tensor represents a tensor with gradient tracking capabilities
type Tensor struct {
	Data       *Matrix
	Grad       *Matrix
	Requires   bool
	BackwardFn func()
	Children   []*Tensor
	Name       string // Optional name for debugging
}

// TensorConfig holds configuration options for creating a tensor
type TensorConfig struct {
	RequiresGrad bool
	Name         string
}

// DefaultTensorConfig returns the default configuration for tensors
func DefaultTensorConfig() *TensorConfig {
	return &TensorConfig{
		RequiresGrad: false,
		Name:         "",
	}
}

// NewTensor creates a new tensor from a matrix with the specified configuration
func NewTensor(data *Matrix, config *TensorConfig) (*Tensor, error) {
	if data == nil {
		return nil, fmt.Errorf("data matrix cannot be nil")
	}

	if config == nil {
		config = DefaultTensorConfig()
	}

	var grad *Matrix
	var err error

	if config.RequiresGrad {
		grad, err = NewMatrix(data.Rows, data.Cols)
		if err != nil {
			return nil, fmt.Errorf("failed to create gradient matrix: %w", err)
		}
	}

	return &Tensor{
		Data:     data,
		Grad:     grad,
		Requires: config.RequiresGrad,
		Name:     config.Name,
	}, nil
}

// NewTensorFromSlice creates a tensor from a flat row-major slice
func NewTensorFromSlice(data []float64, rows, cols int, config *TensorConfig) (*Tensor, error) {
	m, err := NewMatrixFromSlice(data, rows, cols)
	if err != nil {
		return nil, err
	}
	return NewTensor(m, config)
}

// NewZerosTensor creates a new tensor filled with zeros
func NewZerosTensor(rows, cols int, config *TensorConfig) (*Tensor, error) {
	data, err := NewMatrix(rows, cols)
	if err != nil {
		return nil, fmt.Errorf("failed to create zero matrix: %w", err)
	}

	return NewTensor(data, config)
}

// Shape returns [rows, cols]
func (t *Tensor) Shape() []int {
	return []int{t.Data.Rows, t.Data.Cols}
}

// Item returns the single value of a 1x1 tensor
func (t *Tensor) Item() (float64, error) {
	if t.Data.Rows != 1 || t.Data.Cols != 1 {
		return 0, fmt.Errorf("item requires a 1x1 tensor, got %dx%d", t.Data.Rows, t.Data.Cols)
	}
	return t.Data.At(0, 0), nil
}

// ZeroGrad zeros out the gradient
func (t *Tensor) ZeroGrad() error {
	if !t.Requires {
		return fmt.Errorf("cannot zero gradient for tensor that doesn't require gradients")
	}

	if t.Grad == nil {
		return fmt.Errorf("gradient matrix is nil")
	}

	t.Grad.Zero()
	return nil
}

// Backward computes gradients of a scalar tensor with respect to every
// tensor in its graph that requires them. Gradients accumulate.
func (t *Tensor) Backward() error {
	if t.Data.Rows != 1 || t.Data.Cols != 1 {
		return fmt.Errorf("backward requires a scalar tensor, got %dx%d", t.Data.Rows, t.Data.Cols)
	}
	if !t.Requires || t.Grad == nil {
		return fmt.Errorf("tensor %q does not require gradients", t.Name)
	}
	t.Grad.Set(0, 0, 1.0)

	// Topological sort for backward pass
	visited := make(map[*Tensor]bool)
	topo := make([]*Tensor, 0)

	var buildTopo func(node *Tensor) error
	buildTopo = func(node *Tensor) error {
		if visited[node] {
			return nil
		}

		visited[node] = true

		for _, child := range node.Children {
			if child == nil {
				return fmt.Errorf("nil child in tensor %s", node.Name)
			}

			if err := buildTopo(child); err != nil {
				return err
			}
		}

		topo = append(topo, node)
		return nil
	}

	if err := buildTopo(t); err != nil {
		return fmt.Errorf("failed to build topology: %w", err)
	}

	for i := len(topo) - 1; i >= 0; i-- {
		if topo[i].BackwardFn != nil {
			topo[i].BackwardFn()
		}
	}

	return nil
}

// newResult allocates the output tensor of an op over the given inputs
func newResult(rows, cols int, name string, inputs ...*Tensor) (*Tensor, error) {
	requires := false
	for _, in := range inputs {
		requires = requires || in.Requires
	}

	result, err := NewZerosTensor(rows, cols, &TensorConfig{RequiresGrad: requires, Name: name})
	if err != nil {
		return nil, fmt.Errorf("failed to create result tensor: %w", err)
	}
	if requires {
		result.Children = append(result.Children, inputs...)
	}
	return result, nil
}

func accumulate(dst *Matrix, delta mat.Matrix) {
	dst.Dense.Add(dst.Dense, delta)
}

func checkNil(tensors ...*Tensor) error {
	for _, t := range tensors {
		if t == nil {
			return fmt.Errorf("input tensors cannot be nil")
		}
	}
	return nil
}

// MatMul performs matrix multiplication with gradient tracking
func MatMul(a, b *Tensor) (*Tensor, error) {
	if err := checkNil(a, b); err != nil {
		return nil, err
	}

	if a.Data.Cols != b.Data.Rows {
		return nil, fmt.Errorf("matrix dimensions don't match for multiplication: a(%dx%d), b(%dx%d)",
			a.Data.Rows, a.Data.Cols, b.Data.Rows, b.Data.Cols)
	}

	product, err := a.Data.MatMul(b.Data)
	if err != nil {
		return nil, err
	}
	result, err := newResult(a.Data.Rows, b.Data.Cols, "matmul_result", a, b)
	if err != nil {
		return nil, err
	}
	result.Data = product

	if result.Requires {
		result.BackwardFn = func() {
			if a.Requires {
				// dL/dA = dL/dC * B^T
				var dA mat.Dense
				dA.Mul(result.Grad.Dense, b.Data.Dense.T())
				accumulate(a.Grad, &dA)
			}

			if b.Requires {
				// dL/dB = A^T * dL/dC
				var dB mat.Dense
				dB.Mul(a.Data.Dense.T(), result.Grad.Dense)
				accumulate(b.Grad, &dB)
			}
		}
	}

	return result, nil
}

// Add performs element-wise addition with gradient tracking
func Add(a, b *Tensor) (*Tensor, error) {
	if err := checkNil(a, b); err != nil {
		return nil, err
	}

	if a.Data.Rows != b.Data.Rows || a.Data.Cols != b.Data.Cols {
		return nil, fmt.Errorf("matrix dimensions don't match for addition: a(%dx%d), b(%dx%d)",
			a.Data.Rows, a.Data.Cols, b.Data.Rows, b.Data.Cols)
	}

	sum, err := a.Data.Add(b.Data)
	if err != nil {
		return nil, err
	}
	result, err := newResult(a.Data.Rows, a.Data.Cols, "add_result", a, b)
	if err != nil {
		return nil, err
	}
	result.Data = sum

	if result.Requires {
		result.BackwardFn = func() {
			if a.Requires {
				accumulate(a.Grad, result.Grad.Dense)
			}
			if b.Requires {
				accumulate(b.Grad, result.Grad.Dense)
			}
		}
	}

	return result, nil
}

// AddRowVector adds a 1xC row vector to every row of an RxC tensor
func AddRowVector(a, v *Tensor) (*Tensor, error) {
	if err := checkNil(a, v); err != nil {
		return nil, err
	}

	if v.Data.Rows != 1 || v.Data.Cols != a.Data.Cols {
		return nil, fmt.Errorf("row vector must be 1x%d, got %dx%d", a.Data.Cols, v.Data.Rows, v.Data.Cols)
	}

	result, err := newResult(a.Data.Rows, a.Data.Cols, "add_row_vector_result", a, v)
	if err != nil {
		return nil, err
	}
	bias := v.Data.Row(0)
	for i := 0; i < a.Data.Rows; i++ {
		floats.AddTo(result.Data.Row(i), a.Data.Row(i), bias)
	}

	if result.Requires {
		result.BackwardFn = func() {
			if a.Requires {
				accumulate(a.Grad, result.Grad.Dense)
			}
			if v.Requires {
				dv := v.Grad.Row(0)
				for i := 0; i < result.Data.Rows; i++ {
					floats.Add(dv, result.Grad.Row(i))
				}
			}
		}
	}

	return result, nil
}

// Multiply performs element-wise multiplication (Hadamard product) with gradient tracking
func Multiply(a, b *Tensor) (*Tensor, error) {
	if err := checkNil(a, b); err != nil {
		return nil, err
	}

	if a.Data.Rows != b.Data.Rows || a.Data.Cols != b.Data.Cols {
		return nil, fmt.Errorf("matrix dimensions don't match for element-wise multiplication: a(%dx%d), b(%dx%d)",
			a.Data.Rows, a.Data.Cols, b.Data.Rows, b.Data.Cols)
	}

	result, err := newResult(a.Data.Rows, a.Data.Cols, "multiply_result", a, b)
	if err != nil {
		return nil, err
	}
	result.Data.Dense.MulElem(a.Data.Dense, b.Data.Dense)

	if result.Requires {
		result.BackwardFn = func() {
			if a.Requires {
				var dA mat.Dense
				dA.MulElem(result.Grad.Dense, b.Data.Dense)
				accumulate(a.Grad, &dA)
			}
			if b.Requires {
				var dB mat.Dense
				dB.MulElem(result.Grad.Dense, a.Data.Dense)
				accumulate(b.Grad, &dB)
			}
		}
	}

	return result, nil
}

// RowDots scores one query row against the matching row of every key:
// out[b][k] = query[b] . keys[k][b], shape (batch, len(keys)).
func RowDots(query *Tensor, keys []*Tensor) (*Tensor, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("at least one key is required")
	}
	if err := checkNil(append([]*Tensor{query}, keys...)...); err != nil {
		return nil, err
	}
	for k, key := range keys {
		if key.Data.Rows != query.Data.Rows || key.Data.Cols != query.Data.Cols {
			return nil, fmt.Errorf("key %d dimensions don't match query: key(%dx%d), query(%dx%d)",
				k, key.Data.Rows, key.Data.Cols, query.Data.Rows, query.Data.Cols)
		}
	}

	inputs := append([]*Tensor{query}, keys...)
	result, err := newResult(query.Data.Rows, len(keys), "row_dots_result", inputs...)
	if err != nil {
		return nil, err
	}
	for b := 0; b < query.Data.Rows; b++ {
		q, out := query.Data.Row(b), result.Data.Row(b)
		for k, key := range keys {
			out[k] = floats.Dot(q, key.Data.Row(b))
		}
	}

	if result.Requires {
		result.BackwardFn = func() {
			for b := 0; b < query.Data.Rows; b++ {
				g := result.Grad.Row(b)
				for k, key := range keys {
					if query.Requires {
						floats.AddScaled(query.Grad.Row(b), g[k], key.Data.Row(b))
					}
					if key.Requires {
						floats.AddScaled(key.Grad.Row(b), g[k], query.Data.Row(b))
					}
				}
			}
		}
	}

	return result, nil
}

// ScalarMultiply multiplies a tensor by a scalar value with gradient tracking
func ScalarMultiply(a *Tensor, scalar float64) (*Tensor, error) {
	if err := checkNil(a); err != nil {
		return nil, err
	}

	result, err := newResult(a.Data.Rows, a.Data.Cols, "scalar_multiply_result", a)
	if err != nil {
		return nil, err
	}
	result.Data.Dense.Scale(scalar, a.Data.Dense)

	if result.Requires {
		result.BackwardFn = func() {
			var dA mat.Dense
			dA.Scale(scalar, result.Grad.Dense)
			accumulate(a.Grad, &dA)
		}
	}

	return result, nil
}

// ReLU applies the ReLU activation function with gradient tracking
func ReLU(a *Tensor) (*Tensor, error) {
	if err := checkNil(a); err != nil {
		return nil, err
	}

	result, err := newResult(a.Data.Rows, a.Data.Cols, "relu_result", a)
	if err != nil {
		return nil, err
	}
	result.Data.Dense.Apply(func(_, _ int, v float64) float64 {
		return math.Max(v, 0)
	}, a.Data.Dense)

	if result.Requires {
		result.BackwardFn = func() {
			for i := 0; i < a.Data.Rows; i++ {
				in, g, dst := a.Data.Row(i), result.Grad.Row(i), a.Grad.Row(i)
				for j := range in {
					if in[j] > 0 {
						dst[j] += g[j]
					}
				}
			}
		}
	}

	return result, nil
}

// Square squares every element with gradient tracking
func Square(a *Tensor) (*Tensor, error) {
	if err := checkNil(a); err != nil {
		return nil, err
	}

	result, err := newResult(a.Data.Rows, a.Data.Cols, "square_result", a)
	if err != nil {
		return nil, err
	}
	result.Data.Dense.MulElem(a.Data.Dense, a.Data.Dense)

	if result.Requires {
		result.BackwardFn = func() {
			var dA mat.Dense
			dA.MulElem(result.Grad.Dense, a.Data.Dense)
			dA.Scale(2, &dA)
			accumulate(a.Grad, &dA)
		}
	}

	return result, nil
}

// Softmax applies a row-wise softmax with gradient tracking.
// The row max is subtracted before exponentiating.
func Softmax(a *Tensor) (*Tensor, error) {
	if err := checkNil(a); err != nil {
		return nil, err
	}

	probs, err := a.Data.Softmax()
	if err != nil {
		return nil, err
	}
	result, err := newResult(a.Data.Rows, a.Data.Cols, "softmax_result", a)
	if err != nil {
		return nil, err
	}
	result.Data = probs

	if result.Requires {
		result.BackwardFn = func() {
			// dL/dx_j = s_j * (g_j - sum_k g_k s_k)
			for i := 0; i < a.Data.Rows; i++ {
				s, g, dst := result.Data.Row(i), result.Grad.Row(i), a.Grad.Row(i)
				dot := floats.Dot(g, s)
				for j := range s {
					dst[j] += s[j] * (g[j] - dot)
				}
			}
		}
	}

	return result, nil
}
