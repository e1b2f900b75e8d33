package autodiff

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/mat"
)

// Sum returns the sum of all elements in a tensor with gradient tracking
func Sum(a *Tensor) (*Tensor, error) {
	if err := checkNil(a); err != nil {
		return nil, err
	}

	total, err := a.Data.Sum()
	if err != nil {
		return nil, err
	}
	result, err := newResult(1, 1, "sum_result", a)
	if err != nil {
		return nil, err
	}
	result.Data.Set(0, 0, total)

	if result.Requires {
		result.BackwardFn = func() {
			g := result.Grad.At(0, 0)
			for i := 0; i < a.Data.Rows; i++ {
				floats.AddConst(g, a.Grad.Row(i))
			}
		}
	}

	return result, nil
}

// Mean returns the mean of all elements in a tensor with gradient tracking
func Mean(a *Tensor) (*Tensor, error) {
	if err := checkNil(a); err != nil {
		return nil, err
	}

	mean, err := a.Data.Mean()
	if err != nil {
		return nil, err
	}
	result, err := newResult(1, 1, "mean_result", a)
	if err != nil {
		return nil, err
	}
	result.Data.Set(0, 0, mean)
	totalElements := float64(a.Data.Rows * a.Data.Cols)

	if result.Requires {
		result.BackwardFn = func() {
			g := result.Grad.At(0, 0) / totalElements
			for i := 0; i < a.Data.Rows; i++ {
				floats.AddConst(g, a.Grad.Row(i))
			}
		}
	}

	return result, nil
}

// RowSum reduces an RxC tensor to Rx1 by summing each row
func RowSum(a *Tensor) (*Tensor, error) {
	if err := checkNil(a); err != nil {
		return nil, err
	}

	result, err := newResult(a.Data.Rows, 1, "row_sum_result", a)
	if err != nil {
		return nil, err
	}
	for i := 0; i < a.Data.Rows; i++ {
		result.Data.Set(i, 0, floats.Sum(a.Data.Row(i)))
	}

	if result.Requires {
		result.BackwardFn = func() {
			for i := 0; i < a.Data.Rows; i++ {
				floats.AddConst(result.Grad.At(i, 0), a.Grad.Row(i))
			}
		}
	}

	return result, nil
}

// ColumnSlice returns columns [start, end) of a tensor as a new tensor
func ColumnSlice(a *Tensor, start, end int) (*Tensor, error) {
	if err := checkNil(a); err != nil {
		return nil, err
	}
	if start < 0 || end > a.Data.Cols || start >= end {
		return nil, fmt.Errorf("invalid column range [%d, %d) for tensor with %d columns", start, end, a.Data.Cols)
	}

	result, err := newResult(a.Data.Rows, end-start, "column_slice_result", a)
	if err != nil {
		return nil, err
	}
	result.Data.Dense.Copy(a.Data.Dense.Slice(0, a.Data.Rows, start, end))

	if result.Requires {
		result.BackwardFn = func() {
			view := a.Grad.Dense.Slice(0, a.Data.Rows, start, end).(*mat.Dense)
			view.Add(view, result.Grad.Dense)
		}
	}

	return result, nil
}

// Entropy returns the batch mean of the per-row Shannon entropy
// -sum_j (p_j+eps)*log(p_j+eps) of a row-stochastic tensor.
func Entropy(p *Tensor, eps float64) (*Tensor, error) {
	if err := checkNil(p); err != nil {
		return nil, err
	}
	if eps <= 0 {
		return nil, fmt.Errorf("entropy stabilizer must be positive, got %g", eps)
	}

	result, err := newResult(1, 1, "entropy_result", p)
	if err != nil {
		return nil, err
	}
	rows := float64(p.Data.Rows)
	total := 0.0
	for i := 0; i < p.Data.Rows; i++ {
		for _, v := range p.Data.Row(i) {
			total -= (v + eps) * math.Log(v+eps)
		}
	}
	result.Data.Set(0, 0, total/rows)

	if result.Requires {
		result.BackwardFn = func() {
			g := result.Grad.At(0, 0) / rows
			for i := 0; i < p.Data.Rows; i++ {
				in, dst := p.Data.Row(i), p.Grad.Row(i)
				for j, v := range in {
					dst[j] -= g * (math.Log(v+eps) + 1)
				}
			}
		}
	}

	return result, nil
}

// MSELoss computes the mean squared error loss with gradient tracking
func MSELoss(predictions *Tensor, targets *Tensor) (*Tensor, error) {
	if err := checkNil(predictions, targets); err != nil {
		return nil, fmt.Errorf("predictions and targets tensors cannot be nil")
	}

	if predictions.Data.Rows != targets.Data.Rows || predictions.Data.Cols != targets.Data.Cols {
		return nil, fmt.Errorf("predictions and targets dimensions don't match: predictions(%dx%d), targets(%dx%d)",
			predictions.Data.Rows, predictions.Data.Cols, targets.Data.Rows, targets.Data.Cols)
	}

	result, err := newResult(1, 1, "mse_loss_result", predictions)
	if err != nil {
		return nil, err
	}

	var diff mat.Dense
	diff.Sub(predictions.Data.Dense, targets.Data.Dense)
	totalElements := float64(predictions.Data.Rows * predictions.Data.Cols)
	result.Data.Set(0, 0, mat.Sum(mulElem(&diff, &diff))/totalElements)

	if result.Requires {
		result.BackwardFn = func() {
			var d mat.Dense
			d.Scale(2*result.Grad.At(0, 0)/totalElements, &diff)
			accumulate(predictions.Grad, &d)
		}
	}

	return result, nil
}

func mulElem(a, b mat.Matrix) *mat.Dense {
	var out mat.Dense
	out.MulElem(a, b)
	return &out
}
