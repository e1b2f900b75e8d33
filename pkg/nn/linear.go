// Package nn contains the small layer building blocks the mixer networks are made of.
package nn

import (
	"fmt"
	"math"

	"golang.org/x/exp/rand"

	"github.com/qatten_reorganized/pkg/autodiff"
)

// Linear is a fully connected layer y = x*W (+ b).
// W has shape (in, out); B is nil when the layer has no bias.
type Linear struct {
	W    *autodiff.Tensor
	B    *autodiff.Tensor
	In   int
	Out  int
	Name string
}

// NewLinear creates a linear layer initialised from U(-1/sqrt(in), 1/sqrt(in)).
func NewLinear(name string, in, out int, bias bool, src rand.Source) (*Linear, error) {
	if in <= 0 || out <= 0 {
		return nil, fmt.Errorf("linear %s: dimensions must be positive: in=%d, out=%d", name, in, out)
	}
	limit := 1.0 / math.Sqrt(float64(in))

	wData, err := autodiff.NewUniformMatrix(in, out, -limit, limit, src)
	if err != nil {
		return nil, fmt.Errorf("linear %s weights: %w", name, err)
	}
	w, err := autodiff.NewTensor(wData, &autodiff.TensorConfig{RequiresGrad: true, Name: name + ".weight"})
	if err != nil {
		return nil, fmt.Errorf("linear %s weights: %w", name, err)
	}

	l := &Linear{W: w, In: in, Out: out, Name: name}
	if bias {
		bData, err := autodiff.NewUniformMatrix(1, out, -limit, limit, src)
		if err != nil {
			return nil, fmt.Errorf("linear %s bias: %w", name, err)
		}
		l.B, err = autodiff.NewTensor(bData, &autodiff.TensorConfig{RequiresGrad: true, Name: name + ".bias"})
		if err != nil {
			return nil, fmt.Errorf("linear %s bias: %w", name, err)
		}
	}

	return l, nil
}

// Forward maps a (batch, in) tensor to (batch, out).
func (l *Linear) Forward(x *autodiff.Tensor) (*autodiff.Tensor, error) {
	out, err := autodiff.MatMul(x, l.W)
	if err != nil {
		return nil, fmt.Errorf("linear %s MatMul failed: %w", l.Name, err)
	}
	if l.B == nil {
		return out, nil
	}

	out, err = autodiff.AddRowVector(out, l.B)
	if err != nil {
		return nil, fmt.Errorf("linear %s Add bias failed: %w", l.Name, err)
	}
	return out, nil
}

// GetParameters returns the layer's parameters.
func (l *Linear) GetParameters() []*autodiff.Tensor {
	if l.B == nil {
		return []*autodiff.Tensor{l.W}
	}
	return []*autodiff.Tensor{l.W, l.B}
}
