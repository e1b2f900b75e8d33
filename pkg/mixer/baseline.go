package mixer

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/qatten_reorganized/pkg/autodiff"
	"github.com/qatten_reorganized/pkg/nn"
)

// Baseline is the state value V(s) that stands in for a bias term on the
// mixed value. It does not depend on attention.
type Baseline struct {
	Net *nn.MLP
}

// NewBaseline builds Linear(stateDim->embedDim) -> ReLU -> Linear(embedDim->1).
func NewBaseline(stateDim, embedDim int, src rand.Source) (*Baseline, error) {
	net, err := nn.NewMLP("V", stateDim, embedDim, 1, true, src)
	if err != nil {
		return nil, fmt.Errorf("baseline: %w", err)
	}
	return &Baseline{Net: net}, nil
}

// Forward returns one value per batch row, shape (batch, 1).
func (b *Baseline) Forward(states *autodiff.Tensor) (*autodiff.Tensor, error) {
	if states.Data.Cols != b.Net.Hidden.In {
		return nil, fmt.Errorf("%w: baseline expects state_dim %d, got %d", ErrShapeMismatch, b.Net.Hidden.In, states.Data.Cols)
	}
	v, err := b.Net.Forward(states)
	if err != nil {
		return nil, fmt.Errorf("baseline forward: %w", err)
	}
	return v, nil
}

// GetParameters returns the value network's parameters.
func (b *Baseline) GetParameters() []*autodiff.Tensor {
	return b.Net.GetParameters()
}
