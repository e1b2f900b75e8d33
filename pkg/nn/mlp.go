package nn

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/qatten_reorganized/pkg/autodiff"
)

// MLP is a two layer network Hidden -> ReLU -> Output.
type MLP struct {
	Hidden *Linear
	Output *Linear
}

// NewMLP builds in -> hidden -> out. The hidden layer always has a bias;
// outputBias controls the last layer.
func NewMLP(name string, in, hidden, out int, outputBias bool, src rand.Source) (*MLP, error) {
	h, err := NewLinear(name+".0", in, hidden, true, src)
	if err != nil {
		return nil, err
	}
	o, err := NewLinear(name+".2", hidden, out, outputBias, src)
	if err != nil {
		return nil, err
	}
	return &MLP{Hidden: h, Output: o}, nil
}

// Forward applies the network to a (batch, in) tensor.
func (m *MLP) Forward(x *autodiff.Tensor) (*autodiff.Tensor, error) {
	h, err := m.Hidden.Forward(x)
	if err != nil {
		return nil, err
	}
	h, err = autodiff.ReLU(h)
	if err != nil {
		return nil, fmt.Errorf("%s activation failed: %w", m.Hidden.Name, err)
	}
	return m.Output.Forward(h)
}

// GetParameters returns hidden then output parameters.
func (m *MLP) GetParameters() []*autodiff.Tensor {
	return append(m.Hidden.GetParameters(), m.Output.GetParameters()...)
}
