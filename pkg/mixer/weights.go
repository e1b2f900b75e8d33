package mixer

import (
	"fmt"

	"gonum.org/v1/gonum/mat"

	"github.com/qatten_reorganized/pkg/autodiff"
)

// CombineQValues mixes agent values into a joint value:
// q_tot = sum_a weights[:,a]*agentQs[:,a] + baseline, shape (batch, 1).
func CombineQValues(agentQs, weights, baseline *autodiff.Tensor) (*autodiff.Tensor, error) {
	if agentQs == nil {
		return nil, fmt.Errorf("%w: agent_qs cannot be nil", ErrShapeMismatch)
	}
	batch := agentQs.Data.Rows
	if err := checkInput("weights", weights, batch, agentQs.Data.Cols); err != nil {
		return nil, err
	}
	if err := checkInput("baseline", baseline, batch, 1); err != nil {
		return nil, err
	}

	weighted, err := autodiff.Multiply(agentQs, weights)
	if err != nil {
		return nil, err
	}
	sum, err := autodiff.RowSum(weighted)
	if err != nil {
		return nil, err
	}
	return autodiff.Add(sum, baseline)
}

// Weights returns a copy of every parameter keyed by name.
func (m *QattenWeight) Weights() map[string]*mat.Dense {
	out := make(map[string]*mat.Dense)
	for name, p := range m.NamedParameters() {
		out[name] = mat.DenseCopyOf(p.Data.Dense)
	}
	return out
}

// SetWeights overwrites every parameter from w. All names must be present
// with matching shapes; on error no parameter is modified.
func (m *QattenWeight) SetWeights(w map[string]*mat.Dense) error {
	named := m.NamedParameters()
	for name, p := range named {
		src, ok := w[name]
		if !ok {
			return fmt.Errorf("%w: missing parameter %s", ErrShapeMismatch, name)
		}
		if r, c := src.Dims(); r != p.Data.Rows || c != p.Data.Cols {
			return fmt.Errorf("%w: parameter %s is %dx%d, got %dx%d", ErrShapeMismatch, name, p.Data.Rows, p.Data.Cols, r, c)
		}
	}
	for name, p := range named {
		p.Data.Dense.Copy(w[name])
	}
	return nil
}
