package mixer

import (
	"fmt"

	"github.com/qatten_reorganized/pkg/autodiff"
)

// SliceUnitStates extracts each agent's own features from the global state.
// The leading unitDim*nAgents columns of states (batch, state_dim) are split
// into nAgents blocks, so agent a of row b reads columns
// [a*unitDim, (a+1)*unitDim). The result is agent-major: one (batch, unitDim)
// tensor per agent.
func SliceUnitStates(states *autodiff.Tensor, nAgents, unitDim int) ([]*autodiff.Tensor, error) {
	if states == nil {
		return nil, fmt.Errorf("%w: states cannot be nil", ErrShapeMismatch)
	}
	if nAgents <= 0 || unitDim <= 0 {
		return nil, fmt.Errorf("%w: n_agents=%d, unit_dim=%d", ErrInvalidConfig, nAgents, unitDim)
	}
	if need := nAgents * unitDim; states.Data.Cols < need {
		return nil, fmt.Errorf("%w: state_dim %d is smaller than unit_dim*n_agents = %d", ErrShapeMismatch, states.Data.Cols, need)
	}

	units := make([]*autodiff.Tensor, nAgents)
	for a := range units {
		u, err := autodiff.ColumnSlice(states, a*unitDim, (a+1)*unitDim)
		if err != nil {
			return nil, fmt.Errorf("slicing unit state for agent %d: %w", a, err)
		}
		u.Name = fmt.Sprintf("unit_state_%d", a)
		units[a] = u
	}
	return units, nil
}
