package utils

import (
	"fmt"

	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/stat/distuv"

	"github.com/qatten_reorganized/pkg/autodiff"
)

// Batch is one mixer input: agent values, flattened states and joint actions.
type Batch struct {
	AgentQs   *autodiff.Tensor // (batch, n_agents)
	States    *autodiff.Tensor // (batch, state_dim)
	Actions   *autodiff.Tensor // (batch, n_agents*n_actions)
	BatchSize int
}

// NewBatch builds a batch from flat row-major slices. Each slice length must
// be a multiple of batchSize; actions may be nil.
func NewBatch(batchSize int, agentQs, states, actions []float64) (*Batch, error) {
	if batchSize <= 0 {
		return nil, fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	qs, err := rowsTensor("agent_qs", agentQs, batchSize)
	if err != nil {
		return nil, err
	}
	st, err := rowsTensor("states", states, batchSize)
	if err != nil {
		return nil, err
	}

	b := &Batch{AgentQs: qs, States: st, BatchSize: batchSize}
	if actions != nil {
		if b.Actions, err = rowsTensor("actions", actions, batchSize); err != nil {
			return nil, err
		}
	}
	return b, nil
}

// NewRandomBatch fills a batch with U(-1, 1) values and one-hot actions.
func NewRandomBatch(batchSize, nAgents, stateDim, nActions int, src rand.Source) (*Batch, error) {
	if nAgents <= 0 || stateDim <= 0 || nActions <= 0 {
		return nil, fmt.Errorf("dimensions must be positive: n_agents=%d, state_dim=%d, n_actions=%d", nAgents, stateDim, nActions)
	}
	if src == nil {
		src = rand.NewSource(1)
	}
	dist := distuv.Uniform{Min: -1, Max: 1, Src: src}
	fill := func(n int) []float64 {
		out := make([]float64, n)
		for i := range out {
			out[i] = dist.Rand()
		}
		return out
	}

	rng := rand.New(src)
	actions := make([]float64, batchSize*nAgents*nActions)
	for row := 0; row < batchSize*nAgents; row++ {
		actions[row*nActions+rng.Intn(nActions)] = 1
	}

	return NewBatch(batchSize, fill(batchSize*nAgents), fill(batchSize*stateDim), actions)
}

func rowsTensor(name string, data []float64, batchSize int) (*autodiff.Tensor, error) {
	if len(data) == 0 || len(data)%batchSize != 0 {
		return nil, fmt.Errorf("%s: %d values cannot be split into %d rows", name, len(data), batchSize)
	}
	t, err := autodiff.NewTensorFromSlice(data, batchSize, len(data)/batchSize, &autodiff.TensorConfig{Name: name})
	if err != nil {
		return nil, fmt.Errorf("%s: %w", name, err)
	}
	return t, nil
}
