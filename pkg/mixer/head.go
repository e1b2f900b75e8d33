package mixer

import (
	"fmt"

	"golang.org/x/exp/rand"

	"github.com/qatten_reorganized/internal/attention"
	"github.com/qatten_reorganized/pkg/autodiff"
	"github.com/qatten_reorganized/pkg/nn"
)

// AttentionHead is one query/key pair. Heads never share parameters.
type AttentionHead struct {
	// Selector maps the global state to the query embedding.
	Selector *nn.MLP
	// Key maps one agent's unit state to its key embedding.
	Key *nn.Linear
}

// HeadAttention is one head's attention over agents, every tensor (batch, n_agents).
type HeadAttention struct {
	Logits  *autodiff.Tensor // query.key, unscaled
	Scaled  *autodiff.Tensor // Logits / sqrt(embed_dim)
	Weights *autodiff.Tensor // softmax(Scaled) over agents
}

func newAttentionHead(index int, cfg Config, src rand.Source) (*AttentionHead, error) {
	selector, err := nn.NewMLP(fmt.Sprintf("selector_extractors.%d", index),
		cfg.StateDim(), cfg.HyperHiddenDim, cfg.EmbedDim, false, src)
	if err != nil {
		return nil, fmt.Errorf("head %d selector: %w", index, err)
	}
	key, err := nn.NewLinear(fmt.Sprintf("key_extractors.%d", index), cfg.UnitDim, cfg.EmbedDim, false, src)
	if err != nil {
		return nil, fmt.Errorf("head %d key: %w", index, err)
	}
	return &AttentionHead{Selector: selector, Key: key}, nil
}

// Forward attends from the state query over the agents' unit states.
func (h *AttentionHead) Forward(states *autodiff.Tensor, units []*autodiff.Tensor) (*HeadAttention, error) {
	query, err := h.Selector.Forward(states)
	if err != nil {
		return nil, fmt.Errorf("selector forward: %w", err)
	}

	keys := make([]*autodiff.Tensor, len(units))
	for a, u := range units {
		keys[a], err = h.Key.Forward(u)
		if err != nil {
			return nil, fmt.Errorf("key forward for agent %d: %w", a, err)
		}
	}

	res, err := attention.ScaledDotProduct(query, keys)
	if err != nil {
		return nil, err
	}
	return &HeadAttention{Logits: res.Logits, Scaled: res.Scaled, Weights: res.Weights}, nil
}

// GetParameters returns selector then key parameters.
func (h *AttentionHead) GetParameters() []*autodiff.Tensor {
	return append(h.Selector.GetParameters(), h.Key.GetParameters()...)
}
