// Package attention implements scaled dot-product attention of one query
// per batch row over a set of per-agent keys.
package attention

import (
	"fmt"
	"math"

	"github.com/qatten_reorganized/pkg/autodiff"
)

// Result holds one head's attention over agents. Every tensor is (batch, n_agents).
type Result struct {
	// Logits are the raw query.key dot products, before scaling.
	Logits *autodiff.Tensor
	// Scaled is Logits / sqrt(embed_dim); this is what the softmax consumes.
	Scaled *autodiff.Tensor
	// Weights is the row softmax of Scaled.
	Weights *autodiff.Tensor
}

// ScaledDotProduct scores query (batch, embed) against each agent key
// (batch, embed) and normalises the scores over agents.
func ScaledDotProduct(query *autodiff.Tensor, keys []*autodiff.Tensor) (*Result, error) {
	if query == nil {
		return nil, fmt.Errorf("query cannot be nil")
	}
	if len(keys) == 0 {
		return nil, fmt.Errorf("at least one key is required")
	}

	embedDim := query.Data.Cols
	for a, key := range keys {
		if key == nil {
			return nil, fmt.Errorf("key %d is nil", a)
		}
		if key.Data.Rows != query.Data.Rows || key.Data.Cols != embedDim {
			return nil, fmt.Errorf("key %d shape %v does not match query shape %v", a, key.Shape(), query.Shape())
		}
	}

	logits, err := autodiff.RowDots(query, keys)
	if err != nil {
		return nil, fmt.Errorf("query.key logits: %w", err)
	}
	logits.Name = "attention_logits"

	scaled, err := autodiff.ScalarMultiply(logits, 1/math.Sqrt(float64(embedDim)))
	if err != nil {
		return nil, fmt.Errorf("scaling logits: %w", err)
	}

	weights, err := autodiff.Softmax(scaled)
	if err != nil {
		return nil, fmt.Errorf("attention softmax: %w", err)
	}

	return &Result{Logits: logits, Scaled: scaled, Weights: weights}, nil
}
