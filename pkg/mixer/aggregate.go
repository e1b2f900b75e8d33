package mixer

import (
	"fmt"

	"github.com/qatten_reorganized/pkg/autodiff"
)

// aggregateWeights sums the per-head weights. With one head the head's own
// weights tensor is returned.
func aggregateWeights(heads []*HeadAttention) (*autodiff.Tensor, error) {
	sum := heads[0].Weights
	for i := 1; i < len(heads); i++ {
		var err error
		sum, err = autodiff.Add(sum, heads[i].Weights)
		if err != nil {
			return nil, fmt.Errorf("aggregating head %d weights: %w", i, err)
		}
	}
	return sum, nil
}

// attendMagnitudeReg penalises large logits: coef * mean_h(mean(logits_h^2)).
// It reads the unscaled logits the softmax inputs were derived from.
func attendMagnitudeReg(heads []*HeadAttention, coef float64) (*autodiff.Tensor, error) {
	var total *autodiff.Tensor
	for i, h := range heads {
		sq, err := autodiff.Square(h.Logits)
		if err != nil {
			return nil, fmt.Errorf("head %d logits squared: %w", i, err)
		}
		mean, err := autodiff.Mean(sq)
		if err != nil {
			return nil, fmt.Errorf("head %d logits mean: %w", i, err)
		}
		if total == nil {
			total = mean
			continue
		}
		if total, err = autodiff.Add(total, mean); err != nil {
			return nil, fmt.Errorf("head %d regulariser sum: %w", i, err)
		}
	}

	meanOverHeads, err := autodiff.ScalarMultiply(total, 1/float64(len(heads)))
	if err != nil {
		return nil, err
	}
	reg, err := autodiff.ScalarMultiply(meanOverHeads, coef)
	if err != nil {
		return nil, err
	}
	reg.Name = "attend_mag_reg"
	return reg, nil
}

func headEntropies(heads []*HeadAttention) ([]*autodiff.Tensor, error) {
	out := make([]*autodiff.Tensor, len(heads))
	for i, h := range heads {
		e, err := autodiff.Entropy(h.Weights, EntropyEpsilon)
		if err != nil {
			return nil, fmt.Errorf("head %d entropy: %w", i, err)
		}
		e.Name = fmt.Sprintf("head_entropy_%d", i)
		out[i] = e
	}
	return out, nil
}
