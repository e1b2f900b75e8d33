// Package mixer implements the attention-weighted value mixer: per-agent
// attention weights from multi-head scaled dot-product attention between the
// global state and each agent's unit features, plus a state value baseline.
package mixer

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"

	"github.com/qatten_reorganized/pkg/autodiff"
)

// QattenWeight produces attention weights over agents, a state baseline and
// the attention regularisation terms for a batch of states. Build it with
// NewQattenWeight; the zero value has no parameters and no logger.
type QattenWeight struct {
	Config Config
	Heads  []*AttentionHead
	V      *Baseline

	log logrus.FieldLogger
}

// Output is the result of one forward pass.
type Output struct {
	// Weights is the sum over heads of the attention weights, (batch, n_agents).
	// It is not renormalised: each row sums to n_head.
	Weights *autodiff.Tensor
	// Baseline is V(s), (batch, 1).
	Baseline *autodiff.Tensor
	// AttendMagReg is coef * mean over heads of mean(logits^2), 1x1.
	AttendMagReg *autodiff.Tensor
	// HeadEntropies holds one 1x1 batch-mean entropy per head.
	HeadEntropies []*autodiff.Tensor
	// Heads exposes each head's logits and weights.
	Heads []*HeadAttention
}

// NewQattenWeight validates cfg and initialises all parameters from cfg.Seed.
func NewQattenWeight(cfg Config) (*QattenWeight, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	src := rand.NewSource(cfg.Seed)
	heads := make([]*AttentionHead, cfg.NHead)
	for i := range heads {
		h, err := newAttentionHead(i, cfg, src)
		if err != nil {
			return nil, err
		}
		heads[i] = h
	}

	v, err := NewBaseline(cfg.StateDim(), cfg.EmbedDim, src)
	if err != nil {
		return nil, err
	}

	m := &QattenWeight{Config: cfg, Heads: heads, V: v, log: cfg.logger()}
	m.log.WithFields(logrus.Fields{
		"n_agents":  cfg.NAgents,
		"state_dim": cfg.StateDim(),
		"unit_dim":  cfg.UnitDim,
		"n_head":    cfg.NHead,
		"embed_dim": cfg.EmbedDim,
	}).Info("qatten mixer initialised")

	return m, nil
}

// Forward evaluates the mixer.
//
// agentQs is (batch, n_agents) and states is (batch, state_dim). actions,
// (batch, n_agents*n_actions), is accepted for parity with the other DMAQ
// mixers and is only shape-checked; it may be nil.
func (m *QattenWeight) Forward(agentQs, states, actions *autodiff.Tensor) (*Output, error) {
	cfg := m.Config
	if err := checkInput("states", states, -1, cfg.StateDim()); err != nil {
		return nil, err
	}
	batch := states.Data.Rows
	if err := checkInput("agent_qs", agentQs, batch, cfg.NAgents); err != nil {
		return nil, err
	}
	if actions != nil {
		if err := checkInput("actions", actions, batch, cfg.ActionDim()); err != nil {
			return nil, err
		}
	}

	units, err := SliceUnitStates(states, cfg.NAgents, cfg.UnitDim)
	if err != nil {
		return nil, err
	}

	heads := make([]*HeadAttention, cfg.NHead)
	for i, h := range m.Heads {
		heads[i], err = h.Forward(states, units)
		if err != nil {
			return nil, fmt.Errorf("head %d: %w", i, err)
		}
	}

	v, err := m.V.Forward(states)
	if err != nil {
		return nil, err
	}

	weights, err := aggregateWeights(heads)
	if err != nil {
		return nil, err
	}
	reg, err := attendMagnitudeReg(heads, cfg.AttendRegCoef)
	if err != nil {
		return nil, err
	}
	entropies, err := headEntropies(heads)
	if err != nil {
		return nil, err
	}

	out := &Output{
		Weights:       weights,
		Baseline:      v,
		AttendMagReg:  reg,
		HeadEntropies: entropies,
		Heads:         heads,
	}
	if err := out.checkFinite(); err != nil {
		return nil, err
	}

	m.log.WithFields(logrus.Fields{
		"batch":          batch,
		"attend_mag_reg": reg.Data.At(0, 0),
		"head_entropies": out.EntropyValues(),
	}).Debug("qatten forward")

	return out, nil
}

// Parameters returns every learnable tensor: heads in order, then V.
func (m *QattenWeight) Parameters() []*autodiff.Tensor {
	var params []*autodiff.Tensor
	for _, h := range m.Heads {
		params = append(params, h.GetParameters()...)
	}
	return append(params, m.V.GetParameters()...)
}

// NamedParameters returns Parameters keyed by tensor name.
func (m *QattenWeight) NamedParameters() map[string]*autodiff.Tensor {
	named := make(map[string]*autodiff.Tensor)
	for _, p := range m.Parameters() {
		named[p.Name] = p
	}
	return named
}

// ZeroGrad clears the gradients of every parameter.
func (m *QattenWeight) ZeroGrad() error {
	for _, p := range m.Parameters() {
		if err := p.ZeroGrad(); err != nil {
			return fmt.Errorf("zero grad %s: %w", p.Name, err)
		}
	}
	return nil
}

// EntropyValues returns HeadEntropies as plain floats.
func (o *Output) EntropyValues() []float64 {
	vals := make([]float64, len(o.HeadEntropies))
	for i, e := range o.HeadEntropies {
		vals[i] = e.Data.At(0, 0)
	}
	return vals
}

func (o *Output) checkFinite() error {
	check := map[string]*autodiff.Tensor{
		"weights":        o.Weights,
		"baseline":       o.Baseline,
		"attend_mag_reg": o.AttendMagReg,
	}
	for i, e := range o.HeadEntropies {
		check[fmt.Sprintf("head_entropy_%d", i)] = e
	}
	for name, t := range check {
		if t.Data.HasNonFinite() {
			return fmt.Errorf("%w: %s contains NaN or Inf", ErrNumericInstability, name)
		}
	}
	return nil
}

// checkInput verifies t is (rows, cols); rows < 0 accepts any positive batch.
func checkInput(name string, t *autodiff.Tensor, rows, cols int) error {
	if t == nil {
		return fmt.Errorf("%w: %s cannot be nil", ErrShapeMismatch, name)
	}
	if t.Data.Cols != cols || (rows >= 0 && t.Data.Rows != rows) {
		want := fmt.Sprintf("(batch, %d)", cols)
		if rows >= 0 {
			want = fmt.Sprintf("(%d, %d)", rows, cols)
		}
		return fmt.Errorf("%w: %s has shape %v, want %s", ErrShapeMismatch, name, t.Shape(), want)
	}
	return nil
}
