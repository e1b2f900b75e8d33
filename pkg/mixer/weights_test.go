package mixer

import (
	"fmt"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gonum.org/v1/gonum/mat"

	"github.com/qatten_reorganized/pkg/autodiff"
)

func TestSliceUnitStatesLayout(t *testing.T) {
	// two rows of state_dim 7, 3 agents with unit_dim 2; column 6 is not a unit feature
	data := []float64{
		0, 1, 2, 3, 4, 5, 6,
		10, 11, 12, 13, 14, 15, 16,
	}
	states, err := autodiff.NewTensorFromSlice(data, 2, 7, nil)
	require.NoError(t, err)

	units, err := SliceUnitStates(states, 3, 2)
	require.NoError(t, err)
	require.Len(t, units, 3)

	want := [][][]float64{
		{{0, 1}, {10, 11}},
		{{2, 3}, {12, 13}},
		{{4, 5}, {14, 15}},
	}
	for a, u := range units {
		assert.Equal(t, fmt.Sprintf("unit_state_%d", a), u.Name)
		got := [][]float64{u.Data.Row(0), u.Data.Row(1)}
		if diff := cmp.Diff(want[a], got); diff != "" {
			t.Errorf("agent %d (-want +got):\n%s", a, diff)
		}
	}

	_, err = SliceUnitStates(states, 4, 2)
	assert.ErrorIs(t, err, ErrShapeMismatch)
	_, err = SliceUnitStates(states, 0, 2)
	assert.ErrorIs(t, err, ErrInvalidConfig)
	_, err = SliceUnitStates(nil, 3, 2)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestCombineQValues(t *testing.T) {
	qs, err := autodiff.NewTensorFromSlice([]float64{1, 2, 3, -1, 0, 4}, 2, 3, nil)
	require.NoError(t, err)
	w, err := autodiff.NewTensorFromSlice([]float64{0.5, 0.25, 0.25, 1, 2, 0.5}, 2, 3, nil)
	require.NoError(t, err)
	v, err := autodiff.NewTensorFromSlice([]float64{10, -2}, 2, 1, nil)
	require.NoError(t, err)

	qTot, err := CombineQValues(qs, w, v)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 1}, qTot.Shape())
	assert.InDelta(t, 0.5+0.5+0.75+10, qTot.Data.At(0, 0), 1e-12)
	assert.InDelta(t, -1+0+2-2, qTot.Data.At(1, 0), 1e-12)

	_, err = CombineQValues(qs, v, v)
	assert.ErrorIs(t, err, ErrShapeMismatch)
	_, err = CombineQValues(qs, w, w)
	assert.ErrorIs(t, err, ErrShapeMismatch)
	_, err = CombineQValues(nil, w, v)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestCombineQValuesFromForward(t *testing.T) {
	cfg := testConfig()
	m := newMixer(t, cfg)
	b := testBatch(t, cfg, 3)

	out, err := m.Forward(b.AgentQs, b.States, b.Actions)
	require.NoError(t, err)
	qTot, err := CombineQValues(b.AgentQs, out.Weights, out.Baseline)
	require.NoError(t, err)

	for i := 0; i < 3; i++ {
		want := out.Baseline.Data.At(i, 0)
		for a := 0; a < cfg.NAgents; a++ {
			want += out.Weights.Data.At(i, a) * b.AgentQs.Data.At(i, a)
		}
		assert.InDelta(t, want, qTot.Data.At(i, 0), 1e-12)
	}

	// the joint value backpropagates into both the heads and V
	loss, err := autodiff.Mean(qTot)
	require.NoError(t, err)
	require.NoError(t, m.ZeroGrad())
	require.NoError(t, loss.Backward())
	assert.NotZero(t, mat.Norm(m.V.Net.Output.B.Grad.Dense, 1))
	assert.NotZero(t, mat.Norm(m.Heads[0].Key.W.Grad.Dense, 1))
}

func TestWeightsRoundTrip(t *testing.T) {
	cfg := testConfig()
	src := newMixer(t, cfg)
	cfg.Seed = 99
	dst := newMixer(t, cfg)

	b := testBatch(t, cfg, 4)
	want, err := src.Forward(b.AgentQs, b.States, b.Actions)
	require.NoError(t, err)

	w := src.Weights()
	assert.Len(t, w, len(src.Parameters()))
	require.NoError(t, dst.SetWeights(w))

	got, err := dst.Forward(b.AgentQs, b.States, b.Actions)
	require.NoError(t, err)
	assert.True(t, mat.Equal(want.Weights.Data.Dense, got.Weights.Data.Dense))
	assert.True(t, mat.Equal(want.Baseline.Data.Dense, got.Baseline.Data.Dense))

	// Weights returns copies
	w["V.2.bias"].Set(0, 0, 1e6)
	assert.NotEqual(t, 1e6, src.V.Net.Output.B.Data.At(0, 0))
}

func TestSetWeightsIsAllOrNothing(t *testing.T) {
	m := newMixer(t, testConfig())
	before := m.Weights()

	w := m.Weights()
	for _, d := range w {
		d.Zero()
	}
	delete(w, "key_extractors.1.weight")
	assert.ErrorIs(t, m.SetWeights(w), ErrShapeMismatch)

	w = m.Weights()
	for _, d := range w {
		d.Zero()
	}
	w["V.0.weight"] = mat.NewDense(2, 2, nil)
	assert.ErrorIs(t, m.SetWeights(w), ErrShapeMismatch)

	for name, d := range m.Weights() {
		assert.True(t, mat.Equal(before[name], d), name)
	}
}
