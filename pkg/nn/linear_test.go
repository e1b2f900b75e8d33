package nn

import (
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/exp/rand"

	"github.com/qatten_reorganized/pkg/autodiff"
)

func TestLinearForward(t *testing.T) {
	l, err := NewLinear("fc", 3, 2, true, rand.NewSource(1))
	require.NoError(t, err)
	assert.Len(t, l.GetParameters(), 2)
	assert.Equal(t, "fc.weight", l.W.Name)
	assert.Equal(t, "fc.bias", l.B.Name)

	limit := 1 / math.Sqrt(3)
	for i := 0; i < l.W.Data.Rows; i++ {
		for _, v := range l.W.Data.Row(i) {
			assert.LessOrEqual(t, math.Abs(v), limit)
		}
	}

	x, err := autodiff.NewTensorFromSlice([]float64{1, 0, 0, 0, 1, 0}, 2, 3, nil)
	require.NoError(t, err)
	y, err := l.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, []int{2, 2}, y.Shape())

	// a one-hot row selects one weight row plus the bias
	for j := 0; j < 2; j++ {
		assert.InDelta(t, l.W.Data.At(0, j)+l.B.Data.At(0, j), y.Data.At(0, j), 1e-12)
		assert.InDelta(t, l.W.Data.At(1, j)+l.B.Data.At(0, j), y.Data.At(1, j), 1e-12)
	}
}

func TestLinearNoBias(t *testing.T) {
	l, err := NewLinear("key", 4, 8, false, nil)
	require.NoError(t, err)
	assert.Nil(t, l.B)
	assert.Len(t, l.GetParameters(), 1)

	zeros, err := autodiff.NewZerosTensor(5, 4, nil)
	require.NoError(t, err)
	y, err := l.Forward(zeros)
	require.NoError(t, err)
	sum, err := y.Data.Sum()
	require.NoError(t, err)
	assert.Zero(t, sum)

	_, err = l.Forward(y)
	assert.Error(t, err, "8 input columns into a 4-input layer")
}

func TestNewLinearRejectsBadDims(t *testing.T) {
	_, err := NewLinear("bad", 0, 3, true, nil)
	assert.Error(t, err)
}

func TestMLPForward(t *testing.T) {
	m, err := NewMLP("V", 6, 4, 1, true, rand.NewSource(3))
	require.NoError(t, err)
	assert.Len(t, m.GetParameters(), 4)
	assert.Equal(t, "V.0.weight", m.Hidden.W.Name)
	assert.Equal(t, "V.2.bias", m.Output.B.Name)

	x, err := autodiff.NewZerosTensor(3, 6, nil)
	require.NoError(t, err)
	y, err := m.Forward(x)
	require.NoError(t, err)
	assert.Equal(t, []int{3, 1}, y.Shape())
}
