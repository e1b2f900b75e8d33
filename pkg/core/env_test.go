package core

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestApplyOverrides(t *testing.T) {
	hp := NewDefaultHyperParameters()
	err := hp.ApplyOverrides(map[string]string{
		"QATTEN_N_AGENTS":        "4",
		"QATTEN_STATE_SHAPE":     "4, 8",
		"QATTEN_EMBED_DIM":       " 16 ",
		"QATTEN_ATTEND_REG_COEF": "0.5",
		"QATTEN_SEED":            "7",
		"QATTEN_LOG_LEVEL":       "debug",
	})
	require.NoError(t, err)

	assert.Equal(t, 4, hp.NAgents)
	assert.Equal(t, []int{4, 8}, hp.StateShape)
	assert.Equal(t, 16, hp.EmbedDim)
	assert.Equal(t, 0.5, hp.AttendRegCoef)
	assert.Equal(t, uint64(7), hp.Seed)
	assert.Equal(t, "debug", hp.LogLevel)
	assert.NoError(t, hp.Validate())
}

func TestApplyOverridesErrors(t *testing.T) {
	hp := NewDefaultHyperParameters()
	assert.Error(t, hp.ApplyOverrides(map[string]string{"QATTEN_N_HEADS": "2"}))
	assert.Error(t, hp.ApplyOverrides(map[string]string{"QATTEN_UNIT_DIM": "five"}))
	assert.Error(t, hp.ApplyOverrides(map[string]string{"QATTEN_STATE_SHAPE": "4,,5"}))
	assert.Error(t, hp.ApplyOverrides(map[string]string{"QATTEN_SEED": "-1"}))
}

func TestLoadOverrides(t *testing.T) {
	envFile := filepath.Join(t.TempDir(), ".env")
	content := "QATTEN_N_ATTENTION_HEAD=2\nQATTEN_UNIT_DIM=4\nOTHER_SETTING=ignored\n"
	require.NoError(t, os.WriteFile(envFile, []byte(content), 0644))

	t.Setenv("QATTEN_UNIT_DIM", "3")

	vars, err := LoadOverrides(envFile)
	require.NoError(t, err)
	assert.Equal(t, "2", vars["QATTEN_N_ATTENTION_HEAD"])
	assert.Equal(t, "3", vars["QATTEN_UNIT_DIM"], "process environment wins")
	assert.NotContains(t, vars, "OTHER_SETTING")

	hp := NewDefaultHyperParameters()
	require.NoError(t, hp.ApplyOverrides(vars))
	assert.Equal(t, 2, hp.NAttentionHead)
	assert.Equal(t, 3, hp.UnitDim)
}

func TestLoadOverridesMissingFile(t *testing.T) {
	t.Setenv("QATTEN_BATCH_SIZE", "8")

	vars, err := LoadOverrides(filepath.Join(t.TempDir(), "absent.env"))
	require.NoError(t, err)
	assert.Equal(t, map[string]string{"QATTEN_BATCH_SIZE": "8"}, vars)
}
