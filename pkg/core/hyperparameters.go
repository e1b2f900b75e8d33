package core

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"

	"github.com/qatten_reorganized/pkg/mixer"
)

// HyperParameters represents all configurable parameters of the mixer and its runtime
type HyperParameters struct {
	// Environment-derived sizes
	NAgents    int   `json:"n_agents"`
	StateShape []int `json:"state_shape"`
	UnitDim    int   `json:"unit_dim"`
	NActions   int   `json:"n_actions"`

	// Mixer architecture
	NAttentionHead int     `json:"n_attention_head"`
	EmbedDim       int     `json:"dplex_embed_dim"`
	HyperHiddenDim int     `json:"hyper_hidden_dim"`
	AttendRegCoef  float64 `json:"attend_reg_coef"`

	// Runtime
	Seed      uint64 `json:"seed"`
	BatchSize int    `json:"batch_size"` // only used by the demo command
	LogLevel  string `json:"log_level"`
}

// NewDefaultHyperParameters creates default hyperparameters
func NewDefaultHyperParameters() *HyperParameters {
	return &HyperParameters{
		NAgents: 3, StateShape: []int{20}, UnitDim: 5, NActions: 5,
		NAttentionHead: 4, EmbedDim: 32, HyperHiddenDim: 64, AttendRegCoef: 0.001,
		Seed: 1, BatchSize: 32, LogLevel: "info",
	}
}

// SaveHyperParameters saves hyperparameters to a JSON file
func SaveHyperParameters(params *HyperParameters, filePath string) error {
	dir := filepath.Dir(filePath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}
	data, err := json.MarshalIndent(params, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal: %w", err)
	}
	return os.WriteFile(filePath, data, 0644)
}

// LoadHyperParameters loads hyperparameters from a JSON file. Fields missing
// from the file keep their default values.
func LoadHyperParameters(filePath string) (*HyperParameters, error) {
	data, err := os.ReadFile(filePath)
	if err != nil {
		return nil, fmt.Errorf("read file: %w", err)
	}
	params := NewDefaultHyperParameters()
	if err := json.Unmarshal(data, params); err != nil {
		return nil, fmt.Errorf("unmarshal: %w", err)
	}
	return params, nil
}

// MixerConfig converts the hyperparameters into a mixer configuration
func (hp *HyperParameters) MixerConfig(logger logrus.FieldLogger) mixer.Config {
	shape := make([]int, len(hp.StateShape))
	copy(shape, hp.StateShape)
	return mixer.Config{
		NAgents:        hp.NAgents,
		StateShape:     shape,
		UnitDim:        hp.UnitDim,
		NActions:       hp.NActions,
		NHead:          hp.NAttentionHead,
		EmbedDim:       hp.EmbedDim,
		HyperHiddenDim: hp.HyperHiddenDim,
		AttendRegCoef:  hp.AttendRegCoef,
		Seed:           hp.Seed,
		Logger:         logger,
	}
}

// Validate checks the mixer dimensions and the runtime fields
func (hp *HyperParameters) Validate() error {
	if err := hp.MixerConfig(nil).Validate(); err != nil {
		return err
	}
	if hp.BatchSize <= 0 {
		return fmt.Errorf("%w: batch_size must be positive, got %d", mixer.ErrInvalidConfig, hp.BatchSize)
	}
	if _, err := logrus.ParseLevel(hp.LogLevel); err != nil {
		return fmt.Errorf("%w: %v", mixer.ErrInvalidConfig, err)
	}
	return nil
}
