package mixer

import (
	"errors"
	"fmt"
	"math"

	"github.com/sirupsen/logrus"
)

var (
	// ErrShapeMismatch is returned when dimensions disagree, either between
	// configuration fields or between an input tensor and the configuration.
	ErrShapeMismatch = errors.New("shape mismatch")
	// ErrInvalidConfig is returned for non-positive sizes or bad coefficients.
	ErrInvalidConfig = errors.New("invalid mixer config")
	// ErrNumericInstability is returned when a forward pass produces NaN or Inf.
	ErrNumericInstability = errors.New("numeric instability")
)

// EntropyEpsilon is added to attention weights before taking the log.
const EntropyEpsilon = 1e-8

// Config holds the mixer dimensions. It is fixed for the lifetime of a QattenWeight.
type Config struct {
	NAgents        int
	StateShape     []int // state_dim is the product of these
	UnitDim        int
	NActions       int
	NHead          int
	EmbedDim       int
	HyperHiddenDim int
	AttendRegCoef  float64

	// Seed drives parameter initialisation.
	Seed   uint64
	Logger logrus.FieldLogger
}

// StateDim is the flattened width of one global state. It is 0 when the
// shape is empty, has a non-positive dimension or overflows int.
func (c Config) StateDim() int {
	dim, ok := shapeProduct(c.StateShape)
	if !ok {
		return 0
	}
	return dim
}

// ActionDim is the width of the joint action encoding.
func (c Config) ActionDim() int {
	return c.NAgents * c.NActions
}

// Validate rejects configurations that could only fail later at forward time.
func (c Config) Validate() error {
	positive := []struct {
		name  string
		value int
	}{
		{"n_agents", c.NAgents},
		{"unit_dim", c.UnitDim},
		{"n_actions", c.NActions},
		{"n_head", c.NHead},
		{"embed_dim", c.EmbedDim},
		{"hyper_hidden_dim", c.HyperHiddenDim},
	}
	for _, p := range positive {
		if p.value <= 0 {
			return fmt.Errorf("%w: %s must be positive, got %d", ErrInvalidConfig, p.name, p.value)
		}
	}

	if len(c.StateShape) == 0 {
		return fmt.Errorf("%w: state shape is empty", ErrInvalidConfig)
	}
	for i, d := range c.StateShape {
		if d <= 0 {
			return fmt.Errorf("%w: state shape dimension %d must be positive, got %d", ErrInvalidConfig, i, d)
		}
	}
	if _, ok := shapeProduct(c.StateShape); !ok {
		return fmt.Errorf("%w: state shape %v overflows int", ErrInvalidConfig, c.StateShape)
	}
	if c.UnitDim > math.MaxInt/c.NAgents {
		return fmt.Errorf("%w: unit_dim*n_agents overflows int", ErrInvalidConfig)
	}
	if c.NActions > math.MaxInt/c.NAgents {
		return fmt.Errorf("%w: n_agents*n_actions overflows int", ErrInvalidConfig)
	}

	if c.AttendRegCoef < 0 || math.IsNaN(c.AttendRegCoef) || math.IsInf(c.AttendRegCoef, 0) {
		return fmt.Errorf("%w: attend_reg_coef must be a non-negative finite number, got %g", ErrInvalidConfig, c.AttendRegCoef)
	}

	if need := c.UnitDim * c.NAgents; need > c.StateDim() {
		return fmt.Errorf("%w: unit_dim*n_agents = %d exceeds state_dim = %d", ErrShapeMismatch, need, c.StateDim())
	}

	return nil
}

// shapeProduct multiplies positive dimensions, reporting false on an empty
// shape, a non-positive dimension or int overflow.
func shapeProduct(shape []int) (int, bool) {
	if len(shape) == 0 {
		return 0, false
	}
	dim := 1
	for _, d := range shape {
		if d <= 0 || dim > math.MaxInt/d {
			return 0, false
		}
		dim *= d
	}
	return dim, true
}

func (c Config) logger() logrus.FieldLogger {
	if c.Logger == nil {
		return logrus.StandardLogger()
	}
	return c.Logger
}
