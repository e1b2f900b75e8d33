package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/sirupsen/logrus"
	"golang.org/x/exp/rand"
	"gonum.org/v1/gonum/floats"

	"github.com/qatten_reorganized/internal/utils"
	"github.com/qatten_reorganized/pkg/autodiff"
	"github.com/qatten_reorganized/pkg/core"
	"github.com/qatten_reorganized/pkg/mixer"
)

// Main entry point for the qatten mixer command
func main() {
	mode := "default"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}
	configPath := ""
	if len(os.Args) > 2 {
		configPath = os.Args[2]
	}

	var err error
	switch mode {
	case "default":
		err = runDefaultExample(configPath)
	case "config":
		err = printConfig(configPath)
	case "help":
		printHelp()
	default:
		fmt.Printf("Unknown mode: %s\n", mode)
		printHelp()
		os.Exit(2)
	}

	if err != nil {
		logrus.WithError(err).Fatal("qatten failed")
	}
}

// loadHyperParameters reads the optional JSON file, then .env and QATTEN_* overrides
func loadHyperParameters(configPath string) (*core.HyperParameters, error) {
	hp := core.NewDefaultHyperParameters()
	if configPath != "" {
		var err error
		if hp, err = core.LoadHyperParameters(configPath); err != nil {
			return nil, err
		}
	}

	overrides, err := core.LoadOverrides(".env")
	if err != nil {
		return nil, err
	}
	if err := hp.ApplyOverrides(overrides); err != nil {
		return nil, err
	}
	return hp, hp.Validate()
}

// runDefaultExample runs one forward and backward pass on a random batch
func runDefaultExample(configPath string) error {
	hp, err := loadHyperParameters(configPath)
	if err != nil {
		return err
	}
	logger, err := hp.NewLogger(os.Stderr)
	if err != nil {
		return err
	}

	m, err := mixer.NewQattenWeight(hp.MixerConfig(logger))
	if err != nil {
		return err
	}

	src := rand.NewSource(hp.Seed + 1)
	batch, err := utils.NewRandomBatch(hp.BatchSize, hp.NAgents, m.Config.StateDim(), hp.NActions, src)
	if err != nil {
		return err
	}

	out, err := m.Forward(batch.AgentQs, batch.States, batch.Actions)
	if err != nil {
		return err
	}

	qTot, err := mixer.CombineQValues(batch.AgentQs, out.Weights, out.Baseline)
	if err != nil {
		return err
	}
	targets, err := autodiff.NewZerosTensor(hp.BatchSize, 1, nil)
	if err != nil {
		return err
	}
	tdLoss, err := autodiff.MSELoss(qTot, targets)
	if err != nil {
		return err
	}
	loss, err := autodiff.Add(tdLoss, out.AttendMagReg)
	if err != nil {
		return err
	}
	if err := loss.Backward(); err != nil {
		return err
	}

	lossValue, err := loss.Item()
	if err != nil {
		return err
	}
	gradNorm := gradSqNorm(m.Parameters())

	logger.WithFields(logrus.Fields{
		"batch":          hp.BatchSize,
		"weights_shape":  out.Weights.Shape(),
		"baseline_shape": out.Baseline.Shape(),
		"attend_mag_reg": out.AttendMagReg.Data.At(0, 0),
		"head_entropies": out.EntropyValues(),
		"loss":           lossValue,
		"grad_sq_norm":   gradNorm,
	}).Info("forward and backward pass complete")

	return nil
}

// gradSqNorm is the squared L2 norm of every parameter gradient together
func gradSqNorm(params []*autodiff.Tensor) float64 {
	total := 0.0
	for _, p := range params {
		if p.Grad == nil {
			continue
		}
		for i := 0; i < p.Grad.Rows; i++ {
			row := p.Grad.Row(i)
			total += floats.Dot(row, row)
		}
	}
	return total
}

// printConfig prints the effective hyperparameters, or writes them to path
func printConfig(path string) error {
	hp, err := loadHyperParameters("")
	if err != nil {
		return err
	}
	if path != "" {
		return core.SaveHyperParameters(hp, path)
	}
	data, err := json.MarshalIndent(hp, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(data))
	return nil
}

// printHelp displays usage information
func printHelp() {
	fmt.Println("\nUsage: qatten [mode] [hyperparameters.json]")
	fmt.Println("\nAvailable modes:")
	fmt.Println("  default  - Run one forward/backward pass of the mixer on a random batch")
	fmt.Println("  config   - Print the effective hyperparameters (or write them to the given path)")
	fmt.Println("  help     - Display this help message")
	fmt.Println("\nSettings can be overridden with QATTEN_* variables or a .env file.")
}
