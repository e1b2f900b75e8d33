package core

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"

	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override key.
const EnvPrefix = "QATTEN_"

var envKeys = []string{
	"N_AGENTS", "STATE_SHAPE", "UNIT_DIM", "N_ACTIONS",
	"N_ATTENTION_HEAD", "EMBED_DIM", "HYPER_HIDDEN_DIM", "ATTEND_REG_COEF",
	"SEED", "BATCH_SIZE", "LOG_LEVEL",
}

// LoadOverrides collects QATTEN_* settings from envFile (if it exists) and
// the process environment. The process environment wins.
func LoadOverrides(envFile string) (map[string]string, error) {
	vars := make(map[string]string)
	if envFile != "" {
		fileVars, err := godotenv.Read(envFile)
		switch {
		case errors.Is(err, fs.ErrNotExist):
		case err != nil:
			return nil, fmt.Errorf("read %s: %w", envFile, err)
		default:
			for k, v := range fileVars {
				if strings.HasPrefix(k, EnvPrefix) {
					vars[k] = v
				}
			}
		}
	}
	for _, key := range envKeys {
		if v, ok := os.LookupEnv(EnvPrefix + key); ok {
			vars[EnvPrefix+key] = v
		}
	}
	return vars, nil
}

// ApplyOverrides sets fields from QATTEN_* keys. Unknown keys are an error so
// typos do not go unnoticed.
func (hp *HyperParameters) ApplyOverrides(vars map[string]string) error {
	for key, raw := range vars {
		name := strings.TrimPrefix(key, EnvPrefix)
		val := strings.TrimSpace(raw)
		var err error
		switch name {
		case "N_AGENTS":
			hp.NAgents, err = strconv.Atoi(val)
		case "STATE_SHAPE":
			hp.StateShape, err = parseShape(val)
		case "UNIT_DIM":
			hp.UnitDim, err = strconv.Atoi(val)
		case "N_ACTIONS":
			hp.NActions, err = strconv.Atoi(val)
		case "N_ATTENTION_HEAD":
			hp.NAttentionHead, err = strconv.Atoi(val)
		case "EMBED_DIM":
			hp.EmbedDim, err = strconv.Atoi(val)
		case "HYPER_HIDDEN_DIM":
			hp.HyperHiddenDim, err = strconv.Atoi(val)
		case "ATTEND_REG_COEF":
			hp.AttendRegCoef, err = strconv.ParseFloat(val, 64)
		case "SEED":
			hp.Seed, err = strconv.ParseUint(val, 10, 64)
		case "BATCH_SIZE":
			hp.BatchSize, err = strconv.Atoi(val)
		case "LOG_LEVEL":
			hp.LogLevel = val
		default:
			return fmt.Errorf("unknown setting %s", key)
		}
		if err != nil {
			return fmt.Errorf("parse %s=%q: %w", key, raw, err)
		}
	}
	return nil
}

// parseShape reads "20" or "4,5" into a shape.
func parseShape(s string) ([]int, error) {
	parts := strings.Split(s, ",")
	shape := make([]int, 0, len(parts))
	for _, p := range parts {
		d, err := strconv.Atoi(strings.TrimSpace(p))
		if err != nil {
			return nil, err
		}
		shape = append(shape, d)
	}
	return shape, nil
}
