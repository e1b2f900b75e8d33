package core

import (
	"io"

	"github.com/sirupsen/logrus"
)

// NewLogger returns a text logger writing to out at the configured level.
func (hp *HyperParameters) NewLogger(out io.Writer) (*logrus.Logger, error) {
	level, err := logrus.ParseLevel(hp.LogLevel)
	if err != nil {
		return nil, err
	}
	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(level)
	logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	return logger, nil
}
