package main

import (
	"github.com/sirupsen/logrus"
)

// newLogger builds the process logger. --verbose turns on debug output,
// including the per-room status dumps and shuffled deck order.
func newLogger(verbose bool) *logrus.Logger {
	logger := logrus.New()
	logger.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: logDate,
	})
	if verbose {
		logger.SetLevel(logrus.DebugLevel)
	}
	return logger
}
