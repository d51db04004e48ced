// Package logutil builds the process logger.
package logutil

import (
	"fmt"
	"io"
	"strings"

	"github.com/sirupsen/logrus"
)

// UTCFormatter prints entries with UTC timestamps.
type UTCFormatter struct {
	logrus.Formatter
}

func (u *UTCFormatter) Format(e *logrus.Entry) ([]byte, error) {
	e.Time = e.Time.UTC()
	return u.Formatter.Format(e)
}

// New returns a logger writing to w at level, formatted as "text" or "json".
func New(w io.Writer, level, format string) (*logrus.Logger, error) {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return nil, fmt.Errorf("log level: %w", err)
	}

	logger := logrus.New()
	logger.SetOutput(w)
	logger.SetLevel(lvl)
	switch strings.ToLower(format) {
	case "json":
		logger.SetFormatter(&UTCFormatter{Formatter: &logrus.JSONFormatter{}})
	case "", "text":
		logger.SetFormatter(&UTCFormatter{Formatter: &logrus.TextFormatter{FullTimestamp: true, DisableColors: true}})
	default:
		return nil, fmt.Errorf("log format: unsupported %q", format)
	}
	return logger, nil
}

// Discard returns a logger that drops everything. Used by tests and library
// callers that pass no logger.
func Discard() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}
