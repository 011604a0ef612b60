package config

import (
	"fmt"
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

var logLevels = map[string]logrus.Level{
	"trace": logrus.TraceLevel,
	"debug": logrus.DebugLevel,
	"info":  logrus.InfoLevel,
	"warn":  logrus.WarnLevel,
	"error": logrus.ErrorLevel,
	"fatal": logrus.FatalLevel,
	"panic": logrus.PanicLevel,
}

// NewLogger builds a logger writing to stdout. format is "json" or "text".
func NewLogger(level, format string) (*logrus.Logger, error) {
	return newLogger(level, format, os.Stdout)
}

func newLogger(level, format string, out io.Writer) (*logrus.Logger, error) {
	lvl, ok := logLevels[level]
	if !ok {
		return nil, fmt.Errorf("unknown log level %q", level)
	}

	logger := logrus.New()
	logger.SetOutput(out)
	logger.SetLevel(lvl)
	switch format {
	case "json", "":
		logger.SetFormatter(&logrus.JSONFormatter{})
	case "text":
		logger.SetFormatter(&logrus.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05.0000"})
	default:
		return nil, fmt.Errorf("unknown log format %q", format)
	}
	return logger, nil
}

// Module returns an entry tagged with the component name.
func Module(logger *logrus.Logger, name string) *logrus.Entry {
	return logger.WithField("module", name)
}
