package generic

import (
	"io"

	"github.com/sirupsen/logrus"
)

// NopLogger returns an entry that discards everything. Components use it
// when the host process attaches no logger.
func NopLogger() *logrus.Entry {
	l := logrus.New()
	l.Out = io.Discard
	return logrus.NewEntry(l)
}
