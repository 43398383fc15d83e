package log

import (
	"os"
	"strconv"

	"github.com/sirupsen/logrus"
)

var debug bool

// Logger is a global interface for uemux loggers
type Logger interface {
	Debug(...interface{})
	Info(...interface{})
	Warn(...interface{})
}

func init() {
	var err error
	debug, err = strconv.ParseBool(os.Getenv("UEMUX_DEBUG"))
	if err != nil {
		debug = false
	}
}

// GetLogger returns a new logger instance
func GetLogger() *logrus.Logger {
	l := logrus.New()
	if debug {
		l.SetLevel(logrus.DebugLevel)
	}
	return l
}

// WithBranch returns an entry carrying the branch name field.
func WithBranch(l *logrus.Logger, branch string) *logrus.Entry {
	return l.WithField("branch", branch)
}
