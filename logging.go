package main

import (
	"io"
	"os"

	"github.com/sirupsen/logrus"
)

// logger is shared by every component; setupLogging adjusts it once at startup.
var logger = newLogger(os.Stderr)

func newLogger(out io.Writer) *logrus.Logger {
	l := logrus.New()
	l.SetOutput(out)
	l.SetFormatter(&logrus.TextFormatter{
		FullTimestamp:   true,
		TimestampFormat: "2006-01-02 15:04:05",
	})
	l.SetLevel(logrus.InfoLevel)
	return l
}

func setupLogging(debug bool) {
	if debug {
		logger.SetLevel(logrus.DebugLevel)
	} else {
		logger.SetLevel(logrus.InfoLevel)
	}
}

// debugLog traces cache and preload activity. Cheap when debug is off.
func debugLog(format string, args ...interface{}) {
	if logger.IsLevelEnabled(logrus.DebugLevel) {
		logger.Debugf(format, args...)
	}
}
