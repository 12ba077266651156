package commands

import (
	"os"

	"github.com/mosaicnetworks/synod/src/config"
	"github.com/rifflock/lfshook"
	"github.com/sirupsen/logrus"
	prefixed "github.com/x-cray/logrus-prefixed-formatter"
)

// newLogger creates the logger used by every component of the node. When
// logFile is set, info and debug lines are also written to it.
func newLogger(level string, logFile string) *logrus.Logger {
	logger := logrus.New()
	logger.Level = config.LogLevel(level)
	logger.Formatter = new(prefixed.TextFormatter)

	if logFile == "" {
		return logger
	}

	f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY, 0666)
	if err != nil {
		logger.Infof("Failed to open %s file, using default stderr", logFile)
		return logger
	}
	f.Close()

	logger.Hooks.Add(lfshook.NewHook(
		lfshook.PathMap{
			logrus.InfoLevel:  logFile,
			logrus.DebugLevel: logFile,
		},
		&logrus.TextFormatter{},
	))

	return logger
}
