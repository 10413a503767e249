package app

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"

	"github.com/sirupsen/logrus"
)

func initLogger(level, format string) error {
	lvl, err := logrus.ParseLevel(level)
	if err != nil {
		return fmt.Errorf("bad LOG_LEVEL: %w", err)
	}

	prettyfier := func(frame *runtime.Frame) (function string, file string) {
		return "", fmt.Sprintf(" %s:%d", filepath.Base(frame.File), frame.Line)
	}

	var formatter logrus.Formatter
	switch format {
	case "text":
		formatter = &logrus.TextFormatter{
			TimestampFormat:        "02-01-2006 15:04:05",
			FullTimestamp:          true,
			DisableLevelTruncation: true,
			CallerPrettyfier:       prettyfier,
		}
	case "json":
		formatter = &logrus.JSONFormatter{
			TimestampFormat:  "2006-01-02T15:04:05.000Z07:00",
			CallerPrettyfier: prettyfier,
		}
	default:
		return fmt.Errorf("unknown LOG_FORMAT %q", format)
	}

	logrus.SetReportCaller(lvl >= logrus.DebugLevel)
	logrus.SetLevel(lvl)
	// stdout belongs to the confirmation prompt
	logrus.SetOutput(os.Stderr)
	logrus.SetFormatter(formatter)

	return nil
}
