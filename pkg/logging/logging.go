package logging

import (
	"fmt"
	"io"
	"os"

	"github.com/charmbracelet/log"
)

const timeFormat = "2006-01-02 15:04:05.000000"

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

/*
Init sets the level of the default logger. When path is set, output is
appended to that file instead of stderr, with timestamps and caller info.
Close the returned closer on shutdown.
*/
func Init(level, path string) (io.Closer, error) {
	parsed, err := log.ParseLevel(level)

	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}

	log.SetLevel(parsed)

	if path == "" {
		return nopCloser{}, nil
	}

	logFile, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)

	if err != nil {
		return nil, fmt.Errorf("failed to open log file %s: %w", path, err)
	}

	log.SetOutput(logFile)
	log.SetReportTimestamp(true)
	log.SetTimeFormat(timeFormat)
	log.SetReportCaller(true)
	log.Info("logging initialized", "file", path)

	return logFile, nil
}
