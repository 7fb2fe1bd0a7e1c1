// Package logging configures the process-wide logrus logger.
package logging

import (
	"fmt"
	"io"
	"os"
	"strings"

	log "github.com/sirupsen/logrus"
)

// ParseLevel accepts logrus level names plus WARNING and CRITICAL.
func ParseLevel(s string) (log.Level, error) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case "", "INFO":
		return log.InfoLevel, nil
	case "WARNING", "WARN":
		return log.WarnLevel, nil
	case "CRITICAL", "FATAL":
		// logrus' fatal level exits the process; critical only filters output.
		return log.ErrorLevel, nil
	}
	lvl, err := log.ParseLevel(s)
	if err != nil {
		return log.InfoLevel, fmt.Errorf("invalid log level %q (want DEBUG, INFO, WARNING, ERROR or CRITICAL)", s)
	}
	return lvl, nil
}

// Setup applies level and format ("text" or "json") to the standard logger.
func Setup(level, format string, out io.Writer) error {
	lvl, err := ParseLevel(level)
	if err != nil {
		return err
	}
	if out == nil {
		out = os.Stderr
	}
	log.SetOutput(out)
	log.SetLevel(lvl)
	if strings.EqualFold(format, "json") {
		log.SetFormatter(&log.JSONFormatter{TimestampFormat: "2006-01-02 15:04:05"})
	} else {
		log.SetFormatter(&log.TextFormatter{FullTimestamp: true, TimestampFormat: "2006-01-02 15:04:05"})
	}
	return nil
}
