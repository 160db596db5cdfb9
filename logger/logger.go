package logger

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/tdl-smp/portal/config"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Setup builds the application logger. Development mode logs text to stdout,
// production logs JSON. When a log file is configured the output is also
// written to a rotating file.
func Setup(c *config.Config) (*logrus.Logger, error) {
	log := logrus.New()
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", c.Log.Level, err)
	}
	log.SetLevel(level)
	if c.IsDevelopment() {
		log.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	} else {
		log.SetFormatter(&logrus.JSONFormatter{})
	}

	var out io.Writer = os.Stdout
	if c.Log.File != "" {
		if err := os.MkdirAll(filepath.Dir(c.Log.File), 0755); err != nil {
			return nil, fmt.Errorf("failed to create log directory: %w", err)
		}
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename:   c.Log.File,
			MaxSize:    c.Log.MaxSize,
			MaxBackups: c.Log.MaxBackups,
			MaxAge:     c.Log.MaxAge,
			Compress:   true,
		})
	}
	log.SetOutput(out)
	return log, nil
}
