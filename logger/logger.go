// Package logger configures the zerolog logger shared by every component.
package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Config selects the level and, with Pretty, human readable lines instead
// of JSON.
type Config struct {
	Level  string `json:"level" yaml:"level"`
	Pretty bool   `json:"pretty" yaml:"pretty"`
}

var root = zerolog.New(os.Stdout).With().Timestamp().Logger()

// New builds a logger writing to w. An empty level means info.
func New(w io.Writer, config Config) (zerolog.Logger, error) {
	level := zerolog.InfoLevel
	if config.Level != "" {
		var err error
		if level, err = zerolog.ParseLevel(config.Level); err != nil {
			return zerolog.Logger{}, err
		}
	}

	if config.Pretty {
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger(), nil
}

// Init replaces the shared logger. Loggers handed out earlier keep their
// old settings.
func Init(config Config) error {
	l, err := New(os.Stdout, config)
	if err != nil {
		return err
	}

	root = l
	log.Logger = l

	return nil
}

func WithComponent(component string) zerolog.Logger {
	return root.With().Str("component", component).Logger()
}
