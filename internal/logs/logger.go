package logs

import (
	"os"

	"github.com/sirupsen/logrus"
)

// Logger is the application-wide logger. It is usable before Init with logrus defaults.
var Logger = logrus.New()

// Options configure Init.
type Options struct {
	Level  string // trace|debug|info|warning|error
	Format string // text|json
}

// Init configures the global logger.
func Init(opts Options) {
	l := logrus.New()
	l.SetOutput(os.Stdout)

	level, err := logrus.ParseLevel(opts.Level)
	if err != nil {
		level = logrus.InfoLevel
	}
	l.SetLevel(level)

	if opts.Format == "json" {
		l.SetFormatter(&logrus.JSONFormatter{})
	} else {
		l.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}

	Logger = l
}
