package config

import "github.com/mwangaben/nats-laravel-echo/pkg/logging"

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level      string `yaml:"level"`       // debug, info, warn, error
	Format     string `yaml:"format"`      // json, console
	OutputFile string `yaml:"output_file"` // Empty for stdout
}

// NewLogger builds the client logger. nats.debug forces debug level.
func (c *Config) NewLogger() (*logging.ColoredLogger, error) {
	level := c.Logging.Level
	if c.NATS.Debug {
		level = "debug"
	}
	return logging.NewLogger(logging.Options{
		Level:      level,
		Format:     c.Logging.Format,
		OutputFile: c.Logging.OutputFile,
		Colors:     c.Logging.OutputFile == "",
	})
}
