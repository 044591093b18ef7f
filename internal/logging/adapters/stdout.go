package adapters

import (
	"os"

	"go.uber.org/zap/zapcore"
)

// StdoutConfig represents configuration for the stdout adapter
type StdoutConfig struct {
	Format    string `yaml:"format"`    // json or text
	Colorized bool   `yaml:"colorized"` // colored levels, text format only
}

// NewStdoutAdapter creates an adapter writing to stdout
func NewStdoutAdapter(name string, config StdoutConfig) *ZapAdapter {
	return newZapAdapter(name, newEncoder(config.Format, config.Colorized), zapcore.AddSync(os.Stdout), nil)
}
