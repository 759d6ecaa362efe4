package commands

import (
	"github.com/mosaicnetworks/chainboot/src/config"
)

//CLIConfig contains configuration for the chainboot commands
type CLIConfig struct {
	Bootstrap config.Config `mapstructure:",squash"`
	Mode      string        `mapstructure:"mode"`
	File      string        `mapstructure:"file"`
	History   int           `mapstructure:"history"`
}

//NewDefaultCLIConfig creates a CLIConfig with default values
func NewDefaultCLIConfig() *CLIConfig {
	return &CLIConfig{
		Bootstrap: *config.NewDefaultConfig(),
		Mode:      "cloud",
		History:   10,
	}
}
