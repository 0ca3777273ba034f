package errorhandler

import (
	"fmt"

	"github.com/kelseyhightower/envconfig"
)

const (
	// DefaultMissingComponentPattern matches fatal messages about a type
	// the build expected from a separately installed component.
	DefaultMissingComponentPattern = `Class (undefined: \w+|'\w+' not found)`

	// DefaultMissingComponentNote is appended to fatal messages matching the
	// missing component pattern.
	DefaultMissingComponentNote = "The wiki or an installed extension requires this component, " +
		"but it is not part of this repository and must be installed separately.\n\n" +
		"See the deployment guide for the list of external components and how to install them."
)

type Config struct {
	ShowExceptionDetails    bool   `envconfig:"SHOW_EXCEPTION_DETAILS" default:"false"`
	LogExceptionBacktrace   bool   `envconfig:"LOG_EXCEPTION_BACKTRACE" default:"true"`
	ErrorReporting          int    `envconfig:"ERROR_REPORTING" default:"32767"`
	MissingComponentPattern string `envconfig:"MISSING_COMPONENT_PATTERN"`
	MissingComponentNote    string `envconfig:"MISSING_COMPONENT_NOTE"`
}

func GetConfig() Config {
	var config Config
	if err := envconfig.Process("", &config); err != nil {
		panic(fmt.Errorf("error processing env config: %w", err))
	}
	return config.withDefaults()
}

func (c Config) withDefaults() Config {
	if c.MissingComponentPattern == "" {
		c.MissingComponentPattern = DefaultMissingComponentPattern
	}
	if c.MissingComponentNote == "" {
		c.MissingComponentNote = DefaultMissingComponentNote
	}
	return c
}
