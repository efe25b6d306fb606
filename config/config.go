package config

import (
	"errors"
	"path/filepath"
	"slices"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	ConfigDataPath             = "data-path"
	ConfigDebug                = "debug"
	ConfigConfigFile           = "config-file"
	ConfigGridSize             = "grid-size"
	ConfigTimeBudget           = "time-budget"
	ConfigExactSearchThreshold = "exact-search-threshold"
	ConfigAutosaveEdits        = "autosave-edits"
	ConfigAutosaveInterval     = "autosave-interval"
	ConfigLookupConfidence     = "lookup-confidence"
	ConfigSafetyMargin         = "safety-margin"
	ConfigLearningLimit        = "learning-limit"
	ConfigSolverThreads        = "solver-threads"
	ConfigTTMemoryFraction     = "tt-memory-fraction"
	ConfigNatsURL              = "nats-url"
	ConfigBotChannel           = "bot-channel"
	ConfigMetricsAddr          = "metrics-addr"
	ConfigCPUProfile           = "cpu-profile"
)

var ErrUnknownSetting = errors.New("unknown setting")

type Config struct {
	viper.Viper
	args []string
}

// DefaultConfig returns a config with every setting at its default and no
// flags or environment applied. Tests use it directly.
func DefaultConfig() *Config {
	c := &Config{Viper: *viper.New()}
	c.setDefaults()
	return c
}

func (c *Config) setDefaults() {
	c.SetDefault(ConfigDataPath, "./knowledge")
	c.SetDefault(ConfigDebug, false)
	c.SetDefault(ConfigGridSize, 20)
	c.SetDefault(ConfigTimeBudget, 3*time.Second)
	c.SetDefault(ConfigExactSearchThreshold, 30)
	c.SetDefault(ConfigAutosaveEdits, 10)
	c.SetDefault(ConfigAutosaveInterval, 60*time.Second)
	c.SetDefault(ConfigLookupConfidence, 0.85)
	c.SetDefault(ConfigSafetyMargin, 200*time.Millisecond)
	c.SetDefault(ConfigLearningLimit, 30*time.Second)
	c.SetDefault(ConfigSolverThreads, 0)
	c.SetDefault(ConfigTTMemoryFraction, 0.05)
	c.SetDefault(ConfigNatsURL, "nats://localhost:4222")
	c.SetDefault(ConfigBotChannel, "juniper.decide")
	c.SetDefault(ConfigMetricsAddr, "")
	c.SetDefault(ConfigCPUProfile, "")
}

// Load reads flags from args, then JUNIPER_-prefixed environment variables,
// then an optional YAML config file.
func (c *Config) Load(args []string) error {
	c.Viper = *viper.New()
	c.setDefaults()

	fs := pflag.NewFlagSet("juniper", pflag.ContinueOnError)
	fs.SetInterspersed(false)
	fs.String(ConfigDataPath, "./knowledge", "directory holding knowledge_<N>.json files")
	fs.Bool(ConfigDebug, false, "debug logging on")
	fs.String(ConfigConfigFile, "", "optional YAML config file")
	fs.Int(ConfigGridSize, 20, "default grid size for new games")
	fs.Duration(ConfigTimeBudget, 3*time.Second, "time budget per engine decision")
	fs.Int(ConfigExactSearchThreshold, 30, "largest grid size searched with the exact solver")
	fs.Int(ConfigAutosaveEdits, 10, "store edits between autosaves")
	fs.Duration(ConfigAutosaveInterval, 60*time.Second, "maximum time between autosaves")
	fs.Float64(ConfigLookupConfidence, 0.85, "minimum confidence for a stored winning move to be played")
	fs.Duration(ConfigSafetyMargin, 200*time.Millisecond, "time reserved at the end of a decision")
	fs.Duration(ConfigLearningLimit, 30*time.Second, "maximum duration of one background learning run")
	fs.Int(ConfigSolverThreads, 0, "root solver threads (0 means GOMAXPROCS)")
	fs.Float64(ConfigTTMemoryFraction, 0.05, "fraction of system memory for the transposition table")
	fs.String(ConfigNatsURL, "nats://localhost:4222", "NATS server for the decision bot")
	fs.String(ConfigBotChannel, "juniper.decide", "NATS subject the bot answers on")
	fs.String(ConfigMetricsAddr, "", "address to serve prometheus metrics on")
	fs.String(ConfigCPUProfile, "", "write a cpu profile to this file")

	// Flags stop at the first positional argument; the rest is a shell
	// command line with its own options.
	if err := fs.Parse(args); err != nil {
		return err
	}
	c.args = fs.Args()
	if err := c.BindPFlags(fs); err != nil {
		return err
	}
	c.SetEnvPrefix("juniper")
	c.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	c.AutomaticEnv()

	if cf := c.GetString(ConfigConfigFile); cf != "" {
		c.SetConfigFile(cf)
		c.SetConfigType("yaml")
		if err := c.ReadInConfig(); err != nil {
			return err
		}
	}
	return nil
}

// Args returns the positional arguments left after flag parsing.
func (c *Config) Args() []string {
	return c.args
}

// AdjustRelativePaths makes the data path absolute relative to basePath if
// it was given relative to the working directory.
func (c *Config) AdjustRelativePaths(basePath string) {
	p := c.GetString(ConfigDataPath)
	if strings.HasPrefix(p, "./") {
		c.Set(ConfigDataPath, filepath.Join(basePath, p))
	}
}

// SanitizedSettings returns all settings, minus anything that might carry
// credentials.
func (c *Config) SanitizedSettings() map[string]any {
	settings := c.AllSettings()
	if u, ok := settings[ConfigNatsURL].(string); ok && strings.Contains(u, "@") {
		settings[ConfigNatsURL] = "****"
	}
	return settings
}

// SetFromString sets a known setting from its textual form, as typed in
// the shell.
func (c *Config) SetFromString(key, value string) error {
	if !slices.Contains(c.AllKeys(), key) {
		return ErrUnknownSetting
	}
	switch c.Get(key).(type) {
	case time.Duration:
		d, err := time.ParseDuration(value)
		if err != nil {
			return err
		}
		c.Set(key, d)
	default:
		c.Set(key, value)
	}
	return nil
}
