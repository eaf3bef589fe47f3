// Package config resolves runtime settings from flags, environment, and an
// optional config file into a single Config value, the way plugin/evm's
// node configuration layers viper over pflag: flags win over the
// environment, the environment wins over a file, and the file wins over
// built-in defaults.
package config

import (
	"fmt"
	"strings"

	"github.com/spf13/cast"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/luxfi/ledger-engine/internal/engine"
	"github.com/luxfi/ledger-engine/internal/log"
	"github.com/luxfi/ledger-engine/internal/metrics"
	"github.com/luxfi/ledger-engine/internal/stream"
)

// Config is the fully resolved set of knobs for a running engine: shard
// count, multiplexing strategy, and error-handling policy kind.
type Config struct {
	Shards     int
	Combinator string // "merge" | "chain"
	Assignment string // "round-robin" | "sequential"
	OnError    string // "skip" | "abort" | "silent"
	LogLevel   string
	LogJSON    bool
}

const (
	keyShards     = "shards"
	keyCombinator = "combinator"
	keyAssignment = "assignment"
	keyOnError    = "on-error"
	keyLogLevel   = "log-level"
	keyLogJSON    = "log-json"
)

// Defaults returns the Config used when no flag, environment variable, or
// config file sets a value.
func Defaults() Config {
	return Config{
		Shards:     stream.DefaultShards,
		Combinator: "merge",
		Assignment: "round-robin",
		OnError:    "skip",
		LogLevel:   "info",
		LogJSON:    false,
	}
}

// BindFlags registers this package's settings on fs, so a caller's own
// urfave/cli flag set (or any pflag.FlagSet) can be merged with them via
// Load.
func BindFlags(fs *pflag.FlagSet) {
	d := Defaults()
	fs.Int(keyShards, d.Shards, "number of shard workers")
	fs.String(keyCombinator, d.Combinator, "stream multiplexing strategy within a shard: merge|chain")
	fs.String(keyAssignment, d.Assignment, "stream-to-shard assignment strategy: round-robin|sequential")
	fs.String(keyOnError, d.OnError, "error handling policy: skip|abort|silent")
	fs.String(keyLogLevel, d.LogLevel, "log level: trace|debug|info|warn|error")
	fs.Bool(keyLogJSON, d.LogJSON, "emit structured JSON logs instead of a terminal-formatted stream")
}

// Load resolves Config from, in increasing priority: built-in defaults, an
// optional config file at configPath (if non-empty), environment variables
// prefixed LEDGER_ENGINE_, and any flags already parsed into fs.
func Load(fs *pflag.FlagSet, configPath string) (Config, error) {
	v := viper.New()
	d := Defaults()
	v.SetDefault(keyShards, d.Shards)
	v.SetDefault(keyCombinator, d.Combinator)
	v.SetDefault(keyAssignment, d.Assignment)
	v.SetDefault(keyOnError, d.OnError)
	v.SetDefault(keyLogLevel, d.LogLevel)
	v.SetDefault(keyLogJSON, d.LogJSON)

	v.SetEnvPrefix("ledger_engine")
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("config: reading %s: %w", configPath, err)
		}
	}

	if fs != nil {
		if err := v.BindPFlags(fs); err != nil {
			return Config{}, fmt.Errorf("config: binding flags: %w", err)
		}
	}

	shards, err := cast.ToIntE(v.Get(keyShards))
	if err != nil {
		return Config{}, fmt.Errorf("config: %s: %w", keyShards, err)
	}

	return Config{
		Shards:     shards,
		Combinator: v.GetString(keyCombinator),
		Assignment: v.GetString(keyAssignment),
		OnError:    v.GetString(keyOnError),
		LogLevel:   v.GetString(keyLogLevel),
		LogJSON:    v.GetBool(keyLogJSON),
	}, nil
}

// StreamCombinator maps the resolved string to a stream.Combinator, defaulting to
// Merge for an unrecognized value.
func (c Config) StreamCombinator() stream.Combinator {
	if strings.EqualFold(c.Combinator, "chain") {
		return stream.Chain
	}
	return stream.Merge
}

// StreamAssignment maps the resolved string to a stream.Assignment, defaulting to
// RoundRobin for an unrecognized value.
func (c Config) StreamAssignment() stream.Assignment {
	if strings.EqualFold(c.Assignment, "sequential") {
		return stream.Sequential
	}
	return stream.RoundRobin
}

// Policy builds the engine.Policy named by OnError.
func (c Config) Policy(logger log.Logger, reg *metrics.Registry) (engine.Policy, error) {
	switch strings.ToLower(c.OnError) {
	case "skip":
		return engine.NewSkipErrors(logger, reg), nil
	case "abort":
		return engine.NewAbortOnError(logger, reg), nil
	case "silent":
		return engine.NewSilentSkip(reg), nil
	default:
		return nil, fmt.Errorf("config: unknown %s %q", keyOnError, c.OnError)
	}
}
