package stm

import (
	"fmt"

	"github.com/BurntSushi/toml"
)

// Config holds the host-level knobs a caller configures an STM with.
type Config struct {
	// Enabled controls whether the STM is active. When false,
	// RedirectLoad/RedirectStore are identity, StartTransaction and
	// CommitTransaction are no-ops, and Pool runs each event exactly once,
	// so a caller never has to branch on this flag.
	Enabled bool `toml:"stm_enabled"`

	// AbortEveryOtherCommit is a diagnostic knob: when true, the STM is
	// constructed with an alternating AbortPolicy instead of NeverAbort.
	AbortEveryOtherCommit bool `toml:"abort_every_other_commit"`

	// ThreadCount is the number of worker threads a Pool runs. Must be >= 1.
	ThreadCount int `toml:"thread_count"`

	// Debug enables the transaction state-transition assertions that are
	// otherwise skipped for speed; lock ordering is not checked. Not part of
	// the TOML schema; set explicitly by a host that wants the extra checking.
	Debug bool `toml:"-"`
}

// DefaultConfig returns the Config a host gets without a config file:
// enabled, no diagnostic aborts, and a single worker (ThreadCount 1; a host
// wanting more workers sets it explicitly or through a config file).
func DefaultConfig() Config {
	return Config{
		Enabled:     true,
		ThreadCount: 1,
	}
}

// LoadConfig decodes a TOML file into a Config, starting from
// DefaultConfig so that fields absent from the file keep their defaults.
func LoadConfig(path string) (Config, error) {
	cfg := DefaultConfig()
	if _, err := toml.DecodeFile(path, &cfg); err != nil {
		return Config{}, fmt.Errorf("stm: load config %s: %w", path, err)
	}
	if cfg.ThreadCount < 1 {
		return Config{}, fmt.Errorf("stm: load config %s: thread_count must be >= 1, got %d", path, cfg.ThreadCount)
	}
	return cfg, nil
}

func (c Config) abortPolicy() AbortPolicy {
	if c.AbortEveryOtherCommit {
		return NewAlternatingAbortPolicy()
	}
	return NeverAbort()
}
