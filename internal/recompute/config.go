package recompute

import "time"

// Config controls the debounce settle delay.
type Config struct {
	SettleDelay time.Duration
}

func DefaultConfig() Config {
	return Config{
		SettleDelay: 500 * time.Millisecond,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.SettleDelay <= 0 {
		c.SettleDelay = defaults.SettleDelay
	}
	return c
}
