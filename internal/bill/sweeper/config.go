package sweeper

import "time"

// Config controls the payment-email sweeper loop.
type Config struct {
	BatchSize    int
	PollInterval time.Duration

	// LockTimeout is how long a claim stays honored before another
	// sweeper run may steal the bill from a crashed sender.
	LockTimeout time.Duration
}

func DefaultConfig() Config {
	return Config{
		BatchSize:    50,
		PollInterval: time.Minute,
		LockTimeout:  10 * time.Minute,
	}
}

func (c Config) withDefaults() Config {
	defaults := DefaultConfig()
	if c.BatchSize <= 0 {
		c.BatchSize = defaults.BatchSize
	}
	if c.PollInterval <= 0 {
		c.PollInterval = defaults.PollInterval
	}
	if c.LockTimeout <= 0 {
		c.LockTimeout = defaults.LockTimeout
	}
	return c
}
