package ordercommand

import (
	"fmt"
	"time"

	"fleet-workflow/internal/common/config"
)

type Config struct {
	Timeout time.Duration
}

func DefaultConfig() *Config {
	return &Config{Timeout: 30 * time.Second}
}

// ConfigFor reads the worker section for taskType, falling back to defaults.
func ConfigFor(cfg *config.Config, taskType string) *Config {
	c := DefaultConfig()
	if cfg == nil {
		return c
	}
	if timeout := config.GetWorkerConfig(cfg, taskType).Timeout; timeout > 0 {
		c.Timeout = config.GetDuration(timeout)
	}
	return c
}

func (c *Config) Validate() error {
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive")
	}
	return nil
}
