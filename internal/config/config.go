// Package config loads construction-time configuration for the storage
// core via github.com/spf13/viper, the teacher's configuration library.
// There is no runtime reconfiguration: a Config is read once at startup
// and handed to the packages that need it.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/novasql/bufcore/internal/bufferpool"
	"github.com/novasql/bufcore/internal/diskscheduler"
)

// Config mirrors the module's [storage]/[bufferpool]/[scheduler] tables.
type Config struct {
	Storage struct {
		File string `mapstructure:"file"`
	} `mapstructure:"storage"`

	BufferPool struct {
		PoolSize int    `mapstructure:"pool_size"`
		Policy   string `mapstructure:"policy"`
	} `mapstructure:"bufferpool"`

	Scheduler struct {
		MaxPendingRequests int           `mapstructure:"max_pending_requests"`
		MaxBufferSize      int           `mapstructure:"max_buffer_size"`
		FlushInterval      time.Duration `mapstructure:"flush_interval"`
	} `mapstructure:"scheduler"`
}

// LoadConfig reads and unmarshals the YAML config file at path.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetConfigType("yaml")

	v.SetDefault("bufferpool.pool_size", bufferpool.DefaultPoolSize)
	v.SetDefault("bufferpool.policy", string(bufferpool.PolicyLRU))
	v.SetDefault("scheduler.max_pending_requests", diskscheduler.DefaultMaxPendingRequests)
	v.SetDefault("scheduler.max_buffer_size", diskscheduler.DefaultMaxBufferSize)
	v.SetDefault("scheduler.flush_interval", diskscheduler.DefaultFlushInterval)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// BufferPoolConfig translates the loaded config into bufferpool.Config.
func (c *Config) BufferPoolConfig() bufferpool.Config {
	return bufferpool.Config{
		PoolSize: c.BufferPool.PoolSize,
		Policy:   bufferpool.Policy(c.BufferPool.Policy),
	}
}

// SchedulerConfig translates the loaded config into diskscheduler.Config.
func (c *Config) SchedulerConfig() diskscheduler.Config {
	return diskscheduler.Config{
		FlushInterval:      c.Scheduler.FlushInterval,
		MaxBufferSize:      c.Scheduler.MaxBufferSize,
		MaxPendingRequests: c.Scheduler.MaxPendingRequests,
	}
}
