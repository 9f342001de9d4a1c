package config

import (
	"fmt"
	"time"
)

// DatabaseConfig is shared by the gateway and the engine.
type DatabaseConfig struct {
	DSN            string `yaml:"dsn" env:"DSN"`                         // PostgreSQL connection string
	MaxConnections int    `yaml:"max_connections" env:"MAX_CONNECTIONS"` // Maximum open connections
	MinConnections int    `yaml:"min_connections" env:"MIN_CONNECTIONS"` // Idle connections kept in the pool
	MaxIdleTime    string `yaml:"max_idle_time" env:"MAX_IDLE_TIME"`
	MaxLifetime    string `yaml:"max_lifetime" env:"MAX_LIFETIME"`
}

// SetDefaults fills unset pool settings.
func (c *DatabaseConfig) SetDefaults() {
	if c.MaxConnections <= 0 {
		c.MaxConnections = 20
		fmt.Printf("Warning: database.max_connections not set or invalid, defaulting to %d\n", c.MaxConnections)
	}
	if c.MinConnections <= 0 {
		c.MinConnections = 2
		fmt.Printf("Warning: database.min_connections not set or invalid, defaulting to %d\n", c.MinConnections)
	}
	if c.MaxIdleTime == "" {
		c.MaxIdleTime = "30m"
		fmt.Printf("Warning: database.max_idle_time not set, defaulting to %s\n", c.MaxIdleTime)
	}
	if c.MaxLifetime == "" {
		c.MaxLifetime = "4h"
		fmt.Printf("Warning: database.max_lifetime not set, defaulting to %s\n", c.MaxLifetime)
	}
}

// Validate checks the database configuration. A DSN is required.
func (c *DatabaseConfig) Validate() error {
	if c.DSN == "" {
		return fmt.Errorf("database DSN is required")
	}
	if c.MaxConnections <= 0 {
		return fmt.Errorf("database max_connections must be positive")
	}
	if c.MinConnections < 0 {
		return fmt.Errorf("database min_connections cannot be negative")
	}
	if c.MinConnections > c.MaxConnections {
		return fmt.Errorf("database min_connections (%d) cannot be greater than max_connections (%d)",
			c.MinConnections, c.MaxConnections)
	}
	if _, err := time.ParseDuration(c.MaxIdleTime); err != nil {
		return fmt.Errorf("database max_idle_time: %w", err)
	}
	if _, err := time.ParseDuration(c.MaxLifetime); err != nil {
		return fmt.Errorf("database max_lifetime: %w", err)
	}
	return nil
}

// IdleTime returns MaxIdleTime as a duration, zero when unparseable.
func (c *DatabaseConfig) IdleTime() time.Duration {
	d, _ := time.ParseDuration(c.MaxIdleTime)
	return d
}

// Lifetime returns MaxLifetime as a duration, zero when unparseable.
func (c *DatabaseConfig) Lifetime() time.Duration {
	d, _ := time.ParseDuration(c.MaxLifetime)
	return d
}
