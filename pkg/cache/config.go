package cache

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/c360/livegraph/errors"
)

// Config describes a recency cache.
type Config struct {
	// MaxSize is the maximum number of entries.
	MaxSize int `json:"max_size"`

	// TTL is how long an entry lives after insertion.
	TTL time.Duration `json:"ttl"`

	// CleanupInterval enables a background sweep of expired entries. Zero disables it.
	CleanupInterval time.Duration `json:"cleanup_interval"`
}

// DefaultConfig returns a default cache configuration.
func DefaultConfig() Config {
	return Config{
		MaxSize:         128,
		TTL:             5 * time.Minute,
		CleanupInterval: time.Minute,
	}
}

// Validate checks if the configuration is valid.
func (c Config) Validate() error {
	if c.MaxSize <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "Validate",
			fmt.Sprintf("max_size must be positive, got %d", c.MaxSize))
	}
	if c.TTL <= 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "Validate",
			fmt.Sprintf("ttl must be positive, got %v", c.TTL))
	}
	if c.CleanupInterval < 0 {
		return errors.WrapInvalid(errors.ErrInvalidConfig, "cache", "Validate",
			fmt.Sprintf("cleanup_interval must not be negative, got %v", c.CleanupInterval))
	}
	return nil
}

// UnmarshalJSON accepts durations as strings ("5m") or integer nanoseconds.
func (c *Config) UnmarshalJSON(data []byte) error {
	type Alias Config

	aux := &struct {
		TTL             json.RawMessage `json:"ttl,omitempty"`
		CleanupInterval json.RawMessage `json:"cleanup_interval,omitempty"`
		*Alias
	}{
		Alias: (*Alias)(c),
	}

	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}

	if len(aux.TTL) > 0 {
		ttl, err := ParseDuration(aux.TTL, "ttl")
		if err != nil {
			return err
		}
		c.TTL = ttl
	}

	if len(aux.CleanupInterval) > 0 {
		interval, err := ParseDuration(aux.CleanupInterval, "cleanup_interval")
		if err != nil {
			return err
		}
		c.CleanupInterval = interval
	}

	return nil
}

// MarshalJSON writes durations as strings so configs round-trip readably.
func (c Config) MarshalJSON() ([]byte, error) {
	return json.Marshal(struct {
		MaxSize         int    `json:"max_size"`
		TTL             string `json:"ttl"`
		CleanupInterval string `json:"cleanup_interval,omitempty"`
	}{
		MaxSize:         c.MaxSize,
		TTL:             c.TTL.String(),
		CleanupInterval: durationString(c.CleanupInterval),
	})
}

// ParseDuration decodes a JSON duration that is either a string such as
// "1h" or an integer count of nanoseconds.
func ParseDuration(data json.RawMessage, fieldName string) (time.Duration, error) {
	var str string
	if err := json.Unmarshal(data, &str); err == nil {
		d, err := time.ParseDuration(str)
		if err != nil {
			return 0, fmt.Errorf("invalid duration string for %s: %w", fieldName, err)
		}
		return d, nil
	}

	var nsec int64
	if err := json.Unmarshal(data, &nsec); err != nil {
		return 0, fmt.Errorf("field %s must be either a duration string (e.g., '1h') or integer nanoseconds", fieldName)
	}
	return time.Duration(nsec), nil
}

func durationString(d time.Duration) string {
	if d == 0 {
		return ""
	}
	return d.String()
}
