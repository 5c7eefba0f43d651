// Package config handles YAML config file loading for the result
// streamer.
package config

import (
	"fmt"
	"time"

	"github.com/loamdata/strata/types"
)

// Defaults applied by Normalize when a field is unset.
const (
	// DefaultMaxBatchBytes is the absolute per-message transport cap.
	DefaultMaxBatchBytes = 4 * 1024 * 1024
	// DefaultBatchByteFraction is the effective-fraction multiplier:
	// the budget actually used sits conservatively below the absolute
	// cap to absorb size-estimation error.
	DefaultBatchByteFraction = 0.70
	// DefaultMaxRowsPerBatch bounds rows per batch for consumer-side
	// memory and processing.
	DefaultMaxRowsPerBatch = 10000
)

// Config represents a strata.yaml configuration file.
type Config struct {
	Stream      StreamConfig      `yaml:"stream"`
	Compression CompressionConfig `yaml:"compression"`
}

// StreamConfig holds the batch budget and encoding settings.
type StreamConfig struct {
	// MaxBatchBytes is the absolute transport cap on a message's
	// payload size, in bytes.
	MaxBatchBytes int `yaml:"max_batch_bytes"`
	// BatchByteFraction is the fraction of MaxBatchBytes the packing
	// budget actually uses. Must be in (0, 1].
	BatchByteFraction float64 `yaml:"batch_byte_fraction"`
	// MaxRowsPerBatch is the maximum rows per batch.
	MaxRowsPerBatch int `yaml:"max_rows_per_batch"`
	// TimeZone is the IANA zone id used when rendering timestamp
	// values into batch payloads. Defaults to UTC.
	TimeZone string `yaml:"time_zone"`
}

// CompressionConfig holds frame sink compression settings.
type CompressionConfig struct {
	// Enabled turns on snappy compression of batch payloads.
	Enabled bool `yaml:"enabled"`
	// MinSize is the minimum payload size worth compressing, in
	// bytes. Zero uses the sink default.
	MinSize int `yaml:"min_size"`
	// MinRatio is the maximum compressed:original ratio at which the
	// compressed form is kept. Zero uses the sink default.
	MinRatio float64 `yaml:"min_ratio"`
}

// Normalize fills unset fields with defaults and validates ranges.
func (c *Config) Normalize() error {
	s := &c.Stream
	if s.MaxBatchBytes == 0 {
		s.MaxBatchBytes = DefaultMaxBatchBytes
	}
	if s.MaxBatchBytes < 0 {
		return fmt.Errorf("max_batch_bytes must be positive, got %d", s.MaxBatchBytes)
	}
	if s.BatchByteFraction == 0 {
		s.BatchByteFraction = DefaultBatchByteFraction
	}
	if s.BatchByteFraction < 0 || s.BatchByteFraction > 1 {
		return fmt.Errorf("batch_byte_fraction must be in (0, 1], got %g", s.BatchByteFraction)
	}
	if s.MaxRowsPerBatch == 0 {
		s.MaxRowsPerBatch = DefaultMaxRowsPerBatch
	}
	if s.MaxRowsPerBatch < 0 {
		return fmt.Errorf("max_rows_per_batch must be positive, got %d", s.MaxRowsPerBatch)
	}

	if _, err := c.Location(); err != nil {
		return err
	}
	return nil
}

// Budget derives the effective batch budget: the byte bound is the
// transport cap scaled down by the configured fraction.
func (c *Config) Budget() types.BatchBudget {
	maxBytes := int(float64(c.Stream.MaxBatchBytes) * c.Stream.BatchByteFraction)
	if maxBytes < 1 {
		maxBytes = 1
	}
	return types.BatchBudget{
		MaxRows:  c.Stream.MaxRowsPerBatch,
		MaxBytes: maxBytes,
	}
}

// Location resolves the configured time zone, defaulting to UTC.
func (c *Config) Location() (*time.Location, error) {
	if c.Stream.TimeZone == "" {
		return time.UTC, nil
	}
	loc, err := time.LoadLocation(c.Stream.TimeZone)
	if err != nil {
		return nil, fmt.Errorf("invalid time_zone %q: %w", c.Stream.TimeZone, err)
	}
	return loc, nil
}
