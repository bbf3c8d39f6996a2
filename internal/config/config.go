// Package config loads transferstats settings.
//
// Sources are applied in order, later ones winning:
//
//  1. built-in defaults
//  2. a YAML file (--config, TRANSFERSTATS_CONFIG, or transferstats.yaml in the working directory)
//  3. TRANSFERSTATS_* environment variables
//  4. command-line flag overrides
//
// The result is validated before use.
package config

import (
	"time"

	"github.com/transferstats/transferstats/internal/core"
	"github.com/transferstats/transferstats/internal/mediapath"
	"github.com/transferstats/transferstats/internal/model"
)

// DefaultStore is used when no store is configured.
const DefaultStore = "transfers.db"

// Config is the complete runtime configuration.
type Config struct {
	// Stores are the transfer-log files to analyse.
	Stores []string `koanf:"stores" validate:"dive,required"`

	// Days limits the analysis to the last N days; 0 means all time.
	Days int `koanf:"days" validate:"gte=0"`

	// Top is the size of ranked lists.
	Top int `koanf:"top" validate:"gte=1,lte=10000"`

	// Direction is all, upload or download.
	Direction string `koanf:"direction" validate:"oneof=all upload download"`

	// Workers bounds concurrent store queries.
	Workers int `koanf:"workers" validate:"gte=1,lte=64"`

	// QueryTimeout bounds the work done against one store per operation.
	QueryTimeout time.Duration `koanf:"query_timeout" validate:"gt=0"`

	// FillGaps adds zero rows for days without transfers.
	FillGaps bool `koanf:"fill_gaps"`

	// Passphrase unlocks SQLCipher-encrypted stores.
	Passphrase string `koanf:"passphrase"`

	Confidence ConfidenceConfig `koanf:"confidence"`
	Parser     ParserConfig     `koanf:"parser"`
	Logging    LoggingConfig    `koanf:"logging"`
}

// ConfidenceConfig bounds the parser confidence sample.
type ConfidenceConfig struct {
	SampleSize  int `koanf:"sample_size" validate:"gte=1"`
	MaxExamples int `koanf:"max_examples" validate:"gte=0"`
}

// ParserConfig tunes the media path heuristics.
type ParserConfig struct {
	Markers         []string `koanf:"markers" validate:"dive,required"`
	NoisePrefixes   []string `koanf:"noise_prefixes" validate:"dive,required"`
	MinSegmentLen   int      `koanf:"min_segment_len" validate:"gte=0"`
	ShortSegmentLen int      `koanf:"short_segment_len" validate:"gte=0"`
}

// LoggingConfig configures the zerolog logger.
type LoggingConfig struct {
	Level  string `koanf:"level" validate:"oneof=trace debug info warn warning error disabled off"`
	Format string `koanf:"format" validate:"oneof=json console"`
}

func defaultConfig() *Config {
	opts := mediapath.DefaultOptions()
	return &Config{
		Stores:       []string{},
		Days:         0,
		Top:          10,
		Direction:    "all",
		Workers:      core.DefaultWorkers,
		QueryTimeout: core.DefaultQueryTimeout,
		Confidence: ConfidenceConfig{
			SampleSize:  mediapath.DefaultSampleSize,
			MaxExamples: mediapath.DefaultMaxExamples,
		},
		Parser: ParserConfig{
			Markers:         opts.Markers,
			NoisePrefixes:   opts.NoisePrefixes,
			MinSegmentLen:   opts.MinSegmentLen,
			ShortSegmentLen: opts.ShortSegmentLen,
		},
		Logging: LoggingConfig{
			Level:  "warn",
			Format: "console",
		},
	}
}

// Directions returns the directions selected by Direction.
func (c *Config) Directions() []model.Direction {
	if d, ok := model.ParseDirection(c.Direction); ok {
		return []model.Direction{d}
	}
	return model.Directions
}

// Since returns the look-back cutoff relative to now, or nil.
func (c *Config) Since(now time.Time) *time.Time {
	return core.Cutoff(now, c.Days)
}

// ParserOptions converts the parser settings.
func (c *Config) ParserOptions() mediapath.Options {
	return mediapath.Options{
		Markers:         c.Parser.Markers,
		NoisePrefixes:   c.Parser.NoisePrefixes,
		MinSegmentLen:   c.Parser.MinSegmentLen,
		ShortSegmentLen: c.Parser.ShortSegmentLen,
	}
}

// SourceOptions converts the store access settings.
func (c *Config) SourceOptions(diag *core.Diagnostics) core.SourceOptions {
	return core.SourceOptions{
		Passphrase:   c.Passphrase,
		Workers:      c.Workers,
		QueryTimeout: c.QueryTimeout,
		Diagnostics:  diag,
	}
}
