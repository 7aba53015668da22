// Package config holds the options that tune policy loading and report
// rendering. Options are read from an HCL file.
package config

import (
	"fmt"
	"io"

	"grimm.is/epolicy/internal/logging"
	"grimm.is/epolicy/internal/validation"
)

// Unknown block policies for the firewall loader.
const (
	UnknownReject = "reject"
	UnknownSkip   = "skip"
)

// DefaultMaxDepth bounds the nesting of firewall folders.
const DefaultMaxDepth = 256

// Config is the root of an options file.
type Config struct {
	LogLevel string        `hcl:"log_level,optional" validate:"omitempty,oneof=debug info warn warning error"`
	LogJSON  bool          `hcl:"log_json,optional"`
	Loader   *LoaderConfig `hcl:"loader,block"`
	Report   *ReportConfig `hcl:"report,block"`
}

// LoaderConfig controls how firewall rule policies are decoded.
type LoaderConfig struct {
	// UnknownBlocks is "reject" (fail the load) or "skip" (warn and continue)
	// for settings blocks with an unrecognised param_int.
	UnknownBlocks string `hcl:"unknown_blocks,optional" validate:"omitempty,oneof=reject skip"`
	MaxDepth      int    `hcl:"max_depth,optional" validate:"gte=0"`
}

// ReportConfig controls Markdown rendering.
type ReportConfig struct {
	Anchors *bool  `hcl:"anchors,optional"`
	Title   string `hcl:"title,optional"`
}

// Default returns the configuration used when no file is supplied.
func Default() *Config {
	cfg := &Config{}
	cfg.applyDefaults()
	return cfg
}

func (c *Config) applyDefaults() {
	if c.LogLevel == "" {
		c.LogLevel = "info"
	}
	if c.Loader == nil {
		c.Loader = &LoaderConfig{}
	}
	if c.Loader.UnknownBlocks == "" {
		c.Loader.UnknownBlocks = UnknownReject
	}
	if c.Loader.MaxDepth == 0 {
		c.Loader.MaxDepth = DefaultMaxDepth
	}
	if c.Report == nil {
		c.Report = &ReportConfig{}
	}
	if c.Report.Anchors == nil {
		anchors := true
		c.Report.Anchors = &anchors
	}
}

// Validate checks option values.
func (c *Config) Validate() error {
	if err := validation.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	return nil
}

// SkipUnknownBlocks reports whether the loader should skip unknown blocks.
func (c *Config) SkipUnknownBlocks() bool {
	return c.Loader != nil && c.Loader.UnknownBlocks == UnknownSkip
}

// Anchors reports whether rendered documents carry per-rule anchors.
func (c *Config) Anchors() bool {
	return c.Report == nil || c.Report.Anchors == nil || *c.Report.Anchors
}

// Logging returns the logger configuration described by c.
func (c *Config) Logging(out io.Writer) (logging.Config, error) {
	lc := logging.DefaultConfig()
	level, err := logging.ParseLevel(c.LogLevel)
	if err != nil {
		return lc, fmt.Errorf("invalid config: %w", err)
	}
	lc.Level = level
	lc.JSON = c.LogJSON
	if out != nil {
		lc.Output = out
	}
	return lc, nil
}
