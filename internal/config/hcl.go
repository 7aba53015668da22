package config

import (
	"fmt"
	"os"

	"github.com/hashicorp/hcl/v2/hclsimple"
	"github.com/hashicorp/hcl/v2/hclwrite"
	"github.com/zclconf/go-cty/cty"
)

// Load reads, decodes and validates an HCL options file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	return Parse(path, data)
}

// Parse decodes HCL source. filename is used in diagnostics and must end
// in ".hcl".
func Parse(filename string, data []byte) (*Config, error) {
	var cfg Config
	if err := hclsimple.Decode(filename, data, nil, &cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Encode renders cfg as HCL.
func Encode(cfg *Config) []byte {
	f := hclwrite.NewEmptyFile()
	body := f.Body()

	body.SetAttributeValue("log_level", cty.StringVal(cfg.LogLevel))
	body.SetAttributeValue("log_json", cty.BoolVal(cfg.LogJSON))

	if cfg.Loader != nil {
		body.AppendNewline()
		lb := body.AppendNewBlock("loader", nil).Body()
		if cfg.Loader.UnknownBlocks != "" {
			lb.SetAttributeValue("unknown_blocks", cty.StringVal(cfg.Loader.UnknownBlocks))
		}
		if cfg.Loader.MaxDepth != 0 {
			lb.SetAttributeValue("max_depth", cty.NumberIntVal(int64(cfg.Loader.MaxDepth)))
		}
	}

	if cfg.Report != nil {
		body.AppendNewline()
		rb := body.AppendNewBlock("report", nil).Body()
		if cfg.Report.Anchors != nil {
			rb.SetAttributeValue("anchors", cty.BoolVal(*cfg.Report.Anchors))
		}
		if cfg.Report.Title != "" {
			rb.SetAttributeValue("title", cty.StringVal(cfg.Report.Title))
		}
	}

	return f.Bytes()
}

// Save writes cfg to path as HCL.
func Save(cfg *Config, path string) error {
	if err := os.WriteFile(path, Encode(cfg), 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}
	return nil
}
