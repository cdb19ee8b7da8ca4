package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
)

// LoadFile loads a config file (HCL or JSON by extension), applies
// defaults, and validates it. A config that fails validation is
// never returned partially populated.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg *Config
	ext := strings.ToLower(filepath.Ext(path))
	switch ext {
	case ".json":
		cfg, err = LoadJSON(data)
	case ".hcl":
		cfg, err = LoadHCL(data, path)
	default:
		// Try HCL first, fall back to JSON.
		cfg, err = LoadHCL(data, path)
		if err != nil {
			if jsonCfg, jsonErr := LoadJSON(data); jsonErr == nil {
				cfg, err = jsonCfg, nil
			}
		}
	}
	if err != nil {
		return nil, err
	}

	cfg.ApplyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// LoadHCL loads config from HCL bytes.
func LoadHCL(data []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	file, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, fmt.Errorf("HCL parse error: %s", diags.Error())
	}

	var cfg Config
	diags = gohcl.DecodeBody(file.Body, nil, &cfg)
	if diags.HasErrors() {
		return nil, fmt.Errorf("HCL decode error: %s", diags.Error())
	}
	return &cfg, nil
}

// LoadJSON loads config from JSON bytes.
func LoadJSON(data []byte) (*Config, error) {
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("JSON parse error: %w", err)
	}
	return &cfg, nil
}
