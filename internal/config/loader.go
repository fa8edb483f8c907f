package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	pkgconfig "github.com/tokenbay/p2p-ledger/pkg/config"
	"gopkg.in/yaml.v3"
)

type decodeFunc func(data []byte, cfg *pkgconfig.Config) error

var decoders = map[string]struct {
	format string
	decode decodeFunc
}{
	".yaml": {"YAML", decodeYAML},
	".yml":  {"YAML", decodeYAML},
	".json": {"JSON", decodeJSON},
	".toml": {"TOML", decodeTOML},
}

// LoadFromFile loads configuration from a file, picking the format by
// extension. Supported formats: .yaml, .yml, .json, .toml.
func LoadFromFile(path string) (*pkgconfig.Config, error) {
	ext := strings.ToLower(filepath.Ext(path))

	dec, ok := decoders[ext]
	if !ok {
		return nil, fmt.Errorf("unsupported config file format: %s (supported: .yaml, .yml, .json, .toml)", ext)
	}

	return load(path, dec.format, dec.decode)
}

// LoadFromYAML loads configuration from a YAML file regardless of extension.
func LoadFromYAML(path string) (*pkgconfig.Config, error) {
	return load(path, "YAML", decodeYAML)
}

func load(path, format string, decode decodeFunc) (*pkgconfig.Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg pkgconfig.Config
	if err := decode(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse %s config: %w", format, err)
	}

	cfg.ApplyDefaults()

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

func decodeYAML(data []byte, cfg *pkgconfig.Config) error {
	return yaml.Unmarshal(data, cfg)
}

func decodeJSON(data []byte, cfg *pkgconfig.Config) error {
	return json.Unmarshal(data, cfg)
}

func decodeTOML(data []byte, cfg *pkgconfig.Config) error {
	return toml.Unmarshal(data, cfg)
}
