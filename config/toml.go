package config

import (
	"os"

	"github.com/BurntSushi/toml"
)

// defaultConfigFileName is the file DefaultConfigFilePath names under the
// node's config directory, mirroring the teacher's config/toml.go
// defaultConfigFileName.
const defaultConfigFileName = "config.toml"

// WriteConfigFile renders cfg as TOML to path, the way the teacher's
// e2e test harness renders its manifest with toml.NewEncoder (test/e2e/pkg/manifest.go),
// rather than the teacher's own hand-templated config.toml writer — this
// package has no commentary-heavy sections to preserve, so the generic
// encoder is the simpler idiom.
func WriteConfigFile(path string, cfg *Config) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	defer f.Close()
	return toml.NewEncoder(f).Encode(cfg)
}

// LoadConfigFile decodes a TOML config file into a fresh Config seeded with
// defaults, so omitted keys keep their default values.
func LoadConfigFile(path string) (*Config, error) {
	cfg := DefaultConfig()
	_, err := toml.DecodeFile(path, cfg)
	if err != nil {
		return nil, err
	}
	return cfg, nil
}

// DefaultConfigFilePath joins a root directory with the canonical config
// file name.
func DefaultConfigFilePath(rootDir string) string {
	return rootDir + string(os.PathSeparator) + defaultConfigFileName
}
