package binder

import (
	"fmt"
	"io"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v2"
)

const DefaultCacheTTL time.Duration = 5 * time.Minute

type CacheInfo struct {
	Enabled bool   `yaml:"enabled"`
	TTL     string `yaml:"ttl"`
}

type MapperConfig struct {
	Name   string    `yaml:"name"`
	Table  string    `yaml:"table"`
	Source string    `yaml:"source"`
	Cache  CacheInfo `yaml:"cache"`
}

// TableName returns the configured table, or the lower case mapper name if
// no table has been configured
func (mc MapperConfig) TableName() string {
	if mc.Table != "" {
		return mc.Table
	}
	return strings.ToLower(mc.Name)
}

// CacheTTL returns how long cached records should be kept, or zero if caching
// is disabled for the mapper
func (mc MapperConfig) CacheTTL() (time.Duration, error) {
	if !mc.Cache.Enabled {
		return 0, nil
	}

	if mc.Cache.TTL == "" {
		return DefaultCacheTTL, nil
	}

	ttl, err := time.ParseDuration(mc.Cache.TTL)
	if err != nil {
		return 0, fmt.Errorf("invalid cache ttl for mapper %s: %w", mc.Name, err)
	}

	if ttl <= 0 {
		return 0, fmt.Errorf("cache ttl for mapper %s must be positive", mc.Name)
	}

	return ttl, nil
}

type Config struct {
	Mappers []MapperConfig `yaml:"mappers"`
}

// Mapper returns the configuration for a mapper, falling back to defaults
// for mappers that are not present in the configuration
func (cfg *Config) Mapper(name string) MapperConfig {
	if cfg != nil {
		for _, mc := range cfg.Mappers {
			if mc.Name == name {
				return mc
			}
		}
	}

	return MapperConfig{Name: name}
}

func LoadConfiguration(data io.Reader) (*Config, error) {

	buf, err := io.ReadAll(data)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	err = yaml.Unmarshal(buf, &cfg)
	if err != nil {
		return nil, err
	}

	for _, mc := range cfg.Mappers {
		if mc.Name == "" {
			return nil, fmt.Errorf("all configured mappers must have a name")
		}

		if _, err := mc.CacheTTL(); err != nil {
			return nil, err
		}
	}

	return cfg, nil
}
