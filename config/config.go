package config

import (
	"bytes"
	"io"
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type BuilderConfig struct {
	CoplanarWeight  float32 `yaml:"coplanar_weight"`
	IntersectWeight float32 `yaml:"intersect_weight"`
	SplitWeight     float32 `yaml:"split_weight"`
	MinSplitMetric  float32 `yaml:"min_split_metric"`
	MaxDepth        int     `yaml:"max_depth"`
	CacheLimit      int     `yaml:"cache_limit"`
}

type ExportConfig struct {
	UpdateBounds bool `yaml:"update_bounds"`
	UpdateBSP    bool `yaml:"update_bsp"`
}

type Config struct {
	Builder  BuilderConfig `yaml:"builder"`
	Export   ExportConfig  `yaml:"export"`
	Encoding string        `yaml:"encoding"`
}

// 64M cached plane classifications, one byte each
const DefaultCacheLimit = 64 << 20

func Default() *Config {
	return &Config{
		Builder: BuilderConfig{
			CoplanarWeight:  0.5,
			IntersectWeight: 1.0,
			SplitWeight:     1.0,
			MinSplitMetric:  0.5,
			MaxDepth:        0,
			CacheLimit:      DefaultCacheLimit,
		},
		Export: ExportConfig{
			UpdateBounds: true,
			UpdateBSP:    true,
		},
		Encoding: DefaultEncoding,
	}
}

var currentConfig = Default()

func Get() *Config {
	return currentConfig
}

func Set(c *Config) {
	currentConfig = c
}

func (c *Config) Validate() error {
	if c.Builder.MaxDepth < 0 {
		return errors.Errorf("builder.max_depth must not be negative (%d)", c.Builder.MaxDepth)
	}
	if c.Builder.CacheLimit < 0 {
		return errors.Errorf("builder.cache_limit must not be negative (%d)", c.Builder.CacheLimit)
	}
	if c.Builder.MinSplitMetric < 0 {
		return errors.Errorf("builder.min_split_metric must not be negative (%v)", c.Builder.MinSplitMetric)
	}
	if c.Encoding != "" {
		if _, err := FindCharmap(c.Encoding); err != nil {
			return errors.WithMessage(err, "encoding")
		}
	}
	return nil
}

// Parse overlays yaml document over default values
func Parse(data []byte) (*Config, error) {
	c := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil && err != io.EOF {
		return nil, errors.Wrapf(err, "Failed to unmarshal yaml")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "Cannot read config %q", path)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, errors.Wrapf(err, "Config %q", path)
	}
	return c, nil
}

func (c *Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, errors.Wrapf(err, "Failed to marshal yaml")
	}
	return data, nil
}
