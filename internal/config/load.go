package config

import (
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"

	"gopkg.in/yaml.v3"

	ferrors "github.com/dipmndl/cdk-digital-twin-r2ex/internal/foundation/errors"
)

// Load builds the process configuration: env files, then the optional YAML
// file with ${VAR} expansion, then environment overrides, then defaults.
// It does not validate; call Require with the roles the process serves.
func Load(path string) (*Config, error) {
	loaded, err := loadEnvFiles()
	if err != nil {
		return nil, ferrors.ConfigurationError("failed to load env file").WithCause(err).Build()
	}
	for _, name := range loaded {
		slog.Debug("Loaded environment file", "file", name)
	}

	var data []byte
	if path != "" {
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, ferrors.ConfigurationError("failed to read config file").
				WithCause(err).
				WithContext("path", path).
				Build()
		}
	}
	return Parse(data, os.LookupEnv)
}

// Parse builds a configuration from YAML bytes (may be empty) and lookup.
func Parse(data []byte, lookup LookupFunc) (*Config, error) {
	cfg := &Config{Queue: QueueConfig{ConsumerDedup: true}}

	if len(data) > 0 {
		expanded := os.Expand(string(data), func(key string) string {
			v, _ := lookup(key)
			return v
		})
		if err := yaml.Unmarshal([]byte(expanded), cfg); err != nil {
			return nil, ferrors.ConfigurationError("failed to parse config file").WithCause(err).Build()
		}
	}

	if invalid := applyEnv(cfg, lookup); len(invalid) > 0 {
		keys := make([]string, 0, len(invalid))
		for k := range invalid {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b := ferrors.ConfigurationError("invalid configuration values").WithContext("invalid", keys)
		for _, k := range keys {
			b = b.WithContext(k, invalid[k])
		}
		return nil, b.Build()
	}

	applyDefaults(cfg)

	if _, err := ParseUTCOffset(cfg.Reports.UTCOffset); err != nil {
		return nil, ferrors.ConfigurationError("invalid configuration values").
			WithCause(err).
			WithContext("invalid", []string{"REPORT_UTC_OFFSET"}).
			Build()
	}
	return cfg, nil
}

// BranchKeyAllowed reports whether prefix is in the configured allow-set.
func (c *Config) BranchKeyAllowed(prefix string) bool {
	for _, k := range c.BranchKeys {
		if strings.EqualFold(k, prefix) {
			return true
		}
	}
	return false
}

func (c *Config) String() string {
	return fmt.Sprintf("Config{pipeline=%s queue=%s ledger=%s mail=%s}",
		c.PipelineName, c.Queue.Backend, c.Ledger.Backend, c.Mail.Transport)
}
