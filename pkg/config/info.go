package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// redactedPlaceholder replaces secret values in exported config.
const redactedPlaceholder = "***"

// Redacted returns the configuration as a nested map with lowercase
// keys and all secrets replaced by a placeholder. This is what the
// admin-only config endpoint serves.
func (c *Config) Redacted() (map[string]any, error) {
	clone := *c
	clone.Server.SessionSecret = redactedPlaceholder
	clone.Confirmation.Secret = redactedPlaceholder
	clone.Directory.BindPassword = redactedPlaceholder
	clone.StorageGrid.Password = redactedPlaceholder
	clone.Registry.Password = redactedPlaceholder
	clone.Mail.Password = redactedPlaceholder
	clone.Database.Postgres.Password = redactedPlaceholder

	// YAML round trip yields the lowercase key view declared by the
	// struct tags.
	data, err := yaml.Marshal(&clone)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal config: %w", err)
	}

	var m map[string]any
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return m, nil
}
