package config

import (
	"fmt"

	"gopkg.in/yaml.v3"
)

// Settings is a read-only bag of named numeric and boolean values addressed by
// dot-separated paths, e.g. "powerups.speed_boost.duration_seconds".
type Settings struct {
	values map[string]any
}

// NewSettings builds Settings from already flattened values.
func NewSettings(values map[string]any) *Settings {
	copied := make(map[string]any, len(values))
	for k, v := range values {
		copied[k] = v
	}
	return &Settings{values: copied}
}

// SettingsFromConfig flattens the YAML representation of cfg.
func SettingsFromConfig(cfg Config) (*Settings, error) {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nil, fmt.Errorf("encode config: %w", err)
	}
	var tree map[string]any
	if err = yaml.Unmarshal(data, &tree); err != nil {
		return nil, fmt.Errorf("decode config tree: %w", err)
	}
	s := &Settings{values: make(map[string]any)}
	flatten("", tree, s.values)
	return s, nil
}

func flatten(prefix string, node map[string]any, out map[string]any) {
	for k, v := range node {
		key := k
		if prefix != "" {
			key = prefix + "." + k
		}
		if child, ok := v.(map[string]any); ok {
			flatten(key, child, out)
			continue
		}
		out[key] = v
	}
}

// Float returns the numeric value stored under name, or def.
func (s *Settings) Float(name string, def float64) float64 {
	if s == nil {
		return def
	}
	switch v := s.values[name].(type) {
	case float64:
		return v
	case float32:
		return float64(v)
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case uint64:
		return float64(v)
	default:
		return def
	}
}

// Bool returns the boolean value stored under name, or def.
func (s *Settings) Bool(name string, def bool) bool {
	if s == nil {
		return def
	}
	if v, ok := s.values[name].(bool); ok {
		return v
	}
	return def
}
