package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/c360/livegraph/errors"
)

// DefaultEnvPrefix prefixes the environment overrides read by Loader.
const DefaultEnvPrefix = "LIVEGRAPH"

// Loader handles configuration loading with layers and overrides
type Loader struct {
	layers     []string
	validation bool
	envPrefix  string
	getenv     func(string) string
}

// NewLoader creates a new configuration loader with validation enabled
func NewLoader() *Loader {
	return &Loader{
		validation: true,
		envPrefix:  DefaultEnvPrefix,
		getenv:     os.Getenv,
	}
}

// AddLayer adds a configuration file layer. Later layers override earlier ones.
func (l *Loader) AddLayer(path string) {
	l.layers = append(l.layers, path)
}

// EnableValidation enables or disables configuration validation
func (l *Loader) EnableValidation(enable bool) {
	l.validation = enable
}

// SetEnvPrefix changes the environment variable prefix.
func (l *Loader) SetEnvPrefix(prefix string) {
	l.envPrefix = prefix
}

// Load starts from Default, merges every layer in order, applies environment
// overrides and validates the result.
func (l *Loader) Load() (*Config, error) {
	merged, err := toMap(Default())
	if err != nil {
		return nil, errors.Wrap(err, "Loader", "Load", "encode defaults")
	}

	for _, path := range l.layers {
		layer, err := loadRawMap(path)
		if err != nil {
			return nil, errors.Wrap(err, "Loader", "Load", "load "+path)
		}
		merged = deepMergeMaps(merged, layer)
	}

	data, err := json.Marshal(merged)
	if err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "Load", "encode merged config")
	}
	var cfg Config
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, errors.WrapInvalid(err, "Loader", "Load", "decode merged config")
	}

	if err := l.applyEnvOverrides(&cfg); err != nil {
		return nil, err
	}

	if l.validation {
		if err := cfg.Validate(); err != nil {
			return nil, err
		}
	}
	return &cfg, nil
}

// LoadFile loads and validates a single JSON or YAML file on top of the defaults.
func LoadFile(path string) (*Config, error) {
	l := NewLoader()
	l.AddLayer(path)
	return l.Load()
}

// Parse decodes a JSON document on top of the defaults and validates it.
func Parse(data []byte) (*Config, error) {
	if err := validateJSONDepth(data); err != nil {
		return nil, errors.WrapInvalid(err, "config", "Parse", "check structure")
	}
	var layer map[string]any
	if err := json.Unmarshal(data, &layer); err != nil {
		return nil, errors.WrapInvalid(errors.ErrParsingFailed, "config", "Parse", err.Error())
	}

	base, err := toMap(Default())
	if err != nil {
		return nil, err
	}
	merged, err := json.Marshal(deepMergeMaps(base, layer))
	if err != nil {
		return nil, errors.WrapInvalid(err, "config", "Parse", "encode merged config")
	}

	var cfg Config
	if err := json.Unmarshal(merged, &cfg); err != nil {
		return nil, errors.WrapInvalid(err, "config", "Parse", "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// loadRawMap reads a layer as a generic map. YAML is normalised to JSON
// first so both formats go through the same decoders.
func loadRawMap(path string) (map[string]any, error) {
	data, err := safeReadFile(path)
	if err != nil {
		return nil, err
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yamlToJSON(data)
		if err != nil {
			return nil, err
		}
	}

	if err := validateJSONDepth(data); err != nil {
		return nil, errors.WrapInvalid(err, "config", "loadRawMap", "check structure")
	}

	var raw map[string]any
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, errors.WrapInvalid(errors.ErrParsingFailed, "config", "loadRawMap", err.Error())
	}
	return raw, nil
}

func yamlToJSON(data []byte) ([]byte, error) {
	var doc any
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, errors.WrapInvalid(errors.ErrParsingFailed, "config", "yamlToJSON", err.Error())
	}
	if doc == nil {
		return []byte("{}"), nil
	}
	out, err := json.Marshal(doc)
	if err != nil {
		return nil, errors.WrapInvalid(err, "config", "yamlToJSON", "re-encode YAML as JSON")
	}
	return out, nil
}

func toMap(cfg *Config) (map[string]any, error) {
	data, err := json.Marshal(cfg)
	if err != nil {
		return nil, err
	}
	var m map[string]any
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, err
	}
	return m, nil
}

// deepMergeMaps recursively merges two maps, with override taking precedence.
// Lists are replaced, not appended.
func deepMergeMaps(base, override map[string]any) map[string]any {
	result := make(map[string]any, len(base)+len(override))
	for k, v := range base {
		result[k] = v
	}

	for k, v := range override {
		if v == nil {
			continue
		}
		if baseMap, ok := base[k].(map[string]any); ok {
			if overrideMap, ok := v.(map[string]any); ok {
				result[k] = deepMergeMaps(baseMap, overrideMap)
				continue
			}
		}
		result[k] = v
	}
	return result
}

// applyEnvOverrides applies <PREFIX>_* environment variables.
func (l *Loader) applyEnvOverrides(cfg *Config) error {
	strs := map[string]*string{
		"NATS_URL":                   &cfg.NATS.URL,
		"NATS_USERNAME":              &cfg.NATS.Username,
		"NATS_PASSWORD":              &cfg.NATS.Password,
		"NATS_TOKEN":                 &cfg.NATS.Token,
		"NATS_UPDATE_SUBJECT_PREFIX": &cfg.NATS.UpdateSubjectPrefix,
		"NATS_INPUT_SUBJECT":         &cfg.NATS.InputSubject,
		"WEBSOCKET_ADDR":             &cfg.WebSocket.Addr,
		"JOURNAL_DIRECTORY":          &cfg.Journal.Directory,
		"WEBHOOK_URL":                &cfg.Webhook.URL,
		"METRICS_ADDR":               &cfg.Metrics.Addr,
	}
	for suffix, field := range strs {
		val, err := l.env(suffix)
		if err != nil {
			return err
		}
		if val != "" {
			*field = val
		}
	}

	bools := map[string]*bool{
		"NATS_ENABLED":      &cfg.NATS.Enabled,
		"WEBSOCKET_ENABLED": &cfg.WebSocket.Enabled,
		"JOURNAL_ENABLED":   &cfg.Journal.Enabled,
		"WEBHOOK_ENABLED":   &cfg.Webhook.Enabled,
		"METRICS_ENABLED":   &cfg.Metrics.Enabled,
		"PUBLISHER_ASYNC":   &cfg.Publisher.Async,
	}
	for suffix, field := range bools {
		val, err := l.env(suffix)
		if err != nil {
			return err
		}
		if val == "" {
			continue
		}
		b, err := strconv.ParseBool(val)
		if err != nil {
			return errors.WrapInvalid(err, "Loader", "applyEnvOverrides",
				fmt.Sprintf("parse %s_%s", l.envPrefix, suffix))
		}
		*field = b
	}
	return nil
}

func (l *Loader) env(suffix string) (string, error) {
	key := l.envPrefix + "_" + suffix
	val := l.getenv(key)
	if err := validateEnvVar(key, val); err != nil {
		return "", errors.WrapInvalid(err, "Loader", "env", "validate "+key)
	}
	return val, nil
}
