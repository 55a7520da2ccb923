package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/c360/livegraph/errors"
)

// Limits applied to everything the loader reads.
const (
	maxConfigSize = 10 << 20
	maxJSONDepth  = 100
	maxEnvVarLen  = 10000
	maxPathLen    = 4096
)

func rejectPath(path, reason string) error {
	return errors.WrapInvalid(errors.ErrInvalidConfig, "config", "validateConfigPath",
		fmt.Sprintf("%s: %s", reason, path))
}

// validateConfigPath accepts JSON and YAML files. Relative paths must stay
// inside the working directory once resolved.
func validateConfigPath(path string) error {
	switch {
	case path == "":
		return rejectPath(path, "empty config path")
	case len(path) > maxPathLen:
		return rejectPath(path[:32]+"...", fmt.Sprintf("path longer than %d bytes", maxPathLen))
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".json", ".yaml", ".yml":
	default:
		return rejectPath(path, "only JSON or YAML config files allowed")
	}

	if filepath.IsAbs(path) {
		return nil
	}
	abs, err := filepath.Abs(path)
	if err != nil {
		return errors.WrapInvalid(err, "config", "validateConfigPath", "resolve "+path)
	}
	cwd, err := os.Getwd()
	if err != nil {
		return errors.WrapFatal(err, "config", "validateConfigPath", "get working directory")
	}
	if rel, err := filepath.Rel(cwd, abs); err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		return rejectPath(path, "path resolves outside working directory")
	}
	return nil
}

// safeReadFile reads a regular file of bounded size at a validated path.
func safeReadFile(path string) ([]byte, error) {
	if err := validateConfigPath(path); err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "config", "safeReadFile", "stat config file")
	}
	if !info.Mode().IsRegular() {
		return nil, rejectPath(path, "not a regular file")
	}
	if info.Size() > maxConfigSize {
		return nil, rejectPath(path, fmt.Sprintf("config file larger than %d bytes", maxConfigSize))
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.WrapInvalid(err, "config", "safeReadFile", "read config file")
	}
	return data, nil
}

// validateEnvVar bounds override values and rejects NUL bytes.
func validateEnvVar(key, value string) error {
	if len(value) > maxEnvVarLen {
		return fmt.Errorf("environment variable %s too long: %d > %d", key, len(value), maxEnvVarLen)
	}
	if strings.IndexByte(value, 0) >= 0 {
		return fmt.Errorf("null byte in environment variable %s", key)
	}
	return nil
}

// validateJSONDepth scans data for bracket nesting beyond maxJSONDepth and
// for unbalanced brackets, ignoring brackets inside strings.
func validateJSONDepth(data []byte) error {
	depth := 0
	inString, escaped := false, false

	for _, b := range data {
		if inString {
			switch {
			case escaped:
				escaped = false
			case b == '\\':
				escaped = true
			case b == '"':
				inString = false
			}
			continue
		}

		switch b {
		case '"':
			inString = true
		case '{', '[':
			depth++
			if depth > maxJSONDepth {
				return fmt.Errorf("JSON nesting too deep: %d > %d", depth, maxJSONDepth)
			}
		case '}', ']':
			depth--
			if depth < 0 {
				return fmt.Errorf("malformed JSON: unbalanced brackets")
			}
		}
	}

	if depth != 0 {
		return fmt.Errorf("malformed JSON: unclosed brackets (depth=%d)", depth)
	}
	return nil
}
