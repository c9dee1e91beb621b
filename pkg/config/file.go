package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"
)

// DefaultConfigPath is where the CLI looks for its YAML settings.
const DefaultConfigPath = "~/.tradechat/config.yaml"

// KeyPrefix is prepended to flattened file keys so they share names with the
// environment variables they stand in for.
const KeyPrefix = "TRADECHAT_"

// LoadDotEnv loads the given .env files (".env" when none are given) without
// overriding variables that are already set. Missing files are skipped.
func LoadDotEnv(paths ...string) error {
	if len(paths) == 0 {
		paths = []string{".env"}
	}

	var existing []string
	for _, p := range paths {
		expanded, err := homedir.Expand(p)
		if err != nil {
			return fmt.Errorf("expanding %s: %w", p, err)
		}
		if _, err := os.Stat(expanded); err == nil {
			existing = append(existing, expanded)
		}
	}
	if len(existing) == 0 {
		return nil
	}
	if err := godotenv.Load(existing...); err != nil {
		return fmt.Errorf("loading env files: %w", err)
	}
	return nil
}

// LoadFile reads a YAML settings file and flattens it into environment-style
// keys: `idle_timeout: 30s` becomes TRADECHAT_IDLE_TIMEOUT and nested maps
// join with underscores (`debug: {level: info}` is TRADECHAT_DEBUG_LEVEL).
// A missing file yields an empty map.
func LoadFile(path string) (map[string]string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expanding %s: %w", path, err)
	}

	data, err := os.ReadFile(expanded)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]string{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var doc map[string]interface{}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", expanded, err)
	}

	values := make(map[string]string)
	if err := flatten(values, KeyPrefix, doc); err != nil {
		return nil, fmt.Errorf("config file %s: %w", expanded, err)
	}
	return values, nil
}

func flatten(out map[string]string, prefix string, doc map[string]interface{}) error {
	for key, raw := range doc {
		name := prefix + strings.ToUpper(strings.ReplaceAll(key, "-", "_"))
		switch v := raw.(type) {
		case nil:
		case map[string]interface{}:
			if err := flatten(out, name+"_", v); err != nil {
				return err
			}
		case []interface{}:
			return fmt.Errorf("key %s: lists are not supported", key)
		default:
			out[name] = fmt.Sprint(v)
		}
	}
	return nil
}
