package config

import (
	"fmt"
	"os"
	"strconv"
	"time"
)

// Manager provides configuration management functionality
type Manager interface {
	GetString(key string) (string, error)
	GetStringWithDefault(key, defaultValue string) string
	RequireString(key string) string
	GetInt(key string) (int, error)
	GetIntWithDefault(key string, defaultValue int) int
	GetBoolWithDefault(key string, defaultValue bool) bool
	GetDurationWithDefault(key string, defaultValue time.Duration) time.Duration
}

// DefaultManager reads the environment first and falls back to values loaded
// from a config file.
type DefaultManager struct {
	fileValues map[string]string
}

// NewConfigManager creates a manager backed by the environment only.
func NewConfigManager() Manager {
	return &DefaultManager{}
}

// NewLayeredManager creates a manager that consults fileValues (as returned
// by LoadFile) for keys missing from the environment.
func NewLayeredManager(fileValues map[string]string) Manager {
	return &DefaultManager{fileValues: fileValues}
}

func (m *DefaultManager) lookup(key string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return m.fileValues[key]
}

// GetString gets a configuration value by key, returns error if not found
func (m *DefaultManager) GetString(key string) (string, error) {
	value := m.lookup(key)
	if value == "" {
		return "", fmt.Errorf("configuration key %s not found", key)
	}
	return value, nil
}

// GetStringWithDefault gets a configuration value by key, returns default if not found
func (m *DefaultManager) GetStringWithDefault(key, defaultValue string) string {
	value := m.lookup(key)
	if value == "" {
		return defaultValue
	}
	return value
}

// RequireString gets a configuration value by key, panics if not found
func (m *DefaultManager) RequireString(key string) string {
	value := m.lookup(key)
	if value == "" {
		panic(fmt.Sprintf("required configuration key %s not found", key))
	}
	return value
}

// GetInt gets an integer configuration value by key, returns error if not found or invalid
func (m *DefaultManager) GetInt(key string) (int, error) {
	value := m.lookup(key)
	if value == "" {
		return 0, fmt.Errorf("configuration key %s not found", key)
	}
	intValue, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("configuration key %s has invalid integer value: %s", key, value)
	}
	return intValue, nil
}

// GetIntWithDefault gets an integer configuration value by key, returns default if not found or invalid
func (m *DefaultManager) GetIntWithDefault(key string, defaultValue int) int {
	intValue, err := m.GetInt(key)
	if err != nil {
		return defaultValue
	}
	return intValue
}

// GetBoolWithDefault gets a boolean configuration value by key, returns default if not found or invalid
func (m *DefaultManager) GetBoolWithDefault(key string, defaultValue bool) bool {
	value := m.lookup(key)
	if value == "" {
		return defaultValue
	}
	boolValue, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue
	}
	return boolValue
}

// GetDurationWithDefault parses a Go duration ("45s", "2m"). A bare integer
// is read as seconds.
func (m *DefaultManager) GetDurationWithDefault(key string, defaultValue time.Duration) time.Duration {
	value := m.lookup(key)
	if value == "" {
		return defaultValue
	}
	if secs, err := strconv.Atoi(value); err == nil {
		return time.Duration(secs) * time.Second
	}
	d, err := time.ParseDuration(value)
	if err != nil || d < 0 {
		return defaultValue
	}
	return d
}
