// Package config provides configuration management for plan translation.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"
)

// Config controls translation limits and optimizer behavior.
type Config struct {
	// Translation limits
	MaxSourceRows    int `json:"max_source_rows" yaml:"max_source_rows"`       // Maximum rows accepted from a single source (0 = unlimited)
	MaxGroupRows     int `json:"max_group_rows" yaml:"max_group_rows"`         // Row capacity reserved for grouped output sheets
	MaxPivotColumns  int `json:"max_pivot_columns" yaml:"max_pivot_columns"`   // Column capacity reserved for pivoted output sheets
	MaxFormulaLength int `json:"max_formula_length" yaml:"max_formula_length"` // Maximum length of a generated formula (0 = unlimited)

	// Output conventions
	SheetPrefix       string `json:"sheet_prefix" yaml:"sheet_prefix"`               // Prefix for generated sheet names
	LookupMissDefault string `json:"lookup_miss_default" yaml:"lookup_miss_default"` // Value emitted when a join lookup finds no match
	ResultRangeName   string `json:"result_range_name" yaml:"result_range_name"`     // Named range registered over the final output

	// Optimizer passes
	PredicatePushdown  bool `json:"predicate_pushdown" yaml:"predicate_pushdown"`   // Enable predicate pushdown
	ProjectionPushdown bool `json:"projection_pushdown" yaml:"projection_pushdown"` // Enable projection pushdown
	Fusion             bool `json:"fusion" yaml:"fusion"`                           // Enable operator fusion
	Simplification     bool `json:"simplification" yaml:"simplification"`           // Enable plan simplification
}

// Global configuration instance
var (
	globalConfig Config
	configMutex  sync.RWMutex
)

// Default configuration values
const (
	DefaultMaxGroupRows    = 100
	DefaultMaxPivotColumns = 50
	DefaultSheetPrefix     = "sheet"
	DefaultResultRangeName = "Result"
)

func init() {
	globalConfig = NewConfig()
}

// NewConfig creates a new configuration with default values
func NewConfig() Config {
	return Config{
		MaxSourceRows:    0, // Unlimited
		MaxGroupRows:     DefaultMaxGroupRows,
		MaxPivotColumns:  DefaultMaxPivotColumns,
		MaxFormulaLength: 0, // Unlimited

		SheetPrefix:       DefaultSheetPrefix,
		LookupMissDefault: "",
		ResultRangeName:   DefaultResultRangeName,

		PredicatePushdown:  true,
		ProjectionPushdown: true,
		Fusion:             true,
		Simplification:     true,
	}
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	if c.MaxSourceRows < 0 {
		return fmt.Errorf("MaxSourceRows must be non-negative, got %d", c.MaxSourceRows)
	}

	if c.MaxGroupRows <= 0 {
		return fmt.Errorf("MaxGroupRows must be positive, got %d", c.MaxGroupRows)
	}

	if c.MaxPivotColumns <= 0 {
		return fmt.Errorf("MaxPivotColumns must be positive, got %d", c.MaxPivotColumns)
	}

	if c.MaxFormulaLength < 0 {
		return fmt.Errorf("MaxFormulaLength must be non-negative, got %d", c.MaxFormulaLength)
	}

	if c.SheetPrefix == "" {
		return fmt.Errorf("SheetPrefix must not be empty")
	}

	if c.ResultRangeName == "" {
		return fmt.Errorf("ResultRangeName must not be empty")
	}

	return nil
}

// WithDefaults returns a new configuration with default values filled in for zero values
func (c Config) WithDefaults() Config {
	defaults := NewConfig()

	if c.MaxGroupRows == 0 {
		c.MaxGroupRows = defaults.MaxGroupRows
	}
	if c.MaxPivotColumns == 0 {
		c.MaxPivotColumns = defaults.MaxPivotColumns
	}
	if c.SheetPrefix == "" {
		c.SheetPrefix = defaults.SheetPrefix
	}
	if c.ResultRangeName == "" {
		c.ResultRangeName = defaults.ResultRangeName
	}

	// Boolean fields are intentionally not defaulted here so that an
	// explicitly disabled pass stays disabled. Use NewConfig() when the
	// optimizer defaults are wanted.

	return c
}

// SetGlobalConfig sets the global configuration
func SetGlobalConfig(config Config) {
	configMutex.Lock()
	defer configMutex.Unlock()
	globalConfig = config
}

// GetGlobalConfig returns the current global configuration
func GetGlobalConfig() Config {
	configMutex.RLock()
	defer configMutex.RUnlock()
	return globalConfig
}

// LoadFromJSON loads configuration from JSON data
func LoadFromJSON(data []byte) (Config, error) {
	var config Config
	if err := json.Unmarshal(data, &config); err != nil {
		return Config{}, fmt.Errorf("parsing JSON configuration: %w", err)
	}
	return config.WithDefaults(), nil
}

// LoadFromFile loads configuration from a JSON or YAML file
func LoadFromFile(filename string) (Config, error) {
	data, err := os.ReadFile(filename)
	if err != nil {
		return Config{}, fmt.Errorf("reading config file %s: %w", filename, err)
	}

	var config Config
	ext := strings.ToLower(filepath.Ext(filename))

	switch ext {
	case ".json":
		err = json.Unmarshal(data, &config)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &config)
	default:
		return Config{}, fmt.Errorf("unsupported config file format: %s", ext)
	}

	if err != nil {
		return Config{}, fmt.Errorf("parsing config file %s: %w", filename, err)
	}

	return config.WithDefaults(), nil
}

// LoadFromEnv loads configuration from environment variables
func LoadFromEnv() Config {
	config := NewConfig()

	if val := os.Getenv("CELLFORM_MAX_SOURCE_ROWS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.MaxSourceRows = parsed
		}
	}

	if val := os.Getenv("CELLFORM_MAX_GROUP_ROWS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.MaxGroupRows = parsed
		}
	}

	if val := os.Getenv("CELLFORM_MAX_PIVOT_COLUMNS"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.MaxPivotColumns = parsed
		}
	}

	if val := os.Getenv("CELLFORM_MAX_FORMULA_LENGTH"); val != "" {
		if parsed, err := strconv.Atoi(val); err == nil {
			config.MaxFormulaLength = parsed
		}
	}

	if val := os.Getenv("CELLFORM_SHEET_PREFIX"); val != "" {
		config.SheetPrefix = val
	}

	if val := os.Getenv("CELLFORM_LOOKUP_MISS_DEFAULT"); val != "" {
		config.LookupMissDefault = val
	}

	if val := os.Getenv("CELLFORM_RESULT_RANGE_NAME"); val != "" {
		config.ResultRangeName = val
	}

	if val := os.Getenv("CELLFORM_PREDICATE_PUSHDOWN"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			config.PredicatePushdown = parsed
		}
	}

	if val := os.Getenv("CELLFORM_PROJECTION_PUSHDOWN"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			config.ProjectionPushdown = parsed
		}
	}

	if val := os.Getenv("CELLFORM_FUSION"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			config.Fusion = parsed
		}
	}

	if val := os.Getenv("CELLFORM_SIMPLIFICATION"); val != "" {
		if parsed, err := strconv.ParseBool(val); err == nil {
			config.Simplification = parsed
		}
	}

	return config
}
