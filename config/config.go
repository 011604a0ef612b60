/*
Package config loads the payroll server configuration.

PURPOSE:
  One Config struct for the server and the CLI. Values are layered:

    1. Default()            built-in defaults
    2. YAML file            optional, strict (unknown keys are errors)
    3. .env file            loaded into the process environment
    4. PAYROLL_* variables  override file values
    5. command-line flags   applied by the caller (cmd/server)

FILE FORMAT:
  server:
    port: 8080
    cors_origins: ["*"]
  store:
    driver: sqlite          # sqlite | memory
    path: ./data/payroll.db
  tax_table:
    source: xlsx            # xlsx | store
    path: ./data/withholding.xlsx
    sheet: 月額表
    ttl: 1h
    refresh_interval: 30m
  calculation:
    flat_rate: "0.1021"
    discrepancy_tolerance: 1000
  log:
    level: info
    format: json
  payroll:                  # factory.DocumentJSON
    insurance_rates: ...

SEE ALSO:
  - config/logger.go: logrus setup
  - factory/payroll.go: payroll document schema
*/
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
	"github.com/warp/payroll-engine/engine"
	"github.com/warp/payroll-engine/factory"
	"github.com/warp/payroll-engine/withholding"
	"gopkg.in/yaml.v2"
)

// =============================================================================
// CONFIG TYPES
// =============================================================================

type Config struct {
	Server      ServerConfig         `yaml:"server"`
	Store       StoreConfig          `yaml:"store"`
	TaxTable    TaxTableConfig       `yaml:"tax_table"`
	Calculation CalculationConfig    `yaml:"calculation"`
	Log         LogConfig            `yaml:"log"`
	Payroll     factory.DocumentJSON `yaml:"payroll"`
}

type ServerConfig struct {
	Port        int      `yaml:"port"`
	CORSOrigins []string `yaml:"cors_origins"`
}

type StoreConfig struct {
	Driver string `yaml:"driver"`
	Path   string `yaml:"path"`
}

// TaxTableConfig selects where the raw withholding grid comes from.
type TaxTableConfig struct {
	Source          string   `yaml:"source"`
	Path            string   `yaml:"path"`
	Sheet           string   `yaml:"sheet"`
	TTL             Duration `yaml:"ttl"`
	RefreshInterval Duration `yaml:"refresh_interval"` // 0 disables pre-warming
}

type CalculationConfig struct {
	FlatRate             string `yaml:"flat_rate"`
	DiscrepancyTolerance int64  `yaml:"discrepancy_tolerance"`
}

type LogConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

const (
	DriverSQLite = "sqlite"
	DriverMemory = "memory"

	SourceXLSX  = "xlsx"
	SourceStore = "store"
)

// Duration is a time.Duration written as "90s", "1h" in YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(unmarshal func(interface{}) error) error {
	var s string
	if err := unmarshal(&s); err != nil {
		return err
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	*d = Duration(v)
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) { return time.Duration(d).String(), nil }

// Std returns the value as a time.Duration.
func (d Duration) Std() time.Duration { return time.Duration(d) }

// =============================================================================
// LOADING
// =============================================================================

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Server: ServerConfig{Port: 8080, CORSOrigins: []string{"*"}},
		Store:  StoreConfig{Driver: DriverSQLite, Path: "./data/payroll.db"},
		TaxTable: TaxTableConfig{
			Source: SourceStore,
			TTL:    Duration(withholding.DefaultTTL),
		},
		Calculation: CalculationConfig{
			FlatRate:             withholding.DefaultFlatRate.String(),
			DiscrepancyTolerance: 1000,
		},
		Log: LogConfig{Level: "info", Format: "json"},
	}
}

// Load builds a Config from defaults, the YAML file at path (skipped when
// empty), the given .env files (".env" when none, missing is fine) and
// PAYROLL_* environment variables.
func Load(path string, envFiles ...string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("failed to read config file: %w", err)
		}
		if err := yaml.UnmarshalStrict(data, &cfg); err != nil {
			return cfg, fmt.Errorf("failed to parse config file: %w", err)
		}
	}

	if len(envFiles) == 0 {
		if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return cfg, fmt.Errorf("failed to load .env: %w", err)
		}
	} else if err := godotenv.Load(envFiles...); err != nil {
		return cfg, fmt.Errorf("failed to load env files: %w", err)
	}

	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	setString("PAYROLL_STORE_DRIVER", &c.Store.Driver)
	setString("PAYROLL_DB_PATH", &c.Store.Path)
	setString("PAYROLL_TAX_TABLE_SOURCE", &c.TaxTable.Source)
	setString("PAYROLL_TAX_TABLE_PATH", &c.TaxTable.Path)
	setString("PAYROLL_TAX_TABLE_SHEET", &c.TaxTable.Sheet)
	setString("PAYROLL_FLAT_RATE", &c.Calculation.FlatRate)
	setString("PAYROLL_LOG_LEVEL", &c.Log.Level)
	setString("PAYROLL_LOG_FORMAT", &c.Log.Format)

	if v := os.Getenv("PAYROLL_PORT"); v != "" {
		port, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("PAYROLL_PORT: %w", err)
		}
		c.Server.Port = port
	}
	if v := os.Getenv("PAYROLL_TAX_TABLE_TTL"); v != "" {
		ttl, err := time.ParseDuration(v)
		if err != nil {
			return fmt.Errorf("PAYROLL_TAX_TABLE_TTL: %w", err)
		}
		c.TaxTable.TTL = Duration(ttl)
	}
	return nil
}

func setString(key string, dst *string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

// Validate checks the combinations the server cannot start with.
func (c Config) Validate() error {
	switch c.Store.Driver {
	case DriverSQLite:
		if c.Store.Path == "" {
			return fmt.Errorf("store.path is required for the sqlite driver")
		}
	case DriverMemory:
	default:
		return fmt.Errorf("unknown store driver: %q", c.Store.Driver)
	}

	switch c.TaxTable.Source {
	case SourceXLSX:
		if c.TaxTable.Path == "" {
			return fmt.Errorf("tax_table.path is required for the xlsx source")
		}
	case SourceStore:
	default:
		return fmt.Errorf("unknown tax table source: %q", c.TaxTable.Source)
	}

	if c.TaxTable.TTL <= 0 {
		return fmt.Errorf("tax_table.ttl must be positive")
	}
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if _, err := decimal.NewFromString(c.Calculation.FlatRate); err != nil {
		return fmt.Errorf("calculation.flat_rate: %w", err)
	}
	if _, ok := logLevels[c.Log.Level]; !ok {
		return fmt.Errorf("log.level must be one of trace debug info warn error fatal panic, got %q", c.Log.Level)
	}
	return nil
}

// =============================================================================
// ENGINE WIRING
// =============================================================================

// Engine converts the calculation settings and the payroll document into
// an engine.Config. The parsed document is returned for seeding stores
// with its standard brackets and commission rules.
func (c Config) Engine() (engine.Config, *factory.Document, error) {
	doc, err := factory.NewConfigFactory().FromJSON(c.Payroll)
	if err != nil {
		return engine.Config{}, nil, err
	}
	flat, err := decimal.NewFromString(c.Calculation.FlatRate)
	if err != nil {
		return engine.Config{}, nil, fmt.Errorf("calculation.flat_rate: %w", err)
	}

	ec := engine.DefaultConfig()
	ec.Rates = doc.Rates
	ec.FlatRate = flat
	ec.DiscrepancyTolerance = c.Calculation.DiscrepancyTolerance
	ec.DefaultRules = doc.Rules
	return ec, doc, nil
}
