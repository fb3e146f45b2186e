// Package config loads the schoolsys configuration document and overlays
// flags and environment variables on top of it.
package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/loykin/schoolsys/internal/common"
	"github.com/loykin/schoolsys/internal/constants"
	"github.com/loykin/schoolsys/internal/database"
	"github.com/loykin/schoolsys/internal/ledger"
	"github.com/loykin/schoolsys/internal/util"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"
)

// DefaultPath is used when --config is not given.
const DefaultPath = "./config/config.yaml"

// Error marks an invalid or unreadable configuration.
type Error struct {
	Err error
}

func (e *Error) Error() string { return "configuration: " + e.Err.Error() }

func (e *Error) Unwrap() error { return e.Err }

type LoggingConfig struct {
	Level         string `mapstructure:"level" yaml:"level"`                   // error, warn, info, debug
	Format        string `mapstructure:"format" yaml:"format"`                 // text, json, color
	MaskSensitive *bool  `mapstructure:"mask_sensitive" yaml:"mask_sensitive"` // enable/disable sensitive data masking
	Color         *bool  `mapstructure:"color" yaml:"color"`                   // enable/disable colorized output
}

type DatabaseConfig struct {
	database.Config `mapstructure:",squash" yaml:",inline"`

	// Optional table name customization
	TablePrefix        string `mapstructure:"table_prefix" yaml:"table_prefix"`
	TableMigrations    string `mapstructure:"table_migrations" yaml:"table_migrations"`
	TableMigrationRuns string `mapstructure:"table_migration_runs" yaml:"table_migration_runs"`
	// Lock serializes concurrent runs; defaults to true.
	Lock *bool `mapstructure:"lock" yaml:"lock"`
}

// Tables returns the validated ledger table names.
func (c DatabaseConfig) Tables() (ledger.TableNames, error) {
	return ledger.NewTableNames(c.TablePrefix, c.TableMigrations, c.TableMigrationRuns)
}

// LockEnabled reports whether runs take the migration lock.
func (c DatabaseConfig) LockEnabled() bool {
	return c.Lock == nil || *c.Lock
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout"`
	// Metrics exposes /metrics; nil means enabled.
	Metrics *bool `mapstructure:"metrics" yaml:"metrics"`
}

func (c ServerConfig) MetricsEnabled() bool {
	return c.Metrics == nil || *c.Metrics
}

type ConfigDoc struct {
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Server   ServerConfig   `mapstructure:"server" yaml:"server"`
	Logging  LoggingConfig  `mapstructure:"logging" yaml:"logging"`
}

// Load decodes the YAML file at path into c.
func (c *ConfigDoc) Load(path string) error {
	clean := filepath.Clean(path)
	if info, statErr := os.Stat(clean); statErr != nil || !info.Mode().IsRegular() {
		if statErr != nil {
			return statErr
		}
		return fmt.Errorf("not a regular file: %s", clean)
	}
	// #nosec G304 -- config path is provided intentionally by the user/CI; cleaned and validated above
	f, err := os.Open(clean)
	if err != nil {
		return err
	}
	defer func() { _ = f.Close() }()
	dec := yaml.NewDecoder(f)
	if err := dec.Decode(c); err != nil && !errors.Is(err, io.EOF) {
		return err
	}
	return nil
}

// envBindings maps configuration keys to the environment variables that
// can set them. SCHOOLSYS_* comes first; DB_* are the legacy names.
var envBindings = map[string][]string{
	"database.driver":               {"SCHOOLSYS_DATABASE_DRIVER"},
	"database.sqlite.path":          {"SCHOOLSYS_DATABASE_SQLITE_PATH"},
	"database.postgres.dsn":         {"SCHOOLSYS_DATABASE_POSTGRES_DSN", "DATABASE_URL"},
	"database.postgres.host":        {"SCHOOLSYS_DATABASE_POSTGRES_HOST", "DB_HOST"},
	"database.postgres.port":        {"SCHOOLSYS_DATABASE_POSTGRES_PORT", "DB_PORT"},
	"database.postgres.user":        {"SCHOOLSYS_DATABASE_POSTGRES_USER", "DB_USER"},
	"database.postgres.password":    {"SCHOOLSYS_DATABASE_POSTGRES_PASSWORD", "DB_PASSWORD"},
	"database.postgres.dbname":      {"SCHOOLSYS_DATABASE_POSTGRES_DBNAME", "DB_NAME"},
	"database.postgres.sslmode":     {"SCHOOLSYS_DATABASE_POSTGRES_SSLMODE", "DB_SSLMODE"},
	"database.table_prefix":         {"SCHOOLSYS_DATABASE_TABLE_PREFIX"},
	"database.table_migrations":     {"SCHOOLSYS_DATABASE_TABLE_MIGRATIONS"},
	"database.table_migration_runs": {"SCHOOLSYS_DATABASE_TABLE_MIGRATION_RUNS"},
	"database.lock":                 {"SCHOOLSYS_DATABASE_LOCK"},
	"database.wait.timeout":         {"SCHOOLSYS_DATABASE_WAIT_TIMEOUT"},
	"database.wait.max_retries":     {"SCHOOLSYS_DATABASE_WAIT_MAX_RETRIES"},
	"server.addr":                   {"SCHOOLSYS_SERVER_ADDR"},
	"server.shutdown_timeout":       {"SCHOOLSYS_SERVER_SHUTDOWN_TIMEOUT"},
	"server.metrics":                {"SCHOOLSYS_SERVER_METRICS"},
	"logging.level":                 {"SCHOOLSYS_LOGGING_LEVEL"},
	"logging.format":                {"SCHOOLSYS_LOGGING_FORMAT"},
	"logging.mask_sensitive":        {"SCHOOLSYS_LOGGING_MASK_SENSITIVE"},
	"logging.color":                 {"SCHOOLSYS_LOGGING_COLOR"},
	portKey:                         {"SCHOOLSYS_PORT", "PORT"},
}

// portKey is the legacy PORT variable; it sets server.addr to ":<port>".
const portKey = "server.port"

// BindEnv registers the environment variables on v.
func BindEnv(v *viper.Viper) {
	for key, names := range envBindings {
		_ = v.BindEnv(append([]string{key}, names...)...)
	}
}

// Default returns the configuration used when nothing is set.
func Default() *ConfigDoc {
	return &ConfigDoc{
		Database: DatabaseConfig{
			Config: database.Config{Driver: constants.DriverPostgresql},
		},
		Server: ServerConfig{
			Addr:            constants.DefaultServerAddr,
			ShutdownTimeout: constants.DefaultShutdownTimeout,
		},
	}
}

// Resolve builds the effective configuration: defaults, then the YAML file
// (a missing file is fine unless explicit), then whatever v holds from
// flags and the environment.
func Resolve(v *viper.Viper, path string, explicit bool) (*ConfigDoc, error) {
	doc := Default()
	if p, ok := util.TrimEmptyCheck(path); ok {
		if err := doc.Load(p); err != nil {
			if explicit || !errors.Is(err, os.ErrNotExist) {
				return nil, &Error{Err: fmt.Errorf("load %s: %w", p, err)}
			}
		}
	}
	if err := doc.overlay(v); err != nil {
		return nil, &Error{Err: err}
	}
	if err := doc.Validate(); err != nil {
		return nil, &Error{Err: err}
	}
	return doc, nil
}

func (c *ConfigDoc) overlay(v *viper.Viper) error {
	settings := map[string]any{}
	for key := range envBindings {
		if key == portKey || !v.IsSet(key) {
			continue
		}
		setNested(settings, key, v.Get(key))
	}
	if len(settings) > 0 {
		dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
			Result:           c,
			WeaklyTypedInput: true,
			DecodeHook: mapstructure.ComposeDecodeHookFunc(
				mapstructure.StringToTimeDurationHookFunc(),
				mapstructure.TextUnmarshallerHookFunc(),
			),
		})
		if err != nil {
			return err
		}
		if err := dec.Decode(settings); err != nil {
			return fmt.Errorf("decode overrides: %w", err)
		}
	}
	if v.IsSet(portKey) && !v.IsSet("server.addr") {
		port := strings.TrimSpace(v.GetString(portKey))
		if _, err := strconv.Atoi(port); err != nil {
			return fmt.Errorf("invalid PORT %q", port)
		}
		c.Server.Addr = ":" + port
	}
	return nil
}

func setNested(m map[string]any, key string, val any) {
	parts := strings.Split(key, ".")
	for _, p := range parts[:len(parts)-1] {
		next, ok := m[p].(map[string]any)
		if !ok {
			next = map[string]any{}
			m[p] = next
		}
		m = next
	}
	m[parts[len(parts)-1]] = val
}

// Validate checks the fields that can be checked without a database.
func (c *ConfigDoc) Validate() error {
	if _, err := c.Database.NormalizedDriver(); err != nil {
		return err
	}
	if _, err := c.Database.Tables(); err != nil {
		return err
	}
	if _, err := c.parseLogLevel(); err != nil {
		return err
	}
	switch util.TrimAndLower(c.Logging.Format) {
	case "", "text", "json", "color", "colour":
	default:
		return fmt.Errorf("invalid logging format: %s (valid: text, json, color)", c.Logging.Format)
	}
	return nil
}

func (c *ConfigDoc) parseLogLevel() (common.LogLevel, error) {
	level := util.TrimAndLower(c.Logging.Level)
	switch level {
	case "error":
		return common.LogLevelError, nil
	case "warn", "warning":
		return common.LogLevelWarn, nil
	case "info", "":
		return common.LogLevelInfo, nil
	case "debug":
		return common.LogLevelDebug, nil
	default:
		return common.LogLevelInfo, fmt.Errorf("invalid logging level: %s (valid: error, warn, info, debug)", c.Logging.Level)
	}
}

// SetupLogging configures the global logger based on config settings.
// Logs go to w so command output on stdout stays parseable.
func (c *ConfigDoc) SetupLogging(w io.Writer) (*common.Logger, error) {
	level, err := c.parseLogLevel()
	if err != nil {
		return nil, err
	}

	format := util.TrimAndLower(c.Logging.Format)
	useColor := false
	if c.Logging.Color != nil {
		useColor = *c.Logging.Color
	} else if format == "color" || format == "colour" {
		useColor = true
	}

	var logger *common.Logger
	switch format {
	case "json":
		logger = common.NewLoggerWithWriter(w, level, "json")
	case "color", "colour":
		logger = common.NewLoggerWithWriter(w, level, "color")
	case "text", "":
		if useColor {
			logger = common.NewLoggerWithWriter(w, level, "color")
		} else {
			logger = common.NewLoggerWithWriter(w, level, "text")
		}
	default:
		return nil, fmt.Errorf("invalid logging format: %s (valid: text, json, color)", c.Logging.Format)
	}

	maskingEnabled := true
	if c.Logging.MaskSensitive != nil {
		maskingEnabled = *c.Logging.MaskSensitive
	}
	logger.EnableMasking(maskingEnabled)
	common.SetDefaultLogger(logger)
	common.EnableMasking(maskingEnabled)

	logger.Debug("logging configured",
		"level", util.TrimWithDefault(util.TrimAndLower(c.Logging.Level), "info"),
		"format", format,
		"color", useColor,
		"mask_sensitive", maskingEnabled)
	return logger, nil
}
