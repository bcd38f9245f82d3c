package config

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/rotisserie/eris"
	"github.com/spf13/viper"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"github.com/sells-group/cda-warehouse/internal/report"
)

// Config holds the full application configuration.
type Config struct {
	Store  StoreConfig  `yaml:"store" mapstructure:"store"`
	Source SourceConfig `yaml:"source" mapstructure:"source"`
	ETL    ETLConfig    `yaml:"etl" mapstructure:"etl"`
	Report ReportConfig `yaml:"report" mapstructure:"report"`
	Server ServerConfig `yaml:"server" mapstructure:"server"`
	Log    LogConfig    `yaml:"log" mapstructure:"log"`
}

// StoreConfig selects and configures the warehouse database.
type StoreConfig struct {
	Driver      string `yaml:"driver" mapstructure:"driver"` // postgres or sqlite
	DatabaseURL string `yaml:"database_url" mapstructure:"database_url"`
	SQLitePath  string `yaml:"sqlite_path" mapstructure:"sqlite_path"`
	MaxConns    int32  `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns    int32  `yaml:"min_conns" mapstructure:"min_conns"`
}

// SourceConfig locates and decodes the seven source files.
type SourceConfig struct {
	// Base is a directory, http(s):// or ftp:// location holding 001.csv .. 007.csv.
	Base        string     `yaml:"base" mapstructure:"base"`
	Charset     string     `yaml:"charset" mapstructure:"charset"`
	Delimiter   string     `yaml:"delimiter" mapstructure:"delimiter"`
	MappingFile string     `yaml:"mapping_file" mapstructure:"mapping_file"`
	Sheet       string     `yaml:"sheet" mapstructure:"sheet"` // worksheet for .xlsx files
	HTTP        HTTPConfig `yaml:"http" mapstructure:"http"`
	FTP         FTPConfig  `yaml:"ftp" mapstructure:"ftp"`
}

// HTTPConfig configures remote http(s) sources.
type HTTPConfig struct {
	UserAgent     string  `yaml:"user_agent" mapstructure:"user_agent"`
	TimeoutSecs   int     `yaml:"timeout_secs" mapstructure:"timeout_secs"`
	MaxRetries    int     `yaml:"max_retries" mapstructure:"max_retries"`
	RatePerSecond float64 `yaml:"rate_per_second" mapstructure:"rate_per_second"`
}

// FTPConfig configures remote ftp sources.
type FTPConfig struct {
	TimeoutSecs int `yaml:"timeout_secs" mapstructure:"timeout_secs"`
}

// ETLConfig holds pipeline behaviour switches.
type ETLConfig struct {
	// Replace clears staging and warehouse tables before loading.
	Replace bool `yaml:"replace" mapstructure:"replace"`
}

// ReportConfig configures the cumulative percentile report.
type ReportConfig struct {
	Buckets []report.Bucket `yaml:"buckets" mapstructure:"buckets"`
}

// ServerConfig configures the read API.
type ServerConfig struct {
	Port int `yaml:"port" mapstructure:"port"`
}

// LogConfig configures logging.
type LogConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`
	Format string `yaml:"format" mapstructure:"format"`
}

// Load reads configuration from file and environment.
func Load() (*Config, error) {
	v := viper.New()

	// Config file
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")

	// Environment
	v.SetEnvPrefix("CDA")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Defaults. Every key needs one so AutomaticEnv can override it.
	v.SetDefault("store.driver", "postgres")
	v.SetDefault("store.database_url", "")
	v.SetDefault("store.sqlite_path", "cda.db")
	v.SetDefault("store.max_conns", 4)
	v.SetDefault("store.min_conns", 1)
	v.SetDefault("source.base", "data")
	v.SetDefault("source.charset", "utf-8")
	v.SetDefault("source.delimiter", ",")
	v.SetDefault("source.mapping_file", "")
	v.SetDefault("source.sheet", "")
	v.SetDefault("source.http.user_agent", "cda-etl")
	v.SetDefault("source.http.timeout_secs", 60)
	v.SetDefault("source.http.max_retries", 3)
	v.SetDefault("source.http.rate_per_second", 5.0)
	v.SetDefault("source.ftp.timeout_secs", 30)
	v.SetDefault("etl.replace", false)
	v.SetDefault("server.port", 8080)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")

	// Read config file (optional)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, eris.Wrap(err, "config: read file")
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, eris.Wrap(err, "config: unmarshal")
	}

	return &cfg, nil
}

// DelimiterRune returns the field separator rune, ',' when unset.
func (c SourceConfig) DelimiterRune() rune {
	if c.Delimiter == "" {
		return ','
	}
	if c.Delimiter == `\t` {
		return '\t'
	}
	r, _ := utf8.DecodeRuneInString(c.Delimiter)
	return r
}

// EffectiveBuckets returns the configured report buckets, or the defaults when none are set.
func (c ReportConfig) EffectiveBuckets() []report.Bucket {
	if len(c.Buckets) == 0 {
		return report.DefaultBuckets
	}
	return c.Buckets
}

// Validate checks the settings a command mode depends on. Modes: "etl",
// "schema", "report", "serve".
func (c *Config) Validate(mode string) error {
	var problems []string

	switch mode {
	case "etl", "schema", "report", "serve":
	default:
		return eris.Errorf("config: unknown mode %q", mode)
	}

	switch c.Store.Driver {
	case "postgres":
		if c.Store.DatabaseURL == "" {
			problems = append(problems, "store.database_url is required for the postgres driver")
		}
		if c.Store.MaxConns < 0 || c.Store.MinConns < 0 || (c.Store.MaxConns > 0 && c.Store.MinConns > c.Store.MaxConns) {
			problems = append(problems, "store.min_conns/max_conns out of range")
		}
	case "sqlite":
		if c.Store.SQLitePath == "" {
			problems = append(problems, "store.sqlite_path is required for the sqlite driver")
		}
		if mode == "serve" {
			problems = append(problems, "serve requires store.driver=postgres")
		}
	default:
		problems = append(problems, "store.driver must be postgres or sqlite")
	}

	if mode == "etl" {
		if c.Source.Base == "" {
			problems = append(problems, "source.base is required")
		}
		if utf8.RuneCountInString(c.Source.Delimiter) > 1 && c.Source.Delimiter != `\t` {
			problems = append(problems, "source.delimiter must be a single character")
		}
	}

	if mode == "report" || mode == "serve" {
		for i, b := range c.Report.Buckets {
			if strings.TrimSpace(b.Name) == "" || strings.TrimSpace(b.Prefix) == "" {
				problems = append(problems, fmt.Sprintf("report.buckets[%d] needs name and prefix", i))
			}
		}
	}

	if mode == "serve" && (c.Server.Port <= 0 || c.Server.Port > 65535) {
		problems = append(problems, "server.port must be between 1 and 65535")
	}

	if len(problems) > 0 {
		return eris.Errorf("config: invalid for %s: %s", mode, strings.Join(problems, "; "))
	}
	return nil
}

// InitLogger initializes the global zap logger.
func InitLogger(cfg LogConfig) error {
	var zapCfg zap.Config
	if cfg.Format == "console" {
		zapCfg = zap.NewDevelopmentConfig()
	} else {
		zapCfg = zap.NewProductionConfig()
	}

	level, err := zapcore.ParseLevel(cfg.Level)
	if err != nil {
		return eris.Wrap(err, "config: parse log level")
	}
	zapCfg.Level.SetLevel(level)

	logger, err := zapCfg.Build()
	if err != nil {
		return eris.Wrap(err, "config: build logger")
	}
	zap.ReplaceGlobals(logger)

	return nil
}
