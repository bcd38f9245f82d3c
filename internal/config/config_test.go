package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/sells-group/cda-warehouse/internal/report"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origDir, _ := os.Getwd()
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { os.Chdir(origDir) })
	return dir
}

func TestLoadDefaults(t *testing.T) {
	// Change to temp dir so no config.yaml is found
	chdirTemp(t)

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "cda.db", cfg.Store.SQLitePath)
	assert.Equal(t, int32(4), cfg.Store.MaxConns)
	assert.Equal(t, "data", cfg.Source.Base)
	assert.Equal(t, "utf-8", cfg.Source.Charset)
	assert.Equal(t, ',', cfg.Source.DelimiterRune())
	assert.Equal(t, 3, cfg.Source.HTTP.MaxRetries)
	assert.InDelta(t, 5.0, cfg.Source.HTTP.RatePerSecond, 0.001)
	assert.Equal(t, 30, cfg.Source.FTP.TimeoutSecs)
	assert.False(t, cfg.ETL.Replace)
	assert.Equal(t, 8080, cfg.Server.Port)
	assert.Equal(t, "info", cfg.Log.Level)
	assert.Equal(t, "json", cfg.Log.Format)
	assert.Equal(t, report.DefaultBuckets, cfg.Report.EffectiveBuckets())
}

func TestLoadFromYAML(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
  sqlite_path: /tmp/warehouse.db
source:
  base: ftp://ftp.prefeitura.example/cda
  charset: iso-8859-1
  delimiter: ";"
  mapping_file: mapping.yaml
etl:
  replace: true
report:
  buckets:
    - name: IPTU
      prefix: IPTU
    - name: Taxas
      prefix: Taxa
log:
  level: debug
  format: console
server:
  port: 9090
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "/tmp/warehouse.db", cfg.Store.SQLitePath)
	assert.Equal(t, "ftp://ftp.prefeitura.example/cda", cfg.Source.Base)
	assert.Equal(t, "iso-8859-1", cfg.Source.Charset)
	assert.Equal(t, ';', cfg.Source.DelimiterRune())
	assert.Equal(t, "mapping.yaml", cfg.Source.MappingFile)
	assert.True(t, cfg.ETL.Replace)
	assert.Equal(t, []report.Bucket{{Name: "IPTU", Prefix: "IPTU"}, {Name: "Taxas", Prefix: "Taxa"}}, cfg.Report.EffectiveBuckets())
	assert.Equal(t, "debug", cfg.Log.Level)
	assert.Equal(t, "console", cfg.Log.Format)
	assert.Equal(t, 9090, cfg.Server.Port)
	// Defaults still apply for unset values
	assert.Equal(t, 60, cfg.Source.HTTP.TimeoutSecs)
}

func TestLoadEnvOverridesFile(t *testing.T) {
	dir := chdirTemp(t)

	yaml := `
store:
  driver: sqlite
log:
  level: debug
`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte(yaml), 0644))

	t.Setenv("CDA_STORE_DRIVER", "postgres")
	t.Setenv("CDA_STORE_DATABASE_URL", "postgres://localhost/cda")
	t.Setenv("CDA_LOG_LEVEL", "warn")

	cfg, err := Load()
	require.NoError(t, err)

	// Env overrides file
	assert.Equal(t, "postgres", cfg.Store.Driver)
	assert.Equal(t, "postgres://localhost/cda", cfg.Store.DatabaseURL)
	assert.Equal(t, "warn", cfg.Log.Level)
}

func TestLoadEnvOverridesDefaults(t *testing.T) {
	chdirTemp(t)

	t.Setenv("CDA_SERVER_PORT", "3000")
	t.Setenv("CDA_ETL_REPLACE", "true")
	t.Setenv("CDA_SOURCE_HTTP_MAX_RETRIES", "7")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3000, cfg.Server.Port)
	assert.True(t, cfg.ETL.Replace)
	assert.Equal(t, 7, cfg.Source.HTTP.MaxRetries)
}

func TestLoadMalformedFile(t *testing.T) {
	dir := chdirTemp(t)
	require.NoError(t, os.WriteFile(filepath.Join(dir, "config.yaml"), []byte("store: [unclosed"), 0644))

	_, err := Load()
	assert.Error(t, err)
}

func TestDelimiterRune(t *testing.T) {
	assert.Equal(t, ',', SourceConfig{}.DelimiterRune())
	assert.Equal(t, '\t', SourceConfig{Delimiter: `\t`}.DelimiterRune())
	assert.Equal(t, '|', SourceConfig{Delimiter: "|"}.DelimiterRune())
}

func TestInitLoggerConsole(t *testing.T) {
	err := InitLogger(LogConfig{Level: "debug", Format: "console"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerJSON(t *testing.T) {
	err := InitLogger(LogConfig{Level: "info", Format: "json"})
	require.NoError(t, err)
	assert.NotNil(t, zap.L())
}

func TestInitLoggerInvalidLevel(t *testing.T) {
	err := InitLogger(LogConfig{Level: "invalid", Format: "json"})
	assert.Error(t, err)
}

// validDefaults returns a Config with all defaults populated for validation tests.
func validDefaults() *Config {
	cfg := &Config{}
	cfg.Store.Driver = "postgres"
	cfg.Store.DatabaseURL = "postgres://localhost/cda"
	cfg.Store.MaxConns = 4
	cfg.Store.MinConns = 1
	cfg.Source.Base = "data"
	cfg.Source.Delimiter = ","
	cfg.Server.Port = 8080
	return cfg
}

func TestValidate_AllModes(t *testing.T) {
	cfg := validDefaults()
	for _, mode := range []string{"etl", "schema", "report", "serve"} {
		assert.NoError(t, cfg.Validate(mode), mode)
	}
}

func TestValidate_UnknownMode(t *testing.T) {
	err := validDefaults().Validate("import")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown mode")
}

func TestValidate_PostgresNeedsURL(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""

	err := cfg.Validate("etl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url")
}

func TestValidate_SQLite(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "sqlite"
	cfg.Store.DatabaseURL = ""
	cfg.Store.SQLitePath = "cda.db"

	assert.NoError(t, cfg.Validate("etl"))
	assert.NoError(t, cfg.Validate("report"))

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "serve requires store.driver=postgres")

	cfg.Store.SQLitePath = ""
	assert.Error(t, cfg.Validate("etl"))
}

func TestValidate_UnknownDriver(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.Driver = "mysql"

	err := cfg.Validate("schema")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.driver")
}

func TestValidate_PoolBounds(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.MinConns = 8

	err := cfg.Validate("etl")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "max_conns")
}

func TestValidate_Delimiter(t *testing.T) {
	cfg := validDefaults()
	cfg.Source.Delimiter = ";;"
	assert.Error(t, cfg.Validate("etl"))

	cfg.Source.Delimiter = `\t`
	assert.NoError(t, cfg.Validate("etl"))
}

func TestValidate_Buckets(t *testing.T) {
	cfg := validDefaults()
	cfg.Report.Buckets = []report.Bucket{{Name: "IPTU", Prefix: ""}}

	err := cfg.Validate("report")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "report.buckets[0]")
}

func TestValidate_ServePort(t *testing.T) {
	cfg := validDefaults()
	cfg.Server.Port = 70000

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "server.port")

	assert.NoError(t, cfg.Validate("etl"))
}

func TestValidate_CollectsAllProblems(t *testing.T) {
	cfg := validDefaults()
	cfg.Store.DatabaseURL = ""
	cfg.Server.Port = 0

	err := cfg.Validate("serve")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "store.database_url")
	assert.Contains(t, err.Error(), "server.port")
}
