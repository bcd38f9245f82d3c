package source

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseOverrides(t *testing.T) {
	data := []byte(`
datasets:
  cda:
    file: cdas_2024.csv
    columns:
      valor_saldo: ValSaldoAtualizado
`)
	o, err := ParseOverrides(data)
	require.NoError(t, err)
	require.Contains(t, o.Datasets, "cda")
	assert.Equal(t, "cdas_2024.csv", o.Datasets["cda"].File)
	assert.Equal(t, "ValSaldoAtualizado", o.Datasets["cda"].Columns["valor_saldo"])
}

func TestParseOverrides_Empty(t *testing.T) {
	o, err := ParseOverrides(nil)
	require.NoError(t, err)
	assert.Empty(t, o.Datasets)
}

func TestParseOverrides_UnknownKey(t *testing.T) {
	_, err := ParseOverrides([]byte("datasets:\n  cda:\n    filename: a.csv\n"))
	assert.Error(t, err)
}

func TestLoadOverrides(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mapping.yaml")
	require.NoError(t, os.WriteFile(path, []byte("datasets:\n  natureza:\n    file: nat.csv\n"), 0o600))

	o, err := LoadOverrides(path)
	require.NoError(t, err)
	assert.Equal(t, "nat.csv", o.Datasets["natureza"].File)

	_, err = LoadOverrides(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
