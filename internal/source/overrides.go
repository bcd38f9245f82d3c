package source

import (
	"bytes"
	"errors"
	"io"
	"os"

	"github.com/rotisserie/eris"
	"gopkg.in/yaml.v3"
)

// Overrides renames source files and headers per dataset. Keys of Columns are
// staging column names; values are the headers found in the source file.
//
//	datasets:
//	  cda:
//	    file: cdas_2024.csv
//	    columns:
//	      valor_saldo: ValSaldoAtualizado
type Overrides struct {
	Datasets map[string]DatasetOverride `yaml:"datasets"`
}

// DatasetOverride is the override block for one dataset.
type DatasetOverride struct {
	File    string            `yaml:"file"`
	Columns map[string]string `yaml:"columns"`
}

// LoadOverrides parses a YAML override file.
func LoadOverrides(path string) (Overrides, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Overrides{}, eris.Wrapf(err, "source: read mapping file %s", path)
	}
	return ParseOverrides(data)
}

// ParseOverrides parses YAML override content. Unknown keys are rejected.
func ParseOverrides(data []byte) (Overrides, error) {
	var o Overrides
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&o); err != nil {
		if errors.Is(err, io.EOF) {
			return Overrides{}, nil
		}
		return Overrides{}, eris.Wrap(err, "source: parse mapping file")
	}
	return o, nil
}
