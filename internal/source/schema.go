// Package source reads the seven CDA source datasets through static
// schema-mapping tables and decodes them into typed records.
package source

import (
	"sort"
	"strings"

	"github.com/rotisserie/eris"

	"github.com/sells-group/cda-warehouse/internal/etlerr"
)

// Dataset identifies one of the source files.
type Dataset string

const (
	DatasetCDA           Dataset = "cda"
	DatasetNatureza      Dataset = "natureza"
	DatasetSituacao      Dataset = "situacao"
	DatasetProbabilidade Dataset = "probabilidade"
	DatasetBridge        Dataset = "cda_devedor"
	DatasetDevedorPF     Dataset = "devedor_pf"
	DatasetDevedorPJ     Dataset = "devedor_pj"
)

// Datasets lists every source dataset in file order.
var Datasets = []Dataset{
	DatasetCDA,
	DatasetNatureza,
	DatasetSituacao,
	DatasetProbabilidade,
	DatasetBridge,
	DatasetDevedorPF,
	DatasetDevedorPJ,
}

// Kind is the value type of a source column.
type Kind int

const (
	KindText Kind = iota
	KindInt
	KindFloat
	KindDate // kept as text here; parsed and sanitized by the normalizer
)

// Column maps one source header to its staging column name.
type Column struct {
	Source   string // header in the source file
	Target   string // staging column name
	Kind     Kind
	Required bool // value must be present and parse; every column must exist in the header
}

// Schema is the mapping table for one dataset.
type Schema struct {
	Dataset Dataset
	File    string
	Columns []Column
}

// defaultSchemas mirrors the layout of the municipal CDA export (001.csv .. 007.csv).
var defaultSchemas = map[Dataset]Schema{
	DatasetCDA: {
		Dataset: DatasetCDA,
		File:    "001.csv",
		Columns: []Column{
			{Source: "numCDA", Target: "num_cda", Kind: KindText, Required: true},
			{Source: "anoInscricao", Target: "ano_inscricao", Kind: KindInt, Required: true},
			{Source: "datCadastramento", Target: "data_cadastramento", Kind: KindDate},
			{Source: "DatSituacao", Target: "data_situacao", Kind: KindDate},
			{Source: "ValSaldo", Target: "valor_saldo", Kind: KindFloat, Required: true},
			{Source: "idNaturezaDivida", Target: "fk_natureza", Kind: KindInt, Required: true},
			{Source: "codSituacaoCDA", Target: "fk_situacao", Kind: KindInt, Required: true},
		},
	},
	DatasetNatureza: {
		Dataset: DatasetNatureza,
		File:    "002.csv",
		Columns: []Column{
			{Source: "idNaturezadivida", Target: "raw_id", Kind: KindInt, Required: true},
			{Source: "nomnaturezadivida", Target: "descricao", Kind: KindText},
		},
	},
	DatasetSituacao: {
		Dataset: DatasetSituacao,
		File:    "003.csv",
		Columns: []Column{
			{Source: "codSituacaoCDA", Target: "id_situacao", Kind: KindInt, Required: true},
			{Source: "nomSituacaoCDA", Target: "descricao", Kind: KindText},
			{Source: "tipoSituacao", Target: "tipo", Kind: KindText},
		},
	},
	DatasetProbabilidade: {
		Dataset: DatasetProbabilidade,
		File:    "004.csv",
		Columns: []Column{
			{Source: "numCDA", Target: "num_cda", Kind: KindText, Required: true},
			{Source: "probRecuperacao", Target: "prob_recuperacao", Kind: KindFloat, Required: true},
		},
	},
	DatasetBridge: {
		Dataset: DatasetBridge,
		File:    "005.csv",
		Columns: []Column{
			{Source: "numCDA", Target: "fk_cda", Kind: KindText, Required: true},
			{Source: "idPessoa", Target: "fk_devedor", Kind: KindInt, Required: true},
		},
	},
	DatasetDevedorPF: {
		Dataset: DatasetDevedorPF,
		File:    "006.csv",
		Columns: []Column{
			{Source: "idpessoa", Target: "id_devedor", Kind: KindInt, Required: true},
			{Source: "descNome", Target: "nome", Kind: KindText},
			{Source: "numcpf", Target: "documento", Kind: KindText},
		},
	},
	DatasetDevedorPJ: {
		Dataset: DatasetDevedorPJ,
		File:    "007.csv",
		Columns: []Column{
			{Source: "idpessoa", Target: "id_devedor", Kind: KindInt, Required: true},
			{Source: "descNome", Target: "nome", Kind: KindText},
			{Source: "numCNPJ", Target: "documento", Kind: KindText},
		},
	},
}

// Catalog holds the effective schema for every dataset.
type Catalog struct {
	schemas map[Dataset]Schema
}

// DefaultCatalog returns a catalog with the built-in mapping tables.
func DefaultCatalog() *Catalog {
	c := &Catalog{schemas: make(map[Dataset]Schema, len(defaultSchemas))}
	for ds, s := range defaultSchemas {
		cols := make([]Column, len(s.Columns))
		copy(cols, s.Columns)
		s.Columns = cols
		c.schemas[ds] = s
	}
	return c
}

// Schema returns the schema for ds.
func (c *Catalog) Schema(ds Dataset) (Schema, error) {
	s, ok := c.schemas[ds]
	if !ok {
		return Schema{}, eris.Errorf("source: unknown dataset %q", ds)
	}
	return s, nil
}

// Apply merges overrides into the catalog. Unknown datasets or target columns
// are rejected so that a typo cannot silently fall back to the defaults.
func (c *Catalog) Apply(o Overrides) error {
	names := make([]string, 0, len(o.Datasets))
	for name := range o.Datasets {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		ov := o.Datasets[name]
		s, ok := c.schemas[Dataset(name)]
		if !ok {
			return eris.Errorf("source: override for unknown dataset %q", name)
		}
		if ov.File != "" {
			s.File = ov.File
		}
		for target, header := range ov.Columns {
			i := s.index(target)
			if i < 0 {
				return eris.Errorf("source: override for unknown column %s.%s", name, target)
			}
			if strings.TrimSpace(header) == "" {
				return eris.Errorf("source: empty header override for %s.%s", name, target)
			}
			s.Columns[i].Source = header
		}
		c.schemas[Dataset(name)] = s
	}
	return nil
}

func (s Schema) index(target string) int {
	for i, col := range s.Columns {
		if col.Target == target {
			return i
		}
	}
	return -1
}

// Binding resolves a schema against a concrete header row.
type Binding struct {
	schema Schema
	pos    []int // source field index per schema column
}

// Bind validates header against the schema. Header names are matched
// case-insensitively after trimming whitespace; extra columns are ignored.
func (s Schema) Bind(header []string) (*Binding, error) {
	byName := make(map[string]int, len(header))
	for i, h := range header {
		key := normalizeHeader(h)
		if _, dup := byName[key]; !dup {
			byName[key] = i
		}
	}

	b := &Binding{schema: s, pos: make([]int, len(s.Columns))}
	for i, col := range s.Columns {
		idx, ok := byName[normalizeHeader(col.Source)]
		if !ok {
			return nil, etlerr.MissingColumn(string(s.Dataset), col.Source)
		}
		b.pos[i] = idx
	}
	return b, nil
}

// normalizeHeader lower-cases and trims a header cell, dropping a stray BOM.
func normalizeHeader(h string) string {
	return strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
}
