package store

import (
	"time"

	"github.com/sells-group/cda-warehouse/internal/model"
)

// table is one destination table; schema is a Postgres schema and a name
// prefix on SQLite.
type table struct {
	schema  string
	name    string
	columns []string
}

func (t table) String() string { return t.schema + "." + t.name }

var (
	stagingCdas = table{"staging", "cdas", []string{
		"num_cda", "ano_inscricao", "data_cadastramento", "data_situacao", "valor_saldo", "fk_natureza", "fk_situacao",
	}}
	stagingNaturezas      = table{"staging", "naturezas", []string{"raw_id", "descricao"}}
	stagingSituacoes      = table{"staging", "situacoes", []string{"id_situacao", "descricao", "tipo"}}
	stagingProbabilidades = table{"staging", "probabilidades", []string{"num_cda", "prob_recuperacao"}}
	stagingBridge         = table{"staging", "cdas_devedores", []string{"fk_cda", "fk_devedor"}}
	stagingDevedoresPF    = table{"staging", "devedores_pf", []string{"id_devedor", "nome", "documento"}}
	stagingDevedoresPJ    = table{"staging", "devedores_pj", []string{"id_devedor", "nome", "documento"}}

	dwNaturezas = table{"dw", "dim_naturezas", []string{"id_natureza", "descricao"}}
	dwSituacoes = table{"dw", "dim_situacoes", []string{"id_situacao", "descricao", "tipo"}}
	dwDevedores = table{"dw", "dim_devedores", []string{"id_devedor", "nome", "documento", "tipo_pessoa"}}
	dwFacts     = table{"dw", "fatos_cdas", []string{
		"num_cda", "ano_inscricao", "valor_saldo", "prob_recuperacao", "fk_natureza", "fk_situacao",
	}}
	dwBridge = table{"dw", "cdas_devedores", []string{"fk_cda", "fk_devedor"}}
)

// clearOrder lists tables children first so deletes never violate a foreign key.
var clearOrder = []table{
	dwBridge, dwFacts, dwDevedores, dwSituacoes, dwNaturezas,
	stagingBridge, stagingProbabilidades, stagingDevedoresPJ, stagingDevedoresPF,
	stagingSituacoes, stagingNaturezas, stagingCdas,
}

type batch struct {
	table table
	rows  [][]any
}

// batches returns the write order: staging first, then dimensions, facts and
// the bridge.
func batches(set LoadSet) []batch {
	s, w := set.Staged, set.Warehouse
	out := []batch{
		{stagingCdas, make([][]any, 0, len(s.Cdas))},
		{stagingNaturezas, make([][]any, 0, len(s.Naturezas))},
		{stagingSituacoes, make([][]any, 0, len(s.Situacoes))},
		{stagingProbabilidades, make([][]any, 0, len(s.Probabilidades))},
		{stagingBridge, make([][]any, 0, len(s.Bridge))},
		{stagingDevedoresPF, devedorRows(s.DevedoresPF)},
		{stagingDevedoresPJ, devedorRows(s.DevedoresPJ)},
		{dwNaturezas, make([][]any, 0, len(w.Naturezas))},
		{dwSituacoes, make([][]any, 0, len(w.Situacoes))},
		{dwDevedores, make([][]any, 0, len(w.Devedores))},
		{dwFacts, make([][]any, 0, len(w.Facts))},
		{dwBridge, bridgeRows(w.Bridge)},
	}

	for _, c := range s.Cdas {
		out[0].rows = append(out[0].rows, []any{
			c.NumCDA, c.AnoInscricao, timeOrNil(c.DataCadastramento), timeOrNil(c.DataSituacao),
			c.ValorSaldo, c.FkNatureza, c.FkSituacao,
		})
	}
	for _, n := range s.Naturezas {
		out[1].rows = append(out[1].rows, []any{n.RawID, n.Descricao})
	}
	for _, st := range s.Situacoes {
		out[2].rows = append(out[2].rows, []any{st.ID, st.Descricao, st.Tipo})
	}
	for _, p := range s.Probabilidades {
		out[3].rows = append(out[3].rows, []any{p.NumCDA, p.ProbRecuperacao})
	}
	out[4].rows = bridgeRows(s.Bridge)

	for _, n := range w.Naturezas {
		out[7].rows = append(out[7].rows, []any{n.ID, n.Descricao})
	}
	for _, st := range w.Situacoes {
		out[8].rows = append(out[8].rows, []any{st.ID, st.Descricao, st.Tipo})
	}
	for _, d := range w.Devedores {
		out[9].rows = append(out[9].rows, []any{d.ID, d.Nome, stringOrNil(d.Documento), string(d.TipoPessoa)})
	}
	for _, f := range w.Facts {
		out[10].rows = append(out[10].rows, []any{
			f.NumCDA, f.AnoInscricao, f.ValorSaldo, floatOrNil(f.ProbRecuperacao), f.FkNatureza, f.FkSituacao,
		})
	}
	return out
}

func devedorRows(ds []model.Devedor) [][]any {
	rows := make([][]any, 0, len(ds))
	for _, d := range ds {
		rows = append(rows, []any{d.ID, d.Nome, stringOrNil(d.Documento)})
	}
	return rows
}

func bridgeRows(bs []model.CdaDevedor) [][]any {
	rows := make([][]any, 0, len(bs))
	for _, b := range bs {
		rows = append(rows, []any{b.FkCDA, b.FkDevedor})
	}
	return rows
}

// Nullable values are passed as untyped nil so both drivers write NULL.

func timeOrNil(t *time.Time) any {
	if t == nil {
		return nil
	}
	return t.UTC()
}

func stringOrNil(s *string) any {
	if s == nil {
		return nil
	}
	return *s
}

func floatOrNil(f *float64) any {
	if f == nil {
		return nil
	}
	return *f
}
