// Package warehouse turns cleaned staging records into the star schema load
// set. Everything here is pure; persistence lives in the store package.
package warehouse

import (
	"go.uber.org/zap"

	"github.com/sells-group/cda-warehouse/internal/model"
)

// Input is the cleaned and canonicalized staging data.
type Input struct {
	Naturezas      []model.DimNatureza
	Situacoes      []model.Situacao
	DevedoresPF    []model.Devedor
	DevedoresPJ    []model.Devedor
	Cdas           []model.Cda // fk_natureza already rewritten to surrogate ids
	Probabilidades []model.Probabilidade
	Bridge         []model.CdaDevedor
}

// Stats counts rows excluded by the integrity rules. Exclusions are never errors.
type Stats struct {
	SituacoesDuplicated int `json:"situacoes_duplicated"`
	DevedoresDuplicated int `json:"devedores_duplicated"`
	FactsNegative       int `json:"facts_negative"`
	BridgeOrphaned      int `json:"bridge_orphaned"`
}

// Fields returns the counters as zap fields.
func (s Stats) Fields() []zap.Field {
	return []zap.Field{
		zap.Int("situacoes_duplicated", s.SituacoesDuplicated),
		zap.Int("devedores_duplicated", s.DevedoresDuplicated),
		zap.Int("facts_negative", s.FactsNegative),
		zap.Int("bridge_orphaned", s.BridgeOrphaned),
	}
}

// Build runs the transform steps in order: situacao dimension, debtor
// dimension, fact join and projection, negative balance filter, bridge filter.
func Build(in Input) (model.Warehouse, Stats) {
	var st Stats
	var w model.Warehouse

	w.Naturezas = append([]model.DimNatureza(nil), in.Naturezas...)
	w.Situacoes, st.SituacoesDuplicated = DimSituacoes(in.Situacoes)
	w.Devedores, st.DevedoresDuplicated = DimDevedores(in.DevedoresPF, in.DevedoresPJ)

	facts := JoinFacts(in.Cdas, in.Probabilidades)
	w.Facts, st.FactsNegative = DropNegative(facts)
	w.Bridge, st.BridgeOrphaned = FilterBridge(in.Bridge, w.Facts, w.Devedores)

	return w, st
}

// DimSituacoes maps statuses to the dimension, keeping the first row per id.
func DimSituacoes(rows []model.Situacao) ([]model.DimSituacao, int) {
	seen := make(map[int64]struct{}, len(rows))
	out := make([]model.DimSituacao, 0, len(rows))
	for _, s := range rows {
		if _, dup := seen[s.ID]; dup {
			continue
		}
		seen[s.ID] = struct{}{}
		out = append(out, model.DimSituacao{ID: s.ID, Descricao: s.Descricao, Tipo: s.Tipo})
	}
	return out, len(rows) - len(out)
}

// DimDevedores unions individuals then legal entities, tagging the person
// type. An id present in both keeps the individual.
func DimDevedores(pf, pj []model.Devedor) ([]model.DimDevedor, int) {
	seen := make(map[int64]struct{}, len(pf)+len(pj))
	out := make([]model.DimDevedor, 0, len(pf)+len(pj))
	add := func(rows []model.Devedor, tipo model.TipoPessoa) {
		for _, d := range rows {
			if _, dup := seen[d.ID]; dup {
				continue
			}
			seen[d.ID] = struct{}{}
			out = append(out, model.DimDevedor{ID: d.ID, Nome: d.Nome, Documento: d.Documento, TipoPessoa: tipo})
		}
	}
	add(pf, model.PessoaFisica)
	add(pj, model.PessoaJuridica)
	return out, len(pf) + len(pj) - len(out)
}

// JoinFacts left-joins certificates with recovery probabilities on num_cda
// and projects them to the fact schema.
func JoinFacts(cdas []model.Cda, probs []model.Probabilidade) []model.FactCda {
	byCda := make(map[string]float64, len(probs))
	for _, p := range probs {
		if _, ok := byCda[p.NumCDA]; !ok {
			byCda[p.NumCDA] = p.ProbRecuperacao
		}
	}

	out := make([]model.FactCda, 0, len(cdas))
	for _, c := range cdas {
		f := model.FactCda{
			NumCDA:       c.NumCDA,
			AnoInscricao: c.AnoInscricao,
			ValorSaldo:   c.ValorSaldo,
			FkNatureza:   c.FkNatureza,
			FkSituacao:   c.FkSituacao,
		}
		if p, ok := byCda[c.NumCDA]; ok {
			f.ProbRecuperacao = &p
		}
		out = append(out, f)
	}
	return out
}

// DropNegative removes facts with a negative balance.
func DropNegative(facts []model.FactCda) ([]model.FactCda, int) {
	out := make([]model.FactCda, 0, len(facts))
	for _, f := range facts {
		if f.ValorSaldo < 0 {
			continue
		}
		out = append(out, f)
	}
	return out, len(facts) - len(out)
}

// FilterBridge keeps associations whose certificate and debtor both exist.
func FilterBridge(rows []model.CdaDevedor, facts []model.FactCda, devedores []model.DimDevedor) ([]model.CdaDevedor, int) {
	factKeys := make(map[string]struct{}, len(facts))
	for _, f := range facts {
		factKeys[f.NumCDA] = struct{}{}
	}
	debtorKeys := make(map[int64]struct{}, len(devedores))
	for _, d := range devedores {
		debtorKeys[d.ID] = struct{}{}
	}

	out := make([]model.CdaDevedor, 0, len(rows))
	for _, b := range rows {
		if _, ok := factKeys[b.FkCDA]; !ok {
			continue
		}
		if _, ok := debtorKeys[b.FkDevedor]; !ok {
			continue
		}
		out = append(out, b)
	}
	return out, len(rows) - len(out)
}
