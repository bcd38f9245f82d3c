package normalize

import (
	"strings"

	"github.com/sells-group/cda-warehouse/internal/model"
	"github.com/sells-group/cda-warehouse/internal/source"
)

// Cdas deduplicates certificates by num_cda and sanitizes both dates.
func Cdas(rows []source.CdaRow) ([]model.Cda, Stats) {
	st := Stats{Dataset: string(source.DatasetCDA), RowsIn: len(rows)}

	kept, dups := keepFirst(rows, func(r source.CdaRow) string { return r.NumCDA })
	st.Duplicates = dups

	out := make([]model.Cda, 0, len(kept))
	for _, r := range kept {
		out = append(out, model.Cda{
			NumCDA:            r.NumCDA,
			AnoInscricao:      r.AnoInscricao,
			DataCadastramento: SanitizeDate(r.DataCadastramento, &st),
			DataSituacao:      SanitizeDate(r.DataSituacao, &st),
			ValorSaldo:        r.ValorSaldo,
			FkNatureza:        r.FkNatureza,
			FkSituacao:        r.FkSituacao,
		})
	}
	st.RowsOut = len(out)
	return out, st
}

// Naturezas passes raw tax categories through; many raw ids may share a
// descricao and conflicts are left to the canonicalizer.
func Naturezas(rows []model.Natureza) ([]model.Natureza, Stats) {
	out := make([]model.Natureza, len(rows))
	copy(out, rows)
	return out, Stats{Dataset: string(source.DatasetNatureza), RowsIn: len(rows), RowsOut: len(out)}
}

// Situacoes passes statuses through without deduplication.
func Situacoes(rows []model.Situacao) ([]model.Situacao, Stats) {
	out := make([]model.Situacao, len(rows))
	copy(out, rows)
	return out, Stats{Dataset: string(source.DatasetSituacao), RowsIn: len(rows), RowsOut: len(out)}
}

// Probabilidades deduplicates by num_cda.
func Probabilidades(rows []model.Probabilidade) ([]model.Probabilidade, Stats) {
	out, dups := keepFirst(rows, func(p model.Probabilidade) string { return p.NumCDA })
	return out, Stats{
		Dataset:    string(source.DatasetProbabilidade),
		RowsIn:     len(rows),
		RowsOut:    len(out),
		Duplicates: dups,
	}
}

// Bridge keeps raw associations as they are; integrity filtering happens in
// the warehouse transform.
func Bridge(rows []model.CdaDevedor) ([]model.CdaDevedor, Stats) {
	out := make([]model.CdaDevedor, len(rows))
	copy(out, rows)
	return out, Stats{Dataset: string(source.DatasetBridge), RowsIn: len(rows), RowsOut: len(out)}
}

// Devedores deduplicates debtors of one person type by id and nulls any
// documento already claimed by an earlier kept row.
func Devedores(ds source.Dataset, rows []source.DevedorRow) ([]model.Devedor, Stats) {
	st := Stats{Dataset: string(ds), RowsIn: len(rows)}

	kept, dups := keepFirst(rows, func(r source.DevedorRow) int64 { return r.ID })
	st.Duplicates = dups

	claimed := make(map[string]struct{}, len(kept))
	out := make([]model.Devedor, 0, len(kept))
	for _, r := range kept {
		d := model.Devedor{ID: r.ID, Nome: r.Nome}
		if doc := strings.TrimSpace(r.Documento); doc != "" {
			if _, taken := claimed[doc]; taken {
				st.DocumentsNulled++
			} else {
				claimed[doc] = struct{}{}
				d.Documento = &doc
			}
		}
		out = append(out, d)
	}
	st.RowsOut = len(out)
	return out, st
}
