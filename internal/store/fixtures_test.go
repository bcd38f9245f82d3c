package store

import (
	"time"

	"github.com/sells-group/cda-warehouse/internal/model"
)

func ptr[T any](v T) *T { return &v }

// sampleLoadSet is a small, internally consistent load set.
func sampleLoadSet() LoadSet {
	cad := time.Date(2019, time.March, 1, 0, 0, 0, 0, time.UTC)
	return LoadSet{
		Staged: model.Staged{
			Cdas: []model.Cda{
				{NumCDA: "A1", AnoInscricao: 2019, DataCadastramento: &cad, ValorSaldo: 100, FkNatureza: 10, FkSituacao: 1},
				{NumCDA: "A2", AnoInscricao: 2020, ValorSaldo: 50, FkNatureza: 11, FkSituacao: 2},
			},
			Naturezas:      []model.Natureza{{RawID: 10, Descricao: "IPTU Residencial"}, {RawID: 11, Descricao: "ISS"}},
			Situacoes:      []model.Situacao{{ID: 1, Descricao: "Cobrança", Tipo: "Ativa"}, {ID: 2, Descricao: "Paga", Tipo: "Quitada"}},
			Probabilidades: []model.Probabilidade{{NumCDA: "A1", ProbRecuperacao: 0.4}},
			Bridge:         []model.CdaDevedor{{FkCDA: "A1", FkDevedor: 7}, {FkCDA: "ZZ", FkDevedor: 7}},
			DevedoresPF:    []model.Devedor{{ID: 7, Nome: "Ana", Documento: ptr("111")}},
			DevedoresPJ:    []model.Devedor{{ID: 8, Nome: "ACME"}},
		},
		Warehouse: model.Warehouse{
			Naturezas: []model.DimNatureza{{ID: 1, Descricao: "IPTU Residencial"}, {ID: 2, Descricao: "ISS"}},
			Situacoes: []model.DimSituacao{{ID: 1, Descricao: "Cobrança", Tipo: "Ativa"}, {ID: 2, Descricao: "Paga", Tipo: "Quitada"}},
			Devedores: []model.DimDevedor{
				{ID: 7, Nome: "Ana", Documento: ptr("111"), TipoPessoa: model.PessoaFisica},
				{ID: 8, Nome: "ACME", TipoPessoa: model.PessoaJuridica},
			},
			Facts: []model.FactCda{
				{NumCDA: "A1", AnoInscricao: 2019, ValorSaldo: 100, ProbRecuperacao: ptr(0.4), FkNatureza: 1, FkSituacao: 1},
				{NumCDA: "A2", AnoInscricao: 2020, ValorSaldo: 50, FkNatureza: 2, FkSituacao: 2},
			},
			Bridge: []model.CdaDevedor{{FkCDA: "A1", FkDevedor: 7}},
		},
	}
}
