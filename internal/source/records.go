package source

import (
	"context"

	"github.com/sells-group/cda-warehouse/internal/model"
)

// CdaRow is a certificate as read from the source, dates still unparsed.
type CdaRow struct {
	Line              int
	NumCDA            string
	AnoInscricao      int
	DataCadastramento string
	DataSituacao      string
	ValorSaldo        float64
	FkNatureza        int64
	FkSituacao        int64
}

// DevedorRow is a debtor as read from the source; an empty Documento means null.
type DevedorRow struct {
	Line      int
	ID        int64
	Nome      string
	Documento string
}

func decodeCda(r Row) (CdaRow, error) {
	var (
		c   = CdaRow{Line: r.Line()}
		err error
	)
	if c.NumCDA, err = r.Text("num_cda"); err != nil {
		return c, err
	}
	ano, err := r.Int("ano_inscricao")
	if err != nil {
		return c, err
	}
	c.AnoInscricao = int(ano)
	if c.DataCadastramento, err = r.Text("data_cadastramento"); err != nil {
		return c, err
	}
	if c.DataSituacao, err = r.Text("data_situacao"); err != nil {
		return c, err
	}
	if c.ValorSaldo, err = r.Float("valor_saldo"); err != nil {
		return c, err
	}
	if c.FkNatureza, err = r.Int("fk_natureza"); err != nil {
		return c, err
	}
	if c.FkSituacao, err = r.Int("fk_situacao"); err != nil {
		return c, err
	}
	return c, nil
}

func decodeNatureza(r Row) (model.Natureza, error) {
	var n model.Natureza
	var err error
	if n.RawID, err = r.Int("raw_id"); err != nil {
		return n, err
	}
	n.Descricao, err = r.Text("descricao")
	return n, err
}

func decodeSituacao(r Row) (model.Situacao, error) {
	var s model.Situacao
	var err error
	if s.ID, err = r.Int("id_situacao"); err != nil {
		return s, err
	}
	if s.Descricao, err = r.Text("descricao"); err != nil {
		return s, err
	}
	s.Tipo, err = r.Text("tipo")
	return s, err
}

func decodeProbabilidade(r Row) (model.Probabilidade, error) {
	var p model.Probabilidade
	var err error
	if p.NumCDA, err = r.Text("num_cda"); err != nil {
		return p, err
	}
	p.ProbRecuperacao, err = r.Float("prob_recuperacao")
	return p, err
}

func decodeBridge(r Row) (model.CdaDevedor, error) {
	var b model.CdaDevedor
	var err error
	if b.FkCDA, err = r.Text("fk_cda"); err != nil {
		return b, err
	}
	b.FkDevedor, err = r.Int("fk_devedor")
	return b, err
}

func decodeDevedor(r Row) (DevedorRow, error) {
	d := DevedorRow{Line: r.Line()}
	var err error
	if d.ID, err = r.Int("id_devedor"); err != nil {
		return d, err
	}
	if d.Nome, err = r.Text("nome"); err != nil {
		return d, err
	}
	d.Documento, err = r.Text("documento")
	return d, err
}

// Cdas reads the certificate dataset.
func (s *Source) Cdas(ctx context.Context) ([]CdaRow, error) {
	return load(ctx, s, DatasetCDA, decodeCda)
}

// Naturezas reads the raw tax category dataset.
func (s *Source) Naturezas(ctx context.Context) ([]model.Natureza, error) {
	return load(ctx, s, DatasetNatureza, decodeNatureza)
}

// Situacoes reads the collection status dataset.
func (s *Source) Situacoes(ctx context.Context) ([]model.Situacao, error) {
	return load(ctx, s, DatasetSituacao, decodeSituacao)
}

// Probabilidades reads the recovery probability dataset.
func (s *Source) Probabilidades(ctx context.Context) ([]model.Probabilidade, error) {
	return load(ctx, s, DatasetProbabilidade, decodeProbabilidade)
}

// Bridge reads the raw certificate-debtor associations.
func (s *Source) Bridge(ctx context.Context) ([]model.CdaDevedor, error) {
	return load(ctx, s, DatasetBridge, decodeBridge)
}

// DevedoresPF reads individual debtors.
func (s *Source) DevedoresPF(ctx context.Context) ([]DevedorRow, error) {
	return load(ctx, s, DatasetDevedorPF, decodeDevedor)
}

// DevedoresPJ reads legal-entity debtors.
func (s *Source) DevedoresPJ(ctx context.Context) ([]DevedorRow, error) {
	return load(ctx, s, DatasetDevedorPJ, decodeDevedor)
}
