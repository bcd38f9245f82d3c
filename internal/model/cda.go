// Package model holds the staging, warehouse and run log records shared by
// every stage of the ETL.
package model

import "time"

// DateFloor is the earliest date kept in staging; older dates are clamped to it.
var DateFloor = time.Date(1980, time.January, 1, 0, 0, 0, 0, time.UTC)

// DateFloorText is DateFloor in the staging storage format.
const DateFloorText = "1980-01-01 00:00:00.000"

// Staging records carry natural keys exactly as they appear in the sources.

// Cda is one registered tax-debt certificate in staging.
type Cda struct {
	NumCDA            string     `json:"num_cda"`
	AnoInscricao      int        `json:"ano_inscricao"`
	DataCadastramento *time.Time `json:"data_cadastramento,omitempty"`
	DataSituacao      *time.Time `json:"data_situacao,omitempty"`
	ValorSaldo        float64    `json:"valor_saldo"`
	FkNatureza        int64      `json:"fk_natureza"`
	FkSituacao        int64      `json:"fk_situacao"`
}

// Natureza is a raw tax category row; several raw ids may share a descricao.
type Natureza struct {
	RawID     int64  `json:"raw_id"`
	Descricao string `json:"descricao"`
}

// Situacao is a collection status.
type Situacao struct {
	ID        int64  `json:"id_situacao"`
	Descricao string `json:"descricao"`
	Tipo      string `json:"tipo"`
}

// Probabilidade is the recovery probability of one certificate.
type Probabilidade struct {
	NumCDA          string  `json:"num_cda"`
	ProbRecuperacao float64 `json:"prob_recuperacao"`
}

// CdaDevedor associates a certificate with a debtor.
type CdaDevedor struct {
	FkCDA     string `json:"fk_cda"`
	FkDevedor int64  `json:"fk_devedor"`
}

// Devedor is an individual (PF) or legal entity (PJ) debtor.
type Devedor struct {
	ID        int64   `json:"id_devedor"`
	Nome      string  `json:"nome"`
	Documento *string `json:"documento,omitempty"`
}

// TipoPessoa distinguishes individuals from legal entities.
type TipoPessoa string

const (
	PessoaFisica   TipoPessoa = "PF"
	PessoaJuridica TipoPessoa = "PJ"
)
