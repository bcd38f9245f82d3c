package model

// Warehouse rows use surrogate keys and the column names the read API expects.

// DimNatureza is one canonical tax category.
type DimNatureza struct {
	ID        int64  `json:"id_natureza"`
	Descricao string `json:"descricao"`
}

// DimSituacao is one collection status.
type DimSituacao struct {
	ID        int64  `json:"id_situacao"`
	Descricao string `json:"descricao"`
	Tipo      string `json:"tipo"`
}

// DimDevedor is one debtor of either person type.
type DimDevedor struct {
	ID         int64      `json:"id_devedor"`
	Nome       string     `json:"nome"`
	Documento  *string    `json:"documento,omitempty"`
	TipoPessoa TipoPessoa `json:"tipo_pessoa"`
}

// FactCda is one certificate in the fact table.
type FactCda struct {
	NumCDA          string   `json:"num_cda"`
	AnoInscricao    int      `json:"ano_inscricao"`
	ValorSaldo      float64  `json:"valor_saldo"`
	ProbRecuperacao *float64 `json:"prob_recuperacao"`
	FkNatureza      int64    `json:"fk_natureza"`
	FkSituacao      int64    `json:"fk_situacao"`
}

// Staged is the full output of the normalization stage.
type Staged struct {
	Cdas           []Cda
	Naturezas      []Natureza
	Situacoes      []Situacao
	Probabilidades []Probabilidade
	Bridge         []CdaDevedor
	DevedoresPF    []Devedor
	DevedoresPJ    []Devedor
}

// Warehouse is the full star-schema load set.
type Warehouse struct {
	Naturezas []DimNatureza
	Situacoes []DimSituacao
	Devedores []DimDevedor
	Facts     []FactCda
	Bridge    []CdaDevedor
}

// SaldoNatureza is one fact balance labelled with its natureza descricao,
// the input of the cumulative distribution report.
type SaldoNatureza struct {
	NumCDA     string  `json:"num_cda"`
	Natureza   string  `json:"natureza"`
	ValorSaldo float64 `json:"valor_saldo"`
}
