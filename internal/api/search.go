package api

import (
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/rotisserie/eris"
)

const (
	defaultLimit = 100
	maxLimit     = 1000
)

// CdaResult is one row of /cda/search.
type CdaResult struct {
	NumCDA               string   `json:"numCDA"`
	ValorSaldoAtualizado float64  `json:"valor_saldo_atualizado"`
	QtdeAnosIdadeCDA     int      `json:"qtde_anos_idade_cda"`
	AgrupamentoSituacao  int64    `json:"agrupamento_situacao"`
	Natureza             string   `json:"natureza"`
	Score                *float64 `json:"score"`
}

// searchQuery holds the validated /cda/search parameters.
type searchQuery struct {
	NumCDA    string
	MinSaldo  *float64
	MaxSaldo  *float64
	MinAno    *int
	MaxAno    *int
	Natureza  string
	Situacao  *int64
	SortBy    string
	SortOrder string
	Skip      int
	Limit     int
}

// badRequest is a parameter error reported to the client as 400.
type badRequest struct{ msg string }

func (e *badRequest) Error() string { return e.msg }

func invalid(format string, args ...any) error {
	return &badRequest{msg: "invalid parameter: " + fmt.Sprintf(format, args...)}
}

func parseSearch(v url.Values) (searchQuery, error) {
	q := searchQuery{
		NumCDA:    strings.TrimSpace(v.Get("numCDA")),
		Natureza:  strings.TrimSpace(v.Get("natureza")),
		SortBy:    "ano",
		SortOrder: "asc",
		Limit:     defaultLimit,
	}

	var err error
	if q.MinSaldo, err = optFloat(v, "minSaldo"); err != nil {
		return q, err
	}
	if q.MaxSaldo, err = optFloat(v, "maxSaldo"); err != nil {
		return q, err
	}
	if q.MinAno, err = optInt(v, "minAno"); err != nil {
		return q, err
	}
	if q.MaxAno, err = optInt(v, "maxAno"); err != nil {
		return q, err
	}
	if s, err := optInt(v, "agrupamento_situacao"); err != nil {
		return q, err
	} else if s != nil {
		id := int64(*s)
		q.Situacao = &id
	}
	if s, err := optInt(v, "skip"); err != nil {
		return q, err
	} else if s != nil {
		q.Skip = *s
	}
	if l, err := optInt(v, "limit"); err != nil {
		return q, err
	} else if l != nil {
		q.Limit = *l
	}
	if sb := v.Get("sort_by"); sb != "" {
		q.SortBy = sb
	}
	if so := v.Get("sort_order"); so != "" {
		q.SortOrder = so
	}

	switch {
	case q.MinSaldo != nil && q.MaxSaldo != nil && *q.MinSaldo > *q.MaxSaldo:
		return q, invalid("minSaldo must not be greater than maxSaldo")
	case q.MinAno != nil && q.MaxAno != nil && *q.MinAno > *q.MaxAno:
		return q, invalid("minAno must not be greater than maxAno")
	case q.SortBy != "ano" && q.SortBy != "valor":
		return q, invalid("sort_by must be 'ano' or 'valor'")
	case q.SortOrder != "asc" && q.SortOrder != "desc":
		return q, invalid("sort_order must be 'asc' or 'desc'")
	case q.Skip < 0:
		return q, invalid("skip must not be negative")
	case q.Limit <= 0:
		return q, invalid("limit must be positive")
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return q, nil
}

func optFloat(v url.Values, key string) (*float64, error) {
	s := strings.TrimSpace(v.Get(key))
	if s == "" {
		return nil, nil
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return nil, invalid("%s must be a number", key)
	}
	return &f, nil
}

func optInt(v url.Values, key string) (*int, error) {
	s := strings.TrimSpace(v.Get(key))
	if s == "" {
		return nil, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return nil, invalid("%s must be an integer", key)
	}
	return &n, nil
}

// sql renders the query with positional arguments. Sort column and direction
// come from the validated whitelist, never from raw input.
func (q searchQuery) sql() (string, []any) {
	var (
		where []string
		args  []any
	)
	add := func(cond string, arg any) {
		args = append(args, arg)
		where = append(where, fmt.Sprintf(cond, len(args)))
	}

	if q.NumCDA != "" {
		add("f.num_cda = $%d", q.NumCDA)
	}
	if q.MinSaldo != nil {
		add("f.valor_saldo >= $%d", *q.MinSaldo)
	}
	if q.MaxSaldo != nil {
		add("f.valor_saldo <= $%d", *q.MaxSaldo)
	}
	if q.MinAno != nil {
		add("f.ano_inscricao >= $%d", *q.MinAno)
	}
	if q.MaxAno != nil {
		add("f.ano_inscricao <= $%d", *q.MaxAno)
	}
	if q.Natureza != "" {
		add("n.descricao ILIKE $%d", "%"+q.Natureza+"%")
	}
	if q.Situacao != nil {
		add("f.fk_situacao = $%d", *q.Situacao)
	}

	var b strings.Builder
	b.WriteString(`SELECT f.num_cda, f.valor_saldo, f.ano_inscricao, f.fk_situacao, n.descricao, f.prob_recuperacao
FROM dw.fatos_cdas f
JOIN dw.dim_naturezas n ON n.id_natureza = f.fk_natureza`)
	if len(where) > 0 {
		b.WriteString("\nWHERE ")
		b.WriteString(strings.Join(where, " AND "))
	}

	col := "f.ano_inscricao"
	if q.SortBy == "valor" {
		col = "f.valor_saldo"
	}
	dir := "ASC"
	if q.SortOrder == "desc" {
		dir = "DESC"
	}
	args = append(args, q.Limit, q.Skip)
	fmt.Fprintf(&b, "\nORDER BY %s %s, f.num_cda ASC\nLIMIT $%d OFFSET $%d", col, dir, len(args)-1, len(args))
	return b.String(), args
}

func (s *Server) searchCdas(w http.ResponseWriter, r *http.Request) {
	q, err := parseSearch(r.URL.Query())
	if err != nil {
		var br *badRequest
		if errors.As(err, &br) {
			writeDetail(w, http.StatusBadRequest, br.msg)
			return
		}
		s.queryFailed(w, r, err)
		return
	}

	sql, args := q.sql()
	rows, err := s.pool.Query(r.Context(), sql, args...)
	if err != nil {
		s.queryFailed(w, r, eris.Wrap(err, "api: search cdas"))
		return
	}
	defer rows.Close()

	year := s.now().Year()
	out := make([]CdaResult, 0)
	for rows.Next() {
		var (
			c   CdaResult
			ano int
		)
		if err := rows.Scan(&c.NumCDA, &c.ValorSaldoAtualizado, &ano, &c.AgrupamentoSituacao, &c.Natureza, &c.Score); err != nil {
			s.queryFailed(w, r, eris.Wrap(err, "api: scan cda"))
			return
		}
		c.QtdeAnosIdadeCDA = year - ano
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		s.queryFailed(w, r, eris.Wrap(err, "api: iterate cdas"))
		return
	}
	writeJSON(w, http.StatusOK, out)
}
