package api

import (
	"context"
	"net/http"

	"github.com/jackc/pgx/v5"
	"github.com/rotisserie/eris"

	"github.com/sells-group/cda-warehouse/internal/db"
	"github.com/sells-group/cda-warehouse/internal/report"
)

// Devedor is one row of /cda/detalhes_devedor.
type Devedor struct {
	Name       string  `json:"name"`
	TipoPessoa string  `json:"tipo_pessoa"`
	Documento  *string `json:"CPF/CNPJ"`
}

// Distribuicao is the share of certificates per collection outcome for one natureza.
type Distribuicao struct {
	Name       string  `json:"name"`
	EmCobranca float64 `json:"Em cobranca"`
	Cancelada  float64 `json:"Cancelada"`
	Quitada    float64 `json:"Quitada"`
}

// Inscricoes counts certificates registered in one year.
type Inscricoes struct {
	Ano        int   `json:"ano"`
	Quantidade int64 `json:"Quantidade"`
}

// Quantidade counts certificates per natureza.
type Quantidade struct {
	Name       string `json:"name"`
	Quantidade int64  `json:"Quantidade"`
}

// Saldo sums balances per natureza.
type Saldo struct {
	Name  string  `json:"name"`
	Saldo float64 `json:"Saldo"`
}

const devedoresSQL = `SELECT DISTINCT d.nome, d.tipo_pessoa, d.documento
FROM dw.cdas_devedores j
JOIN dw.dim_devedores d ON d.id_devedor = j.fk_devedor`

// Situacao descriptions are grouped by prefix or exact name.
const distribuicaoSQL = `SELECT n.descricao,
	COUNT(*) FILTER (WHERE s.descricao LIKE 'Cobrança%'
		OR s.descricao IN ('Parcelada', 'Leilão', 'Arrematação', 'Negociada', 'Parcelamento Irregular')) * 100.0 / COUNT(*),
	COUNT(*) FILTER (WHERE s.descricao LIKE 'Cancelada%' OR s.descricao = 'Migracao Cancelamento') * 100.0 / COUNT(*),
	COUNT(*) FILTER (WHERE s.descricao LIKE 'Paga%' OR s.descricao = 'Migracao Pagos') * 100.0 / COUNT(*)
FROM dw.fatos_cdas f
JOIN dw.dim_naturezas n ON n.id_natureza = f.fk_natureza
JOIN dw.dim_situacoes s ON s.id_situacao = f.fk_situacao
GROUP BY n.descricao
ORDER BY n.descricao`

const inscricoesSQL = `SELECT f.ano_inscricao, COUNT(*)
FROM dw.fatos_cdas f
GROUP BY f.ano_inscricao
ORDER BY f.ano_inscricao`

const quantidadeSQL = `SELECT n.descricao, COUNT(*)
FROM dw.fatos_cdas f
JOIN dw.dim_naturezas n ON n.id_natureza = f.fk_natureza
GROUP BY n.descricao
ORDER BY n.descricao`

const saldoSQL = `SELECT n.descricao, SUM(f.valor_saldo)
FROM dw.fatos_cdas f
JOIN dw.dim_naturezas n ON n.id_natureza = f.fk_natureza
GROUP BY n.descricao
ORDER BY n.descricao`

// queryAll runs sql and scans every row with scan. The result is never nil so
// that empty results encode as [].
func queryAll[T any](ctx context.Context, pool db.Pool, sql string, args []any, scan func(pgx.Rows) (T, error)) ([]T, error) {
	rows, err := pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, eris.Wrap(err, "api: query")
	}
	defer rows.Close()

	out := make([]T, 0)
	for rows.Next() {
		v, err := scan(rows)
		if err != nil {
			return nil, eris.Wrap(err, "api: scan")
		}
		out = append(out, v)
	}
	return out, eris.Wrap(rows.Err(), "api: iterate")
}

func (s *Server) detalhesDevedor(w http.ResponseWriter, r *http.Request) {
	sql := devedoresSQL
	var args []any
	if num := r.URL.Query().Get("numCDA"); num != "" {
		sql += "\nWHERE j.fk_cda = $1"
		args = append(args, num)
	}
	sql += "\nORDER BY d.nome"

	out, err := queryAll(r.Context(), s.pool, sql, args, func(rows pgx.Rows) (Devedor, error) {
		var d Devedor
		err := rows.Scan(&d.Name, &d.TipoPessoa, &d.Documento)
		return d, err
	})
	if err != nil {
		s.queryFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) distribuicaoCdas(w http.ResponseWriter, r *http.Request) {
	out, err := queryAll(r.Context(), s.pool, distribuicaoSQL, nil, func(rows pgx.Rows) (Distribuicao, error) {
		var d Distribuicao
		err := rows.Scan(&d.Name, &d.EmCobranca, &d.Cancelada, &d.Quitada)
		return d, err
	})
	if err != nil {
		s.queryFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) inscricoes(w http.ResponseWriter, r *http.Request) {
	out, err := queryAll(r.Context(), s.pool, inscricoesSQL, nil, func(rows pgx.Rows) (Inscricoes, error) {
		var i Inscricoes
		err := rows.Scan(&i.Ano, &i.Quantidade)
		return i, err
	})
	if err != nil {
		s.queryFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) quantidadeCdas(w http.ResponseWriter, r *http.Request) {
	out, err := queryAll(r.Context(), s.pool, quantidadeSQL, nil, func(rows pgx.Rows) (Quantidade, error) {
		var q Quantidade
		err := rows.Scan(&q.Name, &q.Quantidade)
		return q, err
	})
	if err != nil {
		s.queryFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) saldoCdas(w http.ResponseWriter, r *http.Request) {
	out, err := queryAll(r.Context(), s.pool, saldoSQL, nil, func(rows pgx.Rows) (Saldo, error) {
		var v Saldo
		err := rows.Scan(&v.Name, &v.Saldo)
		return v, err
	})
	if err != nil {
		s.queryFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) montanteAcumulado(w http.ResponseWriter, r *http.Request) {
	saldos, err := s.saldos.SaldosPorNatureza(r.Context())
	if err != nil {
		s.queryFailed(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, report.Cumulative(saldos, s.buckets))
}
