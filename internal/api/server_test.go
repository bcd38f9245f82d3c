package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
}

func newTestServer(t *testing.T) (*Server, pgxmock.PgxPoolIface) {
	t.Helper()
	mock, err := pgxmock.NewPool(pgxmock.QueryMatcherOption(pgxmock.QueryMatcherRegexp))
	require.NoError(t, err)
	t.Cleanup(func() { mock.Close() })

	s := New(mock, nil)
	s.now = func() time.Time { return time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC) }
	return s, mock
}

func get(t *testing.T, s *Server, target string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)
	return rr
}

func TestHealth(t *testing.T) {
	s, _ := newTestServer(t)

	rr := get(t, s, "/health")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Contains(t, rr.Header().Get("Content-Type"), "application/json")
	var body map[string]string
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
	assert.Equal(t, "ok", body["status"])
}

func TestSearch_Defaults(t *testing.T) {
	s, mock := newTestServer(t)
	score := 0.75

	mock.ExpectQuery(`SELECT f.num_cda, f.valor_saldo, f.ano_inscricao.*ORDER BY f.ano_inscricao ASC, f.num_cda ASC\s+LIMIT \$1 OFFSET \$2`).
		WithArgs(100, 0).
		WillReturnRows(pgxmock.NewRows([]string{"num_cda", "valor_saldo", "ano_inscricao", "fk_situacao", "descricao", "prob_recuperacao"}).
			AddRow("A1", 100.0, 2020, int64(3), "IPTU Residencial", &score).
			AddRow("A2", 50.0, 2022, int64(1), "ISS", (*float64)(nil)))

	rr := get(t, s, "/cda/search")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var out []map[string]any
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 2)
	assert.Equal(t, "A1", out[0]["numCDA"])
	assert.Equal(t, 100.0, out[0]["valor_saldo_atualizado"])
	assert.Equal(t, float64(4), out[0]["qtde_anos_idade_cda"])
	assert.Equal(t, float64(3), out[0]["agrupamento_situacao"])
	assert.Equal(t, "IPTU Residencial", out[0]["natureza"])
	assert.Equal(t, 0.75, out[0]["score"])
	assert.Nil(t, out[1]["score"])
	assert.Equal(t, float64(2), out[1]["qtde_anos_idade_cda"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearch_Filters(t *testing.T) {
	s, mock := newTestServer(t)

	mock.ExpectQuery(`WHERE f.num_cda = \$1 AND f.valor_saldo >= \$2 AND f.valor_saldo <= \$3 AND f.ano_inscricao >= \$4 AND f.ano_inscricao <= \$5 AND n.descricao ILIKE \$6 AND f.fk_situacao = \$7\s+ORDER BY f.valor_saldo DESC, f.num_cda ASC\s+LIMIT \$8 OFFSET \$9`).
		WithArgs("A1", 10.0, 500.0, 2019, 2021, "%iptu%", int64(3), 20, 40).
		WillReturnRows(pgxmock.NewRows([]string{"num_cda", "valor_saldo", "ano_inscricao", "fk_situacao", "descricao", "prob_recuperacao"}))

	rr := get(t, s, "/cda/search?numCDA=A1&minSaldo=10&maxSaldo=500&minAno=2019&maxAno=2021&natureza=iptu&agrupamento_situacao=3&sort_by=valor&sort_order=desc&skip=40&limit=20")

	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())
	assert.JSONEq(t, `[]`, rr.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearch_LimitCapped(t *testing.T) {
	s, mock := newTestServer(t)

	mock.ExpectQuery(`LIMIT \$1 OFFSET \$2`).
		WithArgs(maxLimit, 0).
		WillReturnRows(pgxmock.NewRows([]string{"num_cda", "valor_saldo", "ano_inscricao", "fk_situacao", "descricao", "prob_recuperacao"}))

	rr := get(t, s, "/cda/search?limit=5000")

	assert.Equal(t, http.StatusOK, rr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSearch_InvalidParameters(t *testing.T) {
	tests := []struct {
		name  string
		query string
	}{
		{"saldo range", "minSaldo=10&maxSaldo=5"},
		{"ano range", "minAno=2022&maxAno=2020"},
		{"sort_by", "sort_by=nome"},
		{"sort_order", "sort_order=up"},
		{"negative skip", "skip=-1"},
		{"zero limit", "limit=0"},
		{"non-numeric saldo", "minSaldo=abc"},
		{"non-integer ano", "minAno=20.5"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, mock := newTestServer(t)

			rr := get(t, s, "/cda/search?"+tt.query)

			assert.Equal(t, http.StatusBadRequest, rr.Code)
			var body map[string]string
			require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &body))
			assert.Contains(t, body["detail"], "invalid parameter")
			assert.NoError(t, mock.ExpectationsWereMet())
		})
	}
}

func TestSearch_QueryError(t *testing.T) {
	s, mock := newTestServer(t)

	mock.ExpectQuery(`FROM dw.fatos_cdas`).
		WithArgs(100, 0).
		WillReturnError(errors.New("connection reset"))

	rr := get(t, s, "/cda/search")

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NotContains(t, rr.Body.String(), "connection reset")
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDetalhesDevedor(t *testing.T) {
	s, mock := newTestServer(t)
	doc := "111"

	mock.ExpectQuery(`SELECT DISTINCT d.nome, d.tipo_pessoa, d.documento.*ORDER BY d.nome`).
		WillReturnRows(pgxmock.NewRows([]string{"nome", "tipo_pessoa", "documento"}).
			AddRow("Ana", "PF", &doc).
			AddRow("Beta Ltda", "PJ", (*string)(nil)))

	rr := get(t, s, "/cda/detalhes_devedor")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[
		{"name":"Ana","tipo_pessoa":"PF","CPF/CNPJ":"111"},
		{"name":"Beta Ltda","tipo_pessoa":"PJ","CPF/CNPJ":null}
	]`, rr.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDetalhesDevedor_ByCDA(t *testing.T) {
	s, mock := newTestServer(t)

	mock.ExpectQuery(`WHERE j.fk_cda = \$1\s+ORDER BY d.nome`).
		WithArgs("A1").
		WillReturnRows(pgxmock.NewRows([]string{"nome", "tipo_pessoa", "documento"}))

	rr := get(t, s, "/cda/detalhes_devedor?numCDA=A1")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestDistribuicaoCdas(t *testing.T) {
	s, mock := newTestServer(t)

	mock.ExpectQuery(`JOIN dw.dim_situacoes s ON s.id_situacao = f.fk_situacao\s+GROUP BY n.descricao`).
		WillReturnRows(pgxmock.NewRows([]string{"descricao", "em_cobranca", "cancelada", "quitada"}).
			AddRow("IPTU Residencial", 50.0, 25.0, 25.0))

	rr := get(t, s, "/resumo/distribuicao_cdas")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[{"name":"IPTU Residencial","Em cobranca":50,"Cancelada":25,"Quitada":25}]`, rr.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestInscricoes(t *testing.T) {
	s, mock := newTestServer(t)

	mock.ExpectQuery(`SELECT f.ano_inscricao, COUNT\(\*\)`).
		WillReturnRows(pgxmock.NewRows([]string{"ano_inscricao", "count"}).
			AddRow(2020, int64(3)).
			AddRow(2021, int64(1)))

	rr := get(t, s, "/resumo/inscricoes")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[{"ano":2020,"Quantidade":3},{"ano":2021,"Quantidade":1}]`, rr.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestQuantidadeCdas(t *testing.T) {
	s, mock := newTestServer(t)

	mock.ExpectQuery(`SELECT n.descricao, COUNT\(\*\)`).
		WillReturnRows(pgxmock.NewRows([]string{"descricao", "count"}).
			AddRow("ISS", int64(2)))

	rr := get(t, s, "/resumo/quantidade_cdas")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[{"name":"ISS","Quantidade":2}]`, rr.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaldoCdas(t *testing.T) {
	s, mock := newTestServer(t)

	mock.ExpectQuery(`SELECT n.descricao, SUM\(f.valor_saldo\)`).
		WillReturnRows(pgxmock.NewRows([]string{"descricao", "sum"}).
			AddRow("ISS", 150.5))

	rr := get(t, s, "/resumo/saldo_cdas")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[{"name":"ISS","Saldo":150.5}]`, rr.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestSaldoCdas_QueryError(t *testing.T) {
	s, mock := newTestServer(t)

	mock.ExpectQuery(`SUM\(f.valor_saldo\)`).WillReturnError(errors.New("boom"))

	rr := get(t, s, "/resumo/saldo_cdas")

	assert.Equal(t, http.StatusInternalServerError, rr.Code)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMontanteAcumulado(t *testing.T) {
	s, mock := newTestServer(t)

	mock.ExpectQuery(`SELECT f.num_cda, n.descricao, f.valor_saldo`).
		WillReturnRows(pgxmock.NewRows([]string{"num_cda", "descricao", "valor_saldo"}).
			AddRow("A1", "IPTU Residencial", 100.0).
			AddRow("A2", "ISS", 50.0))

	rr := get(t, s, "/resumo/montante_acumulado")
	require.Equal(t, http.StatusOK, rr.Code, rr.Body.String())

	var out []map[string]float64
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &out))
	require.Len(t, out, 21)
	assert.Equal(t, float64(1), out[0]["Percentual"])
	assert.Equal(t, float64(100), out[20]["Percentual"])
	assert.InDelta(t, 100, out[0]["IPTU"], 1e-9)
	assert.InDelta(t, 100, out[0]["ISS"], 1e-9)
	assert.Equal(t, float64(0), out[20]["IPTU"])
	assert.Equal(t, float64(0), out[20]["ITBI"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMontanteAcumulado_Empty(t *testing.T) {
	s, mock := newTestServer(t)

	mock.ExpectQuery(`SELECT f.num_cda, n.descricao, f.valor_saldo`).
		WillReturnRows(pgxmock.NewRows([]string{"num_cda", "descricao", "valor_saldo"}))

	rr := get(t, s, "/resumo/montante_acumulado")

	require.Equal(t, http.StatusOK, rr.Code)
	assert.JSONEq(t, `[]`, rr.Body.String())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCORSPreflight(t *testing.T) {
	s, _ := newTestServer(t)

	req := httptest.NewRequest(http.MethodOptions, "/resumo/inscricoes", nil)
	req.Header.Set("Origin", "http://dashboard.local")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	rr := httptest.NewRecorder()
	s.Handler().ServeHTTP(rr, req)

	assert.Equal(t, "*", rr.Header().Get("Access-Control-Allow-Origin"))
}
