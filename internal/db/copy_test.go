package db

import (
	"context"
	"fmt"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCopyFromSchema_EmptyRows(t *testing.T) {
	n, err := CopyFromSchema(context.TODO(), nil, "staging", "cdas", []string{"num_cda"}, [][]any{})
	assert.NoError(t, err)
	assert.Equal(t, int64(0), n)
}

func TestCopyFromSchema_Success(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"dw", "dim_naturezas"}, []string{"id_natureza", "descricao"}).WillReturnResult(2)

	rows := [][]any{{int64(1), "IPTU"}, {int64(2), "ISS"}}
	n, err := CopyFromSchema(context.Background(), mock, "dw", "dim_naturezas", []string{"id_natureza", "descricao"}, rows)
	assert.NoError(t, err)
	assert.Equal(t, int64(2), n)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCopyFromSchema_Error(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	mock.ExpectCopyFrom(pgx.Identifier{"staging", "cdas"}, []string{"num_cda"}).WillReturnError(fmt.Errorf("permission denied"))

	_, err = CopyFromSchema(context.Background(), mock, "staging", "cdas", []string{"num_cda"}, [][]any{{"A1"}})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "COPY INTO staging.cdas")
	assert.NoError(t, mock.ExpectationsWereMet())
}
