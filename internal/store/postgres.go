package store

import (
	"context"
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/sells-group/cda-warehouse/internal/db"
	"github.com/sells-group/cda-warehouse/internal/etlerr"
	"github.com/sells-group/cda-warehouse/internal/model"
)

// migrationLockID serializes concurrent schema creation across processes.
const migrationLockID = 20240901

// PostgresStore implements Store using pgxpool.
type PostgresStore struct {
	pool    db.Pool
	closeFn func()
}

// PoolConfig holds optional connection pool tuning parameters.
type PoolConfig struct {
	MaxConns int32 `yaml:"max_conns" mapstructure:"max_conns"`
	MinConns int32 `yaml:"min_conns" mapstructure:"min_conns"`
}

// NewPostgres creates a PostgresStore with a connection pool.
func NewPostgres(ctx context.Context, connString string, poolCfg *PoolConfig) (*PostgresStore, error) {
	pgxCfg, err := pgxpool.ParseConfig(connString)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: parse config")
	}

	maxConns := int32(4)
	minConns := int32(1)
	if poolCfg != nil {
		if poolCfg.MaxConns > 0 {
			maxConns = poolCfg.MaxConns
		}
		if poolCfg.MinConns > 0 {
			minConns = poolCfg.MinConns
		}
	}
	pgxCfg.MaxConns = maxConns
	pgxCfg.MinConns = minConns
	pgxCfg.MaxConnLifetime = 30 * time.Minute
	pgxCfg.MaxConnIdleTime = 5 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, pgxCfg)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: create pool")
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, eris.Wrap(err, "postgres: ping")
	}
	return &PostgresStore{pool: pool, closeFn: pool.Close}, nil
}

// NewPostgresFromPool wraps an existing pool. Close is a no-op; the caller
// owns the pool.
func NewPostgresFromPool(pool db.Pool) *PostgresStore {
	return &PostgresStore{pool: pool}
}

// Pool returns the underlying database pool for the read API.
func (s *PostgresStore) Pool() db.Pool {
	return s.pool
}

const postgresMigration = `
CREATE SCHEMA IF NOT EXISTS staging;
CREATE SCHEMA IF NOT EXISTS dw;
CREATE SCHEMA IF NOT EXISTS etl;

CREATE TABLE IF NOT EXISTS staging.cdas (
	num_cda            TEXT PRIMARY KEY,
	ano_inscricao      INTEGER NOT NULL,
	data_cadastramento TIMESTAMP,
	data_situacao      TIMESTAMP,
	valor_saldo        DOUBLE PRECISION NOT NULL,
	fk_natureza        BIGINT NOT NULL,
	fk_situacao        BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS staging.naturezas (
	raw_id    BIGINT NOT NULL,
	descricao TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS staging.situacoes (
	id_situacao BIGINT NOT NULL,
	descricao   TEXT NOT NULL,
	tipo        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS staging.probabilidades (
	num_cda          TEXT NOT NULL UNIQUE,
	prob_recuperacao DOUBLE PRECISION NOT NULL
);

CREATE TABLE IF NOT EXISTS staging.cdas_devedores (
	fk_cda     TEXT NOT NULL,
	fk_devedor BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS staging.devedores_pf (
	id_devedor BIGINT PRIMARY KEY,
	nome       TEXT NOT NULL,
	documento  TEXT UNIQUE
);

CREATE TABLE IF NOT EXISTS staging.devedores_pj (
	id_devedor BIGINT PRIMARY KEY,
	nome       TEXT NOT NULL,
	documento  TEXT UNIQUE
);

CREATE TABLE IF NOT EXISTS dw.dim_naturezas (
	id_natureza BIGINT PRIMARY KEY,
	descricao   TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS dw.dim_situacoes (
	id_situacao BIGINT PRIMARY KEY,
	descricao   TEXT NOT NULL,
	tipo        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS dw.dim_devedores (
	id_devedor  BIGINT PRIMARY KEY,
	nome        TEXT NOT NULL,
	documento   TEXT,
	tipo_pessoa TEXT NOT NULL CHECK (tipo_pessoa IN ('PF', 'PJ'))
);

CREATE TABLE IF NOT EXISTS dw.fatos_cdas (
	num_cda          TEXT PRIMARY KEY,
	ano_inscricao    INTEGER NOT NULL,
	valor_saldo      DOUBLE PRECISION NOT NULL CHECK (valor_saldo >= 0),
	prob_recuperacao DOUBLE PRECISION,
	fk_natureza      BIGINT NOT NULL REFERENCES dw.dim_naturezas(id_natureza),
	fk_situacao      BIGINT NOT NULL
);

CREATE TABLE IF NOT EXISTS dw.cdas_devedores (
	fk_cda     TEXT NOT NULL REFERENCES dw.fatos_cdas(num_cda),
	fk_devedor BIGINT NOT NULL REFERENCES dw.dim_devedores(id_devedor)
);

CREATE INDEX IF NOT EXISTS idx_fatos_cdas_fk_natureza ON dw.fatos_cdas(fk_natureza);
CREATE INDEX IF NOT EXISTS idx_fatos_cdas_ano ON dw.fatos_cdas(ano_inscricao);
CREATE INDEX IF NOT EXISTS idx_dw_cdas_devedores_fk_cda ON dw.cdas_devedores(fk_cda);

CREATE TABLE IF NOT EXISTS etl.runs (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
	completed_at TIMESTAMPTZ,
	stage        TEXT,
	error        TEXT,
	metadata     JSONB
);

CREATE INDEX IF NOT EXISTS idx_etl_runs_started_at ON etl.runs(started_at DESC);
`

// Migrate creates every schema, table and index that does not exist yet.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	log := zap.L().With(zap.String("component", "store.postgres"))

	if _, err := s.pool.Exec(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return eris.Wrap(err, "postgres: acquire migration advisory lock")
	}
	defer func() {
		if _, err := s.pool.Exec(ctx, "SELECT pg_advisory_unlock($1)", migrationLockID); err != nil {
			log.Warn("postgres: failed to release migration advisory lock", zap.Error(err))
		}
	}()

	if _, err := s.pool.Exec(ctx, postgresMigration); err != nil {
		return eris.Wrap(err, "postgres: migrate")
	}
	log.Info("schema ready")
	return nil
}

// Close releases the pool when the store owns it.
func (s *PostgresStore) Close() error {
	if s.closeFn != nil {
		s.closeFn()
	}
	return nil
}

// Populated reports whether the fact table has rows.
func (s *PostgresStore) Populated(ctx context.Context) (bool, error) {
	return populatedPostgres(ctx, s.pool)
}

func populatedPostgres(ctx context.Context, q db.Pool) (bool, error) {
	var exists bool
	if err := q.QueryRow(ctx, `SELECT EXISTS (SELECT 1 FROM dw.fatos_cdas)`).Scan(&exists); err != nil {
		return false, eris.Wrap(err, "postgres: check fatos_cdas")
	}
	return exists, nil
}

// Load writes every batch with COPY inside a single transaction.
func (s *PostgresStore) Load(ctx context.Context, set LoadSet, opts LoadOptions) (LoadResult, error) {
	result := make(LoadResult)

	err := db.InTx(ctx, s.pool, func(tx pgx.Tx) error {
		if opts.Replace {
			for _, t := range clearOrder {
				if _, err := tx.Exec(ctx, "DELETE FROM "+t.String()); err != nil {
					return &etlerr.StoreWriteError{Table: t.String(), Err: err}
				}
			}
		} else {
			populated, err := populatedPostgres(ctx, tx)
			if err != nil {
				return err
			}
			if populated {
				return ErrAlreadyLoaded
			}
		}

		for _, b := range batches(set) {
			n, err := db.CopyFromSchema(ctx, tx, b.table.schema, b.table.name, b.table.columns, b.rows)
			if err != nil {
				return &etlerr.StoreWriteError{Table: b.table.String(), Err: err}
			}
			result[b.table.String()] = n
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SaldosPorNatureza returns every fact balance with its natureza descricao.
func (s *PostgresStore) SaldosPorNatureza(ctx context.Context) ([]model.SaldoNatureza, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT f.num_cda, n.descricao, f.valor_saldo
		 FROM dw.fatos_cdas f
		 JOIN dw.dim_naturezas n ON n.id_natureza = f.fk_natureza`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: query saldos")
	}
	defer rows.Close()

	var out []model.SaldoNatureza
	for rows.Next() {
		var r model.SaldoNatureza
		if err := rows.Scan(&r.NumCDA, &r.Natureza, &r.ValorSaldo); err != nil {
			return nil, eris.Wrap(err, "postgres: scan saldo")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "postgres: iterate saldos")
}

// StartRun records the beginning of a run.
func (s *PostgresStore) StartRun(ctx context.Context) (*model.Run, error) {
	run := &model.Run{
		ID:        uuid.New().String(),
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.pool.Exec(ctx,
		`INSERT INTO etl.runs (id, status, started_at) VALUES ($1, $2, $3)`,
		run.ID, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: start run")
	}
	return run, nil
}

// CompleteRun marks a run as successfully completed.
func (s *PostgresStore) CompleteRun(ctx context.Context, runID string, result *RunResult) error {
	var metaJSON []byte
	if result != nil && result.Metadata != nil {
		var err error
		metaJSON, err = json.Marshal(result.Metadata)
		if err != nil {
			return eris.Wrap(err, "postgres: marshal run metadata")
		}
	}

	_, err := s.pool.Exec(ctx,
		`UPDATE etl.runs SET status = $1, completed_at = now(), metadata = $2 WHERE id = $3`,
		string(model.RunStatusComplete), metaJSON, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: complete run %s", runID)
	}
	return nil
}

// FailRun marks a run as failed in stage with an error message.
func (s *PostgresStore) FailRun(ctx context.Context, runID, stage, errMsg string) error {
	_, err := s.pool.Exec(ctx,
		`UPDATE etl.runs SET status = $1, completed_at = now(), stage = $2, error = $3 WHERE id = $4`,
		string(model.RunStatusFailed), stage, errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "postgres: fail run %s", runID)
	}
	return nil
}

// ListRuns returns the most recent runs first.
func (s *PostgresStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.pool.Query(ctx,
		`SELECT id, status, started_at, completed_at, stage, error, metadata
		 FROM etl.runs ORDER BY started_at DESC LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "postgres: list runs")
	}
	defer rows.Close()

	var runs []model.Run
	for rows.Next() {
		var (
			r         model.Run
			status    string
			stage     *string
			errStr    *string
			metaJSON  []byte
			completed *time.Time
		)
		if err := rows.Scan(&r.ID, &status, &r.StartedAt, &completed, &stage, &errStr, &metaJSON); err != nil {
			return nil, eris.Wrap(err, "postgres: scan run")
		}
		r.Status = model.RunStatus(status)
		r.CompletedAt = completed
		if stage != nil {
			r.Stage = *stage
		}
		if errStr != nil {
			r.Error = *errStr
		}
		if metaJSON != nil {
			r.Metadata = runMetadata(r.ID, metaJSON)
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "postgres: iterate runs")
}
