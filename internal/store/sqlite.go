package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rotisserie/eris"
	_ "modernc.org/sqlite"

	"github.com/sells-group/cda-warehouse/internal/etlerr"
	"github.com/sells-group/cda-warehouse/internal/model"
)

// SQLiteStore implements Store using modernc.org/sqlite. Postgres schemas
// become table name prefixes (staging_cdas, dw_fatos_cdas, etl_runs) so the
// whole load stays in one database file and one transaction.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLite opens a SQLite database at the given path and configures WAL mode.
func NewSQLite(dsn string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: open")
	}
	// One connection: per-connection pragmas stick and ":memory:" stays a
	// single database.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
		"PRAGMA synchronous=NORMAL",
	}
	if !strings.Contains(dsn, ":memory:") {
		pragmas = append(pragmas, "PRAGMA journal_mode=WAL")
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close() //nolint:errcheck
			return nil, eris.Wrapf(err, "sqlite: exec %s", pragma)
		}
	}
	return &SQLiteStore{db: db}, nil
}

// sqliteName maps a schema-qualified table to its prefixed SQLite name.
func sqliteName(t table) string { return t.schema + "_" + t.name }

const sqliteMigration = `
CREATE TABLE IF NOT EXISTS staging_cdas (
	num_cda            TEXT PRIMARY KEY,
	ano_inscricao      INTEGER NOT NULL,
	data_cadastramento DATETIME,
	data_situacao      DATETIME,
	valor_saldo        REAL NOT NULL,
	fk_natureza        INTEGER NOT NULL,
	fk_situacao        INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS staging_naturezas (
	raw_id    INTEGER NOT NULL,
	descricao TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS staging_situacoes (
	id_situacao INTEGER NOT NULL,
	descricao   TEXT NOT NULL,
	tipo        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS staging_probabilidades (
	num_cda          TEXT NOT NULL UNIQUE,
	prob_recuperacao REAL NOT NULL
);

CREATE TABLE IF NOT EXISTS staging_cdas_devedores (
	fk_cda     TEXT NOT NULL,
	fk_devedor INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS staging_devedores_pf (
	id_devedor INTEGER PRIMARY KEY,
	nome       TEXT NOT NULL,
	documento  TEXT UNIQUE
);

CREATE TABLE IF NOT EXISTS staging_devedores_pj (
	id_devedor INTEGER PRIMARY KEY,
	nome       TEXT NOT NULL,
	documento  TEXT UNIQUE
);

CREATE TABLE IF NOT EXISTS dw_dim_naturezas (
	id_natureza INTEGER PRIMARY KEY,
	descricao   TEXT NOT NULL UNIQUE
);

CREATE TABLE IF NOT EXISTS dw_dim_situacoes (
	id_situacao INTEGER PRIMARY KEY,
	descricao   TEXT NOT NULL,
	tipo        TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS dw_dim_devedores (
	id_devedor  INTEGER PRIMARY KEY,
	nome        TEXT NOT NULL,
	documento   TEXT,
	tipo_pessoa TEXT NOT NULL CHECK (tipo_pessoa IN ('PF', 'PJ'))
);

CREATE TABLE IF NOT EXISTS dw_fatos_cdas (
	num_cda          TEXT PRIMARY KEY,
	ano_inscricao    INTEGER NOT NULL,
	valor_saldo      REAL NOT NULL CHECK (valor_saldo >= 0),
	prob_recuperacao REAL,
	fk_natureza      INTEGER NOT NULL REFERENCES dw_dim_naturezas(id_natureza),
	fk_situacao      INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS dw_cdas_devedores (
	fk_cda     TEXT NOT NULL REFERENCES dw_fatos_cdas(num_cda),
	fk_devedor INTEGER NOT NULL REFERENCES dw_dim_devedores(id_devedor)
);

CREATE INDEX IF NOT EXISTS idx_fatos_cdas_fk_natureza ON dw_fatos_cdas(fk_natureza);
CREATE INDEX IF NOT EXISTS idx_dw_cdas_devedores_fk_cda ON dw_cdas_devedores(fk_cda);

CREATE TABLE IF NOT EXISTS etl_runs (
	id           TEXT PRIMARY KEY,
	status       TEXT NOT NULL DEFAULT 'running',
	started_at   DATETIME NOT NULL,
	completed_at DATETIME,
	stage        TEXT,
	error        TEXT,
	metadata     TEXT
);
`

// Migrate creates every table that does not exist yet.
func (s *SQLiteStore) Migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, sqliteMigration)
	return eris.Wrap(err, "sqlite: migrate")
}

// Close closes the database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type sqliteQuerier interface {
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func populatedSQLite(ctx context.Context, q sqliteQuerier) (bool, error) {
	var exists bool
	if err := q.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM dw_fatos_cdas)`).Scan(&exists); err != nil {
		return false, eris.Wrap(err, "sqlite: check fatos_cdas")
	}
	return exists, nil
}

// Populated reports whether the fact table has rows.
func (s *SQLiteStore) Populated(ctx context.Context) (bool, error) {
	return populatedSQLite(ctx, s.db)
}

// Load inserts every batch inside a single transaction.
func (s *SQLiteStore) Load(ctx context.Context, set LoadSet, opts LoadOptions) (LoadResult, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: begin tx")
	}
	defer tx.Rollback() //nolint:errcheck

	if opts.Replace {
		for _, t := range clearOrder {
			if _, err := tx.ExecContext(ctx, "DELETE FROM "+sqliteName(t)); err != nil {
				return nil, &etlerr.StoreWriteError{Table: t.String(), Err: err}
			}
		}
	} else {
		populated, err := populatedSQLite(ctx, tx)
		if err != nil {
			return nil, err
		}
		if populated {
			return nil, ErrAlreadyLoaded
		}
	}

	result := make(LoadResult)
	for _, b := range batches(set) {
		n, err := insertBatch(ctx, tx, b)
		if err != nil {
			return nil, &etlerr.StoreWriteError{Table: b.table.String(), Err: err}
		}
		result[b.table.String()] = n
	}

	if err := tx.Commit(); err != nil {
		return nil, eris.Wrap(err, "sqlite: commit tx")
	}
	return result, nil
}

func insertBatch(ctx context.Context, tx *sql.Tx, b batch) (int64, error) {
	if len(b.rows) == 0 {
		return 0, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(b.table.columns)), ", ")
	query := "INSERT INTO " + sqliteName(b.table) +
		" (" + strings.Join(b.table.columns, ", ") + ") VALUES (" + placeholders + ")"

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, eris.Wrapf(err, "sqlite: prepare insert %s", b.table)
	}
	defer stmt.Close() //nolint:errcheck

	for i, row := range b.rows {
		if _, err := stmt.ExecContext(ctx, row...); err != nil {
			return int64(i), eris.Wrapf(err, "sqlite: insert %s row %d", b.table, i)
		}
	}
	return int64(len(b.rows)), nil
}

// SaldosPorNatureza returns every fact balance with its natureza descricao.
func (s *SQLiteStore) SaldosPorNatureza(ctx context.Context) ([]model.SaldoNatureza, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT f.num_cda, n.descricao, f.valor_saldo
		 FROM dw_fatos_cdas f
		 JOIN dw_dim_naturezas n ON n.id_natureza = f.fk_natureza`,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: query saldos")
	}
	defer rows.Close() //nolint:errcheck

	var out []model.SaldoNatureza
	for rows.Next() {
		var r model.SaldoNatureza
		if err := rows.Scan(&r.NumCDA, &r.Natureza, &r.ValorSaldo); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan saldo")
		}
		out = append(out, r)
	}
	return out, eris.Wrap(rows.Err(), "sqlite: iterate saldos")
}

// StartRun records the beginning of a run.
func (s *SQLiteStore) StartRun(ctx context.Context) (*model.Run, error) {
	run := &model.Run{
		ID:        uuid.New().String(),
		Status:    model.RunStatusRunning,
		StartedAt: time.Now().UTC(),
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO etl_runs (id, status, started_at) VALUES (?, ?, ?)`,
		run.ID, string(run.Status), run.StartedAt,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: start run")
	}
	return run, nil
}

// CompleteRun marks a run as successfully completed.
func (s *SQLiteStore) CompleteRun(ctx context.Context, runID string, result *RunResult) error {
	var meta any
	if result != nil && result.Metadata != nil {
		metaJSON, err := json.Marshal(result.Metadata)
		if err != nil {
			return eris.Wrap(err, "sqlite: marshal run metadata")
		}
		meta = string(metaJSON)
	}

	res, err := s.db.ExecContext(ctx,
		`UPDATE etl_runs SET status = ?, completed_at = ?, metadata = ? WHERE id = ?`,
		string(model.RunStatusComplete), time.Now().UTC(), meta, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: complete run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

// FailRun marks a run as failed in stage with an error message.
func (s *SQLiteStore) FailRun(ctx context.Context, runID, stage, errMsg string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE etl_runs SET status = ?, completed_at = ?, stage = ?, error = ? WHERE id = ?`,
		string(model.RunStatusFailed), time.Now().UTC(), stage, errMsg, runID,
	)
	if err != nil {
		return eris.Wrapf(err, "sqlite: fail run %s", runID)
	}
	return checkRowsAffected(res, "run", runID)
}

// ListRuns returns the most recent runs first.
func (s *SQLiteStore) ListRuns(ctx context.Context, limit int) ([]model.Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, status, started_at, completed_at, stage, error, metadata
		 FROM etl_runs ORDER BY started_at DESC LIMIT ?`,
		limit,
	)
	if err != nil {
		return nil, eris.Wrap(err, "sqlite: list runs")
	}
	defer rows.Close() //nolint:errcheck

	var runs []model.Run
	for rows.Next() {
		var (
			r         model.Run
			status    string
			completed sql.NullTime
			stage     sql.NullString
			errStr    sql.NullString
			meta      sql.NullString
		)
		if err := rows.Scan(&r.ID, &status, &r.StartedAt, &completed, &stage, &errStr, &meta); err != nil {
			return nil, eris.Wrap(err, "sqlite: scan run")
		}
		r.Status = model.RunStatus(status)
		if completed.Valid {
			t := completed.Time
			r.CompletedAt = &t
		}
		r.Stage = stage.String
		r.Error = errStr.String
		if meta.Valid {
			r.Metadata = runMetadata(r.ID, []byte(meta.String))
		}
		runs = append(runs, r)
	}
	return runs, eris.Wrap(rows.Err(), "sqlite: iterate runs")
}

func checkRowsAffected(res sql.Result, entity, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return eris.Wrapf(err, "sqlite: rows affected for %s %s", entity, id)
	}
	if n == 0 {
		return eris.Errorf("sqlite: %s %s not found", entity, id)
	}
	return nil
}
