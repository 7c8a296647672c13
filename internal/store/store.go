package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/xkilldash9x/randfig/internal/cfgmap"
	"github.com/xkilldash9x/randfig/internal/generator"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// ErrRunNotFound is returned when a run ID has no stored documents.
var ErrRunNotFound = errors.New("store: run not found")

// DBPool is an interface that abstracts the pgxpool.Pool to allow for mocking in tests.
type DBPool interface {
	Ping(ctx context.Context) error
	Begin(ctx context.Context) (pgx.Tx, error)
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	CopyFrom(ctx context.Context, tableName pgx.Identifier, columnNames []string, rowSrc pgx.CopyFromSource) (int64, error)
}

// Store persists generation runs to PostgreSQL. It satisfies generator.Sink.
type Store struct {
	pool DBPool
	log  *zap.Logger
}

var _ generator.Sink = (*Store)(nil)

// New creates a new store instance and verifies the connection.
func New(ctx context.Context, pool DBPool, logger *zap.Logger) (*Store, error) {
	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &Store{
		pool: pool,
		log:  logger.Named("store"),
	}, nil
}

const schemaDDL = `
CREATE TABLE IF NOT EXISTS generation_runs (
    id             UUID PRIMARY KEY,
    seed           BIGINT NOT NULL,
    document_count INTEGER NOT NULL,
    started_at     TIMESTAMPTZ NOT NULL,
    finished_at    TIMESTAMPTZ NOT NULL
);
CREATE TABLE IF NOT EXISTS generated_documents (
    id        UUID PRIMARY KEY,
    run_id    UUID NOT NULL REFERENCES generation_runs(id) ON DELETE CASCADE,
    doc_index INTEGER NOT NULL,
    seed      BIGINT NOT NULL,
    config    JSONB NOT NULL,
    UNIQUE (run_id, doc_index)
);
`

// EnsureSchema creates the run and document tables when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, schemaDDL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	return nil
}

const sqlInsertRun = `
    INSERT INTO generation_runs (id, seed, document_count, started_at, finished_at)
    VALUES ($1, $2, $3, $4, $5);
`

var documentColumns = []string{"id", "run_id", "doc_index", "seed", "config"}

// Persist writes the run and all of its documents in one transaction.
func (s *Store) Persist(ctx context.Context, run *generator.Run) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if rollbackErr := tx.Rollback(ctx); rollbackErr != nil && !errors.Is(rollbackErr, pgx.ErrTxClosed) {
			s.log.Error("Failed to rollback transaction", zap.Error(rollbackErr))
		}
	}()

	_, err = tx.Exec(ctx, sqlInsertRun,
		run.ID, run.Seed, len(run.Documents),
		run.StartedAt.UTC(), run.FinishedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to insert run: %w", err)
	}

	if len(run.Documents) > 0 {
		if err := s.persistDocuments(ctx, tx, run); err != nil {
			return err
		}
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("failed to commit transaction: %w", err)
	}
	s.log.Info("Run persisted", zap.String("run_id", run.ID), zap.Int("documents", len(run.Documents)))
	return nil
}

func (s *Store) persistDocuments(ctx context.Context, tx pgx.Tx, run *generator.Run) error {
	rows := make([][]interface{}, len(run.Documents))
	for i, d := range run.Documents {
		config, err := json.Marshal(d.Config)
		if err != nil {
			return fmt.Errorf("failed to encode document %d: %w", d.Index, err)
		}
		rows[i] = []interface{}{d.ID, run.ID, d.Index, d.Seed, config}
	}

	copyCount, err := tx.CopyFrom(ctx, pgx.Identifier{"generated_documents"}, documentColumns, pgx.CopyFromRows(rows))
	if err != nil {
		return fmt.Errorf("failed to copy documents: %w", err)
	}
	if int(copyCount) != len(run.Documents) {
		return fmt.Errorf("mismatch in copied documents count: expected %d, got %d", len(run.Documents), copyCount)
	}
	return nil
}

// RunSummary is a stored run without its documents.
type RunSummary struct {
	ID            string
	Seed          int64
	DocumentCount int
	StartedAt     time.Time
	FinishedAt    time.Time
}

const sqlRecentRuns = `
    SELECT id, seed, document_count, started_at, finished_at
    FROM generation_runs
    ORDER BY started_at DESC
    LIMIT $1;
`

// RecentRuns lists the newest runs first.
func (s *Store) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	rows, err := s.pool.Query(ctx, sqlRecentRuns, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query runs: %w", err)
	}
	defer rows.Close()

	var runs []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.ID, &r.Seed, &r.DocumentCount, &r.StartedAt, &r.FinishedAt); err != nil {
			return nil, fmt.Errorf("failed to scan run row: %w", err)
		}
		runs = append(runs, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	return runs, nil
}

const sqlDocumentsByRun = `
    SELECT id, doc_index, seed, config
    FROM generated_documents
    WHERE run_id = $1
    ORDER BY doc_index ASC;
`

// DocumentsByRunID loads the documents of one run in index order.
func (s *Store) DocumentsByRunID(ctx context.Context, runID string) ([]generator.Document, error) {
	rows, err := s.pool.Query(ctx, sqlDocumentsByRun, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to query documents: %w", err)
	}
	defer rows.Close()

	var docs []generator.Document
	for rows.Next() {
		var d generator.Document
		var raw []byte
		if err := rows.Scan(&d.ID, &d.Index, &d.Seed, &raw); err != nil {
			return nil, fmt.Errorf("failed to scan document row: %w", err)
		}
		var config map[string]any
		if err := json.Unmarshal(raw, &config); err != nil {
			return nil, fmt.Errorf("failed to decode document %d: %w", d.Index, err)
		}
		d.Config = cfgmap.Map(config)
		docs = append(docs, d)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("error during row iteration: %w", err)
	}
	if len(docs) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	return docs, nil
}
