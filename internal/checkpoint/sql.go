package checkpoint

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/weaver-ai/weaver/pkg/models"
)

// SQLStore implements Store over database/sql. Statements use Postgres
// positional placeholders ($1, $2, ...), so this targets lib/pq (or another
// Postgres-wire driver) in production; modernc.org/sqlite's local/dev path
// goes through FileStore instead, since SQLite expects "?" placeholders.
type SQLStore struct {
	db *sql.DB

	stmtInsert *sql.Stmt
	stmtLatest *sql.Stmt
	stmtGet    *sql.Stmt
	stmtList   *sql.Stmt
	stmtPrune  *sql.Stmt
}

// Schema is the DDL NewSQLStore expects to already exist (run via the
// cmd/weaver migrate subcommand, not applied implicitly here).
const Schema = `
CREATE TABLE IF NOT EXISTS checkpoints (
	thread_id  TEXT NOT NULL,
	seq        BIGINT NOT NULL,
	node_name  TEXT,
	snapshot   BYTEA NOT NULL,
	created_at TIMESTAMPTZ NOT NULL,
	PRIMARY KEY (thread_id, seq)
);
`

// NewSQLStore prepares statements against an already-open, already-migrated
// database handle.
func NewSQLStore(db *sql.DB) (*SQLStore, error) {
	if db == nil {
		return nil, fmt.Errorf("checkpoint: nil db")
	}
	s := &SQLStore{db: db}
	var err error

	s.stmtInsert, err = db.Prepare(`
		INSERT INTO checkpoints (thread_id, seq, node_name, snapshot, created_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (thread_id, seq) DO NOTHING
	`)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: prepare insert: %w", err)
	}

	s.stmtLatest, err = db.Prepare(`
		SELECT thread_id, seq, node_name, snapshot, created_at
		FROM checkpoints WHERE thread_id = $1
		ORDER BY seq DESC LIMIT 1
	`)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: prepare latest: %w", err)
	}

	s.stmtGet, err = db.Prepare(`
		SELECT thread_id, seq, node_name, snapshot, created_at
		FROM checkpoints WHERE thread_id = $1 AND seq = $2
	`)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: prepare get: %w", err)
	}

	s.stmtList, err = db.Prepare(`
		SELECT thread_id, seq, node_name, created_at
		FROM checkpoints WHERE thread_id = $1
		ORDER BY seq DESC LIMIT $2
	`)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: prepare list: %w", err)
	}

	s.stmtPrune, err = db.Prepare(`
		DELETE FROM checkpoints
		WHERE thread_id = $1 AND seq NOT IN (
			SELECT seq FROM checkpoints WHERE thread_id = $1
			ORDER BY seq DESC LIMIT $2
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: prepare prune: %w", err)
	}

	return s, nil
}

// Close releases prepared statements and the underlying connection.
func (s *SQLStore) Close() error {
	for _, stmt := range []*sql.Stmt{s.stmtInsert, s.stmtLatest, s.stmtGet, s.stmtList, s.stmtPrune} {
		if stmt != nil {
			stmt.Close()
		}
	}
	return s.db.Close()
}

func (s *SQLStore) Save(ctx context.Context, cp *models.Checkpoint) error {
	if cp == nil || cp.ThreadID == "" {
		return fmt.Errorf("checkpoint: thread_id is required")
	}
	created := cp.CreatedAt
	if created.IsZero() {
		created = time.Now()
	}
	_, err := s.stmtInsert.ExecContext(ctx, cp.ThreadID, cp.Seq, cp.NodeName, cp.Snapshot, created)
	if err != nil {
		return fmt.Errorf("checkpoint: save: %w", err)
	}
	return nil
}

func (s *SQLStore) Latest(ctx context.Context, threadID string) (*models.Checkpoint, error) {
	row := s.stmtLatest.QueryRowContext(ctx, threadID)
	return scanCheckpoint(row)
}

func (s *SQLStore) Get(ctx context.Context, threadID string, seq int64) (*models.Checkpoint, error) {
	row := s.stmtGet.QueryRowContext(ctx, threadID, seq)
	return scanCheckpoint(row)
}

func (s *SQLStore) List(ctx context.Context, threadID string, limit int) ([]models.Checkpoint, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.stmtList.QueryContext(ctx, threadID, limit)
	if err != nil {
		return nil, fmt.Errorf("checkpoint: list: %w", err)
	}
	defer rows.Close()

	var result []models.Checkpoint
	for rows.Next() {
		var cp models.Checkpoint
		var nodeName sql.NullString
		if err := rows.Scan(&cp.ThreadID, &cp.Seq, &nodeName, &cp.CreatedAt); err != nil {
			return nil, fmt.Errorf("checkpoint: scan: %w", err)
		}
		cp.NodeName = nodeName.String
		result = append(result, cp)
	}
	return result, rows.Err()
}

func (s *SQLStore) Prune(ctx context.Context, threadID string, keep int) (int, error) {
	if keep < 0 {
		keep = 0
	}
	res, err := s.stmtPrune.ExecContext(ctx, threadID, keep)
	if err != nil {
		return 0, fmt.Errorf("checkpoint: prune: %w", err)
	}
	n, err := res.RowsAffected()
	return int(n), err
}

type scannable interface {
	Scan(dest ...any) error
}

func scanCheckpoint(row scannable) (*models.Checkpoint, error) {
	var cp models.Checkpoint
	var nodeName sql.NullString
	if err := row.Scan(&cp.ThreadID, &cp.Seq, &nodeName, &cp.Snapshot, &cp.CreatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("checkpoint: scan: %w", err)
	}
	cp.NodeName = nodeName.String
	return &cp, nil
}
