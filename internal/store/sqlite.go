package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"path/filepath"
	"time"

	"github.com/oklog/ulid/v2"
	_ "modernc.org/sqlite"

	"github.com/rcliao/prosepolisher/internal/model"
)

var _ Store = (*SQLiteStore)(nil)

// SQLiteStore implements Store using SQLite.
type SQLiteStore struct {
	db      *sql.DB
	entropy *rand.Rand
}

// NewSQLiteStore opens or creates a SQLite database at the given path.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dir := filepath.Dir(dbPath)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(wal)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	s := &SQLiteStore{
		db:      db,
		entropy: rand.New(rand.NewSource(time.Now().UnixNano())),
	}

	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return s, nil
}

func (s *SQLiteStore) newID() string {
	return ulid.MustNew(ulid.Timestamp(time.Now()), s.entropy).String()
}

func (s *SQLiteStore) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS snapshots (
		id          TEXT PRIMARY KEY,
		chat_id     TEXT NOT NULL,
		version     INTEGER NOT NULL DEFAULT 1,
		supersedes  TEXT,
		messages    INTEGER NOT NULL DEFAULT 0,
		data        TEXT NOT NULL,
		created_at  TEXT NOT NULL,
		deleted_at  TEXT
	);
	CREATE INDEX IF NOT EXISTS idx_snapshots_chat ON snapshots(chat_id, version);
	CREATE INDEX IF NOT EXISTS idx_snapshots_created ON snapshots(created_at DESC);
	CREATE INDEX IF NOT EXISTS idx_snapshots_deleted ON snapshots(deleted_at);

	CREATE TABLE IF NOT EXISTS rules (
		id          TEXT PRIMARY KEY,
		script_name TEXT NOT NULL,
		body        TEXT NOT NULL,
		is_static   INTEGER NOT NULL DEFAULT 0,
		disabled    INTEGER NOT NULL DEFAULT 0,
		position    INTEGER NOT NULL DEFAULT 0,
		created_at  TEXT NOT NULL,
		updated_at  TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_rules_static ON rules(is_static, position);
	`
	_, err := s.db.Exec(schema)
	return err
}

func (s *SQLiteStore) SaveSnapshot(ctx context.Context, p SaveSnapshotParams) (*model.SnapshotRecord, error) {
	if p.ChatID == "" {
		return nil, fmt.Errorf("save snapshot: empty chat id")
	}
	now := time.Now().UTC()
	id := s.newID()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	// Check for existing latest version
	var prevID string
	var prevVersion int
	err = tx.QueryRowContext(ctx,
		`SELECT id, version FROM snapshots
		 WHERE chat_id = ? AND deleted_at IS NULL
		 ORDER BY version DESC LIMIT 1`, p.ChatID).Scan(&prevID, &prevVersion)

	version := 1
	var supersedes *string
	switch {
	case err == nil:
		version = prevVersion + 1
		supersedes = &prevID
	case !errors.Is(err, sql.ErrNoRows):
		return nil, fmt.Errorf("find latest snapshot: %w", err)
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO snapshots (id, chat_id, version, supersedes, messages, data, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		id, p.ChatID, version, supersedes, p.Messages, string(p.Data), now.Format(time.RFC3339Nano))
	if err != nil {
		return nil, fmt.Errorf("insert snapshot: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	rec := &model.SnapshotRecord{
		ID:        id,
		ChatID:    p.ChatID,
		Version:   version,
		Messages:  p.Messages,
		Data:      append([]byte(nil), p.Data...),
		CreatedAt: now,
	}
	if supersedes != nil {
		rec.Supersedes = *supersedes
	}
	return rec, nil
}

const snapshotColumns = `id, chat_id, version, supersedes, messages, data, created_at, deleted_at`

func (s *SQLiteStore) GetSnapshot(ctx context.Context, p GetSnapshotParams) ([]model.SnapshotRecord, error) {
	var query string
	var args []any

	switch {
	case p.History:
		query = `SELECT ` + snapshotColumns + ` FROM snapshots
				 WHERE chat_id = ? AND deleted_at IS NULL
				 ORDER BY version DESC`
		args = []any{p.ChatID}
	case p.Version > 0:
		query = `SELECT ` + snapshotColumns + ` FROM snapshots
				 WHERE chat_id = ? AND version = ? AND deleted_at IS NULL
				 LIMIT 1`
		args = []any{p.ChatID, p.Version}
	default:
		query = `SELECT ` + snapshotColumns + ` FROM snapshots
				 WHERE chat_id = ? AND deleted_at IS NULL
				 ORDER BY version DESC LIMIT 1`
		args = []any{p.ChatID}
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []model.SnapshotRecord
	for rows.Next() {
		r, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		snaps = append(snaps, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	if len(snaps) == 0 {
		return nil, fmt.Errorf("snapshot %s: %w", p.ChatID, ErrNotFound)
	}
	return snaps, nil
}

func (s *SQLiteStore) ListChats(ctx context.Context, p ListChatsParams) ([]model.SnapshotRecord, error) {
	limit := p.Limit
	if limit <= 0 {
		limit = 20
	}

	query := `
		SELECT s.id, s.chat_id, s.version, s.supersedes, s.messages, s.data, s.created_at, s.deleted_at
		FROM snapshots s
		INNER JOIN (
			SELECT chat_id, MAX(version) AS max_ver
			FROM snapshots WHERE deleted_at IS NULL
			GROUP BY chat_id
		) latest ON s.chat_id = latest.chat_id AND s.version = latest.max_ver
		WHERE s.deleted_at IS NULL
		ORDER BY s.created_at DESC
		LIMIT ?`

	rows, err := s.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var snaps []model.SnapshotRecord
	for rows.Next() {
		r, err := scanSnapshot(rows)
		if err != nil {
			return nil, err
		}
		if !p.WithData {
			r.Data = nil
		}
		snaps = append(snaps, r)
	}
	return snaps, rows.Err()
}

func (s *SQLiteStore) RmSnapshot(ctx context.Context, p RmSnapshotParams) error {
	if p.Hard {
		if p.AllVersions {
			res, err := s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE chat_id = ?`, p.ChatID)
			if err != nil {
				return err
			}
			return requireAffected(res, p.ChatID)
		}
		id, err := s.latestSnapshotID(ctx, p.ChatID)
		if err != nil {
			return err
		}
		_, err = s.db.ExecContext(ctx, `DELETE FROM snapshots WHERE id = ?`, id)
		return err
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	if p.AllVersions {
		res, err := s.db.ExecContext(ctx,
			`UPDATE snapshots SET deleted_at = ? WHERE chat_id = ? AND deleted_at IS NULL`,
			now, p.ChatID)
		if err != nil {
			return err
		}
		return requireAffected(res, p.ChatID)
	}

	// Soft-delete latest version only
	id, err := s.latestSnapshotID(ctx, p.ChatID)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `UPDATE snapshots SET deleted_at = ? WHERE id = ?`, now, id)
	return err
}

func (s *SQLiteStore) latestSnapshotID(ctx context.Context, chatID string) (string, error) {
	var id string
	err := s.db.QueryRowContext(ctx,
		`SELECT id FROM snapshots WHERE chat_id = ? AND deleted_at IS NULL ORDER BY version DESC LIMIT 1`,
		chatID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return "", fmt.Errorf("snapshot %s: %w", chatID, ErrNotFound)
	}
	return id, err
}

func requireAffected(res sql.Result, chatID string) error {
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return fmt.Errorf("snapshot %s: %w", chatID, ErrNotFound)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSnapshot(row scanner) (model.SnapshotRecord, error) {
	var r model.SnapshotRecord
	var supersedes, deletedAt sql.NullString
	var data, createdAt string

	err := row.Scan(&r.ID, &r.ChatID, &r.Version, &supersedes, &r.Messages, &data, &createdAt, &deletedAt)
	if err != nil {
		return r, err
	}

	r.Data = []byte(data)
	r.CreatedAt, _ = time.Parse(time.RFC3339Nano, createdAt)
	if supersedes.Valid {
		r.Supersedes = supersedes.String
	}
	if deletedAt.Valid {
		t, _ := time.Parse(time.RFC3339Nano, deletedAt.String)
		r.DeletedAt = &t
	}
	return r, nil
}
