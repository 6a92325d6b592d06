package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"novel-engine/server/internal/model"
)

const sessionSchema = `
CREATE TABLE IF NOT EXISTS sessions (
	session_id    TEXT PRIMARY KEY,
	language      TEXT NOT NULL,
	active_scene  TEXT NOT NULL,
	last_status   TEXT NOT NULL DEFAULT '',
	scenes_played INTEGER NOT NULL DEFAULT 0,
	created_at    INTEGER NOT NULL,
	updated_at    INTEGER NOT NULL
)`

// SQLiteStore 把存档持久化到 SQLite。存档是浅的，只有当前场景。
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite 打开（必要时创建）存档数据库。
func OpenSQLite(path string) (*SQLiteStore, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("sqlite path is required")
	}

	dsn := filepath.Clean(path) + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.Ping(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.Exec(sessionSchema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create sessions table: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func (s *SQLiteStore) Get(ctx context.Context, id string) (*model.SessionState, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT session_id, language, active_scene, last_status, scenes_played, created_at, updated_at
		 FROM sessions WHERE session_id = ?`, id)

	var state model.SessionState
	var createdAt, updatedAt int64
	if err := row.Scan(
		&state.SessionID,
		&state.Language,
		&state.ActiveScene,
		&state.LastStatus,
		&state.ScenesPlayed,
		&createdAt,
		&updatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("get session: %w", err)
	}
	state.CreatedAt = time.UnixMilli(createdAt).UTC()
	state.UpdatedAt = time.UnixMilli(updatedAt).UTC()
	return &state, nil
}

func (s *SQLiteStore) Save(ctx context.Context, state *model.SessionState) error {
	if state == nil || state.SessionID == "" {
		return errors.New("session id is required")
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sessions (session_id, language, active_scene, last_status, scenes_played, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)
		 ON CONFLICT(session_id) DO UPDATE SET
			language = excluded.language,
			active_scene = excluded.active_scene,
			last_status = excluded.last_status,
			scenes_played = excluded.scenes_played,
			updated_at = excluded.updated_at`,
		state.SessionID,
		state.Language,
		state.ActiveScene,
		state.LastStatus,
		state.ScenesPlayed,
		state.CreatedAt.UnixMilli(),
		state.UpdatedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("save session: %w", err)
	}
	return nil
}
