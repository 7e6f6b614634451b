package projects

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"freeway/internal/storage"
)

// SQLiteStore implements Store for SQLite.
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore creates the projects table if needed.
func NewSQLiteStore(ctx context.Context, db *sql.DB) (*SQLiteStore, error) {
	if db == nil {
		return nil, fmt.Errorf("database connection is required")
	}

	_, err := db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS projects (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			api_key_hash TEXT NOT NULL,
			api_key_prefix TEXT NOT NULL,
			is_active INTEGER NOT NULL DEFAULT 1,
			rate_limit_per_minute INTEGER NOT NULL DEFAULT 60,
			created_at TEXT NOT NULL,
			updated_at TEXT NOT NULL,
			metadata TEXT
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create projects table: %w", err)
	}
	if _, err := db.ExecContext(ctx, "CREATE INDEX IF NOT EXISTS idx_projects_is_active ON projects(is_active)"); err != nil {
		slog.Warn("failed to create index", "error", err)
	}
	return &SQLiteStore{db: db}, nil
}

const sqliteProjectColumns = `id, name, api_key_hash, api_key_prefix, is_active, rate_limit_per_minute,
	created_at, updated_at, metadata`

// Create inserts p.
func (s *SQLiteStore) Create(ctx context.Context, p *Project) error {
	meta, err := marshalMetadata(p.Metadata)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `INSERT INTO projects (`+sqliteProjectColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		p.ID, p.Name, p.APIKeyHash, p.APIKeyPrefix, p.IsActive, p.RateLimitPerMinute,
		storage.FormatSQLiteTime(p.CreatedAt), storage.FormatSQLiteTime(p.UpdatedAt), meta)
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}
	return nil
}

// Get returns one project.
func (s *SQLiteStore) Get(ctx context.Context, id string) (*Project, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sqliteProjectColumns+` FROM projects WHERE id = ?`, id)
	p, err := scanSQLiteProject(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// List returns every project, newest first.
func (s *SQLiteStore) List(ctx context.Context) ([]Project, error) {
	return s.query(ctx, `SELECT `+sqliteProjectColumns+` FROM projects ORDER BY created_at DESC`)
}

// ListActive returns active projects.
func (s *SQLiteStore) ListActive(ctx context.Context) ([]Project, error) {
	return s.query(ctx, `SELECT `+sqliteProjectColumns+` FROM projects WHERE is_active = 1 ORDER BY created_at DESC`)
}

// Update overwrites the mutable fields of p.
func (s *SQLiteStore) Update(ctx context.Context, p *Project) error {
	meta, err := marshalMetadata(p.Metadata)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx, `UPDATE projects SET name = ?, api_key_hash = ?, api_key_prefix = ?,
		is_active = ?, rate_limit_per_minute = ?, updated_at = ?, metadata = ? WHERE id = ?`,
		p.Name, p.APIKeyHash, p.APIKeyPrefix, p.IsActive, p.RateLimitPerMinute,
		storage.FormatSQLiteTime(p.UpdatedAt), meta, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	if n, err := res.RowsAffected(); err == nil && n == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *SQLiteStore) query(ctx context.Context, query string) ([]Project, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		p, err := scanSQLiteProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSQLiteProject(row rowScanner) (*Project, error) {
	var (
		p                    Project
		createdAt, updatedAt string
		meta                 sql.NullString
	)
	err := row.Scan(&p.ID, &p.Name, &p.APIKeyHash, &p.APIKeyPrefix, &p.IsActive, &p.RateLimitPerMinute,
		&createdAt, &updatedAt, &meta)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}
	if p.CreatedAt, err = storage.ParseSQLiteTime(createdAt); err != nil {
		return nil, fmt.Errorf("invalid created_at %q: %w", createdAt, err)
	}
	if p.UpdatedAt, err = storage.ParseSQLiteTime(updatedAt); err != nil {
		return nil, fmt.Errorf("invalid updated_at %q: %w", updatedAt, err)
	}
	if meta.Valid && meta.String != "" {
		if err := json.Unmarshal([]byte(meta.String), &p.Metadata); err != nil {
			slog.Warn("ignoring malformed project metadata", "project_id", p.ID, "error", err)
		}
	}
	return &p, nil
}

func marshalMetadata(meta map[string]any) (any, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal project metadata: %w", err)
	}
	return string(b), nil
}
