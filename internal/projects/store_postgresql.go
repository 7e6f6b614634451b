package projects

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// PostgreSQLStore implements Store for PostgreSQL.
type PostgreSQLStore struct {
	pool *pgxpool.Pool
}

// NewPostgreSQLStore creates the projects table if needed.
func NewPostgreSQLStore(ctx context.Context, pool *pgxpool.Pool) (*PostgreSQLStore, error) {
	if pool == nil {
		return nil, fmt.Errorf("connection pool is required")
	}

	_, err := pool.Exec(ctx, `
		CREATE TABLE IF NOT EXISTS projects (
			id UUID PRIMARY KEY,
			name VARCHAR(255) NOT NULL,
			api_key_hash TEXT NOT NULL,
			api_key_prefix VARCHAR(16) NOT NULL,
			is_active BOOLEAN NOT NULL DEFAULT TRUE,
			rate_limit_per_minute INTEGER NOT NULL DEFAULT 60,
			created_at TIMESTAMPTZ NOT NULL,
			updated_at TIMESTAMPTZ NOT NULL,
			metadata JSONB
		)
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to create projects table: %w", err)
	}
	if _, err := pool.Exec(ctx, "CREATE INDEX IF NOT EXISTS idx_projects_is_active ON projects(is_active)"); err != nil {
		slog.Warn("failed to create index", "error", err)
	}
	return &PostgreSQLStore{pool: pool}, nil
}

const pgProjectColumns = `id::text, name, api_key_hash, api_key_prefix, is_active, rate_limit_per_minute,
	created_at, updated_at, metadata`

// Create inserts p.
func (s *PostgreSQLStore) Create(ctx context.Context, p *Project) error {
	meta, err := pgMetadata(p.Metadata)
	if err != nil {
		return err
	}
	_, err = s.pool.Exec(ctx, `
		INSERT INTO projects (id, name, api_key_hash, api_key_prefix, is_active, rate_limit_per_minute,
			created_at, updated_at, metadata)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
	`, p.ID, p.Name, p.APIKeyHash, p.APIKeyPrefix, p.IsActive, p.RateLimitPerMinute,
		p.CreatedAt.UTC(), p.UpdatedAt.UTC(), meta)
	if err != nil {
		return fmt.Errorf("failed to insert project: %w", err)
	}
	return nil
}

// Get returns one project.
func (s *PostgreSQLStore) Get(ctx context.Context, id string) (*Project, error) {
	row := s.pool.QueryRow(ctx, `SELECT `+pgProjectColumns+` FROM projects WHERE id::text = $1`, id)
	p, err := scanPGProject(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return p, err
}

// List returns every project, newest first.
func (s *PostgreSQLStore) List(ctx context.Context) ([]Project, error) {
	return s.query(ctx, `SELECT `+pgProjectColumns+` FROM projects ORDER BY created_at DESC`)
}

// ListActive returns active projects.
func (s *PostgreSQLStore) ListActive(ctx context.Context) ([]Project, error) {
	return s.query(ctx, `SELECT `+pgProjectColumns+` FROM projects WHERE is_active ORDER BY created_at DESC`)
}

// Update overwrites the mutable fields of p.
func (s *PostgreSQLStore) Update(ctx context.Context, p *Project) error {
	meta, err := pgMetadata(p.Metadata)
	if err != nil {
		return err
	}
	tag, err := s.pool.Exec(ctx, `
		UPDATE projects SET name = $1, api_key_hash = $2, api_key_prefix = $3, is_active = $4,
			rate_limit_per_minute = $5, updated_at = $6, metadata = $7
		WHERE id::text = $8
	`, p.Name, p.APIKeyHash, p.APIKeyPrefix, p.IsActive, p.RateLimitPerMinute, p.UpdatedAt.UTC(), meta, p.ID)
	if err != nil {
		return fmt.Errorf("failed to update project: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *PostgreSQLStore) query(ctx context.Context, query string) ([]Project, error) {
	rows, err := s.pool.Query(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query projects: %w", err)
	}
	defer rows.Close()

	var out []Project
	for rows.Next() {
		p, err := scanPGProject(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

func scanPGProject(row pgx.Row) (*Project, error) {
	var (
		p    Project
		meta []byte
	)
	err := row.Scan(&p.ID, &p.Name, &p.APIKeyHash, &p.APIKeyPrefix, &p.IsActive, &p.RateLimitPerMinute,
		&p.CreatedAt, &p.UpdatedAt, &meta)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, err
		}
		return nil, fmt.Errorf("failed to scan project: %w", err)
	}
	if len(meta) > 0 {
		if err := json.Unmarshal(meta, &p.Metadata); err != nil {
			slog.Warn("ignoring malformed project metadata", "project_id", p.ID, "error", err)
		}
	}
	return &p, nil
}

func pgMetadata(meta map[string]any) ([]byte, error) {
	if len(meta) == 0 {
		return nil, nil
	}
	b, err := json.Marshal(meta)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal project metadata: %w", err)
	}
	return b, nil
}
