package schema

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"schemagen/internal/types"
)

// PostgresStore keeps schemas in a single table through database/sql. The
// pgx stdlib driver is registered by the caller.
type PostgresStore struct {
	db         *sql.DB
	schemaOnce sync.Once
	schemaErr  error
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) ensureSchema(ctx context.Context) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("db is nil")
	}
	s.schemaOnce.Do(func() {
		_, s.schemaErr = s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS type_schemas (
    group_id TEXT NOT NULL,
    artifact_id TEXT NOT NULL,
    version TEXT NOT NULL,
    fqn TEXT NOT NULL,
    description TEXT NOT NULL DEFAULT '',
    schema JSONB NOT NULL,
    updated_at TIMESTAMP WITH TIME ZONE DEFAULT NOW(),
    PRIMARY KEY (group_id, artifact_id, version, fqn)
);
`)
	})
	return s.schemaErr
}

func (s *PostgresStore) Put(ctx context.Context, c types.Coordinate, ts types.TypeSchema) error {
	fqn, err := checkKey(c, ts.FullyQualifiedName)
	if err != nil {
		return err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
INSERT INTO type_schemas (group_id, artifact_id, version, fqn, description, schema, updated_at)
VALUES ($1, $2, $3, $4, $5, $6, $7)
ON CONFLICT (group_id, artifact_id, version, fqn)
DO UPDATE SET description=EXCLUDED.description, schema=EXCLUDED.schema, updated_at=EXCLUDED.updated_at
`, c.GroupID, c.ArtifactID, c.Version, fqn, ts.Description, string(ts.Schema), time.Now())
	return err
}

func (s *PostgresStore) Get(ctx context.Context, c types.Coordinate, fqn string) (types.TypeSchema, error) {
	fqn, err := checkKey(c, fqn)
	if err != nil {
		return types.TypeSchema{}, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return types.TypeSchema{}, err
	}
	ts := types.TypeSchema{FullyQualifiedName: fqn}
	var raw string
	err = s.db.QueryRowContext(ctx, `
SELECT description, schema::text FROM type_schemas
WHERE group_id=$1 AND artifact_id=$2 AND version=$3 AND fqn=$4
`, c.GroupID, c.ArtifactID, c.Version, fqn).Scan(&ts.Description, &raw)
	if errors.Is(err, sql.ErrNoRows) {
		return types.TypeSchema{}, ErrNotFound
	}
	if err != nil {
		return types.TypeSchema{}, err
	}
	ts.Schema = []byte(raw)
	return ts, nil
}

func (s *PostgresStore) List(ctx context.Context, c types.Coordinate) ([]string, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := s.ensureSchema(ctx); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT fqn FROM type_schemas
WHERE group_id=$1 AND artifact_id=$2 AND version=$3
ORDER BY fqn
`, c.GroupID, c.ArtifactID, c.Version)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var names []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		names = append(names, n)
	}
	return names, rows.Err()
}
