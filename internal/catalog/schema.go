package catalog

import (
	"context"
	_ "embed"
	"fmt"

	"csheet/internal/logging"
)

//go:embed schema.sql
var schemaSQL string

// schemaVersion is bumped whenever schema.sql changes. The catalog is a cache,
// so a mismatched database is rebuilt rather than migrated.
const schemaVersion = 1

func (s *Store) initSchema(ctx context.Context) error {
	var tableExists int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM sqlite_master WHERE type='table' AND name='schema_version'",
	).Scan(&tableExists)
	if err != nil {
		return fmt.Errorf("check schema_version table: %w", err)
	}
	if tableExists == 0 {
		return s.createSchema(ctx)
	}

	var version int
	if err := s.db.QueryRowContext(ctx, "SELECT version FROM schema_version LIMIT 1").Scan(&version); err != nil {
		return fmt.Errorf("read schema version: %w", err)
	}
	if version == schemaVersion {
		return nil
	}
	logging.WarnWithContext(s.logger, "catalog schema changed; rebuilding cache", "catalog_schema_rebuild",
		logging.Int("found", version),
		logging.Int("expected", schemaVersion),
		logging.String(logging.FieldImpact, "cached thumbnails and previews are regenerated on demand"),
	)
	if _, err := s.db.ExecContext(ctx, "DROP TABLE IF EXISTS shot; DROP TABLE IF EXISTS schema_version;"); err != nil {
		return fmt.Errorf("%w: drop stale tables: %v", ErrSchemaMismatch, err)
	}
	return s.createSchema(ctx)
}

func (s *Store) createSchema(ctx context.Context) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin schema tx: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, "INSERT INTO schema_version (version) VALUES (?)", schemaVersion); err != nil {
		return fmt.Errorf("record schema version: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit schema: %w", err)
	}
	return nil
}
