package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"csheet/internal/logging"
)

const itemColumns = "id, dir, name, image, preview, thumb, kind, size, mod_time, timestamp"

func scanItem(scanner interface{ Scan(dest ...any) error }) (*Item, error) {
	var (
		item      Item
		preview   sql.NullString
		thumb     sql.NullString
		kind      string
		modTime   int64
		timestamp int64
	)
	if err := scanner.Scan(
		&item.ID,
		&item.Dir,
		&item.Name,
		&item.Path,
		&preview,
		&thumb,
		&kind,
		&item.Size,
		&modTime,
		&timestamp,
	); err != nil {
		return nil, err
	}
	item.Preview = preview.String
	item.Thumb = thumb.String
	item.Kind = Kind(kind)
	item.ModTime = time.Unix(0, modTime).UTC()
	item.UpdatedAt = time.Unix(0, timestamp).UTC()
	return &item, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// Sync scans dir, records the result, drops rows for files that disappeared,
// and expires rows older than the configured expiry. It returns the items in
// sheet order.
func (s *Store) Sync(ctx context.Context, dir string, extensions []string) ([]Item, error) {
	ctx = ensureContext(ctx)
	items, err := Scan(ctx, dir, extensions)
	if err != nil {
		return nil, err
	}
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve media dir: %w", err)
	}

	stamp := time.Now().UTC().UnixNano()
	err = retryOnBusy(ctx, func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		defer func() { _ = tx.Rollback() }()

		for _, item := range items {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO shot (id, dir, name, image, kind, size, mod_time, timestamp)
                VALUES (?, ?, ?, ?, ?, ?, ?, ?)
                ON CONFLICT(id) DO UPDATE SET
                    dir = excluded.dir,
                    name = excluded.name,
                    image = excluded.image,
                    kind = excluded.kind,
                    size = excluded.size,
                    mod_time = excluded.mod_time,
                    timestamp = excluded.timestamp`,
				item.ID, absDir, item.Name, item.Path, string(item.Kind), item.Size, item.ModTime.UnixNano(), stamp,
			); err != nil {
				return fmt.Errorf("upsert %s: %w", item.Path, err)
			}
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM shot WHERE dir = ? AND timestamp < ?`, absDir, stamp); err != nil {
			return fmt.Errorf("drop vanished items: %w", err)
		}
		return tx.Commit()
	})
	if err != nil {
		return nil, fmt.Errorf("sync catalog: %w", err)
	}

	if _, err := s.Expire(ctx, time.Now()); err != nil {
		logging.WarnWithContext(s.logger, "catalog expiry failed", "catalog_expire_failed",
			logging.Error(err),
			logging.String(logging.FieldErrorHint, "delete the catalog database if this persists"),
		)
	}
	s.logger.Debug("catalog synced",
		logging.String("dir", absDir),
		logging.Int("items", len(items)),
	)
	return s.List(ctx, absDir)
}

// List returns the items recorded for dir in sheet order.
func (s *Store) List(ctx context.Context, dir string) ([]Item, error) {
	ctx = ensureContext(ctx)
	absDir, err := filepath.Abs(dir)
	if err != nil {
		return nil, fmt.Errorf("resolve media dir: %w", err)
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+itemColumns+` FROM shot WHERE dir = ? ORDER BY image`, absDir)
	if err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item: %w", err)
		}
		items = append(items, *item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate items: %w", err)
	}
	return items, nil
}

// Get fetches one item by id.
func (s *Store) Get(ctx context.Context, id string) (*Item, error) {
	ctx = ensureContext(ctx)
	row := s.db.QueryRowContext(ctx, `SELECT `+itemColumns+` FROM shot WHERE id = ?`, id)
	item, err := scanItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("get item: %w", err)
	}
	return item, nil
}

// SetThumb records the generated poster path for id.
func (s *Store) SetThumb(ctx context.Context, id, path string) error {
	return s.setColumn(ctx, "thumb", id, path)
}

// SetPreview records the generated preview path for id.
func (s *Store) SetPreview(ctx context.Context, id, path string) error {
	return s.setColumn(ctx, "preview", id, path)
}

func (s *Store) setColumn(ctx context.Context, column, id, value string) error {
	res, err := s.execWithRetry(ctx,
		`UPDATE shot SET `+column+` = ? WHERE id = ?`, nullableString(value), id)
	if err != nil {
		return fmt.Errorf("update %s: %w", column, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("update %s: %w", column, err)
	}
	if n == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return nil
}

// Expire drops rows not refreshed within the configured expiry, measured
// from now. A zero expiry disables expiry.
func (s *Store) Expire(ctx context.Context, now time.Time) (int64, error) {
	if s.expiry <= 0 {
		return 0, nil
	}
	cutoff := now.Add(-s.expiry).UTC().UnixNano()
	res, err := s.execWithRetry(ctx, `DELETE FROM shot WHERE timestamp < ?`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("expire items: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("expire items: %w", err)
	}
	if n > 0 {
		s.logger.Info("expired catalog rows", logging.Int("count", int(n)))
	}
	return n, nil
}

// Count returns the number of cached rows across all folders.
func (s *Store) Count(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ensureContext(ctx), `SELECT COUNT(1) FROM shot`).Scan(&n); err != nil {
		return 0, fmt.Errorf("count items: %w", err)
	}
	return n, nil
}
