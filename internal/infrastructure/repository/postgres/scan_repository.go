package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sort"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/kirillkom/docscan/internal/core/domain"
)

const (
	schemaLockKey    int64 = 2026021001
	scanOrderLockKey int64 = 2026021002
)

// ScanRepository stores scans, captures and recognized items. Mutations that
// touch sibling positions run in a transaction holding a lock on the parent
// row, and renumber the siblings so positions stay contiguous from zero.
type ScanRepository struct {
	db *sql.DB
}

func NewScanRepository(db *sql.DB) *ScanRepository {
	return &ScanRepository{db: db}
}

func OpenDB(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("sql open: %w", err)
	}
	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(10)
	db.SetConnMaxLifetime(30 * time.Minute)

	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("db ping: %w", err)
	}
	return db, nil
}

func (r *ScanRepository) EnsureSchema(ctx context.Context) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		// Serialize bootstrap DDL across api/worker startups.
		if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, schemaLockKey); err != nil {
			return fmt.Errorf("acquire schema lock: %w", err)
		}

		const query = `
CREATE TABLE IF NOT EXISTS scans (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	position INTEGER NOT NULL,
	favorite BOOLEAN NOT NULL DEFAULT FALSE,
	live BOOLEAN NOT NULL DEFAULT FALSE,
	latitude DOUBLE PRECISION,
	longitude DOUBLE PRECISION,
	created_at TIMESTAMPTZ NOT NULL,
	updated_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS captures (
	id TEXT PRIMARY KEY,
	scan_id TEXT NOT NULL REFERENCES scans(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	image_key TEXT NOT NULL DEFAULT '',
	thumbnail_key TEXT NOT NULL DEFAULT '',
	created_at TIMESTAMPTZ NOT NULL
);

CREATE TABLE IF NOT EXISTS recognized_items (
	id TEXT PRIMARY KEY,
	capture_id TEXT NOT NULL REFERENCES captures(id) ON DELETE CASCADE,
	position INTEGER NOT NULL,
	transcript TEXT NOT NULL,
	is_barcode BOOLEAN NOT NULL DEFAULT FALSE,
	observation_id TEXT NOT NULL DEFAULT '',
	recognized_at TIMESTAMPTZ NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_scans_position ON scans(position);
CREATE INDEX IF NOT EXISTS idx_captures_scan_position ON captures(scan_id, position);
CREATE INDEX IF NOT EXISTS idx_recognized_items_capture_position ON recognized_items(capture_id, position);
`
		if _, err := tx.ExecContext(ctx, query); err != nil {
			return fmt.Errorf("execute schema ddl: %w", err)
		}
		return nil
	})
}

func (r *ScanRepository) CreateScan(ctx context.Context, scan *domain.Scan) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockScanOrder(ctx, tx); err != nil {
			return err
		}
		err := tx.QueryRowContext(ctx, `
INSERT INTO scans (id, title, position, favorite, live, latitude, longitude, created_at, updated_at)
SELECT $1, $2, COALESCE(MAX(position) + 1, 0), $3, $4, $5, $6, $7, $8 FROM scans
RETURNING position
`, scan.ID, scan.Title, scan.Favorite, scan.Live, scan.Latitude, scan.Longitude, scan.CreatedAt, scan.UpdatedAt).
			Scan(&scan.Position)
		if err != nil {
			return fmt.Errorf("insert scan: %w", err)
		}
		return nil
	})
}

func (r *ScanRepository) GetScan(ctx context.Context, id string) (*domain.Scan, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, title, position, favorite, live, latitude, longitude, created_at, updated_at
FROM scans
WHERE id = $1
`, id)
	scan, err := scanScan(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get scan", fmt.Errorf("scan %s", id))
		}
		return nil, fmt.Errorf("get scan: %w", err)
	}

	captures, err := r.queryCaptures(ctx, `
SELECT id, scan_id, position, image_key, thumbnail_key, created_at
FROM captures
WHERE scan_id = $1
ORDER BY position
`, id)
	if err != nil {
		return nil, err
	}
	items, err := r.queryItems(ctx, `
SELECT i.id, i.capture_id, i.position, i.transcript, i.is_barcode, i.observation_id, i.recognized_at
FROM recognized_items i
JOIN captures c ON c.id = i.capture_id
WHERE c.scan_id = $1
ORDER BY c.position, i.position
`, id)
	if err != nil {
		return nil, err
	}

	scan.Captures = attachItems(captures, items)
	return &scan, nil
}

// ListScans loads the whole library in three queries and assembles the tree
// in memory.
func (r *ScanRepository) ListScans(ctx context.Context) ([]domain.Scan, error) {
	rows, err := r.db.QueryContext(ctx, `
SELECT id, title, position, favorite, live, latitude, longitude, created_at, updated_at
FROM scans
ORDER BY position
`)
	if err != nil {
		return nil, fmt.Errorf("list scans: %w", err)
	}
	defer rows.Close()

	scans := make([]domain.Scan, 0)
	for rows.Next() {
		scan, err := scanScan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan scan row: %w", err)
		}
		scans = append(scans, scan)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate scans: %w", err)
	}
	if len(scans) == 0 {
		return scans, nil
	}

	captures, err := r.queryCaptures(ctx, `
SELECT id, scan_id, position, image_key, thumbnail_key, created_at
FROM captures
ORDER BY scan_id, position
`)
	if err != nil {
		return nil, err
	}
	items, err := r.queryItems(ctx, `
SELECT id, capture_id, position, transcript, is_barcode, observation_id, recognized_at
FROM recognized_items
ORDER BY capture_id, position
`)
	if err != nil {
		return nil, err
	}

	byScan := make(map[string][]domain.Capture, len(scans))
	for _, capture := range attachItems(captures, items) {
		byScan[capture.ScanID] = append(byScan[capture.ScanID], capture)
	}
	for i := range scans {
		scans[i].Captures = byScan[scans[i].ID]
		if scans[i].Captures == nil {
			scans[i].Captures = []domain.Capture{}
		}
	}
	return scans, nil
}

func (r *ScanRepository) UpdateScan(ctx context.Context, scan *domain.Scan) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE scans
SET title = $2, favorite = $3, updated_at = $4
WHERE id = $1
`, scan.ID, scan.Title, scan.Favorite, scan.UpdatedAt)
	if err != nil {
		return fmt.Errorf("update scan: %w", err)
	}
	return expectAffected(result, "update scan", "scan", scan.ID)
}

func (r *ScanRepository) DeleteScan(ctx context.Context, id string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockScanOrder(ctx, tx); err != nil {
			return err
		}
		result, err := tx.ExecContext(ctx, `DELETE FROM scans WHERE id = $1`, id)
		if err != nil {
			return fmt.Errorf("delete scan: %w", err)
		}
		if err := expectAffected(result, "delete scan", "scan", id); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, renumberScansQuery); err != nil {
			return fmt.Errorf("renumber scans: %w", err)
		}
		return nil
	})
}

func (r *ScanRepository) ReorderScans(ctx context.Context, orderedIDs []string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockScanOrder(ctx, tx); err != nil {
			return err
		}
		for position, id := range orderedIDs {
			result, err := tx.ExecContext(ctx, `UPDATE scans SET position = $2 WHERE id = $1`, id, position)
			if err != nil {
				return fmt.Errorf("reorder scans: %w", err)
			}
			if err := expectAffected(result, "reorder scans", "scan", id); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *ScanRepository) CreateCapture(ctx context.Context, capture *domain.Capture) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockRow(ctx, tx, "scans", capture.ScanID); err != nil {
			return err
		}
		err := tx.QueryRowContext(ctx, `
INSERT INTO captures (id, scan_id, position, image_key, thumbnail_key, created_at)
SELECT $1, $2, COALESCE(MAX(position) + 1, 0), $3, $4, $5 FROM captures WHERE scan_id = $2
RETURNING position
`, capture.ID, capture.ScanID, capture.ImageKey, capture.ThumbnailKey, capture.CreatedAt).
			Scan(&capture.Position)
		if err != nil {
			return fmt.Errorf("insert capture: %w", err)
		}
		return nil
	})
}

func (r *ScanRepository) GetCapture(ctx context.Context, id string) (*domain.Capture, error) {
	var capture domain.Capture
	err := r.db.QueryRowContext(ctx, `
SELECT id, scan_id, position, image_key, thumbnail_key, created_at
FROM captures
WHERE id = $1
`, id).Scan(&capture.ID, &capture.ScanID, &capture.Position, &capture.ImageKey, &capture.ThumbnailKey, &capture.CreatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get capture", fmt.Errorf("capture %s", id))
		}
		return nil, fmt.Errorf("get capture: %w", err)
	}

	items, err := r.queryItems(ctx, `
SELECT id, capture_id, position, transcript, is_barcode, observation_id, recognized_at
FROM recognized_items
WHERE capture_id = $1
ORDER BY position
`, id)
	if err != nil {
		return nil, err
	}
	capture.Items = items
	return &capture, nil
}

func (r *ScanRepository) SetCaptureImage(ctx context.Context, id, imageKey, thumbnailKey string) error {
	result, err := r.db.ExecContext(ctx, `
UPDATE captures
SET image_key = $2, thumbnail_key = $3
WHERE id = $1
`, id, imageKey, thumbnailKey)
	if err != nil {
		return fmt.Errorf("set capture image: %w", err)
	}
	return expectAffected(result, "set capture image", "capture", id)
}

func (r *ScanRepository) DeleteCapture(ctx context.Context, id string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		var scanID string
		err := tx.QueryRowContext(ctx, `SELECT scan_id FROM captures WHERE id = $1`, id).Scan(&scanID)
		if err != nil {
			if errors.Is(err, sql.ErrNoRows) {
				return domain.WrapError(domain.ErrNotFound, "delete capture", fmt.Errorf("capture %s", id))
			}
			return fmt.Errorf("lookup capture: %w", err)
		}
		if err := lockRow(ctx, tx, "scans", scanID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM captures WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete capture: %w", err)
		}
		if _, err := tx.ExecContext(ctx, renumberCapturesQuery, scanID); err != nil {
			return fmt.Errorf("renumber captures: %w", err)
		}
		return nil
	})
}

func (r *ScanRepository) ReorderCaptures(ctx context.Context, scanID string, orderedIDs []string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockRow(ctx, tx, "scans", scanID); err != nil {
			return err
		}
		for position, id := range orderedIDs {
			result, err := tx.ExecContext(ctx, `UPDATE captures SET position = $3 WHERE id = $1 AND scan_id = $2`, id, scanID, position)
			if err != nil {
				return fmt.Errorf("reorder captures: %w", err)
			}
			if err := expectAffected(result, "reorder captures", "capture", id); err != nil {
				return err
			}
		}
		return nil
	})
}

func (r *ScanRepository) AddItem(ctx context.Context, item *domain.RecognizedItem) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockRow(ctx, tx, "captures", item.CaptureID); err != nil {
			return err
		}
		err := tx.QueryRowContext(ctx, `
INSERT INTO recognized_items (id, capture_id, position, transcript, is_barcode, observation_id, recognized_at)
SELECT $1, $2, COALESCE(MAX(position) + 1, 0), $3, $4, $5, $6 FROM recognized_items WHERE capture_id = $2
RETURNING position
`, item.ID, item.CaptureID, item.Transcript, item.IsBarcode, item.ObservationID, item.RecognizedAt).
			Scan(&item.Position)
		if err != nil {
			return fmt.Errorf("insert recognized item: %w", err)
		}
		return nil
	})
}

func (r *ScanRepository) GetItem(ctx context.Context, id string) (*domain.RecognizedItem, error) {
	row := r.db.QueryRowContext(ctx, `
SELECT id, capture_id, position, transcript, is_barcode, observation_id, recognized_at
FROM recognized_items
WHERE id = $1
`, id)
	item, err := scanItem(row)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.WrapError(domain.ErrNotFound, "get item", fmt.Errorf("item %s", id))
		}
		return nil, fmt.Errorf("get item: %w", err)
	}
	return &item, nil
}

func (r *ScanRepository) UpdateItemTranscript(ctx context.Context, id, transcript string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE recognized_items SET transcript = $2 WHERE id = $1`, id, transcript)
	if err != nil {
		return fmt.Errorf("update item transcript: %w", err)
	}
	return expectAffected(result, "update item", "item", id)
}

func (r *ScanRepository) DeleteItem(ctx context.Context, id string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		captureID, err := itemCapture(ctx, tx, id, "delete item")
		if err != nil {
			return err
		}
		if err := lockRow(ctx, tx, "captures", captureID); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM recognized_items WHERE id = $1`, id); err != nil {
			return fmt.Errorf("delete item: %w", err)
		}
		if _, err := tx.ExecContext(ctx, renumberItemsQuery, captureID); err != nil {
			return fmt.Errorf("renumber items: %w", err)
		}
		return nil
	})
}

// MoveItems appends the items, in the given order, to the target capture and
// renumbers every capture they left.
func (r *ScanRepository) MoveItems(ctx context.Context, itemIDs []string, toCaptureID string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		touched := map[string]struct{}{toCaptureID: {}}
		for _, id := range itemIDs {
			captureID, err := itemCapture(ctx, tx, id, "move items")
			if err != nil {
				return err
			}
			touched[captureID] = struct{}{}
		}

		// lock in a stable order so concurrent moves cannot deadlock
		locked := make([]string, 0, len(touched))
		for id := range touched {
			locked = append(locked, id)
		}
		sort.Strings(locked)
		for _, id := range locked {
			if err := lockRow(ctx, tx, "captures", id); err != nil {
				return err
			}
		}

		for _, id := range itemIDs {
			_, err := tx.ExecContext(ctx, `
UPDATE recognized_items
SET capture_id = $2,
	position = (SELECT COALESCE(MAX(position) + 1, 0) FROM recognized_items WHERE capture_id = $2)
WHERE id = $1
`, id, toCaptureID)
			if err != nil {
				return fmt.Errorf("move item %s: %w", id, err)
			}
		}

		for _, id := range locked {
			if _, err := tx.ExecContext(ctx, renumberItemsQuery, id); err != nil {
				return fmt.Errorf("renumber items: %w", err)
			}
		}
		return nil
	})
}

func (r *ScanRepository) ReorderItems(ctx context.Context, captureID string, orderedIDs []string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		if err := lockRow(ctx, tx, "captures", captureID); err != nil {
			return err
		}
		for position, id := range orderedIDs {
			result, err := tx.ExecContext(ctx, `UPDATE recognized_items SET position = $3 WHERE id = $1 AND capture_id = $2`, id, captureID, position)
			if err != nil {
				return fmt.Errorf("reorder items: %w", err)
			}
			if err := expectAffected(result, "reorder items", "item", id); err != nil {
				return err
			}
		}
		return nil
	})
}

const (
	renumberScansQuery = `
UPDATE scans s
SET position = o.rn - 1
FROM (SELECT id, ROW_NUMBER() OVER (ORDER BY position, created_at) AS rn FROM scans) o
WHERE s.id = o.id AND s.position <> o.rn - 1
`
	renumberCapturesQuery = `
UPDATE captures c
SET position = o.rn - 1
FROM (SELECT id, ROW_NUMBER() OVER (ORDER BY position, created_at) AS rn FROM captures WHERE scan_id = $1) o
WHERE c.id = o.id AND c.position <> o.rn - 1
`
	renumberItemsQuery = `
UPDATE recognized_items i
SET position = o.rn - 1
FROM (SELECT id, ROW_NUMBER() OVER (ORDER BY position, recognized_at) AS rn FROM recognized_items WHERE capture_id = $1) o
WHERE i.id = o.id AND i.position <> o.rn - 1
`
)

func (r *ScanRepository) withTx(ctx context.Context, fn func(tx *sql.Tx) error) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer func() {
		_ = tx.Rollback()
	}()

	if err := fn(tx); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit tx: %w", err)
	}
	return nil
}

func lockScanOrder(ctx context.Context, tx *sql.Tx) error {
	if _, err := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, scanOrderLockKey); err != nil {
		return fmt.Errorf("acquire scan order lock: %w", err)
	}
	return nil
}

// lockRow takes a row lock on a parent so sibling positions can be computed
// without racing other writers. table is always a package constant.
func lockRow(ctx context.Context, tx *sql.Tx, table, id string) error {
	var locked string
	err := tx.QueryRowContext(ctx, `SELECT id FROM `+table+` WHERE id = $1 FOR UPDATE`, id).Scan(&locked)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return domain.WrapError(domain.ErrNotFound, "lock "+table, fmt.Errorf("%s %s", table, id))
		}
		return fmt.Errorf("lock %s: %w", table, err)
	}
	return nil
}

func itemCapture(ctx context.Context, tx *sql.Tx, itemID, op string) (string, error) {
	var captureID string
	err := tx.QueryRowContext(ctx, `SELECT capture_id FROM recognized_items WHERE id = $1`, itemID).Scan(&captureID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return "", domain.WrapError(domain.ErrNotFound, op, fmt.Errorf("item %s", itemID))
		}
		return "", fmt.Errorf("lookup item: %w", err)
	}
	return captureID, nil
}

func expectAffected(result sql.Result, op, entity, id string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s rows affected: %w", op, err)
	}
	if rows == 0 {
		return domain.WrapError(domain.ErrNotFound, op, fmt.Errorf("%s %s", entity, id))
	}
	return nil
}

func (r *ScanRepository) queryCaptures(ctx context.Context, query string, args ...any) ([]domain.Capture, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query captures: %w", err)
	}
	defer rows.Close()

	out := make([]domain.Capture, 0)
	for rows.Next() {
		var c domain.Capture
		if err := rows.Scan(&c.ID, &c.ScanID, &c.Position, &c.ImageKey, &c.ThumbnailKey, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan capture row: %w", err)
		}
		out = append(out, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate captures: %w", err)
	}
	return out, nil
}

func (r *ScanRepository) queryItems(ctx context.Context, query string, args ...any) ([]domain.RecognizedItem, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query recognized items: %w", err)
	}
	defer rows.Close()

	out := make([]domain.RecognizedItem, 0)
	for rows.Next() {
		item, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("scan item row: %w", err)
		}
		out = append(out, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate recognized items: %w", err)
	}
	return out, nil
}

// attachItems distributes items, already ordered by position, onto their
// captures.
func attachItems(captures []domain.Capture, items []domain.RecognizedItem) []domain.Capture {
	byCapture := make(map[string][]domain.RecognizedItem, len(captures))
	for _, item := range items {
		byCapture[item.CaptureID] = append(byCapture[item.CaptureID], item)
	}
	for i := range captures {
		captures[i].Items = byCapture[captures[i].ID]
		if captures[i].Items == nil {
			captures[i].Items = []domain.RecognizedItem{}
		}
	}
	return captures
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanScan(row rowScanner) (domain.Scan, error) {
	var scan domain.Scan
	err := row.Scan(
		&scan.ID,
		&scan.Title,
		&scan.Position,
		&scan.Favorite,
		&scan.Live,
		&scan.Latitude,
		&scan.Longitude,
		&scan.CreatedAt,
		&scan.UpdatedAt,
	)
	if err != nil {
		return domain.Scan{}, err
	}
	scan.Captures = []domain.Capture{}
	return scan, nil
}

func scanItem(row rowScanner) (domain.RecognizedItem, error) {
	var item domain.RecognizedItem
	err := row.Scan(
		&item.ID,
		&item.CaptureID,
		&item.Position,
		&item.Transcript,
		&item.IsBarcode,
		&item.ObservationID,
		&item.RecognizedAt,
	)
	return item, err
}
