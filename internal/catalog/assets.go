package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"asset-browser/internal/logging"
	"asset-browser/internal/metrics"
)

// assetColumns is the column list every asset SELECT uses.
const assetColumns = "id, file_path, file_name, thumb_path, file_size, mtime, comment, tags"

// upsertQuery applies the sticky merge for comment/tags: an empty incoming
// value defers to the stored one, a non-empty incoming value wins.
const upsertQuery = `
INSERT INTO assets (file_path, file_name, thumb_path, file_size, mtime, comment, tags)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(file_path) DO UPDATE SET
	file_name = excluded.file_name,
	thumb_path = excluded.thumb_path,
	file_size = excluded.file_size,
	mtime = excluded.mtime,
	comment = CASE WHEN excluded.comment != '' THEN excluded.comment ELSE assets.comment END,
	tags = CASE WHEN excluded.tags != '' THEN excluded.tags ELSE assets.tags END
`

func scanAsset(row interface{ Scan(...any) error }) (*AssetRecord, error) {
	var a AssetRecord
	err := row.Scan(&a.ID, &a.FilePath, &a.FileName, &a.ThumbPath,
		&a.FileSize, &a.Mtime, &a.Comment, &a.Tags)
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// folderPrefix canonicalizes folderPath and appends a separator so that a
// LIKE prefix match on "/a/b" never picks up "/a/bc/...".
func folderPrefix(folderPath string) string {
	prefix := filepath.Clean(folderPath)
	if !strings.HasSuffix(prefix, string(filepath.Separator)) {
		prefix += string(filepath.Separator)
	}
	return prefix
}

// UpsertAsset inserts the record or, when file_path already exists, updates
// it in place applying the sticky comment/tags merge. Returns the row id,
// which is stable across repeated upserts of the same path.
func (c *Catalog) UpsertAsset(ctx context.Context, record *AssetRecord) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_asset", start, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = c.db.ExecContext(ctx, upsertQuery,
		record.FilePath, record.FileName, record.ThumbPath,
		record.FileSize, record.Mtime, record.Comment, record.Tags)
	if err != nil {
		return 0, fmt.Errorf("failed to upsert asset %s: %w", record.FilePath, err)
	}

	// LastInsertId is not meaningful on the update arm of the conflict
	// clause, so resolve the id by path.
	var id int64
	err = c.db.QueryRowContext(ctx, "SELECT id FROM assets WHERE file_path = ?", record.FilePath).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve asset id for %s: %w", record.FilePath, err)
	}
	return id, nil
}

// UpsertAssetTx is the transaction-scoped form of UpsertAsset, used by
// batch commits. The transaction's lifecycle controls the operation.
// Returns the row id, resolved by path inside the same transaction.
func (c *Catalog) UpsertAssetTx(tx *sql.Tx, record *AssetRecord) (int64, error) {
	result, err := tx.ExecContext(context.Background(), upsertQuery,
		record.FilePath, record.FileName, record.ThumbPath,
		record.FileSize, record.Mtime, record.Comment, record.Tags)
	if err != nil {
		return 0, err
	}
	if rows, _ := result.RowsAffected(); rows > 0 {
		metrics.DBRowsAffected.WithLabelValues("upsert_asset").Observe(float64(rows))
	}

	var id int64
	err = tx.QueryRowContext(context.Background(),
		"SELECT id FROM assets WHERE file_path = ?", record.FilePath).Scan(&id)
	return id, err
}

// UpsertAssetsBatch applies UpsertAsset semantics to all records in one
// all-or-nothing transaction. On any row failure the whole batch rolls
// back and no rows are applied. Returns the number of rows applied.
func (c *Catalog) UpsertAssetsBatch(ctx context.Context, records []AssetRecord) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_batch", start, err) }()

	tx, err := c.BeginBatch()
	if err != nil {
		return 0, fmt.Errorf("failed to begin batch transaction: %w", err)
	}

	for i := range records {
		if _, err = c.UpsertAssetTx(tx, &records[i]); err != nil {
			err = fmt.Errorf("failed to upsert %s: %w", records[i].FilePath, err)
			if endErr := c.EndBatch(tx, err); endErr != nil {
				logging.Error("failed to roll back batch: %v", endErr)
			}
			return 0, err
		}
	}

	if err = c.EndBatch(tx, nil); err != nil {
		return 0, fmt.Errorf("failed to commit batch: %w", err)
	}
	return len(records), nil
}

// InsertAsset inserts the record only if file_path is not already cataloged.
// Returns the new row id, or 0 when the path already existed.
func (c *Catalog) InsertAsset(ctx context.Context, record *AssetRecord) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_asset", start, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := c.db.ExecContext(ctx, `
		INSERT OR IGNORE INTO assets (file_path, file_name, thumb_path, file_size, mtime, comment, tags)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, record.FilePath, record.FileName, record.ThumbPath,
		record.FileSize, record.Mtime, record.Comment, record.Tags)
	if err != nil {
		return 0, fmt.Errorf("failed to insert asset %s: %w", record.FilePath, err)
	}

	rows, err := result.RowsAffected()
	if err != nil || rows == 0 {
		return 0, err
	}
	return result.LastInsertId()
}

// UpdateAsset refreshes the scan-owned fields (name, thumb, size, mtime)
// of an existing record by path, without touching comment/tags.
// Returns false when the path is not cataloged.
func (c *Catalog) UpdateAsset(ctx context.Context, record *AssetRecord) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_asset", start, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := c.db.ExecContext(ctx, `
		UPDATE assets SET file_name = ?, thumb_path = ?, file_size = ?, mtime = ?
		WHERE file_path = ?
	`, record.FileName, record.ThumbPath, record.FileSize, record.Mtime, record.FilePath)
	if err != nil {
		return false, fmt.Errorf("failed to update asset %s: %w", record.FilePath, err)
	}

	rows, err := result.RowsAffected()
	return rows > 0, err
}

// UpdateThumbPath points an existing record at a new thumbnail file.
// Used by the thumbnail warmer. Returns false when the path is unknown.
func (c *Catalog) UpdateThumbPath(ctx context.Context, path, thumbPath string) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_asset", start, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := c.db.ExecContext(ctx,
		"UPDATE assets SET thumb_path = ? WHERE file_path = ?", thumbPath, path)
	if err != nil {
		return false, fmt.Errorf("failed to update thumbnail for %s: %w", path, err)
	}

	rows, err := result.RowsAffected()
	return rows > 0, err
}

// UpdateMetadata applies user edits to the sticky fields. A nil pointer
// leaves that field untouched; an empty non-nil value clears it (user
// edits, unlike reconciliation upserts, may clear sticky fields).
// Returns false when the path is not cataloged.
func (c *Catalog) UpdateMetadata(ctx context.Context, path string, comment, tags *string) (bool, error) {
	if comment == nil && tags == nil {
		return false, nil
	}

	start := time.Now()
	var err error
	defer func() { recordQuery("upsert_asset", start, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	setClauses := make([]string, 0, 2)
	args := make([]any, 0, 3)
	if comment != nil {
		setClauses = append(setClauses, "comment = ?")
		args = append(args, *comment)
	}
	if tags != nil {
		setClauses = append(setClauses, "tags = ?")
		args = append(args, *tags)
	}
	args = append(args, path)

	result, err := c.db.ExecContext(ctx,
		"UPDATE assets SET "+strings.Join(setClauses, ", ")+" WHERE file_path = ?", args...)
	if err != nil {
		return false, fmt.Errorf("failed to update metadata for %s: %w", path, err)
	}

	rows, err := result.RowsAffected()
	return rows > 0, err
}

// GetAssetByPath retrieves a single asset by its canonical path.
// Returns sql.ErrNoRows when the path is not cataloged.
func (c *Catalog) GetAssetByPath(ctx context.Context, path string) (*AssetRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_asset_by_path", start, err) }()

	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	record, err := scanAsset(c.db.QueryRowContext(ctx,
		"SELECT "+assetColumns+" FROM assets WHERE file_path = ?", path))
	return record, err
}

// GetAssetByID retrieves a single asset by its surrogate key.
// Returns sql.ErrNoRows when the id is unknown.
func (c *Catalog) GetAssetByID(ctx context.Context, id int64) (*AssetRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_asset_by_id", start, err) }()

	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	record, err := scanAsset(c.db.QueryRowContext(ctx,
		"SELECT "+assetColumns+" FROM assets WHERE id = ?", id))
	return record, err
}

// GetAssetsInFolder returns all assets under folderPath (the full subtree),
// ordered by file name. The prefix match is separator-bounded, so "/a/b"
// never matches "/a/bc/...". Folder-scoped store queries are always
// subtree queries; a shallow directory listing is the scan engine's
// QuickScan, which reads the filesystem directly.
func (c *Catalog) GetAssetsInFolder(ctx context.Context, folderPath string) ([]AssetRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_assets_in_folder", start, err) }()

	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx,
		"SELECT "+assetColumns+" FROM assets WHERE file_path LIKE ? ORDER BY file_name COLLATE NOCASE ASC",
		folderPrefix(folderPath)+"%")
	if err != nil {
		return nil, fmt.Errorf("folder query failed: %w", err)
	}
	defer rows.Close()

	return collectAssets(rows)
}

// GetAllAssets returns assets ordered most-recently-modified first.
// limit <= 0 means no limit; offset applies only when limit is set.
func (c *Catalog) GetAllAssets(ctx context.Context, limit, offset int) ([]AssetRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_assets_in_folder", start, err) }()

	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	query := "SELECT " + assetColumns + " FROM assets ORDER BY mtime DESC"
	args := []any{}
	if limit > 0 {
		query += " LIMIT ? OFFSET ?"
		args = append(args, limit, offset)
	}

	rows, err := c.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("asset listing failed: %w", err)
	}
	defer rows.Close()

	return collectAssets(rows)
}

// SearchAssets returns up to limit assets whose file name contains keyword
// (case-insensitive), most-recently-modified first.
func (c *Catalog) SearchAssets(ctx context.Context, keyword string, limit int) ([]AssetRecord, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("search_assets", start, err) }()

	if limit <= 0 {
		limit = 100
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	rows, err := c.db.QueryContext(ctx,
		"SELECT "+assetColumns+" FROM assets WHERE file_name LIKE ? COLLATE NOCASE ORDER BY mtime DESC LIMIT ?",
		"%"+keyword+"%", limit)
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}
	defer rows.Close()

	return collectAssets(rows)
}

func collectAssets(rows *sql.Rows) ([]AssetRecord, error) {
	var assets []AssetRecord
	for rows.Next() {
		record, err := scanAsset(rows)
		if err != nil {
			return nil, fmt.Errorf("scan failed: %w", err)
		}
		assets = append(assets, *record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return assets, nil
}

// DeleteAssetByPath removes one asset by path. Returns whether a row was
// found and removed.
func (c *Catalog) DeleteAssetByPath(ctx context.Context, path string) (bool, error) {
	return c.deleteAsset(ctx, "file_path = ?", path)
}

// DeleteAssetByID removes one asset by id. Returns whether a row was
// found and removed.
func (c *Catalog) DeleteAssetByID(ctx context.Context, id int64) (bool, error) {
	return c.deleteAsset(ctx, "id = ?", id)
}

func (c *Catalog) deleteAsset(ctx context.Context, where string, arg any) (bool, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_asset", start, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := c.db.ExecContext(ctx, "DELETE FROM assets WHERE "+where, arg)
	if err != nil {
		return false, fmt.Errorf("failed to delete asset: %w", err)
	}

	rows, err := result.RowsAffected()
	return rows > 0, err
}

// DeleteAssetsInFolder removes every asset under folderPath (subtree,
// separator-bounded). Returns the number of rows removed.
func (c *Catalog) DeleteAssetsInFolder(ctx context.Context, folderPath string) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_folder", start, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	result, err := c.db.ExecContext(ctx,
		"DELETE FROM assets WHERE file_path LIKE ?", folderPrefix(folderPath)+"%")
	if err != nil {
		return 0, fmt.Errorf("failed to delete folder %s: %w", folderPath, err)
	}

	rows, err := result.RowsAffected()
	if err == nil && rows > 0 {
		metrics.DBRowsAffected.WithLabelValues("delete_folder").Observe(float64(rows))
	}
	return rows, err
}

// SweepMissing deletes every record whose backing file no longer exists on
// disk and returns the number removed. This stats every cataloged path, so
// it is a maintenance operation, not something for the scan hot path.
func (c *Catalog) SweepMissing(ctx context.Context) (int64, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("sweep_missing", start, err) }()

	type entry struct {
		id   int64
		path string
	}

	c.mu.RLock()
	rows, err := c.db.QueryContext(ctx, "SELECT id, file_path FROM assets")
	if err != nil {
		c.mu.RUnlock()
		return 0, fmt.Errorf("failed to enumerate assets: %w", err)
	}

	var entries []entry
	for rows.Next() {
		var e entry
		if scanErr := rows.Scan(&e.id, &e.path); scanErr != nil {
			rows.Close()
			c.mu.RUnlock()
			err = scanErr
			return 0, fmt.Errorf("scan failed: %w", scanErr)
		}
		entries = append(entries, e)
	}
	err = rows.Err()
	rows.Close()
	c.mu.RUnlock()
	if err != nil {
		return 0, fmt.Errorf("rows error: %w", err)
	}

	var missing []int64
	for _, e := range entries {
		if ctx.Err() != nil {
			err = ctx.Err()
			return 0, err
		}
		if _, statErr := os.Stat(e.path); errors.Is(statErr, os.ErrNotExist) {
			missing = append(missing, e.id)
		}
	}

	if len(missing) == 0 {
		return 0, nil
	}

	tx, err := c.BeginBatch()
	if err != nil {
		return 0, fmt.Errorf("failed to begin sweep transaction: %w", err)
	}

	// Chunked IN lists keep well under SQLite's bound-parameter limit.
	const chunkSize = 500
	var removed int64
	for i := 0; i < len(missing); i += chunkSize {
		end := i + chunkSize
		if end > len(missing) {
			end = len(missing)
		}
		chunk := missing[i:end]

		placeholders := strings.Repeat("?,", len(chunk))
		placeholders = placeholders[:len(placeholders)-1]
		args := make([]any, len(chunk))
		for j, id := range chunk {
			args[j] = id
		}

		result, execErr := tx.ExecContext(context.Background(),
			"DELETE FROM assets WHERE id IN ("+placeholders+")", args...)
		if execErr != nil {
			err = execErr
			if endErr := c.EndBatch(tx, execErr); endErr != nil {
				logging.Error("failed to roll back sweep: %v", endErr)
			}
			return 0, fmt.Errorf("sweep delete failed: %w", execErr)
		}
		if rowCount, raErr := result.RowsAffected(); raErr == nil {
			removed += rowCount
		}
	}

	if err = c.EndBatch(tx, nil); err != nil {
		return 0, fmt.Errorf("failed to commit sweep: %w", err)
	}

	if removed > 0 {
		metrics.DBRowsAffected.WithLabelValues("sweep_missing").Observe(float64(removed))
		logging.Info("Swept %d missing assets from catalog", removed)
	}
	return removed, nil
}

// AssetExists reports whether a path is cataloged.
func (c *Catalog) AssetExists(ctx context.Context, path string) (bool, error) {
	_, err := c.GetAssetByPath(ctx, path)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// GetAssetMtime returns the stored mtime for a path, or 0 when the path is
// not cataloged.
func (c *Catalog) GetAssetMtime(ctx context.Context, path string) (float64, error) {
	record, err := c.GetAssetByPath(ctx, path)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return record.Mtime, nil
}

// CountAssets returns the total number of cataloged assets.
func (c *Catalog) CountAssets(ctx context.Context) (int, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("statistics", start, err) }()

	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var count int
	err = c.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM assets").Scan(&count)
	return count, err
}
