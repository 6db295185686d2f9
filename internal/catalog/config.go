package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"os"
	"time"

	"asset-browser/internal/logging"
)

const lastRootFolderKey = "last_root_folder"

// SetConfig stores a key/value pair, replacing any existing value.
func (c *Catalog) SetConfig(ctx context.Context, key, value string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("set_config", start, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = c.db.ExecContext(ctx,
		"INSERT OR REPLACE INTO config (key, value) VALUES (?, ?)", key, value)
	if err != nil {
		return fmt.Errorf("failed to set config %s: %w", key, err)
	}
	return nil
}

// GetConfig returns the stored value for key, or defaultValue when the key
// has never been set.
func (c *Catalog) GetConfig(ctx context.Context, key, defaultValue string) (string, error) {
	start := time.Now()
	var err error
	defer func() { recordQuery("get_config", start, err) }()

	c.mu.RLock()
	defer c.mu.RUnlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	var value string
	err = c.db.QueryRowContext(ctx,
		"SELECT value FROM config WHERE key = ?", key).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		err = nil
		return defaultValue, nil
	}
	if err != nil {
		return "", fmt.Errorf("failed to get config %s: %w", key, err)
	}
	return value, nil
}

// DeleteConfig removes a key. Deleting a missing key is not an error.
func (c *Catalog) DeleteConfig(ctx context.Context, key string) error {
	start := time.Now()
	var err error
	defer func() { recordQuery("delete_config", start, err) }()

	c.mu.Lock()
	defer c.mu.Unlock()

	ctx, cancel := context.WithTimeout(ctx, defaultTimeout)
	defer cancel()

	_, err = c.db.ExecContext(ctx, "DELETE FROM config WHERE key = ?", key)
	if err != nil {
		return fmt.Errorf("failed to delete config %s: %w", key, err)
	}
	return nil
}

// SaveLastRootFolder remembers the most recently scanned root so the next
// session can reopen it.
func (c *Catalog) SaveLastRootFolder(ctx context.Context, folder string) error {
	return c.SetConfig(ctx, lastRootFolderKey, folder)
}

// GetLastRootFolder returns the remembered root folder, or "" when none is
// stored or the stored folder no longer exists on disk.
func (c *Catalog) GetLastRootFolder(ctx context.Context) (string, error) {
	folder, err := c.GetConfig(ctx, lastRootFolderKey, "")
	if err != nil || folder == "" {
		return "", err
	}

	info, statErr := os.Stat(folder)
	if statErr != nil || !info.IsDir() {
		logging.Debug("Stored root folder %s is gone, ignoring", folder)
		return "", nil
	}
	return folder, nil
}
