package metrics

// InitializeMetrics pre-populates all expected label combinations so that
// every metric is exported from the first Prometheus scrape.
// Call this once at startup after metric registration.
func InitializeMetrics() {
	// --- Filesystem operation metrics (per volume × operation) ---
	volumes := []string{"assets", "cache", "catalog", "unknown"}
	fsOps := []string{"read", "write", "stat", "readdir"}

	for _, vol := range volumes {
		for _, op := range fsOps {
			FilesystemOperationDuration.WithLabelValues(vol, op)
			FilesystemOperationErrors.WithLabelValues(vol, op)
		}
	}

	// --- Filesystem retry metrics (per retry-operation × volume) ---
	retryOps := []string{"stat", "open", "readdir"}

	for _, op := range retryOps {
		for _, vol := range volumes {
			FilesystemRetryAttempts.WithLabelValues(op, vol)
			FilesystemRetrySuccess.WithLabelValues(op, vol)
			FilesystemRetryFailures.WithLabelValues(op, vol)
			FilesystemStaleErrors.WithLabelValues(op, vol)
			FilesystemRetryDuration.WithLabelValues(op, vol)
		}
	}

	// --- Thumbnail generation by type × status ---
	for _, t := range []string{"image", "placeholder"} {
		ThumbnailGenerationDuration.WithLabelValues(t)
		ThumbnailGenerationsTotal.WithLabelValues(t, "success")
		ThumbnailGenerationsTotal.WithLabelValues(t, "error")
		ThumbnailGenerationsTotal.WithLabelValues(t, "error_not_found")
		ThumbnailGenerationsTotal.WithLabelValues(t, "error_decode")
		ThumbnailGenerationsTotal.WithLabelValues(t, "error_encode")
	}

	// --- Scan classification counters ---
	for _, class := range []string{"new", "updated", "skipped"} {
		ScanFilesTotal.WithLabelValues(class)
	}

	// --- Warmer status counters ---
	for _, status := range []string{"generated", "skipped", "failed"} {
		WarmerFilesTotal.WithLabelValues(status)
	}

	// --- Catalog query operations ---
	for _, op := range []string{"initialize_schema", "upsert_asset", "upsert_batch",
		"get_asset_by_path", "get_asset_by_id", "get_assets_in_folder", "search_assets",
		"delete_asset", "delete_folder", "sweep_missing", "get_config", "set_config",
		"statistics", "begin_transaction"} {
		DBQueryTotal.WithLabelValues(op, "success")
		DBQueryTotal.WithLabelValues(op, "error")
		DBQueryDuration.WithLabelValues(op)
	}

	for _, t := range []string{"commit", "rollback"} {
		DBTransactionDuration.WithLabelValues(t)
	}
}
