// Package workers sizes worker pools for parallel thumbnail generation,
// respecting container CPU limits and the THUMBNAIL_WORKERS override.
package workers
