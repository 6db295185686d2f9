// Package handlers implements the serve-mode HTTP API: asset listing and
// search, thumbnail delivery, metadata edits, scan control, statistics,
// cache maintenance, and health probes.
package handlers
