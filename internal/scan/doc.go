// Package scan implements the folder scan engine: a three-phase
// walk/reconcile/commit pass that brings the catalog in line with what is
// on disk, an instant read-only quick scan for directory previews, and a
// parallel thumbnail warmer. At most one reconciling scan runs at a time;
// cancellation is cooperative and a cancelled scan still commits the work
// it accumulated.
package scan
