// Package filesystem wraps stat, open and readdir with retry logic for
// NFS stale file handle errors. Metric recording is delegated to an
// Observer implemented by the metrics package, which keeps this package
// free of a metrics dependency.
package filesystem
