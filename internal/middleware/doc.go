// Package middleware provides the HTTP middleware chain for serve mode:
// request logging in W3C extended format, Prometheus request metrics with
// low-cardinality path labels, and gzip compression for JSON responses.
package middleware
