// Package metrics declares the Prometheus collectors for the asset browser
// under the asset_browser_ namespace: HTTP, catalog store, scan engine,
// thumbnail cache, filesystem and memory instrumentation, plus a periodic
// collector that publishes catalog content statistics.
package metrics
