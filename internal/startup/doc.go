// Package startup loads application configuration (optional TOML file,
// environment overrides), validates and prepares the data and cache
// directories, and owns the banner-style startup and shutdown logging.
package startup
