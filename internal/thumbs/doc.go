// Package thumbs owns the thumbnail cache directory. Derived JPEGs are
// content-addressed by the MD5 hex of the source path, refreshed when the
// source mtime moves past the cached file's, and written atomically so
// readers never observe a partial thumbnail. For model formats with no
// sibling image it renders name-stable placeholder cards, one per
// extension.
package thumbs
