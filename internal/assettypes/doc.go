// Package assettypes classifies file extensions for the asset catalog:
// which extensions are 3D model formats, which sibling image formats can
// serve as thumbnails (and in what priority order), and which directory
// names are skipped during scans.
package assettypes
