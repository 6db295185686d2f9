// Package memory provides GOMEMLIMIT-aware memory monitoring with
// pause/resume backpressure for the thumbnail warmer.
package memory
