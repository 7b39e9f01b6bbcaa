// Package dedupe tracks which message IDs a sync run has already handled,
// so records repeated across page boundaries are skipped without a database
// round trip. The set is bounded; an evicted ID simply falls back to the
// store lookup.
package dedupe
