// Package api defines wire-format types, converters, and the chi router for
// the daemon's HTTP API. It translates store rows and workflow diagnostics
// into transport-friendly DTOs so clients never couple to internal types.
//
// # Routes
//
//	GET    /api/status               daemon, workflow, store, and dependency state
//	GET    /api/videos               every claimed video with its summary
//	GET    /api/videos/{filename}    one video plus artifact path and frame counts
//	DELETE /api/videos/{filename}    same as a source-file removal
//
// # Design Notes
//
// DTOs use camelCase JSON tags. Timestamps use RFC3339 with milliseconds.
// A video without a detection row reports status "pending"; it is either in
// flight or a leftover that reconciliation will remove.
package api
