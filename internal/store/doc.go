// Package store persists videos and their detection summaries in SQLite.
//
// Two tables back the pipeline: videos holds one row per claimed filename
// (UNIQUE, so concurrent arrivals of the same file collapse into one claim)
// and detections holds the filtered artifact JSON plus the per-class summary
// columns for each successfully processed video. Deleting a video cascades to
// its detection row through a foreign key, and DeleteVideo performs both
// deletes in one transaction so the invariant holds even when foreign keys
// are disabled on a connection.
//
// Writes go through a short busy-retry loop so the daemon and CLI can share the
// database file in WAL mode.
package store
