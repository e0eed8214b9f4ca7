// Package services defines shared utilities consumed by the ingestion
// pipeline and its external integrations.
//
// Key responsibilities:
//   - Context helpers that stamp video filenames, stage names, and correlation
//     identifiers for logging.
//   - Structured error markers plus the Wrap helper so failures from ffmpeg,
//     the detector, or the store can be classified uniformly.
package services
