// Package detection defines the per-frame detection data model, the temporal
// run-length filter that suppresses short-lived detections, and the per-video
// summary derived from the filtered frames.
//
// Everything here is pure: no I/O, no clocks, no shared state. Filter and
// Summarize depend only on frame indices and class names, never on the order
// detections appear within a frame.
package detection
