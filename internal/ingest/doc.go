// Package ingest runs one video through the detection pipeline.
//
// The Orchestrator claims the filename, decodes every frame, asks the
// detector about each one, drops detections below the confidence threshold,
// applies the temporal run-length filter, summarizes, and commits through the
// persistence coordinator. Any failure after the claim rolls it back so no
// trace of the attempt remains. A second ingestion of a recorded filename is a
// silent no-op.
package ingest
