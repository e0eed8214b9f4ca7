// Package daemon coordinates the long-running vidsentry process.
//
// It wires configuration, the relational store, the persistence coordinator,
// the ingestion orchestrator, the worker pool, and the directory watch into a
// single lifecycle with flock-based locking to prevent multiple instances.
// On start it runs preflight checks (failures are logged, not fatal),
// optionally reconciles the store against the artifact directory, and serves
// the HTTP API when a bind address is configured.
//
// Keep orchestration logic here: per-video work lives in ingest and workflow
// while the daemon focuses on startup, shutdown, and status aggregation.
package daemon
