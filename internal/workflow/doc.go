// Package workflow feeds watcher events to the ingestion pipeline.
//
// The Manager holds a bounded queue between the directory watch and a pool of
// workers, so event delivery never waits on detection. Jobs for the same
// filename run strictly in arrival order: a removal queued behind an ingestion
// of that file waits for the ingestion to finish. Jobs for different files run
// concurrently up to the worker count; the detector itself is bounded
// separately. Status exposes counters for the daemon and the API.
package workflow
