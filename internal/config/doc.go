// Package config loads, normalizes, and validates vidsentry configuration data.
//
// It supplies repository defaults, expands user paths (including tilde
// shortcuts), reads TOML files, and honours environment overrides such as
// VIDSENTRY_WATCH_DIR and VIDSENTRY_DETECTOR_ENDPOINT. The Config type
// centralizes every knob the daemon and CLI need so the watched directory,
// detection thresholds, and filter parameters are discovered in one pass.
//
// Always obtain settings through this package so downstream code receives
// sanitized paths, canonical log formats, and clear validation errors.
package config
