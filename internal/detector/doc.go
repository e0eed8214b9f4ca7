// Package detector reaches the object-detection engine.
//
// The engine runs as a separate HTTP inference service. HTTPClient encodes
// each decoded frame as JPEG and posts it with the configured model and
// thresholds. The engine is a scarce shared resource, so callers wrap the
// client with Limited to bound how many frames are in flight at once.
package detector
