// Package ffprobe runs ffprobe and decodes the video stream metadata the
// decoder needs: dimensions, average frame rate, and the container's frame
// count hint.
//
// The decoder uses PrimaryVideo to size raw frame reads before starting ffmpeg.
package ffprobe
