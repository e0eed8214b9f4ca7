// Package decoder turns a video file into a lazy, finite sequence of RGB
// frames. The FFmpeg implementation streams raw rgb24 frames from an ffmpeg
// subprocess sized by an ffprobe inspection.
package decoder

import (
	"context"
	"image"
)

// Frame is one decoded picture. Index is 1-based in presentation order.
type Frame struct {
	Index int
	Image *image.RGBA
}

// FrameSource yields frames one at a time. Next returns io.EOF after the last
// frame. A source cannot be rewound; open the file again instead.
type FrameSource interface {
	Next() (Frame, error)
	Close() error
}

// Decoder opens video files for frame-by-frame reading.
type Decoder interface {
	Open(ctx context.Context, path string) (FrameSource, error)
}
