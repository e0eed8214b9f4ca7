package decoder

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"fmt"
	"image"
	"io"
	"log/slog"
	"os/exec"
	"strings"
	"sync"

	"vidsentry/internal/logging"
	"vidsentry/internal/media/ffprobe"
	"vidsentry/internal/services"
)

const stderrLimit = 4096

// FFmpeg decodes frames by piping rawvideo output from the ffmpeg binary.
type FFmpeg struct {
	ffmpegBinary  string
	ffprobeBinary string
	logger        *slog.Logger
}

// NewFFmpeg constructs a decoder using the given binaries.
func NewFFmpeg(ffmpegBinary, ffprobeBinary string, logger *slog.Logger) *FFmpeg {
	if strings.TrimSpace(ffmpegBinary) == "" {
		ffmpegBinary = "ffmpeg"
	}
	if strings.TrimSpace(ffprobeBinary) == "" {
		ffprobeBinary = "ffprobe"
	}
	return &FFmpeg{
		ffmpegBinary:  ffmpegBinary,
		ffprobeBinary: ffprobeBinary,
		logger:        logging.NewComponentLogger(logger, "decoder"),
	}
}

// Open probes path for its primary video stream and starts ffmpeg. It fails
// when the file is not a readable video.
func (d *FFmpeg) Open(ctx context.Context, path string) (FrameSource, error) {
	probe, err := ffprobe.Inspect(ctx, d.ffprobeBinary, path)
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "decoding", "ffprobe", "source is not a readable video", err)
	}
	stream, ok := probe.PrimaryVideo()
	if !ok {
		return nil, services.Wrap(services.ErrValidation, "decoding", "ffprobe", "no video stream with dimensions", nil)
	}

	args := []string{
		"-v", "error",
		"-nostdin",
		"-noautorotate",
		"-i", path,
		"-map", "0:v:0",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-",
	}
	cmd := exec.CommandContext(ctx, d.ffmpegBinary, args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "decoding", "ffmpeg", "stdout pipe", err)
	}
	stderr := &limitedBuffer{limit: stderrLimit}
	cmd.Stderr = stderr
	if err := cmd.Start(); err != nil {
		return nil, services.Wrap(services.ErrExternalTool, "decoding", "ffmpeg", "start", err)
	}

	d.logger.Debug("decoder opened",
		logging.String("path", path),
		logging.Int("width", stream.Width),
		logging.Int("height", stream.Height),
		logging.Float64("fps", stream.FramesPerSecond()),
		logging.Int64("frames_hint", stream.FrameCount()),
	)

	frameSize := stream.Width * stream.Height * 3
	return &ffmpegSource{
		cmd:    cmd,
		reader: bufio.NewReaderSize(stdout, frameSize),
		stderr: stderr,
		width:  stream.Width,
		height: stream.Height,
		buf:    make([]byte, frameSize),
	}, nil
}

type ffmpegSource struct {
	cmd    *exec.Cmd
	reader *bufio.Reader
	stderr *limitedBuffer
	width  int
	height int
	buf    []byte
	index  int

	done    bool
	waitErr error
	once    sync.Once
}

func (s *ffmpegSource) Next() (Frame, error) {
	if s.done {
		return Frame{}, io.EOF
	}
	_, err := io.ReadFull(s.reader, s.buf)
	switch {
	case err == nil:
	case errors.Is(err, io.EOF):
		s.done = true
		if waitErr := s.wait(); waitErr != nil {
			return Frame{}, s.toolError("exited with error", waitErr)
		}
		return Frame{}, io.EOF
	case errors.Is(err, io.ErrUnexpectedEOF):
		s.done = true
		waitErr := s.wait()
		if waitErr == nil {
			waitErr = err
		}
		return Frame{}, s.toolError(fmt.Sprintf("truncated frame %d", s.index+1), waitErr)
	default:
		s.done = true
		_ = s.Close()
		return Frame{}, s.toolError("read frame", err)
	}

	s.index++
	return Frame{Index: s.index, Image: rgb24ToRGBA(s.buf, s.width, s.height)}, nil
}

func (s *ffmpegSource) Close() error {
	s.once.Do(func() {
		if s.cmd.ProcessState == nil && s.cmd.Process != nil {
			_ = s.cmd.Process.Kill()
		}
		_ = s.wait()
	})
	return nil
}

func (s *ffmpegSource) wait() error {
	if s.cmd.ProcessState != nil {
		return s.waitErr
	}
	s.waitErr = s.cmd.Wait()
	return s.waitErr
}

func (s *ffmpegSource) toolError(message string, err error) error {
	if detail := strings.TrimSpace(s.stderr.String()); detail != "" {
		message = message + ": " + detail
	}
	return services.Wrap(services.ErrExternalTool, "decoding", "ffmpeg", message, err)
}

func rgb24ToRGBA(src []byte, width, height int) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, width, height))
	for i, j := 0, 0; i+2 < len(src); i, j = i+3, j+4 {
		img.Pix[j] = src[i]
		img.Pix[j+1] = src[i+1]
		img.Pix[j+2] = src[i+2]
		img.Pix[j+3] = 0xff
	}
	return img
}

// limitedBuffer keeps the first limit bytes of stderr.
type limitedBuffer struct {
	mu    sync.Mutex
	buf   bytes.Buffer
	limit int
}

func (b *limitedBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if room := b.limit - b.buf.Len(); room > 0 {
		if len(p) > room {
			b.buf.Write(p[:room])
		} else {
			b.buf.Write(p)
		}
	}
	return len(p), nil
}

func (b *limitedBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}
