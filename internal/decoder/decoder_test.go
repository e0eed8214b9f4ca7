package decoder_test

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidsentry/internal/decoder"
	"vidsentry/internal/logging"
	"vidsentry/internal/services"
)

const probeJSON = `{"streams":[{"index":0,"codec_type":"video","width":2,"height":1,"avg_frame_rate":"25/1","nb_frames":"2"}],"format":{"duration":"0.08"}}`

func writeScript(t *testing.T, dir, name, body string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte("#!/bin/sh\n"+body+"\n"), 0o755))
	return path
}

func stubs(t *testing.T, ffmpegBody string) (string, string, string) {
	t.Helper()
	dir := t.TempDir()
	ffprobe := writeScript(t, dir, "ffprobe", "cat <<'JSON'\n"+probeJSON+"\nJSON")
	ffmpeg := writeScript(t, dir, "ffmpeg", ffmpegBody)
	video := filepath.Join(dir, "clip.mp4")
	require.NoError(t, os.WriteFile(video, []byte("fake"), 0o644))
	return ffmpeg, ffprobe, video
}

func TestFFmpegYieldsFramesInOrder(t *testing.T) {
	// Two 2x1 rgb24 frames: red/green then blue/white.
	ffmpeg, ffprobe, video := stubs(t, `printf '\377\000\000\000\377\000\000\000\377\377\377\377'`)
	dec := decoder.NewFFmpeg(ffmpeg, ffprobe, logging.NewNop())

	src, err := dec.Open(context.Background(), video)
	require.NoError(t, err)
	defer src.Close()

	first, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, 1, first.Index)
	assert.Equal(t, 2, first.Image.Bounds().Dx())
	assert.Equal(t, []uint8{255, 0, 0, 255, 0, 255, 0, 255}, first.Image.Pix)

	second, err := src.Next()
	require.NoError(t, err)
	assert.Equal(t, 2, second.Index)
	assert.Equal(t, []uint8{0, 0, 255, 255, 255, 255, 255, 255}, second.Image.Pix)

	_, err = src.Next()
	assert.ErrorIs(t, err, io.EOF)
	_, err = src.Next()
	assert.ErrorIs(t, err, io.EOF, "exhausted source stays at EOF")
	assert.NoError(t, src.Close())
}

func TestFFmpegTruncatedFrameFails(t *testing.T) {
	ffmpeg, ffprobe, video := stubs(t, `printf '\377\000\000\000\377\000\001\002'`)
	src, err := decoder.NewFFmpeg(ffmpeg, ffprobe, logging.NewNop()).Open(context.Background(), video)
	require.NoError(t, err)
	defer src.Close()

	_, err = src.Next()
	require.NoError(t, err)
	_, err = src.Next()
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrExternalTool))
}

func TestFFmpegNonZeroExitFails(t *testing.T) {
	ffmpeg, ffprobe, video := stubs(t, `echo "moov atom not found" >&2; exit 1`)
	src, err := decoder.NewFFmpeg(ffmpeg, ffprobe, logging.NewNop()).Open(context.Background(), video)
	require.NoError(t, err)
	defer src.Close()

	_, err = src.Next()
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrExternalTool))
	assert.Contains(t, err.Error(), "moov atom not found")
}

func TestOpenRejectsNonVideo(t *testing.T) {
	dir := t.TempDir()
	ffprobe := writeScript(t, dir, "ffprobe", `echo "Invalid data found when processing input" >&2; exit 1`)
	ffmpeg := writeScript(t, dir, "ffmpeg", "exit 0")
	path := filepath.Join(dir, "notes.mp4")
	require.NoError(t, os.WriteFile(path, []byte("text"), 0o644))

	_, err := decoder.NewFFmpeg(ffmpeg, ffprobe, logging.NewNop()).Open(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrExternalTool))
}

func TestOpenRejectsAudioOnly(t *testing.T) {
	dir := t.TempDir()
	ffprobe := writeScript(t, dir, "ffprobe", `echo '{"streams":[{"codec_type":"audio"}],"format":{}}'`)
	ffmpeg := writeScript(t, dir, "ffmpeg", "exit 0")
	path := filepath.Join(dir, "song.mkv")
	require.NoError(t, os.WriteFile(path, []byte("x"), 0o644))

	_, err := decoder.NewFFmpeg(ffmpeg, ffprobe, logging.NewNop()).Open(context.Background(), path)
	require.Error(t, err)
	assert.True(t, errors.Is(err, services.ErrValidation))
}
