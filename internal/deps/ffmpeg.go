package deps

import "strings"

const (
	defaultFFmpegCommand  = "ffmpeg"
	defaultFFprobeCommand = "ffprobe"
)

// ResolveFFmpegPath returns the configured ffmpeg command, falling back to PATH lookup.
func ResolveFFmpegPath(configured string) string {
	return resolveCommand(configured, defaultFFmpegCommand)
}

// ResolveFFprobePath returns the configured ffprobe command, falling back to PATH lookup.
func ResolveFFprobePath(configured string) string {
	return resolveCommand(configured, defaultFFprobeCommand)
}

// DecoderRequirements lists the binaries the frame decoder shells out to.
func DecoderRequirements(ffmpegBinary, ffprobeBinary string) []Requirement {
	return []Requirement{
		{
			Name:        "FFmpeg",
			Command:     ResolveFFmpegPath(ffmpegBinary),
			Description: "Required for frame decoding",
			ConfigKey:   "decoder.ffmpeg_binary",
		},
		{
			Name:        "FFprobe",
			Command:     ResolveFFprobePath(ffprobeBinary),
			Description: "Required for stream inspection",
			ConfigKey:   "decoder.ffprobe_binary",
		},
	}
}

func resolveCommand(configured, fallback string) string {
	if trimmed := strings.TrimSpace(configured); trimmed != "" {
		return trimmed
	}
	return fallback
}
