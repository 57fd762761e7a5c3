package deps

import (
	"os/exec"
	"strings"
)

// FFmpegRequirement describes the optional preview generator.
func FFmpegRequirement(binary string) Requirement {
	return Requirement{
		Name:        "FFmpeg",
		Command:     ResolveFFmpeg(binary),
		Description: "Generates video posters and animated previews",
		Optional:    true,
	}
}

// ResolveFFmpeg returns the absolute path of the configured ffmpeg binary
// when it can be found, else the configured value (or "ffmpeg").
func ResolveFFmpeg(binary string) string {
	binary = strings.TrimSpace(binary)
	if binary == "" {
		binary = "ffmpeg"
	}
	if resolved, err := exec.LookPath(binary); err == nil {
		return resolved
	}
	return binary
}

// FFmpegAvailable reports whether binary resolves to an executable.
func FFmpegAvailable(binary string) bool {
	_, err := exec.LookPath(ResolveFFmpeg(binary))
	return err == nil
}
