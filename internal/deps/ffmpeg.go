package deps

import (
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"runtime"
	"strings"
)

// CheckFFprobeForFFmpeg reports the ffprobe binary paired with ffmpegCommand.
//
// An explicit ffprobe path wins. When ffprobeCommand is a bare name and
// ffmpeg resolves to a directory that also holds ffprobe, that sibling is
// used so probing matches the ffmpeg build doing the conversion. PATH is the
// last resort.
func CheckFFprobeForFFmpeg(ffmpegCommand, ffprobeCommand string) Status {
	result := Status{
		Name:        "FFprobe",
		Description: "Reports duration and audio streams of downloaded files",
	}

	probe := strings.TrimSpace(ffprobeCommand)
	if probe == "" {
		probe = "ffprobe"
	}
	if strings.ContainsRune(probe, os.PathSeparator) {
		result.Command = probe
		if info, err := os.Stat(probe); err == nil && isExecutable(info) {
			result.Available = true
			return result
		}
		result.Detail = fmt.Sprintf("binary %q not found", probe)
		return result
	}

	if ffmpegBinary := strings.TrimSpace(ffmpegCommand); ffmpegBinary != "" {
		if resolved, err := exec.LookPath(ffmpegBinary); err == nil {
			candidate := siblingBinary(resolved, probe)
			if info, statErr := os.Stat(candidate); statErr == nil && isExecutable(info) {
				result.Command = candidate
				result.Available = true
				return result
			}
		}
	}

	if probePath, err := exec.LookPath(probe); err == nil {
		result.Command = probePath
		result.Available = true
		return result
	}

	result.Command = probe
	result.Detail = fmt.Sprintf("binary %q not found", probe)
	return result
}

// ResolveFFprobePath returns the command CheckFFprobeForFFmpeg settled on,
// falling back to ffprobeCommand when nothing was found.
func ResolveFFprobePath(ffmpegCommand, ffprobeCommand string) string {
	status := CheckFFprobeForFFmpeg(ffmpegCommand, ffprobeCommand)
	if status.Available {
		return status.Command
	}
	if trimmed := strings.TrimSpace(ffprobeCommand); trimmed != "" {
		return trimmed
	}
	return "ffprobe"
}

func siblingBinary(resolved, name string) string {
	if runtime.GOOS == "windows" && !strings.HasSuffix(name, ".exe") {
		name += ".exe"
	}
	return filepath.Join(filepath.Dir(resolved), name)
}

func isExecutable(info os.FileInfo) bool {
	if info == nil {
		return false
	}
	if info.IsDir() {
		return false
	}
	if runtime.GOOS == "windows" {
		return true
	}
	return info.Mode().Perm()&0o111 != 0
}
