package deps

import (
	"fmt"
	"os/exec"
	"strings"
)

// Status reports whether one external binary can be executed.
type Status struct {
	Name        string
	Command     string
	Description string
	Optional    bool
	Available   bool
	Detail      string
}

// Toolchain names the binaries a pipeline configuration shells out to.
type Toolchain struct {
	FFmpeg  string
	FFprobe string
	// Converting makes ffmpeg required. It is otherwise only used as a
	// fallback when the transcription provider rejects the source codec.
	Converting bool
	// WhisperX adds uvx, which launches the local WhisperX CLI, and makes
	// ffmpeg required since WhisperX decodes through it.
	WhisperX bool
}

// Check resolves every binary in t. Available binaries report their resolved
// path in Command. ffprobe is always optional: without it assets simply carry
// no duration.
func Check(t Toolchain) []Status {
	statuses := []Status{
		lookup(Status{
			Name:        "FFmpeg",
			Command:     t.FFmpeg,
			Description: "Converts unsupported audio containers before transcription",
			Optional:    !t.Converting && !t.WhisperX,
		}),
	}
	if t.WhisperX {
		statuses = append(statuses, lookup(Status{
			Name:        "uvx",
			Command:     "uvx",
			Description: "Launches WhisperX for local transcription",
		}))
	}
	probe := CheckFFprobeForFFmpeg(t.FFmpeg, t.FFprobe)
	probe.Optional = true
	return append(statuses, probe)
}

// Missing returns the required binaries that are unavailable.
func Missing(statuses []Status) []Status {
	var out []Status
	for _, s := range statuses {
		if !s.Available && !s.Optional {
			out = append(out, s)
		}
	}
	return out
}

func lookup(s Status) Status {
	s.Command = strings.TrimSpace(s.Command)
	s.Description = strings.TrimSpace(s.Description)
	if s.Command == "" {
		s.Detail = "command not configured"
		return s
	}
	resolved, err := exec.LookPath(s.Command)
	if err != nil {
		s.Detail = fmt.Sprintf("binary %q not found", s.Command)
		return s
	}
	s.Command = resolved
	s.Available = true
	return s
}
