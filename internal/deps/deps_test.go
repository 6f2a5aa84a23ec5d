package deps

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"
)

var stubScript = []byte("#!/bin/sh\nexit 0\n")

func TestCheckResolvesToolchain(t *testing.T) {
	binDir := t.TempDir()
	ffmpegPath := filepath.Join(binDir, executableName("ffmpeg"))
	if err := os.WriteFile(ffmpegPath, stubScript, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	t.Setenv("PATH", binDir)

	statuses := Check(Toolchain{FFmpeg: "ffmpeg", Converting: true, WhisperX: true})
	if len(statuses) != 3 {
		t.Fatalf("expected ffmpeg, uvx, ffprobe; got %#v", statuses)
	}
	ffmpeg, uvx, probe := statuses[0], statuses[1], statuses[2]
	if !ffmpeg.Available || ffmpeg.Optional || ffmpeg.Command != ffmpegPath {
		t.Fatalf("unexpected ffmpeg status %#v", ffmpeg)
	}
	if uvx.Available || uvx.Optional || uvx.Detail == "" {
		t.Fatalf("expected uvx to be missing and required, got %#v", uvx)
	}
	if probe.Available || !probe.Optional {
		t.Fatalf("expected optional missing ffprobe, got %#v", probe)
	}

	missing := Missing(statuses)
	if len(missing) != 1 || missing[0].Name != "uvx" {
		t.Fatalf("Missing = %#v", missing)
	}
}

func TestCheckFFmpegOptionalWithoutConversion(t *testing.T) {
	t.Setenv("PATH", "")
	statuses := Check(Toolchain{FFmpeg: " "})
	if len(statuses) != 2 {
		t.Fatalf("expected ffmpeg and ffprobe only, got %#v", statuses)
	}
	if !statuses[0].Optional || statuses[0].Detail != "command not configured" {
		t.Fatalf("unexpected ffmpeg status %#v", statuses[0])
	}
	if len(Missing(statuses)) != 0 {
		t.Fatal("optional binaries must not count as missing")
	}
}

func TestCheckFFprobePrefersFFmpegSibling(t *testing.T) {
	tmp := t.TempDir()
	ffmpegPath := filepath.Join(tmp, executableName("ffmpeg"))
	ffprobePath := filepath.Join(tmp, executableName("ffprobe"))
	for _, p := range []string{ffmpegPath, ffprobePath} {
		if err := os.WriteFile(p, stubScript, 0o755); err != nil {
			t.Fatalf("write stub: %v", err)
		}
	}
	t.Setenv("PATH", "")

	status := CheckFFprobeForFFmpeg(ffmpegPath, "ffprobe")
	if !status.Available {
		t.Fatalf("expected sibling ffprobe, got detail %q", status.Detail)
	}
	if status.Command != ffprobePath {
		t.Fatalf("expected %q, got %q", ffprobePath, status.Command)
	}
	if got := ResolveFFprobePath(ffmpegPath, "ffprobe"); got != ffprobePath {
		t.Fatalf("ResolveFFprobePath = %q", got)
	}
}

func TestCheckFFprobePathFallback(t *testing.T) {
	tmp := t.TempDir()
	binDir := filepath.Join(tmp, "bin")
	if err := os.MkdirAll(binDir, 0o755); err != nil {
		t.Fatalf("mkdir bin: %v", err)
	}
	ffprobePath := filepath.Join(binDir, executableName("ffprobe"))
	if err := os.WriteFile(ffprobePath, stubScript, 0o755); err != nil {
		t.Fatalf("write ffprobe stub: %v", err)
	}
	t.Setenv("PATH", binDir)

	status := CheckFFprobeForFFmpeg(filepath.Join(tmp, "missing-ffmpeg"), "ffprobe")
	if !status.Available {
		t.Fatalf("expected PATH ffprobe, got detail %q", status.Detail)
	}
	if status.Command != ffprobePath {
		t.Fatalf("expected %q, got %q", ffprobePath, status.Command)
	}
}

func TestCheckFFprobeExplicitPath(t *testing.T) {
	tmp := t.TempDir()
	explicit := filepath.Join(tmp, "custom-probe")
	if err := os.WriteFile(explicit, stubScript, 0o755); err != nil {
		t.Fatalf("write stub: %v", err)
	}
	if status := CheckFFprobeForFFmpeg("ffmpeg", explicit); !status.Available || status.Command != explicit {
		t.Fatalf("unexpected status for explicit path: %#v", status)
	}
	missing := filepath.Join(tmp, "nope")
	if status := CheckFFprobeForFFmpeg("ffmpeg", missing); status.Available || status.Detail == "" {
		t.Fatalf("expected missing explicit path to fail, got %#v", status)
	}
}

func TestCheckFFprobeNotFound(t *testing.T) {
	t.Setenv("PATH", "")
	status := CheckFFprobeForFFmpeg("ffmpeg", "")
	if status.Available {
		t.Fatal("expected ffprobe resolution to fail")
	}
	if status.Detail == "" {
		t.Fatal("expected detail message when ffprobe is unavailable")
	}
	if got := ResolveFFprobePath("ffmpeg", ""); got != "ffprobe" {
		t.Fatalf("ResolveFFprobePath fallback = %q", got)
	}
}

func executableName(base string) string {
	if runtime.GOOS == "windows" {
		return base + ".exe"
	}
	return base
}
