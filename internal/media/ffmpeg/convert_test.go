package ffmpeg_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"slackscribe/internal/media/ffmpeg"
	"slackscribe/internal/services"
)

func TestArgsMatchMP3Defaults(t *testing.T) {
	c := ffmpeg.NewConverter(ffmpeg.Options{})
	got := c.Args("in.m4a", "out.mp3")
	want := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", "in.m4a", "-vn", "-acodec", "libmp3lame",
		"-ab", "128k", "-ar", "44100", "out.mp3",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("args = %v\nwant %v", got, want)
	}
}

func TestArgsOmitBitrateForLossless(t *testing.T) {
	c := ffmpeg.NewConverter(ffmpeg.Options{TargetFormat: ".WAV", SampleRate: 16000})
	got := c.Args("in.ogg", "out.wav")
	want := []string{
		"-y", "-hide_banner", "-loglevel", "error",
		"-i", "in.ogg", "-vn", "-acodec", "pcm_s16le",
		"-ar", "16000", "out.wav",
	}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("args = %v\nwant %v", got, want)
	}
}

func TestConvertWritesSiblingFile(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "asset-0.webm")
	if err := os.WriteFile(src, []byte("x"), 0o644); err != nil {
		t.Fatal(err)
	}
	c := ffmpeg.NewConverter(ffmpeg.Options{Binary: "/opt/ffmpeg"}).WithCommandRunner(
		func(_ context.Context, name string, args ...string) error {
			if name != "/opt/ffmpeg" {
				t.Fatalf("binary = %q", name)
			}
			return os.WriteFile(args[len(args)-1], []byte("mp3"), 0o644)
		})

	dst, err := c.Convert(context.Background(), src)
	if err != nil {
		t.Fatalf("Convert: %v", err)
	}
	if dst != filepath.Join(dir, "asset-0.converted.mp3") {
		t.Fatalf("dst = %q", dst)
	}
	if _, err := os.Stat(dst); err != nil {
		t.Fatalf("expected output: %v", err)
	}
}

func TestConvertFailureIsConversionError(t *testing.T) {
	dir := t.TempDir()
	src := filepath.Join(dir, "a.aac")
	c := ffmpeg.NewConverter(ffmpeg.Options{}).WithCommandRunner(
		func(_ context.Context, _ string, args ...string) error {
			_ = os.WriteFile(args[len(args)-1], []byte("partial"), 0o644)
			return errors.New("exit status 1")
		})

	_, err := c.Convert(context.Background(), src)
	if !errors.Is(err, services.ErrConversion) {
		t.Fatalf("expected conversion error, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Join(dir, "a.converted.mp3")); !os.IsNotExist(statErr) {
		t.Fatal("expected partial output to be removed")
	}
}
