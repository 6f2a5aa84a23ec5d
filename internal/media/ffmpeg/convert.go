package ffmpeg

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"slackscribe/internal/services"
)

// Options configures a Converter.
type Options struct {
	Binary       string
	TargetFormat string
	Bitrate      string
	SampleRate   int
	Timeout      time.Duration
}

// Converter runs ffmpeg to transcode audio files.
type Converter struct {
	opts          Options
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewConverter returns a Converter with defaults filled in: mp3 at 128k and
// 44.1kHz.
func NewConverter(opts Options) *Converter {
	if strings.TrimSpace(opts.Binary) == "" {
		opts.Binary = "ffmpeg"
	}
	opts.TargetFormat = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(opts.TargetFormat), "."))
	if opts.TargetFormat == "" {
		opts.TargetFormat = "mp3"
	}
	if strings.TrimSpace(opts.Bitrate) == "" {
		opts.Bitrate = "128k"
	}
	if opts.SampleRate <= 0 {
		opts.SampleRate = 44100
	}
	return &Converter{opts: opts}
}

// WithCommandRunner sets a custom command runner (for testing).
func (c *Converter) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) *Converter {
	c.commandRunner = runner
	return c
}

// TargetFormat returns the output container extension.
func (c *Converter) TargetFormat() string {
	return c.opts.TargetFormat
}

// Convert transcodes src into a sibling file with the target extension and
// returns its path. A partial output is removed when ffmpeg fails.
func (c *Converter) Convert(ctx context.Context, src string) (string, error) {
	if strings.TrimSpace(src) == "" {
		return "", services.Wrap(services.ErrConversion, "convert", "ffmpeg", "source path is empty", nil)
	}
	dst := strings.TrimSuffix(src, filepath.Ext(src)) + ".converted." + c.opts.TargetFormat

	if c.opts.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, c.opts.Timeout)
		defer cancel()
	}

	if err := c.run(ctx, c.opts.Binary, c.Args(src, dst)...); err != nil {
		_ = os.Remove(dst)
		if ctx.Err() != nil {
			return "", services.Wrap(services.ErrConversion, "convert", "ffmpeg", "timed out", ctx.Err())
		}
		return "", services.Wrap(services.ErrConversion, "convert", "ffmpeg", "transcode failed", err)
	}
	return dst, nil
}

// Args builds the ffmpeg argument list for converting src to dst.
func (c *Converter) Args(src, dst string) []string {
	args := []string{
		"-y",
		"-hide_banner",
		"-loglevel", "error",
		"-i", src,
		"-vn",
		"-acodec", codecFor(c.opts.TargetFormat),
	}
	if lossy(c.opts.TargetFormat) {
		args = append(args, "-ab", c.opts.Bitrate)
	}
	args = append(args, "-ar", strconv.Itoa(c.opts.SampleRate), dst)
	return args
}

func (c *Converter) run(ctx context.Context, name string, args ...string) error {
	if c.commandRunner != nil {
		return c.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

func codecFor(format string) string {
	switch format {
	case "wav":
		return "pcm_s16le"
	case "flac":
		return "flac"
	case "ogg":
		return "libvorbis"
	case "m4a", "aac":
		return "aac"
	default:
		return "libmp3lame"
	}
}

func lossy(format string) bool {
	return format != "wav" && format != "flac"
}
