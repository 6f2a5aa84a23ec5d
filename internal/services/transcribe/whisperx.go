package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
	"time"

	"slackscribe/internal/services"
)

// WhisperX invocation constants.
const (
	WhisperXDefaultModel = "large-v3"
	uvxCommand           = "uvx"
	cudaIndexURL         = "https://download.pytorch.org/whl/cu128"
	pypiIndexURL         = "https://pypi.org/simple"
	whisperXBatchSize    = "4"
	whisperXChunkSize    = "15"
	vadMethodSilero      = "silero"
	vadMethodPyannote    = "pyannote"
)

// WhisperXConfig configures the local WhisperX provider.
type WhisperXConfig struct {
	Model       string
	Language    string
	CUDAEnabled bool
	VADMethod   string
	HFToken     string
	OutputDir   string
	Timeout     time.Duration
}

// WhisperX runs `uvx whisperx` and reads the JSON segments it writes.
type WhisperX struct {
	cfg           WhisperXConfig
	commandRunner func(ctx context.Context, name string, args ...string) error
}

// NewWhisperX returns a local provider.
func NewWhisperX(cfg WhisperXConfig) *WhisperX {
	if strings.TrimSpace(cfg.Model) == "" {
		cfg.Model = WhisperXDefaultModel
	}
	if strings.TrimSpace(cfg.VADMethod) == "" {
		cfg.VADMethod = vadMethodSilero
	}
	return &WhisperX{cfg: cfg}
}

// WithCommandRunner sets a custom command runner (for testing).
func (w *WhisperX) WithCommandRunner(runner func(ctx context.Context, name string, args ...string) error) *WhisperX {
	w.commandRunner = runner
	return w
}

// Transcribe implements Transcriber. Output files land in a per-call
// directory under OutputDir that is removed afterwards.
func (w *WhisperX) Transcribe(ctx context.Context, path string) (Transcript, error) {
	if strings.TrimSpace(path) == "" {
		return Transcript{}, services.Wrap(services.ErrTranscription, "transcribe", "whisperx", "source path required", nil)
	}
	base := w.cfg.OutputDir
	if base == "" {
		base = filepath.Dir(path)
	}
	if err := os.MkdirAll(base, 0o755); err != nil {
		return Transcript{}, services.Wrap(services.ErrTranscription, "transcribe", "whisperx", "ensure output dir", err)
	}
	outDir, err := os.MkdirTemp(base, "whisperx-")
	if err != nil {
		return Transcript{}, services.Wrap(services.ErrTranscription, "transcribe", "whisperx", "create output dir", err)
	}
	defer os.RemoveAll(outDir)

	if w.cfg.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.cfg.Timeout)
		defer cancel()
	}
	if err := w.run(ctx, uvxCommand, w.Args(path, outDir)...); err != nil {
		return Transcript{}, services.Wrap(services.ErrTranscription, "transcribe", "whisperx", "run failed", err)
	}

	baseName := strings.TrimSuffix(filepath.Base(path), filepath.Ext(path))
	text, err := loadSegmentsText(filepath.Join(outDir, baseName+".json"))
	if err != nil {
		return Transcript{}, services.Wrap(services.ErrTranscription, "transcribe", "whisperx", "read output", err)
	}
	return Transcript{Text: text, Provider: "whisperx", Model: w.cfg.Model}, nil
}

// Args builds the uvx argument list for one file.
func (w *WhisperX) Args(source, outputDir string) []string {
	args := make([]string, 0, 32)
	if w.cfg.CUDAEnabled {
		args = append(args, "--index-url", cudaIndexURL, "--extra-index-url", pypiIndexURL)
	} else {
		args = append(args, "--index-url", pypiIndexURL)
	}
	args = append(args,
		"whisperx",
		source,
		"--model", w.cfg.Model,
		"--batch_size", whisperXBatchSize,
		"--chunk_size", whisperXChunkSize,
		"--output_dir", outputDir,
		"--output_format", "json",
		"--vad_method", w.cfg.VADMethod,
	)
	if w.cfg.VADMethod == vadMethodPyannote && w.cfg.HFToken != "" {
		args = append(args, "--hf_token", w.cfg.HFToken)
	}
	if lang := strings.ToLower(strings.TrimSpace(w.cfg.Language)); lang != "" {
		args = append(args, "--language", lang)
	}
	if w.cfg.CUDAEnabled {
		args = append(args, "--device", "cuda")
	} else {
		args = append(args, "--device", "cpu", "--compute_type", "float32")
	}
	return args
}

func (w *WhisperX) run(ctx context.Context, name string, args ...string) error {
	if w.commandRunner != nil {
		return w.commandRunner(ctx, name, args...)
	}
	cmd := exec.CommandContext(ctx, name, args...) //nolint:gosec

	// Torch 2.6 defaults torch.load to weights_only, which breaks pyannote checkpoints.
	if os.Getenv("TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD") == "" {
		cmd.Env = append(os.Environ(), "TORCH_FORCE_NO_WEIGHTS_ONLY_LOAD=1")
	}
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("%s: %w: %s", name, err, strings.TrimSpace(string(output)))
	}
	return nil
}

type whisperXSegment struct {
	Text  string  `json:"text"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

func loadSegmentsText(jsonPath string) (string, error) {
	data, err := os.ReadFile(jsonPath)
	if err != nil {
		return "", err
	}
	var payload struct {
		Segments []whisperXSegment `json:"segments"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return "", fmt.Errorf("parse whisperx json: %w", err)
	}
	parts := make([]string, 0, len(payload.Segments))
	for _, seg := range payload.Segments {
		if text := strings.TrimSpace(seg.Text); text != "" {
			parts = append(parts, text)
		}
	}
	return strings.Join(parts, " "), nil
}
