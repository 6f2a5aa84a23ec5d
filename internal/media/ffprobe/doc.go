// Package ffprobe reads container and stream metadata for downloaded audio.
//
// The pipeline uses it to confirm a converted file still carries an audio
// stream and to record clip durations alongside transcripts.
//
// Key types:
//   - Result: parsed ffprobe output containing streams and format metadata
//   - Prober: runs the binary, with an injectable runner for tests
package ffprobe
