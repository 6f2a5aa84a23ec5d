// Package ffmpeg transcodes downloaded audio into the format the
// transcription provider accepts best.
package ffmpeg
