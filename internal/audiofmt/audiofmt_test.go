package audiofmt_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"slackscribe/internal/audiofmt"
)

func TestExtensionFromURL(t *testing.T) {
	cases := []struct {
		url  string
		ext  string
		want bool
	}{
		{"https://files.slack.com/files-pri/T1-F1/download/memo.MP3", "mp3", true},
		{"https://files.slack.com/files-pri/T1-F1/download/clip.m4a?t=xoxe-123", "m4a", true},
		{"https://example.com/recording.webm#frag", "webm", true},
		{"https://example.com/image.png", "", false},
		{"https://example.com/noext", "", false},
		{"", "", false},
	}
	for _, tc := range cases {
		ext, ok := audiofmt.ExtensionFromURL(tc.url)
		if ok != tc.want || ext != tc.ext {
			t.Fatalf("ExtensionFromURL(%q) = %q,%v want %q,%v", tc.url, ext, ok, tc.ext, tc.want)
		}
	}
}

func TestExtensionForMIME(t *testing.T) {
	if ext, ok := audiofmt.ExtensionForMIME("audio/x-m4a"); !ok || ext != "m4a" {
		t.Fatalf("unexpected mapping %q %v", ext, ok)
	}
	if ext, ok := audiofmt.ExtensionForMIME("Audio/MPEG; charset=binary"); !ok || ext != "mp3" {
		t.Fatalf("unexpected mapping %q %v", ext, ok)
	}
	if _, ok := audiofmt.ExtensionForMIME("image/png"); ok {
		t.Fatal("image/png must not map to audio")
	}
}

func TestIsAudioExtension(t *testing.T) {
	for _, ext := range audiofmt.Extensions() {
		if !audiofmt.IsAudioExtension(ext) || !audiofmt.IsAudioExtension("."+ext) {
			t.Fatalf("expected %q to be accepted", ext)
		}
	}
	if audiofmt.IsAudioExtension("png") {
		t.Fatal("png must be rejected")
	}
}

func wavHeader() []byte {
	var buf bytes.Buffer
	buf.WriteString("RIFF")
	buf.Write([]byte{0x24, 0, 0, 0})
	buf.WriteString("WAVEfmt ")
	buf.Write(make([]byte, 32))
	return buf.Bytes()
}

func TestSniffIgnoresFileName(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "mislabelled.mp3")
	if err := os.WriteFile(path, wavHeader(), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	detected, err := audiofmt.SniffFile(path)
	if err != nil {
		t.Fatalf("SniffFile returned error: %v", err)
	}
	if !detected.Audio {
		t.Fatalf("expected audio detection, got %+v", detected)
	}
	if !detected.Matches([]string{"audio/wav"}) {
		t.Fatalf("expected wav match, got %+v", detected)
	}
	if detected.Matches([]string{"audio/mpeg"}) {
		t.Fatalf("content is wav, not mpeg: %+v", detected)
	}
}

func TestSniffMP3(t *testing.T) {
	data := append([]byte("ID3\x04\x00\x00\x00\x00\x00\x00"), make([]byte, 64)...)
	detected, err := audiofmt.Sniff(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("Sniff returned error: %v", err)
	}
	if !detected.Matches([]string{"audio/mpeg"}) {
		t.Fatalf("expected mpeg, got %+v", detected)
	}
}

func TestSniffNonAudio(t *testing.T) {
	detected, err := audiofmt.Sniff(bytes.NewReader([]byte("plain text, definitely not audio")))
	if err != nil {
		t.Fatalf("Sniff returned error: %v", err)
	}
	if detected.Audio {
		t.Fatalf("expected non-audio, got %+v", detected)
	}
}
