package orchestrator

import (
	"errors"
	"testing"
)

func TestAssetStatusOnlyMovesForward(t *testing.T) {
	a := Asset{}
	a.advance(StatusConverted)
	a.advance(StatusDownloaded)
	if a.Status != StatusConverted {
		t.Fatalf("status moved backward to %s", a.Status)
	}

	a.fail("transport", errors.New("boom"))
	a.advance(StatusDone)
	if a.Status != StatusFailed || a.ErrorKind != "transport" || a.Error != "boom" {
		t.Fatalf("failed asset changed: %#v", a)
	}

	a.fail("auth", nil)
	if a.ErrorKind != "transport" {
		t.Fatalf("first failure must stick, got %s", a.ErrorKind)
	}
}

func TestStatusText(t *testing.T) {
	text, _ := StatusTranscribed.MarshalText()
	if string(text) != "transcribed" {
		t.Fatalf("MarshalText = %s", text)
	}
	if Status(99).String() != "unknown" {
		t.Fatal("expected unknown for out-of-range status")
	}
}
