package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writePayload(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "payload.json")
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write payload: %v", err)
	}
	return path
}

func TestProcessAnswersURLVerification(t *testing.T) {
	env := setupCLITestEnv(t)
	path := writePayload(t, `{"type":"url_verification","challenge":"abc123"}`)

	out, _, err := runCLI(t, []string{"process", "--file", path}, env.configPath)
	if err != nil {
		t.Fatalf("process: %v", err)
	}
	var resp map[string]string
	if err := json.Unmarshal([]byte(out), &resp); err != nil {
		t.Fatalf("decode response: %v\n%s", err, out)
	}
	if resp["challenge"] != "abc123" {
		t.Fatalf("expected challenge echo, got %v", resp)
	}
}

func TestProcessRejectsUnsupportedFile(t *testing.T) {
	env := setupCLITestEnv(t)
	path := writePayload(t, `{"file_type":"png","file_id":"F9","auth_token":"x"}`)

	out, _, err := runCLI(t, []string{"process", "--file", path}, env.configPath)
	if err == nil {
		t.Fatal("expected error for unsupported file type")
	}
	requireContains(t, err.Error(), "422")
	requireContains(t, out, `"kind": "classification"`)
}

func TestProcessReadsStdin(t *testing.T) {
	env := setupCLITestEnv(t)
	stdin := strings.NewReader(`{"type":"url_verification","challenge":"from-stdin"}`)

	out, _, err := runCLIWithInput(t, []string{"process", "--file", "-"}, env.configPath, stdin)
	if err != nil {
		t.Fatalf("process stdin: %v", err)
	}
	requireContains(t, out, "from-stdin")
}

func TestProcessReportsMalformedPayload(t *testing.T) {
	env := setupCLITestEnv(t)
	path := writePayload(t, `{not json`)

	out, _, err := runCLI(t, []string{"process", "--file", path}, env.configPath)
	if err == nil {
		t.Fatal("expected error for malformed payload")
	}
	requireContains(t, out, `"kind": "format"`)
}

func TestProcessRequiresFileFlag(t *testing.T) {
	env := setupCLITestEnv(t)
	if _, _, err := runCLI(t, []string{"process"}, env.configPath); err == nil {
		t.Fatal("expected missing --file error")
	}
}
