package ledger

import "testing"

func TestFingerprintIsDeterministic(t *testing.T) {
	a := Fingerprint("https://files.slack.com/files-pri/T1-F1/a.mp3", "U1", "C1", "1700000000.1")
	b := Fingerprint("https://files.slack.com/files-pri/T1-F1/a.mp3", "U1", "C1", "1700000000.1")
	if a != b {
		t.Fatalf("fingerprint not deterministic: %s != %s", a, b)
	}
	if len(a) != 64 {
		t.Fatalf("expected hex sha256, got %q", a)
	}
}

func TestFingerprintCanonicalizesURL(t *testing.T) {
	base := Fingerprint("https://files.slack.com/files-pri/T1-F1/a.mp3", "U1", "C1", "ts")
	variant := Fingerprint("HTTPS://Files.Slack.com/files-pri/T1-F1/a.mp3?t=xoxe-123#frag", "U1", "C1", "ts")
	if base != variant {
		t.Fatal("expected query, fragment and host casing to be ignored")
	}
}

func TestFingerprintSeparatesFields(t *testing.T) {
	cases := [][4]string{
		{"u", "U1", "C1", "ts"},
		{"u", "U2", "C1", "ts"},
		{"u", "U1", "C2", "ts"},
		{"u", "U1", "C1", "ts2"},
		{"u", "U1C1", "", "ts"},
	}
	seen := map[string]int{}
	for i, c := range cases {
		fp := Fingerprint(c[0], c[1], c[2], c[3])
		if prev, ok := seen[fp]; ok {
			t.Fatalf("case %d collides with case %d", i, prev)
		}
		seen[fp] = i
	}
}

func TestSourceKeyFallsBackToFileID(t *testing.T) {
	if got := SourceKey("", " F42 "); got != "slack-file:F42" {
		t.Fatalf("SourceKey = %q", got)
	}
	if got := SourceKey("https://x/y", "F42"); got != "https://x/y" {
		t.Fatalf("SourceKey = %q", got)
	}
}

func TestRebindNumbersPlaceholders(t *testing.T) {
	s := &SQLStore{dialect: dialect{numbered: true}}
	got := s.rebind("SELECT a FROM t WHERE x = ? AND y <= ?")
	if got != "SELECT a FROM t WHERE x = $1 AND y <= $2" {
		t.Fatalf("rebind = %q", got)
	}
	plain := &SQLStore{}
	if q := plain.rebind("x = ?"); q != "x = ?" {
		t.Fatalf("sqlite rebind changed query: %q", q)
	}
}
