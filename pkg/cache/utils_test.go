package cache

import "testing"

func TestGenerateKey(t *testing.T) {
	if got := GenerateKey("bars", "AAPL"); got != "bars:AAPL" {
		t.Fatalf("unexpected key: %s", got)
	}
}

func TestGenerateKeyWithParams(t *testing.T) {
	if got := GenerateKeyWithParams("bars", "AAPL", 3); got != "bars:AAPL:3" {
		t.Fatalf("unexpected key: %s", got)
	}
	if got := GenerateKeyWithParams("bars"); got != "bars" {
		t.Fatalf("unexpected key without params: %s", got)
	}
}

func TestHashKeyIsStable(t *testing.T) {
	a := HashKey("bars:AAPL:3")
	b := HashKey("bars:AAPL:3")
	if a != b {
		t.Fatalf("hash not stable: %s vs %s", a, b)
	}
	if len(a) != 32 {
		t.Fatalf("expected 32 hex chars, got %d", len(a))
	}
}

func TestBuildPattern(t *testing.T) {
	if got := BuildPattern("bars:"); got != "bars:*" {
		t.Fatalf("unexpected pattern: %s", got)
	}
}
