package dochash

import (
	"testing"
	"time"
)

func TestToken_Deterministic(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)

	a := Token("agr-1", "Jane Doe", at)
	b := Token("agr-1", "Jane Doe", at)
	if a != b {
		t.Fatalf("expected identical tokens, got %q and %q", a, b)
	}

	if len(a) != TokenLength {
		t.Fatalf("expected %d-character token, got %d (%q)", TokenLength, len(a), a)
	}
	for _, c := range a {
		if !((c >= '0' && c <= '9') || (c >= 'A' && c <= 'F')) {
			t.Fatalf("token %q contains non-uppercase-hex character %q", a, c)
		}
	}
}

func TestToken_InputSensitivity(t *testing.T) {
	at := time.Date(2025, 3, 14, 9, 26, 53, 0, time.UTC)
	base := Token("agr-1", "Jane Doe", at)

	variants := map[string]string{
		"id":        Token("agr-2", "Jane Doe", at),
		"signer":    Token("agr-1", "John Doe", at),
		"timestamp": Token("agr-1", "Jane Doe", at.Add(time.Second)),
	}
	for field, tok := range variants {
		if tok == base {
			t.Errorf("changing %s did not change the token (%q)", field, tok)
		}
	}
}

func TestToken_TimezoneNormalized(t *testing.T) {
	utc := time.Date(2025, 3, 14, 9, 0, 0, 0, time.UTC)
	est := utc.In(time.FixedZone("EST", -5*3600))

	if Token("agr-1", "Jane Doe", utc) != Token("agr-1", "Jane Doe", est) {
		t.Fatal("expected token to be independent of the timestamp's zone")
	}
}
