package codes

import (
	"errors"
	"strconv"
	"strings"
	"testing"
)

func TestSMSCodeRange(t *testing.T) {
	g := NewGenerator(nil)
	for i := 0; i < 500; i++ {
		code, err := g.SMSCode()
		if err != nil {
			t.Fatalf("SMSCode error: %v", err)
		}
		n, err := strconv.Atoi(code)
		if err != nil || len(code) != 6 || n < 100000 || n > 999999 {
			t.Fatalf("code out of range: %q", code)
		}
	}
}

func TestSMSCodeBounds(t *testing.T) {
	low := NewGenerator(func(int) (int, error) { return 0, nil })
	if code, _ := low.SMSCode(); code != "100000" {
		t.Fatalf("expected lower bound 100000, got %s", code)
	}
	high := NewGenerator(func(n int) (int, error) { return n - 1, nil })
	if code, _ := high.SMSCode(); code != "999999" {
		t.Fatalf("expected upper bound 999999, got %s", code)
	}
}

func TestRecoveryCodesShape(t *testing.T) {
	g := NewGenerator(nil)
	list, err := g.RecoveryCodes(10, 12)
	if err != nil {
		t.Fatalf("RecoveryCodes error: %v", err)
	}
	if len(list) != 10 {
		t.Fatalf("expected 10 codes, got %d", len(list))
	}
	seen := map[string]bool{}
	for _, c := range list {
		if len(c) != 12 {
			t.Fatalf("expected 12 characters, got %q", c)
		}
		for _, r := range c {
			if !strings.ContainsRune(RecoveryAlphabet, r) {
				t.Fatalf("unexpected symbol %q in %q", r, c)
			}
		}
		if seen[c] {
			t.Fatalf("duplicate code %q", c)
		}
		seen[c] = true
	}
}

func TestRecoveryCodesPropagatesRandomError(t *testing.T) {
	g := NewGenerator(func(int) (int, error) { return 0, errors.New("entropy") })
	if _, err := g.RecoveryCodes(10, 12); err == nil {
		t.Fatal("expected error")
	}
}

func TestRecoveryCodesStuckSourceFails(t *testing.T) {
	g := NewGenerator(func(int) (int, error) { return 0, nil })
	if _, err := g.RecoveryCodes(10, 12); err == nil {
		t.Fatal("expected duplicate exhaustion error")
	}
}

func TestMatchRecoveryCode(t *testing.T) {
	hashes := HashRecoveryCodes("alice", []string{"AAAAbbbb1111", "CCCCdddd2222"})

	if idx := MatchRecoveryCode("alice", "CCCCdddd2222", hashes); idx != 1 {
		t.Fatalf("expected index 1, got %d", idx)
	}
	if idx := MatchRecoveryCode("alice", "ccccdddd2222", hashes); idx != -1 {
		t.Fatalf("expected case-sensitive miss, got %d", idx)
	}
	if idx := MatchRecoveryCode("bob", "AAAAbbbb1111", hashes); idx != -1 {
		t.Fatalf("expected cross-account miss, got %d", idx)
	}
}

func TestMatchSMSCode(t *testing.T) {
	if !MatchSMSCode("123456", " 123456 ") {
		t.Fatal("expected trimmed match")
	}
	if MatchSMSCode("123456", "654321") {
		t.Fatal("expected mismatch")
	}
	if MatchSMSCode("", "") {
		t.Fatal("expected empty pending code never to match")
	}
}
