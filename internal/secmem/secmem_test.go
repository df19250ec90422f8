package secmem

import (
	"encoding/json"
	"fmt"
	"sync"
	"testing"
)

func TestRevealReturnsOriginalValue(t *testing.T) {
	s := New("gw-token-123")
	if got := s.Reveal(); got != "gw-token-123" {
		t.Fatalf("Reveal() = %q", got)
	}
}

func TestNilSecretIsSafe(t *testing.T) {
	var s *Secret
	if got := s.Reveal(); got != "" {
		t.Fatalf("nil Reveal() = %q, want empty", got)
	}
	s.Zero() // must not panic
	if s.IsZeroed() {
		t.Fatal("nil secret must not report zeroed")
	}
}

func TestZeroWipesValue(t *testing.T) {
	s := New("gw-token-123")
	s.Zero()
	if got := s.Reveal(); got != "" {
		t.Fatalf("Reveal() after Zero() = %q, want empty", got)
	}
	if !s.IsZeroed() {
		t.Fatal("IsZeroed() = false after Zero()")
	}
}

func TestFormattingNeverLeaks(t *testing.T) {
	s := New("gw-token-123")
	for _, rendered := range []string{
		fmt.Sprint(s),
		fmt.Sprintf("%v", s),
		fmt.Sprintf("%s", s),
		fmt.Sprintf("%q", s),
		fmt.Sprintf("%#v", s),
		fmt.Sprintf("%d", s),
	} {
		if rendered != "[REDACTED]" {
			t.Errorf("rendered %q, want [REDACTED]", rendered)
		}
	}
}

func TestJSONMarshalingRedacts(t *testing.T) {
	s := New("gw-token-123")
	b, err := json.Marshal(struct {
		Token *Secret `json:"token"`
	}{Token: s})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(b) != `{"token":"[REDACTED]"}` {
		t.Errorf("marshaled %s", b)
	}
}

func TestJSONUnmarshalingRejected(t *testing.T) {
	var s Secret
	if err := json.Unmarshal([]byte(`"sneaky"`), &s); err == nil {
		t.Fatal("expected unmarshal to be rejected")
	}
}

func TestConcurrentRevealAndZero(t *testing.T) {
	s := New("gw-token-123")
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(2)
		go func() { defer wg.Done(); _ = s.Reveal() }()
		go func() { defer wg.Done(); s.Zero() }()
	}
	wg.Wait()
	if got := s.Reveal(); got != "" {
		t.Fatalf("Reveal() after concurrent Zero() = %q", got)
	}
}
