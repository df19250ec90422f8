// Package secmem keeps the push gateway token out of logs and serialized
// output. A Secret renders as [REDACTED] under every fmt verb and JSON/text
// marshaling; the plaintext is only reachable through Reveal at the point
// of use.
package secmem

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Secret holds a sensitive string with best-effort zeroing. Go's GC may have
// copied the backing array, so Zero is defense-in-depth, not a guarantee.
type Secret struct {
	mu     sync.Mutex
	data   []byte
	zeroed atomic.Bool
}

// New copies s into a Secret.
func New(s string) *Secret {
	b := make([]byte, len(s))
	copy(b, s)
	return &Secret{data: b}
}

// Reveal returns the plaintext. A nil or zeroed Secret reveals "".
func (s *Secret) Reveal() string {
	if s == nil {
		return ""
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	return string(s.data)
}

// Zero overwrites the backing bytes. Call on shutdown paths.
func (s *Secret) Zero() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.data {
		s.data[i] = 0
	}
	s.data = nil
	s.zeroed.Store(true)
}

// IsZeroed reports whether Zero has been called.
func (s *Secret) IsZeroed() bool {
	if s == nil {
		return false
	}
	return s.zeroed.Load()
}

// String renders [REDACTED] so fmt.Println(token) cannot leak.
func (s *Secret) String() string { return "[REDACTED]" }

// GoString renders [REDACTED] for %#v.
func (s *Secret) GoString() string { return "[REDACTED]" }

// Format renders [REDACTED] under every verb.
func (s *Secret) Format(f fmt.State, verb rune) {
	fmt.Fprint(f, "[REDACTED]")
}

// MarshalJSON renders "[REDACTED]".
func (s *Secret) MarshalJSON() ([]byte, error) {
	return []byte(`"[REDACTED]"`), nil
}

// MarshalText renders [REDACTED].
func (s *Secret) MarshalText() ([]byte, error) {
	return []byte("[REDACTED]"), nil
}

// UnmarshalJSON is rejected: a Secret is never populated from untrusted
// input.
func (s *Secret) UnmarshalJSON([]byte) error {
	return errors.New("secmem: cannot deserialize into Secret")
}
