// Package securemem wraps memguard so API keys never sit in plain heap
// memory longer than a single provider call needs them.
package securemem

import (
	"crypto/subtle"

	"github.com/awnumar/memguard"
)

// String stores a sensitive string in an encrypted, locked buffer.
type String struct {
	buf     *memguard.LockedBuffer
	invalid bool
}

// NewString moves the given plaintext into protected memory.
func NewString(plaintext string) *String {
	return &String{buf: memguard.NewBufferFromBytes([]byte(plaintext))}
}

// String returns a plaintext copy. The copy lives in regular memory, so
// callers should keep its lifetime short.
func (s *String) String() string {
	if s == nil || s.invalid || s.buf == nil {
		return ""
	}
	return string(s.buf.Bytes())
}

// IsEmpty reports whether the value is empty or already destroyed.
func (s *String) IsEmpty() bool {
	if s == nil || s.invalid || s.buf == nil {
		return true
	}
	return len(s.buf.Bytes()) == 0
}

// Equal compares against another secure string in constant time.
func (s *String) Equal(other *String) bool {
	if s == nil || other == nil {
		return s == other
	}
	if s.invalid || other.invalid || s.buf == nil || other.buf == nil {
		return false
	}
	return subtle.ConstantTimeCompare(s.buf.Bytes(), other.buf.Bytes()) == 1
}

// Destroy wipes the protected buffer. The value is unusable afterwards.
func (s *String) Destroy() {
	if s == nil || s.buf == nil {
		return
	}
	s.buf.Destroy()
	s.invalid = true
}

// Purge wipes every memguard buffer in the process. Call on shutdown.
func Purge() {
	memguard.Purge()
}
