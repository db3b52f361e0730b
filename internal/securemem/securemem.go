// Package securemem keeps credentials in memguard-protected buffers so API
// keys do not sit in ordinary heap memory for the lifetime of the process.
package securemem

import (
	"crypto/subtle"
	"sync"

	"github.com/awnumar/memguard"
)

// String is a secret held in a locked buffer.
type String struct {
	mu  sync.RWMutex
	buf *memguard.LockedBuffer
}

// NewString moves plaintext into a locked buffer.
func NewString(plaintext string) *String {
	if plaintext == "" {
		return &String{}
	}
	return &String{buf: memguard.NewBufferFromBytes([]byte(plaintext))}
}

// Reveal returns a plaintext copy. The copy lives in regular memory, so
// callers should hand it straight to the consumer that needs it.
func (s *String) Reveal() string {
	if s == nil {
		return ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.buf == nil || !s.buf.IsAlive() {
		return ""
	}
	return string(s.buf.Bytes())
}

// IsEmpty reports whether no secret is held.
func (s *String) IsEmpty() bool {
	if s == nil {
		return true
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.buf == nil || !s.buf.IsAlive() || s.buf.Size() == 0
}

// Equal compares against plaintext in constant time.
func (s *String) Equal(other string) bool {
	if s.IsEmpty() {
		return other == ""
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	return subtle.ConstantTimeCompare(s.buf.Bytes(), []byte(other)) == 1
}

// String never prints the secret.
func (s *String) String() string {
	if s.IsEmpty() {
		return "<empty>"
	}
	return "<redacted>"
}

// Destroy wipes the buffer. Later calls to Reveal return "".
func (s *String) Destroy() {
	if s == nil {
		return
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.buf != nil {
		s.buf.Destroy()
		s.buf = nil
	}
}

// Purge wipes every locked buffer in the process. Call it once before exit.
func Purge() {
	memguard.Purge()
}
