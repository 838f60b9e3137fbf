package crypto

import (
	"crypto/hmac"
	"crypto/sha512"
	"fmt"
	"hash"
)

// TagSize is the length in bytes of an HMAC-SHA512 tag.
const TagSize = sha512.Size

// MAC is the additive authentication contract: unlike Stage, it never
// transforms or returns bytes from Write, only accumulates them, and
// Sum is only meaningful once every byte covered by the tag has been
// written. Encrypt-then-MAC composition (header and ciphertext both fed
// to one MAC, per DESIGN NOTES §9) is built by calling Write on this
// interface rather than threading it through a Stage pipeline.
type MAC interface {
	Write(p []byte) (int, error)
	Sum() []byte
}

type hmacMAC struct {
	h hash.Hash
}

// NewMAC constructs a MAC keyed by a 64-byte subkey derived for the
// "mac" label (internal/keyschedule). HMAC-SHA512 is the only supported
// MAC id today; id is accepted so new MACs can be added without changing
// every call site.
func NewMAC(id MACID, key []byte) (MAC, error) {
	switch id {
	case MACHMACSHA512:
		return &hmacMAC{h: hmac.New(sha512.New, key)}, nil
	default:
		return nil, fmt.Errorf("unsupported mac id %d", id)
	}
}

func (m *hmacMAC) Write(p []byte) (int, error) {
	return m.h.Write(p)
}

func (m *hmacMAC) Sum() []byte {
	return m.h.Sum(nil)
}

// VerifyTag compares a computed tag against the trailer read from a
// file in constant time, so a bit-by-bit timing oracle can't leak which
// prefix of the tag matched.
func VerifyTag(computed, trailer []byte) bool {
	return hmac.Equal(computed, trailer)
}
