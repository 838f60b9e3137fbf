// Package filenamecodec implements C5: obfuscating a relative source
// path into a spread output path, and the forward half of inverting
// it. Grounded on the lowercase base32 filename encoding in
// gary-kim-rclone's cipher.go (encodeFileName), adapted from rclone's
// per-segment encryption to a single HMAC over the whole relative path
// since csync does not need directory-by-directory incremental
// listing.
package filenamecodec

import (
	"crypto/hmac"
	"crypto/sha512"
	"encoding/base32"
	"fmt"
	"strings"
)

// OutputExtension is appended to every obfuscated output filename.
const OutputExtension = ".csync"

// encoding is lowercase, unpadded base32 using the hex alphabet so the
// result sorts consistently and never needs case-folding or escaping
// on case-insensitive filesystems.
var encoding = base32.HexEncoding.WithPadding(base32.NoPadding)

// Hash returns HMAC-SHA512(k_name, relativePath), the one-way digest
// every output path and ciphername is derived from.
func Hash(kName []byte, relativePath string) []byte {
	m := hmac.New(sha512.New, kName)
	m.Write([]byte(relativePath))
	return m.Sum(nil)
}

// Encode lowercase-base32-encodes a digest produced by Hash.
func Encode(digest []byte) string {
	return strings.ToLower(encoding.EncodeToString(digest))
}

// SpreadPath computes the output path for relativePath: spreadDepth
// leading characters of the encoded digest become nested one-character
// directories, the remainder of the digest is the file's base name,
// and OutputExtension is appended. It returns path segments rather
// than a joined string so callers can apply their own path separator
// and perform their own directory creation.
func SpreadPath(kName []byte, relativePath string, spreadDepth int) ([]string, error) {
	if spreadDepth < 0 {
		return nil, fmt.Errorf("spread depth must be >= 0, got %d", spreadDepth)
	}
	encoded := Encode(Hash(kName, relativePath))
	if spreadDepth > len(encoded) {
		return nil, fmt.Errorf("spread depth %d exceeds encoded length %d", spreadDepth, len(encoded))
	}
	segments := make([]string, 0, spreadDepth+1)
	for i := 0; i < spreadDepth; i++ {
		segments = append(segments, string(encoded[i]))
	}
	segments = append(segments, encoded[spreadDepth:]+OutputExtension)
	return segments, nil
}
