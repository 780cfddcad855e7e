// Package hexkey maps block digests to object keys and back.
//
// An object key is `<prefix><hex-digest>` where the prefix is empty or ends
// in exactly one path separator. Decoding never guesses: a key that is not
// under the prefix, or whose remainder is not valid hex, is rejected rather
// than mis-parsed.
package hexkey

import (
	"encoding/hex"
	"errors"
	"fmt"
	"strings"

	mh "github.com/multiformats/go-multihash"
)

var (
	// ErrNotUnderPrefix is returned when a key does not start with the
	// configured prefix.
	ErrNotUnderPrefix = errors.New("key not under prefix")

	// ErrNotHex is returned when the key remainder after the prefix is
	// not a valid hexadecimal sequence.
	ErrNotHex = errors.New("key suffix is not hexadecimal")
)

// Normalize trims whitespace and path separators from a prefix. The result
// is empty (no prefix) or ends in exactly one separator.
//
//	Normalize("")            == ""
//	Normalize("   ")         == ""
//	Normalize("///")         == ""
//	Normalize("/foo/bar/  ") == "foo/bar/"
func Normalize(prefix string) string {
	prefix = strings.TrimSpace(prefix)
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		return ""
	}
	return prefix + "/"
}

// Encode builds the object key for a digest under a normalized prefix.
func Encode(prefix string, id mh.Multihash) string {
	return prefix + id.HexString()
}

// SubKey strips the prefix from a key, reporting false when the key is not
// under the prefix.
func SubKey(prefix, key string) (string, bool) {
	if !strings.HasPrefix(key, prefix) {
		return "", false
	}
	return key[len(prefix):], true
}

// Decode parses an object key back into a digest.
//
// The error wraps ErrNotUnderPrefix or ErrNotHex for the two rejection
// cases; hex that does not form a structurally valid multihash fails with
// the multihash decode error.
func Decode(prefix, key string) (mh.Multihash, error) {
	sub, ok := SubKey(prefix, key)
	if !ok {
		return nil, fmt.Errorf("%w: %q does not start with %q", ErrNotUnderPrefix, key, prefix)
	}

	raw, err := hex.DecodeString(sub)
	if err != nil || len(sub) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotHex, sub)
	}

	id, err := mh.Cast(raw)
	if err != nil {
		return nil, fmt.Errorf("decode digest from %q: %w", sub, err)
	}
	return id, nil
}
