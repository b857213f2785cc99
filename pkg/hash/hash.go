// Package hash derives stable, fixed-width identities from ordered field
// tuples. The same fields in the same order always produce the same id,
// regardless of how the source payload was keyed.
package hash

import (
	"encoding/hex"
	"strings"

	"github.com/minio/highwayhash"
)

// Fixed key so identities are reproducible across processes and builds.
var key = []byte("FABRIC-LINEAGE-IDENTITY-KEY-0001")

const fieldDelimiter = "|"

// Sum returns the hex-encoded 128-bit highwayhash of data.
func Sum(data []byte) string {
	h := highwayhash.Sum128(data, key)
	return hex.EncodeToString(h[:])
}

// Signature hashes an ordered list of fields. Missing values must be passed
// as empty strings, never dropped, so field position stays fixed.
func Signature(fields ...string) string {
	return Sum([]byte(strings.Join(fields, fieldDelimiter)))
}
