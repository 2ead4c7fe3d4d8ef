package common

import (
	"crypto/sha256"
	"encoding/hex"
)

// Sha256Hex computes the lowercase hex SHA-256 digest of data.
// All content digests in the system come from this one function so that
// integrity checks never depend on what a remote store reports.
func Sha256Hex(data []byte) string {
	sum := sha256.Sum256(data)
	return hex.EncodeToString(sum[:])
}

// Sha256HexString computes the digest of a UTF-8 string.
func Sha256HexString(text string) string {
	return Sha256Hex([]byte(text))
}
