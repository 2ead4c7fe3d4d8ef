package common

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSha256Hex(t *testing.T) {
	assert.Equal(t,
		"2cf24dba5fb0a30e26e83b2ac5b9e29e1b161e5c1fa7425e73043362938b9824",
		Sha256Hex([]byte("hello")))
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Sha256Hex(nil))
	assert.Len(t, Sha256Hex([]byte("anything")), 64)
}

func TestSha256HexString(t *testing.T) {
	text := "session transcript with unicode: 世界"
	assert.Equal(t, Sha256Hex([]byte(text)), Sha256HexString(text))

	// Same input, same digest. Different input, different digest.
	assert.Equal(t, Sha256HexString("a"), Sha256HexString("a"))
	assert.NotEqual(t, Sha256HexString("a"), Sha256HexString("b"))
}
