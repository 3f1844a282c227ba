package analysis

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
)

// seedHexLen is how many leading hex characters of a digest form the seed.
const seedHexLen = 8

// ImageDigest is the hex SHA-256 of an uploaded image. It is only an entropy
// source for the fallback path and carries no integrity meaning.
type ImageDigest string

// DigestOf returns the digest of the image bytes.
func DigestOf(image []byte) ImageDigest {
	sum := sha256.Sum256(image)
	return ImageDigest(hex.EncodeToString(sum[:]))
}

// Seed is the first 8 hex characters read as an unsigned 32-bit integer.
// A malformed digest yields 0.
func (d ImageDigest) Seed() uint64 {
	if len(d) < seedHexLen {
		return 0
	}
	h, err := strconv.ParseUint(string(d[:seedHexLen]), 16, 32)
	if err != nil {
		return 0
	}
	return h
}

// Short is the digest prefix used in logs.
func (d ImageDigest) Short() string {
	if len(d) < seedHexLen {
		return string(d)
	}
	return string(d[:seedHexLen])
}
