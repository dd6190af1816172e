package randhex

import (
	"crypto/rand"
	"encoding/hex"
)

type Generator struct{}

func New() Generator {
	return Generator{}
}

// Generate returns a random lowercase hex string of the given length,
// drawn from crypto/rand.
func (Generator) Generate(length int) string {
	buf := make([]byte, (length+1)/2)
	if _, err := rand.Read(buf); err != nil {
		// crypto/rand never fails on supported platforms
		panic(err)
	}

	return hex.EncodeToString(buf)[:length]
}
