package utils

import (
	"crypto/rand"
	"crypto/subtle"

	"github.com/gofrs/uuid/v5"
)

func RandBytes(n int) ([]byte, error) {
	b := make([]byte, n)
	_, err := rand.Read(b)
	return b, err
}

func ConstantTimeEquals(a, b []byte) bool {
	if len(a) != len(b) {
		return false
	}
	return subtle.ConstantTimeCompare(a, b) == 1
}

// NewID returns a random v4 UUID string used as primary key for every entity.
func NewID() string {
	return uuid.Must(uuid.NewV4()).String()
}
