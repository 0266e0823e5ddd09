package trigger

import (
	"crypto/rand"
	"crypto/subtle"

	"golang.org/x/crypto/argon2"
)

const (
	saltSize    = 16
	keySize     = 32
	memory      = 64 * 1024
	iterations  = 1
	parallelism = 4
)

func deriveKey(password, salt []byte) []byte {
	return argon2.IDKey(password, salt, iterations, memory, uint8(parallelism), keySize)
}

// HashPassword returns salt|key for a PASSWORD privacy site.
func HashPassword(password string) ([]byte, error) {
	salt := make([]byte, saltSize)
	if _, err := rand.Read(salt); err != nil {
		return nil, err
	}
	return append(salt, deriveKey([]byte(password), salt)...), nil
}

// VerifyPassword reports whether password matches a hash from HashPassword.
func VerifyPassword(hash []byte, password string) bool {
	if len(hash) != saltSize+keySize {
		return false
	}
	key := deriveKey([]byte(password), hash[:saltSize])
	return subtle.ConstantTimeCompare(key, hash[saltSize:]) == 1
}
