package auth

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"math/big"
)

// GenerateCode creates a 6-digit zero-padded numeric code using crypto/rand.
func GenerateCode() (string, error) {
	max := big.NewInt(1000000)
	n, err := rand.Int(rand.Reader, max)
	if err != nil {
		return "", fmt.Errorf("generating random code: %w", err)
	}
	return fmt.Sprintf("%06d", n.Int64()), nil
}

// GenerateOpaqueToken returns a hex-encoded random token of length random bytes.
func GenerateOpaqueToken(length int) (string, error) {
	b := make([]byte, length)
	if _, err := rand.Read(b); err != nil {
		return "", fmt.Errorf("generating opaque token: %w", err)
	}
	return hex.EncodeToString(b), nil
}

// HashCode derives the stored hash for a verification code. The email is mixed
// in so a code is only valid for the address it was issued to.
func HashCode(email, code string) string {
	return hashString(email + ":" + code)
}

// HashSessionToken derives the stored hash for an opaque session or refresh
// token. Only the hash ever touches the database.
func HashSessionToken(token string) string {
	return hashString(token)
}

func hashString(s string) string {
	h := sha256.Sum256([]byte(s))
	return hex.EncodeToString(h[:])
}
