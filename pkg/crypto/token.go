package crypto

import (
	"crypto/rand"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"errors"
)

var (
	ErrTooManyArgs = errors.New("too many arguments. expected only 1")
)

const (
	DefaultTokenLength = 32 // 256 bits
)

// TokenPair couples the raw secret handed to a client with the hash kept in
// storage. Session tokens, auth tickets and anti-forgery state values all
// use this scheme.
type TokenPair struct {
	Value string // value returned to client
	Hash  string // value in storage
}

// RandomToken returns a URL-safe random string of byteLength random bytes
// (DefaultTokenLength when omitted).
func RandomToken(byteLength ...int) (string, error) {
	if len(byteLength) > 1 {
		return "", ErrTooManyArgs
	}

	length := DefaultTokenLength
	if len(byteLength) > 0 && byteLength[0] > 0 {
		length = byteLength[0]
	}

	bytes := make([]byte, length)
	if _, err := rand.Read(bytes); err != nil {
		return "", err
	}

	return base64.RawURLEncoding.EncodeToString(bytes), nil
}

// NewTokenPair generates a fresh random token together with its storage hash.
func NewTokenPair(byteLength ...int) (*TokenPair, error) {
	token, err := RandomToken(byteLength...)
	if err != nil {
		return nil, err
	}

	return &TokenPair{
		Value: token,
		Hash:  HashToken(token),
	}, nil
}

// HashToken maps a raw token to its storage form.
func HashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}

// VerifyTokenHash checks a raw token against a stored hash.
func VerifyTokenHash(token, storedHash string) (bool, error) {
	if token == "" || storedHash == "" {
		return false, errors.New("token and hash cannot be empty")
	}

	tokenHash := HashToken(token)

	// Constant-time comparison to prevent timing attacks
	return subtle.ConstantTimeCompare([]byte(tokenHash), []byte(storedHash)) == 1, nil
}
