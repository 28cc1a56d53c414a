package crypto

import (
	"crypto/rand"
	"errors"
	"math/bits"
	"unicode/utf8"
)

const (
	defaultAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZabcdefghijklmnopqrstuvwxyz0123456789_-"
	defaultSize     = 22 // 132 bits of entropy, a little more than a uuid
	maxAlphabetSize = 255
	minAlphabetSize = 8
)

var (
	ErrTooManyInputAlphabet = errors.New("must only provide 1 set of alphabet")
	ErrAlphabetTooLong      = errors.New("alphabet must contain no more than 255 characters")
	ErrAlphabetTooShort     = errors.New("alphabet must contain at least 8 characters")
	ErrAlphabetInvalidUTF8  = errors.New("alphabet must contain valid UTF-8")
	ErrAlphabetNotASCII     = errors.New("alphabet must contain only ASCII characters")
)

// NanoIDGenerator produces short URL-safe random identifiers. Session ids
// use it so the id carries no meaning and cannot be guessed.
type NanoIDGenerator struct {
	alphabet string
	mask     int
}

func NewNanoID(a ...string) (*NanoIDGenerator, error) {
	if len(a) > 1 {
		return nil, ErrTooManyInputAlphabet
	}

	alphabet := defaultAlphabet
	if len(a) == 1 && a[0] != "" {
		alphabet = a[0]
	}

	if !utf8.ValidString(alphabet) {
		return nil, ErrAlphabetInvalidUTF8
	}
	// Generate indexes by byte, so multi-byte runes would corrupt output.
	for _, r := range alphabet {
		if r > 127 {
			return nil, ErrAlphabetNotASCII
		}
	}
	if len(alphabet) > maxAlphabetSize {
		return nil, ErrAlphabetTooLong
	}
	if len(alphabet) < minAlphabetSize {
		return nil, ErrAlphabetTooShort
	}

	// Smallest all-ones mask covering every alphabet index. Sampling with
	// a mask plus rejection keeps the character distribution uniform.
	mask := 1<<bits.Len(uint(len(alphabet)-1)) - 1

	return &NanoIDGenerator{alphabet: alphabet, mask: mask}, nil
}

func (n *NanoIDGenerator) Generate(length ...int) (string, error) {
	size := defaultSize
	if len(length) > 0 && length[0] > 0 {
		size = length[0]
	}

	// Read random bytes in chunks; rejected samples just cost another pass.
	id := make([]byte, 0, size)
	buffer := make([]byte, size*2)

	for len(id) < size {
		if _, err := rand.Read(buffer); err != nil {
			return "", err
		}
		for _, b := range buffer {
			index := int(b) & n.mask
			if index < len(n.alphabet) {
				id = append(id, n.alphabet[index])
				if len(id) == size {
					break
				}
			}
		}
	}

	return string(id), nil
}
