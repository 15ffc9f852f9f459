package magiccode

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

// DefaultAlphabet excludes the digit 0 and the letter O to avoid
// visual confusion when codes are read or typed by humans.
const DefaultAlphabet = "123456789ABCDEFGHIJKLMNPQRSTUVWXYZ"

// DefaultCodeLength is the number of alphabet symbols in a code, not
// counting the separator dash.
const DefaultCodeLength = 6

// Generator produces random code values like "2CV-UGB". Generated
// values are not guaranteed unique; callers pair it with a store
// lookup.
type Generator struct {
	alphabet string
	length   int
}

func NewGenerator(alphabet string, length int) *Generator {
	if alphabet == "" {
		alphabet = DefaultAlphabet
	}
	if length <= 0 {
		length = DefaultCodeLength
	}

	return &Generator{
		alphabet: alphabet,
		length:   length,
	}
}

// Generate draws symbols from the alphabet using a cryptographically
// secure source and inserts a dash after the first half of the code.
func (g *Generator) Generate() (string, error) {
	var buf strings.Builder
	buf.Grow(g.length + 1)

	max := big.NewInt(int64(len(g.alphabet)))

	for i := 0; i < g.length; i++ {
		n, err := rand.Int(rand.Reader, max)
		if err != nil {
			return "", fmt.Errorf("failed to draw random symbol: %w", err)
		}

		buf.WriteByte(g.alphabet[n.Int64()])

		if g.length > 1 && i == (g.length+1)/2-1 {
			buf.WriteByte('-')
		}
	}

	return buf.String(), nil
}
