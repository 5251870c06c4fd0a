package game

import (
	"math/rand"
	"strings"
)

const (
	// CodeLength is the number of characters in a session code.
	CodeLength = 6

	codeAlphabet    = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"
	maxCodeAttempts = 32
)

// CodeSource yields candidate session codes. Candidates are normalised and
// checked against the live table by the engine.
type CodeSource func() string

// RandomCodes returns a CodeSource drawing uniformly from [A-Z0-9]^6.
func RandomCodes(rng *rand.Rand) CodeSource {
	return func() string {
		return randomCode(rng)
	}
}

func randomCode(rng *rand.Rand) string {
	var b strings.Builder
	b.Grow(CodeLength)
	for i := 0; i < CodeLength; i++ {
		b.WriteByte(codeAlphabet[rng.Intn(len(codeAlphabet))])
	}
	return b.String()
}

// NormalizeCode returns the canonical form of a user supplied code.
func NormalizeCode(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ValidCode reports whether code is already canonical and well formed.
func ValidCode(code string) bool {
	if len(code) != CodeLength {
		return false
	}
	for i := 0; i < len(code); i++ {
		c := code[i]
		if (c < 'A' || c > 'Z') && (c < '0' || c > '9') {
			return false
		}
	}
	return true
}
