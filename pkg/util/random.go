package util

import (
	"math/rand"
)

var keyRunes = []rune("abcdefghijklmnopqrstuvwxyz0123456789")

// KeySuffix returns a short random string suitable for object-key suffixes.
// Lowercase alphanumeric only, so the result stays URL- and filesystem-safe.
// Uses the locked package-level source, so it is safe from concurrent
// request goroutines.
func KeySuffix(n int) string {
	b := make([]rune, n)
	for i := range b {
		b[i] = keyRunes[rand.Intn(len(keyRunes))]
	}
	return string(b)
}
