// Package testrand makes random names for resources tests create.
package testrand

import (
	"encoding/hex"
	"math/rand"
	"strings"
)

// Hex produces an insecure random number hex encoded to a string of n characters.
// If n is odd the string won't be valid hex, but only holds hex characters.
func Hex(n int) string {
	b := make([]byte, n/2+1)
	//#nosec:G404 // this is just for test IDs
	_, err := rand.Read(b)
	if err != nil {
		panic(err)
	}
	return hex.EncodeToString(b)[:n]
}

// Name returns prefix with a random suffix, with path separators replaced so
// that test names can be used as queue names.
func Name(prefix string) string {
	prefix = strings.NewReplacer("/", "-", " ", "_").Replace(prefix)
	return prefix + "-" + Hex(12)
}
