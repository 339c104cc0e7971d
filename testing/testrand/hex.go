// Package testrand generates names that are unique enough for test resources.
package testrand

import (
	"encoding/hex"
	"math/rand"
)

// Hex returns n random hex characters. It is not cryptographically random.
func Hex(n int) string {
	b := make([]byte, n/2+1)
	//#nosec:G404 // this is just for test IDs
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)[:n]
}

// Prefixed puts a six character random prefix in front of name, eg. "3fa2c1-todo".
func Prefixed(name string) string {
	return Hex(6) + "-" + name
}
