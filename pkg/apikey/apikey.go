// Package apikey provides the single authentication primitive the party
// admin surface needs: comparing an X-API-Key header against one configured
// static key.
package apikey

import "crypto/subtle"

// Valid reports whether candidate matches expected using a constant-time
// comparison, so response timing can't be used to guess the key byte by
// byte.
func Valid(expected, candidate string) bool {
	if expected == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(expected), []byte(candidate)) == 1
}
