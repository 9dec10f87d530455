// Package utils holds small helpers shared across packages.
package utils

import (
	"crypto/md5"
	"fmt"
)

// HashString returns the hex md5 digest of input. Equipment keys carry
// arbitrary manufacturer and model text, so the redis claim and result keys
// are derived from this digest instead of the raw key.
func HashString(input string) string {
	hash := md5.Sum([]byte(input))
	return fmt.Sprintf("%x", hash)
}
