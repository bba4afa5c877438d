package utils

import (
	"crypto/hmac"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"strings"
)

// MaskPhone hides all but the last four digits of a phone number.
func MaskPhone(phone string) string {
	r := []rune(phone)
	if len(r) <= 4 {
		return strings.Repeat("*", len(r))
	}
	return strings.Repeat("*", len(r)-4) + string(r[len(r)-4:])
}

// DecoyIndex maps value to a stable index in [0, n) keyed by secret. It lets
// lookups for unknown identifiers answer with the same shape and the same
// answer on every call.
func DecoyIndex(secret []byte, value string, n int) int {
	if n <= 0 {
		return 0
	}
	mac := hmac.New(sha256.New, secret)
	mac.Write([]byte(value))
	sum := mac.Sum(nil)
	return int(binary.BigEndian.Uint32(sum[:4]) % uint32(n))
}

// DecoyPhone returns a masked phone number derived from value, shaped like
// MaskPhone output for an eight digit number.
func DecoyPhone(secret []byte, value string) string {
	return MaskPhone(fmt.Sprintf("0000%04d", DecoyIndex(secret, "phone:"+value, 10000)))
}
