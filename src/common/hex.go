package common

import (
	"encoding/hex"
	"fmt"
	"strings"
)

// EncodeToString returns the UPPERCASE string representation of hexBytes with
// the 0X prefix
func EncodeToString(hexBytes []byte) string {
	return fmt.Sprintf("0X%X", hexBytes)
}

// DecodeFromString converts a hex string with an optional 0X prefix to a byte
// slice.
func DecodeFromString(hexString string) ([]byte, error) {
	s := strings.TrimPrefix(strings.ToUpper(hexString), "0X")
	return hex.DecodeString(s)
}

// NormalizeHex upper-cases a hex string and forces the 0X prefix, so that keys
// written by hand in peers.json match the ones derived from private keys.
func NormalizeHex(hexString string) string {
	return "0X" + strings.TrimPrefix(strings.ToUpper(hexString), "0X")
}
