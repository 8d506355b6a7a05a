// Package ethaddr validates and normalizes Ethereum-style account addresses.
package ethaddr

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/sha3"
)

const hexLength = 40

// IsValid reports whether s is 0x followed by 40 hex characters in any case.
func IsValid(s string) bool {
	if len(s) != 2+hexLength || !(strings.HasPrefix(s, "0x") || strings.HasPrefix(s, "0X")) {
		return false
	}
	_, err := hex.DecodeString(s[2:])
	return err == nil
}

// IsChecksummed is IsValid plus EIP-55: all-lower and all-upper bodies carry
// no checksum and pass, mixed case must match Checksum exactly.
func IsChecksummed(s string) bool {
	if !IsValid(s) {
		return false
	}
	body := s[2:]
	if body == strings.ToLower(body) || body == strings.ToUpper(body) {
		return true
	}
	return Checksum(body) == "0x"+body
}

// Normalize lower-cases an address for storage and comparison.
func Normalize(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Checksum returns the EIP-55 mixed-case form of an address. The input may
// carry a 0x prefix and any case; it is not validated.
func Checksum(address string) string {
	body := strings.ToLower(strings.TrimPrefix(strings.TrimPrefix(address, "0x"), "0X"))

	hasher := sha3.NewLegacyKeccak256()
	hasher.Write([]byte(body))
	digest := hex.EncodeToString(hasher.Sum(nil))

	out := []byte(body)
	for i, c := range out {
		if c >= 'a' && c <= 'f' && digest[i] >= '8' {
			out[i] = c - 'a' + 'A'
		}
	}
	return "0x" + string(out)
}
