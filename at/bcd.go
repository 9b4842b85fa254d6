package at

import (
	"encoding/hex"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrEmptyPayload is returned when there is nothing to encode or decode.
	ErrEmptyPayload = errors.New("at: payload is empty")

	// ErrInvalidHex is returned for text of odd length or with characters
	// outside [0-9A-Fa-f].
	ErrInvalidHex = errors.New("at: payload is not valid hex")
)

// BytesToHex encodes b as uppercase hex, two characters per byte and no
// separators, which is the payload format of at+send.
func BytesToHex(b []byte) (string, error) {
	if len(b) == 0 {
		return "", ErrEmptyPayload
	}
	return strings.ToUpper(hex.EncodeToString(b)), nil
}

// HexToBytes decodes hex text of either case.
func HexToBytes(s string) ([]byte, error) {
	if len(s) == 0 {
		return nil, ErrEmptyPayload
	}
	b, err := hex.DecodeString(s)
	if err != nil {
		return nil, errors.Wrap(ErrInvalidHex, err.Error())
	}
	return b, nil
}

// IsHex reports whether s is non-empty, of even length and made only of hex
// digits.
func IsHex(s string) bool {
	if len(s) == 0 || len(s)%2 != 0 {
		return false
	}
	for i := 0; i < len(s); i++ {
		c := s[i]
		if !('0' <= c && c <= '9' || 'a' <= c && c <= 'f' || 'A' <= c && c <= 'F') {
			return false
		}
	}
	return true
}
