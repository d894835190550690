package util

import (
	"crypto/rand"
	"fmt"
	"math/big"
	"strings"
)

const digitAlphabet = "0123456789"

// RandomDigits returns a string of n decimal digits suitable for codes
// that are read aloud or typed on a keypad.
func RandomDigits(n int) (string, error) {
	var sb strings.Builder
	for i := 0; i < n; i++ {
		idx, err := RandomIntn(len(digitAlphabet))
		if err != nil {
			return "", fmt.Errorf("generating random digit index: %w", err)
		}
		sb.WriteByte(digitAlphabet[idx])
	}
	return sb.String(), nil
}

func RandomIntn(max int) (int, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(int64(max)))
	if err != nil {
		return 0, fmt.Errorf("generating random number: %w", err)
	}
	return int(n.Int64()), nil
}
