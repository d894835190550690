package util

import (
	"encoding/base64"
	"encoding/hex"
)

// Token segments travel inside QR codes and URLs, so encoding is
// base64url without padding.
var b64 = base64.RawURLEncoding

func B64Encode(b []byte) string {
	return b64.EncodeToString(b)
}

func B64Decode(s string) ([]byte, error) {
	return b64.DecodeString(s)
}

func HexEncode(b []byte) string {
	return hex.EncodeToString(b)
}

func HexDecode(s string) ([]byte, error) {
	return hex.DecodeString(s)
}

func WipeBytes(b []byte) {
	for i := range b {
		b[i] = 0
	}
}
