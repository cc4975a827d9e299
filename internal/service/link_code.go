package service

import (
	"crypto/rand"
	"fmt"
	"strings"
)

// linkCodeAlphabet omits 0/O and 1/I. Its size divides 256, so byte%len is uniform.
const linkCodeAlphabet = "ABCDEFGHJKLMNPQRSTUVWXYZ23456789"

const defaultLinkCodeLength = 8

// GenerateLinkCode returns a random code of the given length.
func GenerateLinkCode(length int) (string, error) {
	if length <= 0 {
		length = defaultLinkCodeLength
	}
	buf := make([]byte, length)
	if _, err := rand.Read(buf); err != nil {
		return "", fmt.Errorf("generate link code: %w", err)
	}
	for i, b := range buf {
		buf[i] = linkCodeAlphabet[int(b)%len(linkCodeAlphabet)]
	}
	return string(buf), nil
}

// NormalizeLinkCode canonicalizes user-typed input before lookup.
func NormalizeLinkCode(s string) string {
	return strings.ToUpper(strings.TrimSpace(s))
}

func looksLikeLinkCode(s string, length int) bool {
	if length <= 0 {
		length = defaultLinkCodeLength
	}
	if len(s) != length {
		return false
	}
	for i := 0; i < len(s); i++ {
		if strings.IndexByte(linkCodeAlphabet, s[i]) < 0 {
			return false
		}
	}
	return true
}
