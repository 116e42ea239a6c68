package transctl

import (
	"crypto/sha256"
	"encoding/hex"
	"regexp"
	"strings"
)

var horizontalSpace = regexp.MustCompile(`[ \t]+`)

// HashText computes the SHA-256 hex digest of text exactly as given.
func HashText(text string) string {
	hash := sha256.Sum256([]byte(text))
	return hex.EncodeToString(hash[:])
}

// NormalizeText canonicalizes newlines to "\n", trims surrounding whitespace
// and collapses runs of spaces and tabs into a single space.
func NormalizeText(text string) string {
	if text == "" {
		return ""
	}
	text = strings.ReplaceAll(text, "\r\n", "\n")
	text = strings.ReplaceAll(text, "\r", "\n")
	text = strings.TrimSpace(text)
	return horizontalSpace.ReplaceAllString(text, " ")
}

// CacheKey identifies a translation memory entry.
type CacheKey struct {
	Lang string // Target language code
	Hash string // SHA-256 hex of the normalized protected text
}

// NewCacheKey builds the key for a protected source string and target language.
func NewCacheKey(lang, protected string) CacheKey {
	return CacheKey{Lang: lang, Hash: HashText(NormalizeText(protected))}
}

// String returns "hash:lang".
func (k CacheKey) String() string {
	return k.Hash + ":" + k.Lang
}
