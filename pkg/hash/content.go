package hash

import (
	"encoding/hex"
	"strings"

	"golang.org/x/crypto/blake2b"
)

// Normalize canonicalizes note content before comparison: line endings become LF,
// trailing whitespace is dropped per line and the whole text is trimmed.
func Normalize(content string) string {
	content = strings.ReplaceAll(content, "\r\n", "\n")
	content = strings.ReplaceAll(content, "\r", "\n")

	lines := strings.Split(content, "\n")
	for i, line := range lines {
		lines[i] = strings.TrimRight(line, " \t")
	}

	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// Fingerprint returns a hex blake2b-256 digest of the normalized content.
func Fingerprint(content string) string {
	sum := blake2b.Sum256([]byte(Normalize(content)))
	return hex.EncodeToString(sum[:])
}

func Equal(a, b string) bool {
	return Fingerprint(a) == Fingerprint(b)
}
