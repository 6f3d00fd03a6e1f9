package downloader

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var foldTransformer = transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)

// sanitizeAuthor folds an author display name into a safe directory name:
// diacritics stripped, spaces underscored, anything outside [A-Za-z0-9._-]
// dropped.
func sanitizeAuthor(author string) string {
	folded, _, err := transform.String(foldTransformer, author)
	if err != nil {
		folded = author
	}

	var b strings.Builder
	for _, r := range folded {
		switch {
		case r == ' ':
			b.WriteByte('_')
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9',
			r == '.', r == '_', r == '-':
			b.WriteRune(r)
		}
	}

	name := strings.Trim(b.String(), "._")
	if name == "" {
		return "unknown"
	}
	return name
}
