package export

import (
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

// Replacement stands in for characters the PDF core fonts cannot draw.
const Replacement = '?'

var punctuation = map[rune]string{
	'‘': "'", '’': "'", '‚': "'", '‛': "'", '′': "'",
	'“': `"`, '”': `"`, '„': `"`, '‟': `"`, '″': `"`,
	'«': `"`, '»': `"`,
	'‐': "-", '‑': "-", '‒': "-", '–': "-", '—': "-", '―': "-", '−': "-",
	'•': "*", '·': "*",
	'§': "S.", '©': "(c)", '®': "(R)", '€': "EUR", '£': "GBP",
}

// Sanitize folds text to printable ASCII. Accents are stripped, typographic
// punctuation is mapped to its ASCII form and anything else becomes '?'.
// Newlines and tabs survive; carriage returns are dropped. The result depends only
// on the input.
func Sanitize(text string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)))
	folded, _, err := transform.String(t, text)
	if err != nil {
		folded = text
	}

	var b strings.Builder
	b.Grow(len(folded))
	for _, r := range folded {
		switch {
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case r == '\r':
		case r >= 0x20 && r < 0x7F:
			b.WriteRune(r)
		default:
			if s, ok := punctuation[r]; ok {
				b.WriteString(s)
			} else {
				b.WriteRune(Replacement)
			}
		}
	}
	return b.String()
}
