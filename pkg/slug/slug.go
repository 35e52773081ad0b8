package slug

import (
	"path"
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

var slugRegexp = regexp.MustCompile(`[^a-z0-9]+`)

// Letters that do not decompose into a base letter plus a mark.
var undecomposable = strings.NewReplacer(
	"ı", "i", "ß", "ss", "ø", "o", "ł", "l", "đ", "d", "æ", "ae", "œ", "oe",
)

// Generate creates a URL-friendly slug from the given name. Accented Latin
// letters are folded to ASCII.
//
// Examples:
//   - "Kadın Giyim" → "kadin-giyim"
//   - "Café Crème" → "cafe-creme"
//   - "Hello   World!" → "hello-world"
func Generate(name string) string {
	s := strings.ToLower(strings.TrimSpace(name))
	s = undecomposable.Replace(s)

	folded, _, err := transform.String(transform.Chain(norm.NFD, runes.Remove(runes.In(unicode.Mn)), norm.NFC), s)
	if err == nil {
		s = folded
	}

	s = slugRegexp.ReplaceAllString(s, "-")
	return strings.Trim(s, "-")
}

// Filename slugs the base name of a file and keeps its extension, both
// lowercased. A name with nothing left after slugging becomes "file".
func Filename(name string) string {
	name = path.Base(strings.ReplaceAll(name, `\`, "/"))
	base, ext := name, strings.ToLower(path.Ext(name))
	if len(ext) > 1 && !slugRegexp.MatchString(ext[1:]) {
		base = strings.TrimSuffix(name, path.Ext(name))
	} else {
		ext = ""
	}
	base = Generate(base)
	if base == "" {
		base = "file"
	}
	return base + ext
}
