package report

import (
	"strings"
	"unicode"

	"golang.org/x/text/encoding/charmap"
)

// replacements maps symbols that commonly appear in generated text to ASCII tokens
// before the Latin-1 pass.
var replacements = strings.NewReplacer(
	"✅", "[PASS]",
	"✔", "[PASS]",
	"❌", "[FAIL]",
	"⚠️", "[WARN]",
	"⚠", "[WARN]",
	"🚀", "",
	"🔥", "",
	"💰", "$",
	"📉", "",
	"📈", "",
	"👉", "->",
	"→", "->",
	"•", "-",
	"‘", "'",
	"’", "'",
	"“", "\"",
	"”", "\"",
	"–", "-",
	"—", "-",
	"…", "...",
	"\u00a0", " ",
	"\ufe0f", "",
)

// Sanitize makes text safe for the PDF core fonts: known symbols become ASCII tokens
// and any remaining rune outside ISO-8859-1 becomes '?'. Newlines and tabs survive;
// other control characters are dropped.
func Sanitize(s string) string {
	if s == "" {
		return ""
	}
	s = replacements.Replace(s)

	var b strings.Builder
	b.Grow(len(s))
	enc := charmap.ISO8859_1
	for _, r := range s {
		switch {
		case r == '\n' || r == '\t':
			b.WriteRune(r)
		case unicode.IsControl(r):
			// C0 and C1 controls have no glyph
		case r < 0x80:
			b.WriteRune(r)
		default:
			if _, ok := enc.EncodeRune(r); ok {
				b.WriteRune(r)
			} else {
				b.WriteByte('?')
			}
		}
	}
	return b.String()
}

// FileName builds "<Name>_<suffix>.pdf" from a display name, keeping only characters
// that are safe in a path component.
func FileName(name, suffix string) string {
	name = Sanitize(strings.TrimSpace(name))
	var b strings.Builder
	for _, r := range name {
		switch {
		case r == ' ':
			b.WriteByte('_')
		case r < 0x80 && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '-' || r == '_' || r == '.'):
			b.WriteRune(r)
		}
	}
	base := strings.Trim(b.String(), "._")
	if base == "" {
		base = "Report"
	}
	return base + "_" + suffix + ".pdf"
}

const scanTagLen = 8

// ScanFileName is FileName with a short scan tag appended, so two scans of the
// same business never share a document.
func ScanFileName(name, kind, scanID string) string {
	var tag strings.Builder
	for _, r := range scanID {
		if tag.Len() == scanTagLen {
			break
		}
		if r < 0x80 && (unicode.IsLetter(r) || unicode.IsDigit(r)) {
			tag.WriteRune(r)
		}
	}
	if tag.Len() == 0 {
		return FileName(name, kind)
	}
	return FileName(name, kind+"_"+tag.String())
}
