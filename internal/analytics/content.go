package analytics

import (
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

var (
	interrogative = regexp.MustCompile(`^(what|how|why|when|where|who|can|could|would|should|is|are|do|does|did)\b`)
	urlLike       = regexp.MustCompile(`(?i)(https?://|www\.)\S+`)
)

// pictographic covers the emoticon, symbol, transport, flag and supplemental
// symbol blocks plus the BMP dingbat and miscellaneous symbol blocks.
var pictographic = &unicode.RangeTable{
	R16: []unicode.Range16{
		{Lo: 0x2600, Hi: 0x27bf, Stride: 1},
	},
	R32: []unicode.Range32{
		{Lo: 0x1f1e0, Hi: 0x1f1ff, Stride: 1},
		{Lo: 0x1f300, Hi: 0x1f5ff, Stride: 1},
		{Lo: 0x1f600, Hi: 0x1f64f, Stride: 1},
		{Lo: 0x1f680, Hi: 0x1f6ff, Stride: 1},
		{Lo: 0x1f900, Hi: 0x1faff, Stride: 1},
	},
}

// IsQuestion reports whether body contains a question mark or opens with an
// interrogative word.
func IsQuestion(body string) bool {
	if strings.Contains(body, "?") {
		return true
	}
	return interrogative.MatchString(strings.ToLower(strings.TrimSpace(body)))
}

// HasLink reports whether body contains a URL-like substring.
func HasLink(body string) bool {
	return urlLike.MatchString(body)
}

// HasEmoji reports whether body contains at least one pictographic code point.
func HasEmoji(body string) bool {
	for _, r := range body {
		if unicode.Is(pictographic, r) {
			return true
		}
	}
	return false
}

// Length is the character (code point) length of body.
func Length(body string) int {
	return utf8.RuneCountInString(body)
}
