// Package textutil normalizes Persian transcript text before it is shown to
// the user for confirmation.
//
// Speech recognition output frequently mixes Arabic and Persian letter forms
// and carries stray invisible characters; this package canonicalizes both so
// edits and confirmations operate on stable text.
package textutil

import (
	"regexp"
	"strings"
)

// Arabic letter forms and digits mapped to their Persian equivalents. The
// zero-width non-joiner is deliberately NOT removed: it is meaningful in
// Persian orthography.
const (
	arabicYeh     = "ي" // ي
	arabicKaf     = "ك" // ك
	alefMaksura   = "ى" // ى
	tehMarbuta    = "ة" // ة
	persianYeh    = "ی" // ی
	persianKaf    = "ک" // ک
	persianHeh    = "ه" // ه
	zeroWidthSpc  = "​"
	leftToRight   = "‎"
	rightToLeft   = "‏"
	byteOrderMark = "\uFEFF"
)

const whitespaceRegexPattern = `[ \t\r\n]+`

// Normalizer canonicalizes raw transcripts into Persian display form.
type Normalizer struct {
	letterReplacer    *strings.Replacer
	digitReplacer     *strings.Replacer
	whitespacePattern *regexp.Regexp
}

// NewNormalizer creates a normalizer with precompiled replacers and patterns.
func NewNormalizer() *Normalizer {
	letters := []string{
		arabicYeh, persianYeh,
		arabicKaf, persianKaf,
		alefMaksura, persianYeh,
		tehMarbuta, persianHeh,
		zeroWidthSpc, "",
		leftToRight, "",
		rightToLeft, "",
		byteOrderMark, "",
	}

	// Arabic-Indic digits to their Extended (Persian) forms.
	digits := []string{
		"٠", "۰",
		"١", "۱",
		"٢", "۲",
		"٣", "۳",
		"٤", "۴",
		"٥", "۵",
		"٦", "۶",
		"٧", "۷",
		"٨", "۸",
		"٩", "۹",
	}

	return &Normalizer{
		letterReplacer:    strings.NewReplacer(letters...),
		digitReplacer:     strings.NewReplacer(digits...),
		whitespacePattern: regexp.MustCompile(whitespaceRegexPattern),
	}
}

// Normalize canonicalizes letter forms and digits, strips invisible
// formatting characters, and collapses runs of whitespace.
func (n *Normalizer) Normalize(text string) string {
	if text == "" {
		return text
	}

	normalized := n.letterReplacer.Replace(text)
	normalized = n.digitReplacer.Replace(normalized)
	normalized = n.whitespacePattern.ReplaceAllString(normalized, " ")

	return strings.TrimSpace(normalized)
}
