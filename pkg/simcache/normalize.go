package simcache

import (
	"crypto/sha256"
	"encoding/hex"
	"strings"
	"unicode"
)

// contractions expanded during canonicalization. Lower-case keys; applied on
// word boundaries after case folding.
var contractions = map[string]string{
	"can't":     "cannot",
	"won't":     "will not",
	"don't":     "do not",
	"doesn't":   "does not",
	"didn't":    "did not",
	"isn't":     "is not",
	"aren't":    "are not",
	"wasn't":    "was not",
	"weren't":   "were not",
	"couldn't":  "could not",
	"shouldn't": "should not",
	"wouldn't":  "would not",
	"haven't":   "have not",
	"hasn't":    "has not",
	"hadn't":    "had not",
	"i'm":       "i am",
	"i've":      "i have",
	"i'll":      "i will",
	"i'd":       "i would",
	"it's":      "it is",
	"that's":    "that is",
	"there's":   "there is",
	"what's":    "what is",
	"they're":   "they are",
	"we're":     "we are",
	"you're":    "you are",
	"they've":   "they have",
	"we've":     "we have",
	"you've":    "you have",
	"let's":     "let us",
}

// NormalizeText canonicalizes text for the normalized cache tier: case fold,
// expand common contractions, strip punctuation except terminal `. ! ?`, and
// collapse whitespace. Idempotent: NormalizeText(NormalizeText(s)) == NormalizeText(s).
func NormalizeText(text string) string {
	lowered := strings.ToLower(strings.TrimSpace(text))
	if lowered == "" {
		return ""
	}

	words := strings.Fields(lowered)
	out := make([]string, 0, len(words))
	for i, word := range words {
		terminal := ""
		trimmed := strings.TrimRightFunc(word, func(r rune) bool {
			return unicode.IsPunct(r) || unicode.IsSymbol(r)
		})
		// Keep a single sentence terminator only on the final word.
		if i == len(words)-1 && len(trimmed) < len(word) {
			switch word[len(trimmed)] {
			case '.', '!', '?':
				terminal = string(word[len(trimmed)])
			}
		}
		if expanded, ok := contractions[trimmed]; ok {
			trimmed = expanded
		} else {
			trimmed = stripInnerPunct(trimmed)
			if expanded, ok := contractions[trimmed]; ok {
				trimmed = expanded
			}
		}
		if trimmed == "" {
			continue
		}
		out = append(out, trimmed+terminal)
	}
	return strings.Join(out, " ")
}

func stripInnerPunct(word string) string {
	var b strings.Builder
	b.Grow(len(word))
	for _, r := range word {
		if unicode.IsPunct(r) || unicode.IsSymbol(r) {
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// ContentHash returns the stable hex digest used for content addressing.
func ContentHash(text string) string {
	sum := sha256.Sum256([]byte(text))
	return hex.EncodeToString(sum[:])
}

// excerpt returns a bounded prefix of text for diagnostics and snapshots.
func excerpt(text string) string {
	const maxExcerpt = 120
	if len(text) <= maxExcerpt {
		return text
	}
	return text[:maxExcerpt]
}
