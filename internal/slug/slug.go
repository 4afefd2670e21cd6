// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 Topiq Contributors

// Package slug normalizes alias text and mints human-readable topic
// identifiers from free-text queries in Arabic, English, or a mix.
package slug

import (
	"regexp"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"
)

const maxSlugLen = 30

// NormalizeAlias canonicalizes alias text for storage and lookup:
// NFKD normalization, combining marks (Arabic diacritics, Latin
// accents) stripped, whitespace collapsed, Latin letters lowercased.
func NormalizeAlias(s string) string {
	t := transform.Chain(norm.NFKD, runes.Remove(runes.In(unicode.Mn)), norm.NFC)
	out, _, err := transform.String(t, s)
	if err != nil {
		out = s
	}
	out = strings.Join(strings.Fields(out), " ")
	return strings.ToLower(out)
}

// Language buckets for query text.
const (
	LangArabic  = "arabic"
	LangEnglish = "english"
	LangMixed   = "mixed"
	LangUnknown = "unknown"
)

// DetectLanguage classifies text by the ratio of Arabic letters to all
// letters.
func DetectLanguage(text string) string {
	var arabic, total int
	for _, r := range text {
		if !unicode.IsLetter(r) {
			continue
		}
		total++
		if r >= 0x0600 && r <= 0x06FF {
			arabic++
		}
	}
	if total == 0 {
		return LangUnknown
	}
	switch ratio := float64(arabic) / float64(total); {
	case ratio > 0.5:
		return LangArabic
	case ratio > 0:
		return LangMixed
	default:
		return LangEnglish
	}
}

var nonKeyChars = regexp.MustCompile(`[^a-z0-9_\x{0600}-\x{06FF}]+`)
var underscoreRuns = regexp.MustCompile(`_+`)

// Make mints a topic identifier from the query that created it: the
// first three meaningful words (stop words removed), snake_cased, with
// Arabic transliterated to Latin. Never returns an empty string.
func Make(query string) string {
	normalized := NormalizeAlias(query)

	var meaningful []string
	for _, word := range strings.Fields(normalized) {
		clean := strings.Map(func(r rune) rune {
			if unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_' {
				return r
			}
			return -1
		}, word)
		if clean == "" || len([]rune(clean)) < 2 || stopWords[clean] {
			continue
		}
		meaningful = append(meaningful, clean)
		if len(meaningful) == 3 {
			break
		}
	}

	if len(meaningful) == 0 {
		// Fall back to the first word of any substance.
		for _, word := range strings.Fields(normalized) {
			clean := nonKeyChars.ReplaceAllString(word, "")
			if len([]rune(clean)) > 2 {
				meaningful = []string{clean}
				break
			}
		}
	}
	if len(meaningful) == 0 {
		return "topic_query"
	}

	key := strings.Join(meaningful, "_")
	key = nonKeyChars.ReplaceAllString(key, "")
	key = transliterateArabic(key)
	key = underscoreRuns.ReplaceAllString(key, "_")
	key = strings.Trim(key, "_")

	if key == "" {
		return "topic_query"
	}
	if r := []rune(key); len(r) > maxSlugLen {
		key = strings.Trim(string(r[:maxSlugLen]), "_")
	}
	return key
}

var arabicLatin = map[rune]string{
	'ا': "a", 'أ': "a", 'إ': "i", 'آ': "a", 'ب': "b", 'ت': "t", 'ث': "th",
	'ج': "j", 'ح': "h", 'خ': "kh", 'د': "d", 'ذ': "th", 'ر': "r", 'ز': "z",
	'س': "s", 'ش': "sh", 'ص': "s", 'ض': "d", 'ط': "t", 'ظ': "z", 'ع': "a",
	'غ': "gh", 'ف': "f", 'ق': "q", 'ك': "k", 'ل': "l", 'م': "m", 'ن': "n",
	'ه': "h", 'و': "w", 'ي': "y", 'ى': "a", 'ة': "a", 'ء': "", 'ئ': "y",
	'ؤ': "w", 'ـ': "",
}

func transliterateArabic(s string) string {
	var b strings.Builder
	for _, r := range s {
		if lat, ok := arabicLatin[r]; ok {
			b.WriteString(lat)
			continue
		}
		if r <= unicode.MaxASCII && (unicode.IsLetter(r) || unicode.IsDigit(r) || r == '_') {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// stopWords are filler words excluded from minted identifiers, in both
// supported languages.
var stopWords = buildStopWords()

func buildStopWords() map[string]bool {
	words := []string{
		// English
		"the", "a", "an", "is", "are", "was", "were", "be", "been", "being",
		"have", "has", "had", "do", "does", "did", "will", "would", "could",
		"should", "may", "might", "must", "shall", "can", "need", "to", "of",
		"in", "for", "on", "with", "at", "by", "from", "as", "into", "about",
		"what", "which", "who", "whom", "this", "that", "these", "those",
		"when", "where", "why", "how", "all", "each", "some", "such", "no",
		"nor", "not", "so", "than", "too", "very", "just", "am", "i", "me",
		"my", "we", "our", "you", "your", "he", "him", "his", "she", "her",
		"it", "its", "they", "them", "their",
		// Arabic
		"في", "من", "على", "إلى", "الى", "عن", "مع", "هل", "ما", "كيف",
		"متى", "أين", "اين", "لماذا", "هذا", "هذه", "التي", "الذي", "أن",
		"ان", "كان", "يكون", "هي", "هو", "انا", "انت", "نحن", "شو", "وين",
		"ليش",
	}
	m := make(map[string]bool, len(words))
	for _, w := range words {
		m[NormalizeAlias(w)] = true
	}
	return m
}
