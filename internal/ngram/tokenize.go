package ngram

import (
	"strings"
	"unicode"

	"golang.org/x/text/unicode/norm"
)

// Tokenize splits a sentence into normalized word tokens: NFKC, lowercase,
// curly apostrophes folded, surrounding punctuation trimmed. Tokens that
// hold no letter or digit are dropped.
func Tokenize(s string) []string {
	s = strings.ToLower(norm.NFKC.String(s))
	s = strings.NewReplacer("’", "'", "‘", "'").Replace(s)

	fields := strings.FieldsFunc(s, func(r rune) bool {
		return unicode.IsSpace(r) || r == '—' || r == '–' || r == '/'
	})
	tokens := make([]string, 0, len(fields))
	for _, f := range fields {
		f = strings.TrimFunc(f, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r)
		})
		if f != "" {
			tokens = append(tokens, f)
		}
	}
	return tokens
}

// Normalize returns the canonical surface form of a phrase.
func Normalize(phrase string) string {
	return strings.Join(Tokenize(phrase), " ")
}

// StripPossessive drops a trailing "'s" or "'" from a token.
func StripPossessive(tok string) string {
	if t, ok := strings.CutSuffix(tok, "'s"); ok && t != "" {
		return t
	}
	if t, ok := strings.CutSuffix(tok, "'"); ok && t != "" {
		return t
	}
	return tok
}

// ContainsSeq reports whether needle occurs as a contiguous run in hay.
func ContainsSeq(hay, needle []string) bool {
	if len(needle) == 0 || len(needle) > len(hay) {
		return false
	}
outer:
	for i := 0; i+len(needle) <= len(hay); i++ {
		for j := range needle {
			if hay[i+j] != needle[j] {
				continue outer
			}
		}
		return true
	}
	return false
}

// stopwords never form a phrase on their own.
var stopwords = map[string]bool{
	"a": true, "an": true, "the": true, "and": true, "or": true, "but": true,
	"of": true, "to": true, "in": true, "on": true, "at": true, "by": true,
	"for": true, "with": true, "from": true, "into": true, "as": true,
	"is": true, "was": true, "are": true, "were": true, "be": true, "been": true,
	"it": true, "its": true, "it's": true, "that": true, "this": true,
	"i": true, "you": true, "he": true, "she": true, "we": true, "they": true,
	"me": true, "him": true, "her": true, "us": true, "them": true,
	"my": true, "your": true, "his": true, "our": true, "their": true,
	"not": true, "no": true, "so": true, "if": true, "then": true,
	"do": true, "did": true, "does": true, "have": true, "has": true, "had": true,
	"there": true, "what": true, "who": true, "all": true, "up": true, "out": true,
}

// IsStopword reports whether tok is a function word.
func IsStopword(tok string) bool {
	return stopwords[tok]
}

// AllStopwords reports whether every token is a stopword.
func AllStopwords(tokens []string) bool {
	for _, t := range tokens {
		if !stopwords[t] {
			return false
		}
	}
	return true
}
