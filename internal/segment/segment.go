// Package segment strips chat markup from a message and splits the prose
// into sentences for n-gram extraction.
package segment

import (
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	DefaultMinWords = 2
	DefaultMaxChars = 20000
)

// Options configures segmentation behavior.
type Options struct {
	// StripCode removes fenced and inline code.
	StripCode bool
	// StripHTML removes tags (keeping their inner text).
	StripHTML bool
	// MinWords drops sentences with fewer words.
	MinWords int
	// MaxChars truncates overlong messages before splitting.
	MaxChars int
}

// DefaultOptions returns default segmentation options.
func DefaultOptions() Options {
	return Options{
		StripCode: true,
		StripHTML: true,
		MinWords:  DefaultMinWords,
		MaxChars:  DefaultMaxChars,
	}
}

var (
	fenceRegex    = regexp.MustCompile("(?s)```.*?(```|$)")
	inlineCode    = regexp.MustCompile("`[^`\n]*`")
	htmlTagRegex  = regexp.MustCompile(`(?s)<[^>]+>`)
	emphasisRegex = regexp.MustCompile(`[*_~]+`)
	// Sentence ends at terminal punctuation (optionally followed by closing
	// quotes or brackets) before whitespace, or at a line break.
	boundaryRegex = regexp.MustCompile(`[.!?…]+["'”’)\]]*(\s+|$)|\n+`)
)

// Strip removes markup that should never be counted as prose.
func Strip(text string, opts Options) string {
	if opts.StripCode {
		text = fenceRegex.ReplaceAllString(text, "\n")
		text = inlineCode.ReplaceAllString(text, " ")
	}
	if opts.StripHTML {
		text = htmlTagRegex.ReplaceAllString(text, " ")
	}
	return emphasisRegex.ReplaceAllString(text, "")
}

// Split returns the sentences of text after markup is stripped. Empty text
// returns nil.
func Split(text string, opts Options) []string {
	if opts.MinWords == 0 && opts.MaxChars == 0 {
		opts = DefaultOptions()
	}

	text = strings.TrimSpace(text)
	if len(text) == 0 {
		return nil
	}
	if opts.MaxChars > 0 && len(text) > opts.MaxChars {
		text = truncate(text, opts.MaxChars)
	}

	text = Strip(text, opts)

	var sentences []string
	last := 0
	for _, loc := range boundaryRegex.FindAllStringIndex(text, -1) {
		sentences = appendSentence(sentences, text[last:loc[1]], opts.MinWords)
		last = loc[1]
	}
	if last < len(text) {
		sentences = appendSentence(sentences, text[last:], opts.MinWords)
	}
	return sentences
}

func appendSentence(out []string, s string, minWords int) []string {
	s = strings.Join(strings.Fields(s), " ")
	if s == "" {
		return out
	}
	if minWords > 0 && len(strings.Fields(s)) < minWords {
		return out
	}
	return append(out, s)
}

// truncate cuts text at the last whitespace before limit so no word is
// split. Without whitespace the cut backs off to a rune boundary.
func truncate(text string, limit int) string {
	for limit > 0 && !utf8.RuneStart(text[limit]) {
		limit--
	}
	cut := text[:limit]
	if i := strings.LastIndexAny(cut, " \n\t"); i > 0 {
		return cut[:i]
	}
	return cut
}
