package render

import (
	"regexp"
	"strings"
)

// Ellipsis is appended to truncated text
const Ellipsis = "…"

var (
	wordPattern = regexp.MustCompile(`\S+`)
	sentenceEnd = regexp.MustCompile(`[.!?]["'”’)\]]*$`)
)

// awkwardEndings are words a preview should not stop on
var awkwardEndings = map[string]bool{
	"a": true, "an": true, "the": true,
	"and": true, "or": true, "but": true, "nor": true, "so": true, "yet": true,
	"for": true, "of": true, "to": true, "in": true, "on": true, "at": true,
	"by": true, "with": true, "from": true, "into": true, "onto": true,
	"about": true, "as": true, "than": true, "over": true, "under": true,
	"that": true, "this": true, "these": true, "those": true, "which": true,
	"who": true, "whom": true, "what": true, "if": true, "then": true,
	"when": true, "while": true, "because": true,
	"i": true, "you": true, "he": true, "she": true, "it": true, "we": true,
	"they": true, "me": true, "him": true, "her": true, "us": true,
	"them": true, "my": true, "your": true, "his": true, "its": true,
	"our": true, "their": true,
	"is": true, "are": true, "was": true, "were": true, "be": true,
	"been": true, "being": true, "am": true, "do": true, "does": true,
	"did": true, "have": true, "has": true, "had": true, "will": true,
	"would": true, "can": true, "could": true, "should": true, "shall": true,
	"may": true, "might": true, "must": true,
}

// SmartTruncate shortens text to about maxWords words, preferring to cut at
// a sentence end near the budget, then before trailing function words, and
// finally at exactly maxWords. Text within budget is returned unchanged;
// whitespace inside the kept part is preserved.
func SmartTruncate(text string, maxWords int) string {
	if maxWords <= 0 {
		return text
	}
	words := wordPattern.FindAllStringIndex(text, -1)
	if len(words) <= maxWords {
		return text
	}

	word := func(k int) string { return text[words[k-1][0]:words[k-1][1]] }
	cut := func(k int) string {
		kept := strings.TrimRight(text[:words[k-1][1]], ",;:-–—")
		return kept + Ellipsis
	}

	lo := maxWords - 10
	if lo < 1 {
		lo = 1
	}
	hi := maxWords + 5
	if hi > len(words)-1 {
		hi = len(words) - 1
	}
	preferred := maxWords - 5

	best := 0
	for k := lo; k <= hi; k++ {
		if !sentenceEnd.MatchString(word(k)) {
			continue
		}
		if k >= preferred {
			best = k
			break
		}
		best = k
	}
	if best > 0 {
		return text[:words[best-1][1]] + Ellipsis
	}

	for k := maxWords; k >= 1; k-- {
		if !awkwardEndings[normalizeWord(word(k))] {
			return cut(k)
		}
	}

	return cut(maxWords)
}

func normalizeWord(w string) string {
	return strings.ToLower(strings.Trim(w, `.,;:!?"'()[]{}“”‘’`))
}
