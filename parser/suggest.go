package parser

import (
	"sort"

	"github.com/lithammer/fuzzysearch/fuzzy"

	"github.com/lauckhart/klipper/token"
)

// maxSuggestDistance bounds how loose a match has to be before it stops
// being a helpful suggestion and starts being noise.
const maxSuggestDistance = 2

// maxSuggestions caps how many candidates an error carries.
const maxSuggestions = 3

// suggestKeywords ranks word against the keyword table by edit distance
// and returns the closest matches, closest first. word is compared in its
// already-uppercased lexer form, matching the keyword table's casing.
func suggestKeywords(word string) []string {
	type candidate struct {
		keyword  string
		distance int
	}
	var cands []candidate
	for _, kw := range token.Keywords() {
		if d := fuzzy.LevenshteinDistance(word, kw); d <= maxSuggestDistance {
			cands = append(cands, candidate{kw, d})
		}
	}
	sort.SliceStable(cands, func(i, j int) bool { return cands[i].distance < cands[j].distance })

	var out []string
	for _, c := range cands {
		out = append(out, c.keyword)
		if len(out) == maxSuggestions {
			break
		}
	}
	return out
}
