// Package knowledge is the read-only lookup over the six support categories.
package knowledge

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"cardassist/internal/constants"
	"cardassist/pkg/models"
)

var wordPattern = regexp.MustCompile(`[a-z0-9]+`)

var stopwords = map[string]struct{}{
	"a": {}, "an": {}, "the": {}, "is": {}, "are": {}, "my": {}, "i": {}, "me": {}, "to": {}, "of": {},
	"for": {}, "and": {}, "or": {}, "in": {}, "on": {}, "it": {}, "do": {}, "does": {}, "can": {},
	"what": {}, "how": {}, "when": {}, "where": {}, "why": {}, "which": {}, "you": {}, "your": {},
	"be": {}, "with": {}, "this": {}, "that": {}, "will": {}, "am": {}, "please": {},
}

type indexedEntry struct {
	Entry
	keywords      []string
	questionTerms map[string]struct{}
}

// Index is built once and never mutated, so any number of goroutines may
// search it concurrently.
type Index struct {
	byCategory map[Category][]indexedEntry
	all        []indexedEntry
}

func NewIndex(entries []Entry) (*Index, error) {
	idx := &Index{byCategory: make(map[Category][]indexedEntry, len(Categories))}
	for i, e := range entries {
		if !e.Category.Valid() {
			return nil, fmt.Errorf("entry %d: unknown category %q", i, e.Category)
		}
		if strings.TrimSpace(e.Answer) == "" {
			return nil, fmt.Errorf("entry %d in %s: empty answer", i, e.Category)
		}

		ie := indexedEntry{Entry: e, questionTerms: make(map[string]struct{})}
		for _, kw := range e.Keywords {
			if kw = normalize(kw); kw != "" {
				ie.keywords = append(ie.keywords, kw)
			}
		}
		for _, term := range terms(e.Question) {
			ie.questionTerms[term] = struct{}{}
		}
		idx.byCategory[e.Category] = append(idx.byCategory[e.Category], ie)
		idx.all = append(idx.all, ie)
	}
	return idx, nil
}

// Load builds an index from src.
func Load(ctx context.Context, src Source) (*Index, error) {
	entries, err := src.Load(ctx)
	if err != nil {
		return nil, err
	}
	if len(entries) == 0 {
		return nil, fmt.Errorf("knowledge source returned no entries")
	}
	return NewIndex(entries)
}

func (idx *Index) Len() int {
	return len(idx.all)
}

// Search looks inside the intent's category first and then across every
// category. It never fails: no hit yields the no-match answer.
func (idx *Index) Search(intent models.Intent, text string) Result {
	query := normalize(text)
	queryTerms := terms(text)

	if category, ok := CategoryFor(intent); ok {
		if best, ok := idx.best(idx.byCategory[category], query, queryTerms); ok {
			return best
		}
	}

	if best, ok := idx.best(idx.all, query, queryTerms); ok {
		return best
	}
	return Result{Answer: constants.NoMatchReply}
}

func (idx *Index) best(entries []indexedEntry, query string, queryTerms []string) (Result, bool) {
	var (
		found     Result
		bestScore int
	)
	for _, e := range entries {
		if s := score(e, query, queryTerms); s > bestScore {
			bestScore = s
			found = e.result()
		}
	}
	return found, bestScore > 0
}

// score weighs keyword hits above plain question-term overlap.
func score(e indexedEntry, query string, queryTerms []string) int {
	s := 0
	padded := " " + query + " "
	for _, kw := range e.keywords {
		if strings.Contains(padded, " "+kw+" ") {
			s += 3
		}
	}
	for _, term := range queryTerms {
		if _, ok := e.questionTerms[term]; ok {
			s++
		}
	}
	return s
}

func (e indexedEntry) result() Result {
	return Result{Category: e.Category, Question: e.Question, Answer: e.Answer, Matched: true}
}

func normalize(s string) string {
	return strings.Join(wordPattern.FindAllString(strings.ToLower(s), -1), " ")
}

func terms(s string) []string {
	var out []string
	for _, w := range wordPattern.FindAllString(strings.ToLower(s), -1) {
		if _, stop := stopwords[w]; stop || len(w) < 2 {
			continue
		}
		out = append(out, w)
	}
	return out
}
