package frequency

import (
	"context"
	"math"
	"regexp"
	"sort"
	"strings"
)

// NoContextAnswer is returned when there is nothing to summarize.
const NoContextAnswer = "No documents were retrieved for this query."

const (
	defaultMaxSentences = 5
	queryWeight         = 1.0
	abstractPrefix      = "Abstract: "
	journalPrefix       = "Journal reference: "
)

// Summarizer ranks sentences of the retrieved abstracts by word frequency
// (stopwords filtered) plus overlap with the query, and returns the best
// ones in their original order. It needs no external service.
type Summarizer struct {
	maxSentences int
	tokenPattern *regexp.Regexp
	sentenceRe   *regexp.Regexp
	stopwords    map[string]struct{}
}

// New creates a frequency-based summarizer returning at most maxSentences sentences.
func New(maxSentences int) *Summarizer {
	if maxSentences <= 0 {
		maxSentences = defaultMaxSentences
	}
	return &Summarizer{
		maxSentences: maxSentences,
		tokenPattern: regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`),
		sentenceRe:   regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`),
		stopwords:    defaultStopwords(),
	}
}

// Summarize returns an extractive summary of retrieved, biased towards query.
func (s *Summarizer) Summarize(_ context.Context, query, retrieved string) (string, error) {
	text := strings.TrimSpace(abstracts(retrieved))
	if text == "" {
		return NoContextAnswer, nil
	}
	sentences := s.sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		return text, nil
	}
	// Compute word frequencies
	freq := map[string]float64{}
	for _, sent := range sentences {
		for _, tok := range s.tokens(sent) {
			freq[tok]++
		}
	}
	// Normalize frequencies
	maxF := 0.0
	for _, v := range freq {
		maxF = math.Max(maxF, v)
	}
	if maxF > 0 {
		for k, v := range freq {
			freq[k] = v / maxF
		}
	}
	qset := make(map[string]struct{})
	for _, tok := range s.tokens(query) {
		qset[tok] = struct{}{}
	}
	// Score sentences
	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(sentences))
	for i, sent := range sentences {
		toks := s.tokens(sent)
		score := 0.0
		for _, tok := range toks {
			score += freq[tok]
			if _, ok := qset[tok]; ok {
				score += queryWeight
			}
		}
		// Normalize by sentence length to avoid bias
		if l := float64(len(toks)); l > 0 {
			score /= math.Sqrt(l)
		}
		scores[i] = pair{i, score}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	n := min(s.maxSentences, len(scores))
	// Keep original order among selected
	selected := make([]int, n)
	for i := 0; i < n; i++ {
		selected[i] = scores[i].idx
	}
	sort.Ints(selected)
	out := make([]string, 0, n)
	for _, idx := range selected {
		out = append(out, strings.TrimSpace(sentences[idx]))
	}
	return strings.Join(out, " "), nil
}

// abstracts pulls the abstracts out of formatted search results. An
// abstract runs from its label up to the journal reference line of the same
// block, so embedded newlines are kept. Text without any abstract label is
// returned unchanged.
func abstracts(retrieved string) string {
	var (
		parts  []string
		found  bool
		inside bool
	)
	for _, line := range strings.Split(retrieved, "\n") {
		if rest, ok := strings.CutPrefix(line, abstractPrefix); ok {
			found, inside = true, true
			if rest != "N/A" {
				parts = append(parts, rest)
			}
			continue
		}
		if strings.HasPrefix(line, journalPrefix) {
			inside = false
			continue
		}
		if inside {
			parts = append(parts, line)
		}
	}
	if !found {
		return retrieved
	}
	return strings.Join(parts, "\n")
}

func (s *Summarizer) tokens(text string) []string {
	raw := s.tokenPattern.FindAllString(strings.ToLower(text), -1)
	out := raw[:0]
	for _, t := range raw {
		if _, isStop := s.stopwords[t]; isStop {
			continue
		}
		out = append(out, t)
	}
	return out
}

func defaultStopwords() map[string]struct{} {
	words := []string{
		"a", "an", "the", "and", "or", "but", "if", "then", "else", "for", "to", "of", "in", "on", "at", "by", "with", "as", "is", "are", "was", "were", "be", "been", "being", "it", "this", "that", "these", "those", "from", "up", "down", "over", "under", "again", "further", "than", "so", "such", "into", "about", "between", "through", "during", "before", "after", "above", "below", "out", "off", "own", "same", "too", "very", "can", "will", "just", "don", "should", "now", "we", "our",
	}
	m := make(map[string]struct{}, len(words))
	for _, w := range words {
		m[w] = struct{}{}
	}
	return m
}
