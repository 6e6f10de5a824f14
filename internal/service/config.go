package service

import (
	"fmt"

	"semsearch/internal/domain"
)

// Defaults for the candidate pool and result count.
const (
	DefaultNumCandidates = 150
	DefaultNumResults    = 3
)

// SearchConfig holds the candidate pool size and result limit used for every
// query of a session.
type SearchConfig struct {
	NumCandidates int
	NumResults    int
}

// DefaultSearchConfig returns the default search counts.
func DefaultSearchConfig() SearchConfig {
	return SearchConfig{NumCandidates: DefaultNumCandidates, NumResults: DefaultNumResults}
}

// NewSearchConfig validates the counts. NumResults may not exceed NumCandidates.
func NewSearchConfig(numCandidates, numResults int) (SearchConfig, error) {
	if numResults < 1 {
		return SearchConfig{}, fmt.Errorf("%w: num results must be positive, got %d", domain.ErrConfiguration, numResults)
	}
	if numCandidates < 1 {
		return SearchConfig{}, fmt.Errorf("%w: num candidates must be positive, got %d", domain.ErrConfiguration, numCandidates)
	}
	if numResults > numCandidates {
		return SearchConfig{}, fmt.Errorf("%w: num results (%d) exceeds num candidates (%d)",
			domain.ErrConfiguration, numResults, numCandidates)
	}
	return SearchConfig{NumCandidates: numCandidates, NumResults: numResults}, nil
}
