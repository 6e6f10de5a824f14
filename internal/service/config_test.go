package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"semsearch/internal/domain"
)

func TestNewSearchConfig(t *testing.T) {
	tests := []struct {
		name          string
		candidates    int
		results       int
		expectedError bool
	}{
		{"defaults", 150, 3, false},
		{"equal", 5, 5, false},
		{"single", 1, 1, false},
		{"results exceed candidates", 3, 4, true},
		{"zero results", 10, 0, true},
		{"negative candidates", -1, 1, true},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			cfg, err := NewSearchConfig(tc.candidates, tc.results)
			if tc.expectedError {
				require.ErrorIs(t, err, domain.ErrConfiguration)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, SearchConfig{NumCandidates: tc.candidates, NumResults: tc.results}, cfg)
		})
	}
}

func TestNewSearchConfig_AllPairs(t *testing.T) {
	for c := 1; c <= 20; c++ {
		for r := 1; r <= 20; r++ {
			_, err := NewSearchConfig(c, r)
			if r <= c {
				assert.NoError(t, err, "candidates=%d results=%d", c, r)
			} else {
				assert.ErrorIs(t, err, domain.ErrConfiguration, "candidates=%d results=%d", c, r)
			}
		}
	}
}

func TestDefaultSearchConfig(t *testing.T) {
	assert.Equal(t, SearchConfig{NumCandidates: 150, NumResults: 3}, DefaultSearchConfig())
}
