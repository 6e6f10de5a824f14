package service

import "semsearch/internal/domain"

// Reasons recorded for summarizations that are unavailable at startup.
const (
	ReasonMissingKey    = "OpenAI API key was not provided"
	ReasonDisabled      = "summarization is disabled in the configuration"
	ReasonNotConfigured = "no summarizer is configured"
)

// Summarization is either an available summarizer or the reason none is
// configured. The zero value is unavailable.
type Summarization struct {
	summarizer domain.Summarizer
	reason     string
}

// Available wraps a configured summarizer.
func Available(s domain.Summarizer) Summarization {
	if s == nil {
		return Unavailable(ReasonNotConfigured)
	}
	return Summarization{summarizer: s}
}

// Unavailable records why summarization cannot be used.
func Unavailable(reason string) Summarization {
	return Summarization{reason: reason}
}

// IsAvailable reports whether a summarizer is configured.
func (s Summarization) IsAvailable() bool { return s.summarizer != nil }

// Summarizer returns the configured summarizer, if any.
func (s Summarization) Summarizer() (domain.Summarizer, bool) {
	return s.summarizer, s.summarizer != nil
}

// Reason explains an unavailable summarization. Empty when available.
func (s Summarization) Reason() string {
	if s.IsAvailable() {
		return ""
	}
	if s.reason == "" {
		return ReasonNotConfigured
	}
	return s.reason
}
