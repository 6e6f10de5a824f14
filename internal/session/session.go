package session

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"semsearch/internal/domain"
)

// ToggleToken is the input line that switches between plain and augmented mode.
const ToggleToken = "\t"

// Advisory is shown for augmented requests when summarization is unavailable
// for the given reason.
func Advisory(reason string) string {
	return "Unable to use GPT summarization because " + reason + ". " +
		"Type and enter the TAB key to disable RAG to GPT pipeline."
}

// Answerer is the session-facing subset of the RAG service.
type Answerer interface {
	Answer(ctx context.Context, query string, mode domain.Mode) (string, error)
	CanSummarize() bool
	SummarizationReason() string
}

// ReplyKind tells the front end how to render a Reply.
type ReplyKind int

const (
	ReplyToggled ReplyKind = iota
	ReplyAnswer
	ReplyAdvisory
	ReplyError
)

// Reply is the outcome of one input line.
type Reply struct {
	Kind ReplyKind
	Text string
	Err  error
}

// Session owns the mode of one interactive session. It is not safe for
// concurrent use; each session gets its own value.
type Session struct {
	answerer Answerer
	mode     domain.Mode
	logger   *zap.Logger
}

// New creates a session in plain mode.
func New(answerer Answerer, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{answerer: answerer, mode: domain.ModePlain, logger: logger}
}

// Mode returns the current mode.
func (s *Session) Mode() domain.Mode { return s.mode }

// Prompt returns the input prompt for the current mode.
func (s *Session) Prompt() string {
	if s.mode == domain.ModeAugmented {
		return "[gpt] >>> "
	}
	return ">>> "
}

// Handle processes one input line. Per-request failures come back as
// ReplyError and never change the mode.
func (s *Session) Handle(ctx context.Context, line string) Reply {
	if line == ToggleToken {
		s.mode = s.mode.Toggle()
		return Reply{Kind: ReplyToggled, Text: "Mode: " + s.mode.String()}
	}

	if s.mode == domain.ModeAugmented && !s.answerer.CanSummarize() {
		reason := s.answerer.SummarizationReason()
		return Reply{
			Kind: ReplyAdvisory,
			Text: Advisory(reason),
			Err:  fmt.Errorf("%w: %s", domain.ErrSummarizerUnavailable, reason),
		}
	}

	out, err := s.answerer.Answer(ctx, line, s.mode)
	if err != nil {
		s.logger.Warn("query failed", zap.String("mode", s.mode.String()), zap.Error(err))
		return Reply{Kind: ReplyError, Text: Describe(err), Err: err}
	}
	return Reply{Kind: ReplyAnswer, Text: out}
}

// Describe turns a request error into a message for the user.
func Describe(err error) string {
	switch {
	case errors.Is(err, domain.ErrInvalidQuery):
		return "Please enter a non-empty query."
	case errors.Is(err, domain.ErrEmbedding):
		return "Could not embed the query: " + err.Error()
	case errors.Is(err, domain.ErrSearch):
		return "Vector search failed: " + err.Error()
	case errors.Is(err, domain.ErrSummarization):
		return "Summarization failed: " + err.Error()
	case errors.Is(err, context.Canceled):
		return "Request cancelled."
	default:
		return "Error: " + err.Error()
	}
}
