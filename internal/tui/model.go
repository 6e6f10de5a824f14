package tui

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"semsearch/internal/domain"
	"semsearch/internal/session"
)

// Model is the Bubble Tea model for the interactive search session.
type Model struct {
	ctx       context.Context
	session   *session.Session
	input     textinput.Model
	viewport  viewport.Model
	output    string
	outMode   domain.Mode
	status    string
	failed    bool
	ready     bool
	lastQuery string
	quitting  bool
}

// New creates a new TUI model driving the given session.
func New(ctx context.Context, s *session.Session, banner string) Model {
	ti := textinput.New()
	ti.Prompt = s.Prompt()
	ti.Placeholder = "Type query and press Enter (Tab toggles GPT summarization)"
	ti.Focus()
	ti.CharLimit = 0
	vp := viewport.New(0, 0)
	return Model{ctx: ctx, session: s, input: ti, viewport: vp, status: banner}
}

// Init initializes the model (text input cursor blink).
func (m Model) Init() tea.Cmd { return textinput.Blink }

// Update handles key and window events and updates the view state.
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		// account for frames around result and query boxes
		_, rh := resultBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 1 + 1 + qh + 1 // header, status, spacer
		vh := msg.Height - reserved
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, vh-rh)
		m.viewport.SetContent(m.renderOutput())
		return m, nil
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			m.quitting = true
			return m, tea.Quit
		case tea.KeyTab:
			return m.submit(session.ToggleToken), nil
		case tea.KeyEnter:
			line := m.input.Value()
			m.input.Reset()
			return m.submit(line), nil
		case tea.KeyPgUp, tea.KeyPgDown, tea.KeyUp, tea.KeyDown:
			var cmd tea.Cmd
			m.viewport, cmd = m.viewport.Update(msg)
			return m, cmd
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) submit(line string) Model {
	r := m.session.Handle(m.ctx, line)
	m.failed = false
	switch r.Kind {
	case session.ReplyToggled:
		m.status = "Mode: " + m.session.Mode().String()
	case session.ReplyAnswer:
		m.output = r.Text
		m.outMode = m.session.Mode()
		m.lastQuery = line
		if strings.TrimSpace(r.Text) == "" {
			m.status = "No documents found."
		} else {
			m.status = fmt.Sprintf("Results for %q", line)
		}
	case session.ReplyAdvisory:
		m.status = r.Text
		m.failed = true
	case session.ReplyError:
		m.status = r.Text
		m.failed = true
	}
	m.input.Prompt = m.session.Prompt()
	m.viewport.SetContent(m.renderOutput())
	m.viewport.GotoTop()
	return m
}

// View renders the TUI layout and current answer.
func (m Model) View() string {
	if m.quitting {
		return "Program terminated.\n"
	}
	if !m.ready {
		return "Loading..."
	}
	header := lipgloss.NewStyle().Bold(true).Render("Semantic Search")
	statusStyle := okStyle
	if m.failed {
		statusStyle = errStyle
	}
	status := statusStyle.Render(m.status)
	results := resultBoxStyle.Render(m.viewport.View())
	input := queryBoxStyle.Render(m.input.View())
	return header + "\n" + results + "\n" + input + "\n" + status
}

func (m Model) renderOutput() string {
	if m.output == "" {
		return "No results yet."
	}
	if m.outMode == domain.ModeAugmented {
		return highlightBestSentence(m.output, m.lastQuery)
	}
	return m.output
}

var (
	resultBoxStyle = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	highlightStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	okStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	errStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("9"))
	unicodeWordRe  = regexp.MustCompile(`\p{L}+(?:['’]\p{L}+)*`)
	sentenceRe     = regexp.MustCompile(`(?m)(?U)([^.!?]+[.!?])`)
)

// highlightBestSentence emphasises the sentence sharing the most words with the query.
func highlightBestSentence(text, query string) string {
	sentences := sentenceRe.FindAllString(text, -1)
	if len(sentences) == 0 {
		return text
	}
	qTokens := toTokenSet(query)
	if len(qTokens) == 0 {
		return text
	}
	bestIdx := 0
	bestScore := 0
	for i, s := range sentences {
		if score := tokenOverlapScore(qTokens, s); score > bestScore {
			bestScore = score
			bestIdx = i
		}
	}
	if bestScore == 0 {
		return text
	}
	best := strings.TrimSpace(sentences[bestIdx])
	return strings.Replace(text, best, highlightStyle.Render(best), 1)
}

func toTokenSet(s string) map[string]struct{} {
	tokens := unicodeWordRe.FindAllString(strings.ToLower(s), -1)
	m := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		m[t] = struct{}{}
	}
	return m
}

func tokenOverlapScore(queryTokens map[string]struct{}, sentence string) int {
	score := 0
	tokens := unicodeWordRe.FindAllString(strings.ToLower(sentence), -1)
	seen := make(map[string]struct{}, len(tokens))
	for _, t := range tokens {
		if _, ok := seen[t]; ok {
			continue
		}
		seen[t] = struct{}{}
		if _, ok := queryTokens[t]; ok {
			score++
		}
	}
	return score
}
