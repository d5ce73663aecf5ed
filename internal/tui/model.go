package tui

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"askdocs/internal/models"
)

// Asker is the part of the service the chat session needs.
type Asker interface {
	Ask(ctx context.Context, question string, topK int) (models.Answer, error)
}

type answerMsg struct {
	question string
	answer   models.Answer
	err      error
}

// Model is the Bubble Tea model of an interactive ask session.
type Model struct {
	ctx      context.Context
	service  Asker
	topK     int
	input    textinput.Model
	viewport viewport.Model
	spinner  spinner.Model
	summary  string
	status   string
	question string
	answer   models.Answer
	cursor   int
	waiting  bool
	ready    bool
}

func New(ctx context.Context, service Asker, topK int, summary string) Model {
	ti := textinput.New()
	ti.Prompt = "> "
	ti.Placeholder = "Ask a question and press Enter"
	ti.Focus()
	ti.CharLimit = 0

	s := spinner.New()
	s.Spinner = spinner.Dot
	s.Style = lipgloss.NewStyle().Foreground(lipgloss.Color("205"))

	return Model{
		ctx:      ctx,
		service:  service,
		topK:     topK,
		input:    ti,
		viewport: viewport.New(0, 0),
		spinner:  s,
		summary:  summary,
		status:   "Ready.",
	}
}

func (m Model) Init() tea.Cmd { return textinput.Blink }

func askCmd(ctx context.Context, service Asker, question string, topK int) tea.Cmd {
	return func() tea.Msg {
		ans, err := service.Ask(ctx, question, topK)
		return answerMsg{question: question, answer: ans, err: err}
	}
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.ready = true
		_, bh := answerBoxStyle.GetFrameSize()
		_, qh := queryBoxStyle.GetFrameSize()
		reserved := 3 + qh + 1 // header, summary, status, spacer
		m.viewport.Width = max(20, msg.Width)
		m.viewport.Height = max(3, msg.Height-reserved-bh)
		m.viewport.SetContent(m.renderAnswer())
		return m, nil

	case answerMsg:
		m.waiting = false
		m.question = msg.question
		m.cursor = 0
		if msg.err != nil {
			m.status = "Error: " + msg.err.Error()
			m.answer = models.Answer{}
		} else {
			m.answer = msg.answer
			m.status = fmt.Sprintf("%s, %d evidence", msg.answer.Outcome, len(msg.answer.Evidence))
		}
		m.viewport.SetContent(m.renderAnswer())
		return m, nil

	case spinner.TickMsg:
		if !m.waiting {
			return m, nil
		}
		var cmd tea.Cmd
		m.spinner, cmd = m.spinner.Update(msg)
		return m, cmd

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC || msg.Type == tea.KeyCtrlD || msg.Type == tea.KeyEsc {
			return m, tea.Quit
		}
		switch msg.String() {
		case "enter":
			q := strings.TrimSpace(m.input.Value())
			if q == "" || m.waiting {
				return m, nil
			}
			m.waiting = true
			m.status = fmt.Sprintf("Asking %q", q)
			m.input.SetValue("")
			return m, tea.Batch(m.spinner.Tick, askCmd(m.ctx, m.service, q, m.topK))
		case "down":
			if n := len(m.answer.Evidence); n > 0 {
				m.cursor = (m.cursor + 1) % n
				m.viewport.SetContent(m.renderAnswer())
				return m, nil
			}
		case "up":
			if n := len(m.answer.Evidence); n > 0 {
				m.cursor = (m.cursor - 1 + n) % n
				m.viewport.SetContent(m.renderAnswer())
				return m, nil
			}
		}
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

func (m Model) View() string {
	if !m.ready {
		return "Loading..."
	}
	header := headerStyle.Render("askdocs")
	summary := summaryStyle.Render(m.summary)
	status := statusStyle.Render(m.status)
	if m.waiting {
		status = m.spinner.View() + " " + status
	}
	return header + "\n" + summary + "\n" + answerBoxStyle.Render(m.viewport.View()) + "\n" + queryBoxStyle.Render(m.input.View()) + "\n" + status
}

func (m Model) renderAnswer() string {
	if m.question == "" {
		return "No answer yet."
	}
	var b strings.Builder
	b.WriteString(questionStyle.Render(m.question))
	b.WriteString("\n\n")
	b.WriteString(lipgloss.NewStyle().Width(max(20, m.viewport.Width-4)).Render(m.answer.Text))

	if len(m.answer.Evidence) == 0 {
		return b.String()
	}
	e := m.answer.Evidence[m.cursor]
	fmt.Fprintf(&b, "\n\n%s\n%s",
		evidenceTitleStyle.Render(fmt.Sprintf("[%d] %d/%d  score=%.3f  %s", e.Rank, m.cursor+1, len(m.answer.Evidence), e.Score, e.SourceID)),
		e.Snippet)
	return b.String()
}

var (
	headerStyle        = lipgloss.NewStyle().Bold(true)
	summaryStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
	statusStyle        = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	questionStyle      = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("5"))
	evidenceTitleStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11")).Bold(true)
	answerBoxStyle     = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
	queryBoxStyle      = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).Padding(0, 1)
)
