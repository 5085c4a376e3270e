package main

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#FAFAFA")).
			Background(lipgloss.Color("#7D56F4")).
			Padding(0, 1)

	promptStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	poolStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	resultStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#90EE90"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	helpStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#666666"))
)

// headerLines and footerLines are the rows around the output viewport.
const (
	headerLines = 2
	footerLines = 3
)

type shellModel struct {
	ctx      context.Context
	sess     *session
	input    textinput.Model
	output   viewport.Model
	lines    []string
	history  []string
	histIdx  int
	ready    bool
	quitting bool
}

type commandResultMsg struct {
	err    error
	line   string
	output string
}

func newShellModel(ctx context.Context, sess *session) *shellModel {
	ti := textinput.New()
	ti.Placeholder = "help"
	ti.Prompt = "> "
	ti.PromptStyle = promptStyle
	ti.Focus()

	return &shellModel{
		ctx:   ctx,
		sess:  sess,
		input: ti,
	}
}

func (m *shellModel) Init() tea.Cmd {
	return textinput.Blink
}

func (m *shellModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := msg.Height - headerLines - footerLines
		if height < 1 {
			height = 1
		}
		if !m.ready {
			m.output = viewport.New(msg.Width, height)
			m.ready = true
		} else {
			m.output.Width = msg.Width
			m.output.Height = height
		}
		m.input.Width = msg.Width - len(m.input.Prompt) - 1
		m.refresh()

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "ctrl+d":
			m.quitting = true
			return m, tea.Quit

		case "enter":
			line := strings.TrimSpace(m.input.Value())
			m.input.Reset()
			if line == "" {
				return m, nil
			}
			if line == "exit" || line == "quit" {
				m.quitting = true
				return m, tea.Quit
			}
			m.history = append(m.history, line)
			m.histIdx = len(m.history)
			return m, m.execute(line)

		case "up":
			if m.histIdx > 0 {
				m.histIdx--
				m.input.SetValue(m.history[m.histIdx])
				m.input.CursorEnd()
			}
			return m, nil

		case "down":
			if m.histIdx < len(m.history)-1 {
				m.histIdx++
				m.input.SetValue(m.history[m.histIdx])
				m.input.CursorEnd()
			} else {
				m.histIdx = len(m.history)
				m.input.Reset()
			}
			return m, nil

		case "pgup", "pgdown":
			var cmd tea.Cmd
			m.output, cmd = m.output.Update(msg)
			return m, cmd
		}

	case commandResultMsg:
		m.lines = append(m.lines, promptStyle.Render("> ")+msg.line)
		if out := strings.TrimRight(msg.output, "\n"); out != "" {
			m.lines = append(m.lines, resultStyle.Render(out))
		}
		if msg.err != nil {
			m.lines = append(m.lines, errorStyle.Render(fmt.Sprintf("Error: %v", msg.err)))
		}
		m.refresh()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	cmds = append(cmds, cmd)
	return m, tea.Batch(cmds...)
}

// execute runs line against the session outside the update loop.
func (m *shellModel) execute(line string) tea.Cmd {
	return func() tea.Msg {
		args, err := splitArgs(line)
		if err != nil {
			return commandResultMsg{line: line, err: err}
		}
		var out bytes.Buffer
		err = m.sess.exec(m.ctx, &out, args)
		return commandResultMsg{line: line, output: out.String(), err: err}
	}
}

func (m *shellModel) refresh() {
	if !m.ready {
		return
	}
	m.output.SetContent(strings.Join(m.lines, "\n"))
	m.output.GotoBottom()
}

func (m *shellModel) View() string {
	if m.quitting {
		return ""
	}
	if !m.ready {
		return "Connecting..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("RADOS Shell"))
	b.WriteString(" ")
	b.WriteString(poolStyle.Render(m.sess.pool))
	b.WriteString(" ")
	b.WriteString(helpStyle.Render("(" + backendName + ")"))
	b.WriteString("\n\n")
	b.WriteString(m.output.View())
	b.WriteString("\n\n")
	b.WriteString(m.input.View())
	b.WriteString("\n")
	b.WriteString(helpStyle.Render("enter run • ↑/↓ history • pgup/pgdown scroll • ctrl+c quit"))
	return b.String()
}

func runInteractive(ctx context.Context, sess *session) error {
	p := tea.NewProgram(newShellModel(ctx, sess), tea.WithAltScreen(), tea.WithContext(ctx))
	_, err := p.Run()
	return err
}
