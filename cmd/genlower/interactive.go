package main

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/charmbracelet/bubbles/help"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"github.com/wippyai/genlower/expr"
	"github.com/wippyai/genlower/interp"
)

var (
	stateStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#87CEEB"))

	valueStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#98FB98"))

	logStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FAFAFA"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#FF6B6B"))

	paneStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#7D56F4")).
			Padding(0, 1)
)

type keyMap struct {
	Next    key.Binding
	Run     key.Binding
	Dispose key.Binding
	Restart key.Binding
	Source  key.Binding
	Quit    key.Binding
}

func (k keyMap) ShortHelp() []key.Binding {
	return []key.Binding{k.Next, k.Run, k.Dispose, k.Restart, k.Source, k.Quit}
}

func (k keyMap) FullHelp() [][]key.Binding {
	return [][]key.Binding{k.ShortHelp()}
}

var keys = keyMap{
	Next:    key.NewBinding(key.WithKeys("n", " "), key.WithHelp("n", "next")),
	Run:     key.NewBinding(key.WithKeys("g"), key.WithHelp("g", "take n")),
	Dispose: key.NewBinding(key.WithKeys("d"), key.WithHelp("d", "dispose")),
	Restart: key.NewBinding(key.WithKeys("r"), key.WithHelp("r", "restart")),
	Source:  key.NewBinding(key.WithKeys("tab"), key.WithHelp("tab", "source/lowered")),
	Quit:    key.NewBinding(key.WithKeys("q", "ctrl+c"), key.WithHelp("q", "quit")),
}

type stepperMode int

const (
	modeStep stepperMode = iota
	modeCount
)

type stepperModel struct {
	err      error
	session  *session
	gen      *interp.Generator
	log      *zap.Logger
	filename string
	values   []string
	tree     viewport.Model
	count    textinput.Model
	help     help.Model
	mode     stepperMode
	source   bool
	ready    bool
}

func newStepperModel(filename string, log *zap.Logger) *stepperModel {
	ti := textinput.New()
	ti.Prompt = "values to take: "
	ti.Placeholder = "1"
	ti.Width = 10
	return &stepperModel{
		filename: filename,
		log:      log,
		count:    ti,
		help:     help.New(),
	}
}

type loadedMsg struct {
	err     error
	session *session
}

func (m *stepperModel) Init() tea.Cmd {
	return m.load
}

func (m *stepperModel) load() tea.Msg {
	s, err := load(m.filename, m.log)
	return loadedMsg{session: s, err: err}
}

func (m *stepperModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		height := msg.Height - 8
		if height < 3 {
			height = 3
		}
		if !m.ready {
			m.tree = viewport.New(msg.Width*2/3, height)
			m.ready = true
			m.refreshTree()
		} else {
			m.tree.Width = msg.Width * 2 / 3
			m.tree.Height = height
		}
		m.help.Width = msg.Width

	case loadedMsg:
		if msg.err != nil {
			m.err = msg.err
			return m, nil
		}
		m.session = msg.session
		m.restart()
		m.refreshTree()

	case tea.KeyMsg:
		if m.mode == modeCount {
			return m.updateCount(msg)
		}
		switch {
		case key.Matches(msg, keys.Quit):
			if m.gen != nil {
				_ = m.gen.Dispose()
			}
			return m, tea.Quit
		case m.session == nil:
			return m, nil
		case key.Matches(msg, keys.Next):
			m.take(1)
		case key.Matches(msg, keys.Run):
			m.mode = modeCount
			m.count.SetValue("")
			m.count.Focus()
			return m, textinput.Blink
		case key.Matches(msg, keys.Dispose):
			if m.gen != nil {
				m.err = m.gen.Dispose()
			}
		case key.Matches(msg, keys.Restart):
			m.restart()
		case key.Matches(msg, keys.Source):
			m.source = !m.source
			m.refreshTree()
		}
	}

	var cmd tea.Cmd
	m.tree, cmd = m.tree.Update(msg)
	return m, cmd
}

func (m *stepperModel) updateCount(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "enter":
		n, err := strconv.Atoi(strings.TrimSpace(m.count.Value()))
		if err != nil || n < 0 {
			m.err = fmt.Errorf("not a count: %q", m.count.Value())
		} else {
			m.take(n)
		}
		m.mode = modeStep
		m.count.Blur()
		return m, nil
	case "esc":
		m.mode = modeStep
		m.count.Blur()
		return m, nil
	}
	var cmd tea.Cmd
	m.count, cmd = m.count.Update(msg)
	return m, cmd
}

// take advances the generator by up to n values; zero drains it.
func (m *stepperModel) take(n int) {
	if m.gen == nil {
		return
	}
	vals, err := interp.Collect(m.gen, n)
	for _, v := range vals {
		m.values = append(m.values, interp.Stringify(v))
	}
	m.err = err
}

func (m *stepperModel) restart() {
	if m.gen != nil {
		_ = m.gen.Dispose()
	}
	m.session.host.Reset()
	m.values = nil
	// A non-restartable tree is evaluated again so the new generator gets
	// its own machine state.
	if !m.session.def.Restartable {
		m.session.tree = nil
	}
	m.gen, m.err = m.session.start()
}

func (m *stepperModel) refreshTree() {
	if !m.ready || m.session == nil {
		return
	}
	if m.source {
		m.tree.SetContent(expr.Format(m.session.def))
		return
	}
	m.tree.SetContent(expr.Format(m.session.res.Tree))
}

func (m *stepperModel) View() string {
	if m.session == nil {
		if m.err != nil {
			return errorStyle.Render(fmt.Sprintf("Error: %v\n\nPress q to quit.", m.err))
		}
		return "Loading definition..."
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render("Generator Stepper"))
	b.WriteString(" ")
	b.WriteString(m.filename)
	b.WriteString("\n\n")

	status := "not started"
	if m.gen != nil {
		switch {
		case m.gen.Done():
			status = "finished"
		case m.gen.State() != expr.StateNotStarted:
			status = fmt.Sprintf("suspended at state %d", m.gen.State())
		}
	}
	b.WriteString(stateStyle.Render(fmt.Sprintf("%s  states: %d  hoisted: %d  temps: %d",
		status, m.session.res.States, len(m.session.res.Hoisted), len(m.session.res.Temps))))
	b.WriteString("\n")

	var side strings.Builder
	side.WriteString("values\n")
	for _, v := range m.values {
		side.WriteString(valueStyle.Render(v))
		side.WriteString("\n")
	}
	side.WriteString("\nlog\n")
	for _, entry := range m.session.host.Log {
		side.WriteString(logStyle.Render(interp.Stringify(entry)))
		side.WriteString("\n")
	}

	tree := "lowered"
	if m.source {
		tree = "definition"
	}
	b.WriteString(lipgloss.JoinHorizontal(lipgloss.Top,
		paneStyle.Render(tree+"\n"+m.tree.View()),
		paneStyle.Render(side.String()),
	))
	b.WriteString("\n")

	if m.err != nil {
		b.WriteString(errorStyle.Render(fmt.Sprintf("Error: %v", m.err)))
		b.WriteString("\n")
	}
	if m.mode == modeCount {
		b.WriteString(m.count.View())
		b.WriteString("\n")
	}
	b.WriteString(m.help.View(keys))
	return b.String()
}

func runInteractive(filename string, log *zap.Logger) error {
	p := tea.NewProgram(newStepperModel(filename, log), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
