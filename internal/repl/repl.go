// Package repl implements the interactive front-end: a Bubble Tea program
// with a styled prompt, command history, and a persistent runtime so
// globals and function definitions survive across inputs.
package repl

import (
	"bytes"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"lumen/internal/runtime"
	"lumen/internal/value"
)

const prompt = ">> "

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FAFAFA")).Background(lipgloss.Color("#5F5FD7")).Padding(0, 1)
	promptStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#5F5FD7")).Bold(true)
	resultStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#04B575"))
	outputStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#F8F8F2"))
	errorStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5F87")).Bold(true)
	faintStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#767676"))
)

// Run starts the REPL and blocks until the user exits; the return value is
// the process exit code.
func Run(opts runtime.Options) int {
	rt := runtime.New(opts)
	defer rt.Close()

	p := tea.NewProgram(newModel(rt))
	if _, err := p.Run(); err != nil {
		fmt.Println("error running repl:", err)
		return 1
	}
	return 0
}

type entry struct {
	input  string
	output string
	result string
	err    string
}

type model struct {
	rt      *runtime.Runtime
	input   textinput.Model
	history []entry
	inputs  []string // raw history for up/down recall
	cursor  int
}

func newModel(rt *runtime.Runtime) model {
	ti := textinput.New()
	ti.Prompt = promptStyle.Render(prompt)
	ti.Placeholder = `print "hello"`
	ti.Focus()
	return model{rt: rt, input: ti}
}

func (m model) Init() tea.Cmd { return textinput.Blink }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyCtrlD:
			return m, tea.Quit
		case tea.KeyUp:
			if m.cursor > 0 {
				m.cursor--
				m.input.SetValue(m.inputs[m.cursor])
				m.input.CursorEnd()
			}
			return m, nil
		case tea.KeyDown:
			if m.cursor < len(m.inputs)-1 {
				m.cursor++
				m.input.SetValue(m.inputs[m.cursor])
				m.input.CursorEnd()
			} else {
				m.cursor = len(m.inputs)
				m.input.SetValue("")
			}
			return m, nil
		case tea.KeyEnter:
			line := strings.TrimSpace(m.input.Value())
			m.input.SetValue("")
			if line == "" {
				return m, nil
			}
			if line == "exit" || line == "quit" {
				return m, tea.Quit
			}
			m.history = append(m.history, m.eval(line))
			m.inputs = append(m.inputs, line)
			m.cursor = len(m.inputs)
			return m, nil
		}
	}
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// eval runs one input line against the persistent runtime, capturing print
// output separately from the expression result.
func (m model) eval(line string) entry {
	e := entry{input: line}
	var out bytes.Buffer
	m.rt.SetOutput(&out)
	res, err := m.rt.RunSource("<repl>", line)
	e.output = strings.TrimRight(out.String(), "\n")
	if err != nil {
		e.err = err.Error()
		return e
	}
	if !value.Resolve(res).IsNull() {
		e.result = value.ToString(res, true)
	}
	return e
}

func (m model) View() string {
	var sb strings.Builder
	sb.WriteString(titleStyle.Render("lumen"))
	sb.WriteString(faintStyle.Render("  type 'exit' or ctrl-d to quit"))
	sb.WriteString("\n\n")
	for _, e := range m.history {
		sb.WriteString(promptStyle.Render(prompt))
		sb.WriteString(e.input + "\n")
		if e.output != "" {
			sb.WriteString(outputStyle.Render(e.output) + "\n")
		}
		if e.result != "" {
			sb.WriteString(resultStyle.Render("= "+e.result) + "\n")
		}
		if e.err != "" {
			sb.WriteString(errorStyle.Render(e.err) + "\n")
		}
	}
	sb.WriteString(m.input.View())
	sb.WriteString("\n")
	return sb.String()
}
