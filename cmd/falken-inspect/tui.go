package main

import (
	"falken/pkg/domain"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// model browses the loaded brains one at a time.
type model struct {
	brains   []domain.BrainSchema
	reports  []report
	current  int
	showWire bool
	err      error

	viewport viewport.Model
	width    int
	height   int
	ready    bool
}

func newModel(brains []domain.BrainSchema, showWire bool) model {
	m := model{brains: brains, showWire: showWire}
	m.rebuild()
	return m
}

// rebuild re-renders every report after the wire toggle changes.
func (m *model) rebuild() {
	m.reports = make([]report, 0, len(m.brains))
	m.err = nil
	for _, b := range m.brains {
		r, err := describe(b, m.showWire)
		if err != nil {
			m.err = err
			r = report{name: b.Name}
			r.add(kindWarning, "%v", err)
		}
		m.reports = append(m.reports, r)
	}
}

func (m model) Init() tea.Cmd { return nil }

func (m model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		h := max(m.height-1, 1)
		if !m.ready {
			m.viewport = viewport.New(m.width, h)
			m.ready = true
		} else {
			m.viewport.Width = m.width
			m.viewport.Height = h
		}
		m.refresh()
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q", "esc":
			return m, tea.Quit
		case "tab", "n", "right":
			if len(m.reports) > 0 {
				m.current = (m.current + 1) % len(m.reports)
				m.refresh()
			}
			return m, nil
		case "shift+tab", "p", "left":
			if len(m.reports) > 0 {
				m.current = (m.current - 1 + len(m.reports)) % len(m.reports)
				m.refresh()
			}
			return m, nil
		case "w":
			m.showWire = !m.showWire
			m.rebuild()
			m.refresh()
			return m, nil
		}
	}

	var cmd tea.Cmd
	m.viewport, cmd = m.viewport.Update(msg)
	return m, cmd
}

func (m *model) refresh() {
	if !m.ready || len(m.reports) == 0 {
		return
	}
	var b strings.Builder
	for _, l := range m.reports[m.current].lines {
		b.WriteString(styleLine(l))
		b.WriteByte('\n')
	}
	m.viewport.SetContent(b.String())
	m.viewport.GotoTop()
}

func (m model) statusBar() string {
	name := ""
	if len(m.reports) > 0 {
		name = m.reports[m.current].name
	}
	wire := "off"
	if m.showWire {
		wire = "on"
	}
	text := fmt.Sprintf(" %s (%d/%d)  wire:%s  tab next  w wire  q quit", name, m.current+1, len(m.reports), wire)
	return styleStatusBar.Width(m.width).Render(text)
}

func (m model) View() string {
	if !m.ready {
		return "loading..."
	}
	return lipgloss.JoinVertical(lipgloss.Left, m.viewport.View(), m.statusBar())
}

func runTUI(brains []domain.BrainSchema, showWire bool) error {
	p := tea.NewProgram(newModel(brains, showWire), tea.WithAltScreen())
	_, err := p.Run()
	return err
}
