// Package tui hosts the view tree in a terminal with bubbletea.
package tui

import (
	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/waclient/internal/view"
)

// Host is the orchestrator side of the terminal: it renders trees on
// invalidation and receives global events.
type Host interface {
	Invalidate()
	Dispatch(ev view.Event)
	Close()
}

// TreeMsg delivers a freshly rendered tree to the program.
type TreeMsg struct{ Root *view.Node }

type Model struct {
	host   Host
	root   *view.Node
	focus  string
	input  textinput.Model
	width  int
	height int
}

func New(host Host) Model {
	ti := textinput.New()
	ti.Prompt = "› "
	ti.CharLimit = 4000
	return Model{host: host, input: ti, width: 100}
}

func (m Model) Init() tea.Cmd {
	m.host.Invalidate()
	return textinput.Blink
}

// Focused returns the id of the node holding focus.
func (m Model) Focused() string { return m.focus }

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width, m.height = msg.Width, msg.Height
		return m, nil

	case TreeMsg:
		m.root = msg.Root
		cmd := m.syncFocus()
		return m, cmd

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			m.host.Close()
			return m, tea.Quit
		case "tab", "down":
			cmd := m.move(1)
			return m, cmd
		case "shift+tab", "up":
			cmd := m.move(-1)
			return m, cmd
		case "esc":
			m.host.Dispatch(view.Event{Key: view.KeyEscape})
			m.host.Invalidate()
			return m, nil
		case "enter":
			m.activate()
			m.host.Invalidate()
			return m, nil
		}
	}

	n := m.focused()
	if n == nil || n.Kind != view.KindInput {
		return m, nil
	}
	before := m.input.Value()
	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	if v := m.input.Value(); v != before && n.OnChange != nil {
		n.OnChange(v)
		m.host.Invalidate()
	}
	return m, cmd
}

func (m Model) focused() *view.Node {
	if m.root == nil || m.focus == "" {
		return nil
	}
	for _, n := range view.Focusables(m.root) {
		if n.ID == m.focus {
			return n
		}
	}
	return nil
}

// syncFocus keeps focus on the same id across trees, falling back to the
// first focusable node, and mirrors a focused input into the text field.
func (m *Model) syncFocus() tea.Cmd {
	if m.root == nil {
		return nil
	}
	list := view.Focusables(m.root)
	if m.focused() == nil {
		m.focus = ""
		if len(list) > 0 {
			m.focus = list[0].ID
		}
	}
	n := m.focused()
	if n == nil || n.Kind != view.KindInput {
		m.input.Blur()
		return nil
	}
	if m.input.Value() != n.Value {
		m.input.SetValue(n.Value)
	}
	m.input.Placeholder = n.Placeholder
	m.input.EchoMode = textinput.EchoNormal
	if n.Secret {
		m.input.EchoMode = textinput.EchoPassword
		m.input.EchoCharacter = '•'
	}
	return m.input.Focus()
}

func (m *Model) move(delta int) tea.Cmd {
	if m.root == nil {
		return nil
	}
	list := view.Focusables(m.root)
	if len(list) == 0 {
		return nil
	}
	idx := 0
	for i, n := range list {
		if n.ID == m.focus {
			idx = (i + delta + len(list)) % len(list)
			break
		}
	}
	m.focus = list[idx].ID
	// новое поле ввода начинается со значения из дерева
	m.input.SetValue("")
	return m.syncFocus()
}

// activate announces the selection to global listeners, then runs the
// node's own handler.
func (m *Model) activate() {
	n := m.focused()
	if n == nil {
		return
	}
	m.host.Dispatch(view.Event{Key: view.KeySelect, Target: n.ID})
	switch {
	case n.Kind == view.KindInput && n.OnSubmit != nil:
		n.OnSubmit(m.input.Value())
	case n.OnSelect != nil:
		n.OnSelect()
	}
}

func (m Model) View() string {
	if m.root == nil {
		return mutedStyle.Render("Chargement...")
	}
	r := renderer{focus: m.focus, input: m.input.View(), width: m.width}
	return r.node(m.root) + "\n" + mutedStyle.Render(helpLine)
}

const helpLine = "tab/shift+tab: naviguer • entrée: valider • échap: fermer • ctrl+c: quitter"
