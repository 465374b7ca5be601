package tui

import (
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/waclient/internal/view"
)

type fakeHost struct {
	invalidations int
	events        []view.Event
	closed        bool
}

func (h *fakeHost) Invalidate()            { h.invalidations++ }
func (h *fakeHost) Dispatch(ev view.Event) { h.events = append(h.events, ev) }
func (h *fakeHost) Close()                 { h.closed = true }

func form(log *[]string) *view.Node {
	return &view.Node{Kind: view.KindBox, ID: "app", Children: []*view.Node{
		{Kind: view.KindText, Text: "hello"},
		{
			Kind:        view.KindInput,
			ID:          "name",
			Placeholder: "Nom",
			OnChange:    func(v string) { *log = append(*log, "change:"+v) },
			OnSubmit:    func(v string) { *log = append(*log, "submit:"+v) },
		},
		{Kind: view.KindButton, ID: "ok", Text: "OK", OnSelect: func() { *log = append(*log, "ok") }},
	}}
}

func send(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	out, ok := next.(Model)
	require.True(t, ok)
	return out, cmd
}

func key(k tea.KeyType) tea.KeyMsg { return tea.KeyMsg{Type: k} }

func runes(s string) tea.KeyMsg { return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(s)} }

func TestTypingAndSubmit(t *testing.T) {
	var log []string
	h := &fakeHost{}
	m := New(h)
	m, _ = send(t, m, TreeMsg{Root: form(&log)})
	assert.Equal(t, "name", m.Focused())

	m, _ = send(t, m, runes("a"))
	m, _ = send(t, m, runes("b"))
	m, _ = send(t, m, key(tea.KeyEnter))

	assert.Equal(t, []string{"change:a", "change:ab", "submit:ab"}, log)
	require.Len(t, h.events, 1)
	assert.Equal(t, view.Event{Key: view.KeySelect, Target: "name"}, h.events[0])
	assert.Equal(t, 3, h.invalidations)
}

func TestFocusNavigation(t *testing.T) {
	var log []string
	h := &fakeHost{}
	m := New(h)
	m, _ = send(t, m, TreeMsg{Root: form(&log)})

	m, _ = send(t, m, key(tea.KeyTab))
	assert.Equal(t, "ok", m.Focused())
	m, _ = send(t, m, key(tea.KeyEnter))
	assert.Equal(t, []string{"ok"}, log)

	m, _ = send(t, m, key(tea.KeyTab))
	assert.Equal(t, "name", m.Focused(), "focus wraps around")
	m, _ = send(t, m, key(tea.KeyShiftTab))
	assert.Equal(t, "ok", m.Focused())

	// a new tree keeps focus on the same id
	m, _ = send(t, m, TreeMsg{Root: form(&log)})
	assert.Equal(t, "ok", m.Focused())

	// and falls back to the first node when the id is gone
	m, _ = send(t, m, TreeMsg{Root: &view.Node{Kind: view.KindBox, Children: []*view.Node{
		{Kind: view.KindButton, ID: "other", Text: "X", OnSelect: func() {}},
	}}})
	assert.Equal(t, "other", m.Focused())
}

func TestTypingIgnoredOutsideInputs(t *testing.T) {
	var log []string
	m := New(&fakeHost{})
	m, _ = send(t, m, TreeMsg{Root: form(&log)})
	m, _ = send(t, m, key(tea.KeyTab))
	m, _ = send(t, m, runes("zz"))
	assert.Empty(t, log)
	assert.Equal(t, "ok", m.Focused())
}

func TestFocusStaysInModal(t *testing.T) {
	root := &view.Node{Kind: view.KindBox, Children: []*view.Node{
		{Kind: view.KindButton, ID: "behind", Text: "B", OnSelect: func() {}},
		{Kind: view.KindModal, ID: "dialog", Text: "Dialog", Children: []*view.Node{
			{Kind: view.KindButton, ID: "dialog.a", Text: "A", OnSelect: func() {}},
			{Kind: view.KindButton, ID: "dialog.close", Text: "Annuler", OnSelect: func() {}},
		}},
	}}
	m := New(&fakeHost{})
	m, _ = send(t, m, TreeMsg{Root: root})
	assert.Equal(t, "dialog.a", m.Focused())
	m, _ = send(t, m, key(tea.KeyTab))
	m, _ = send(t, m, key(tea.KeyTab))
	assert.Equal(t, "dialog.a", m.Focused())
}

func TestEscapeAndQuit(t *testing.T) {
	h := &fakeHost{}
	m := New(h)
	m, _ = send(t, m, key(tea.KeyEsc))
	assert.Equal(t, []view.Event{{Key: view.KeyEscape}}, h.events)

	_, cmd := send(t, m, key(tea.KeyCtrlC))
	require.NotNil(t, cmd)
	assert.Equal(t, tea.QuitMsg{}, cmd())
	assert.True(t, h.closed)
}

func TestViewRendersTree(t *testing.T) {
	m := New(&fakeHost{})
	assert.Contains(t, m.View(), "Chargement")

	root := &view.Node{Kind: view.KindBox, Children: []*view.Node{
		{Kind: view.KindText, Text: "Famille", Role: view.RoleTitle},
		{Kind: view.KindButton, ID: "go", Text: "Envoyer", OnSelect: func() {}},
		{Kind: view.KindInput, ID: "pw", Value: "abc", Secret: true, OnChange: func(string) {}},
		{Kind: view.KindItem, ID: "member:2", Text: "Bob", Checked: true, OnSelect: func() {}},
	}}
	m, _ = send(t, m, TreeMsg{Root: root})
	out := m.View()
	assert.Contains(t, out, "Famille")
	assert.Contains(t, out, "[Envoyer]")
	assert.Contains(t, out, "•••")
	assert.NotContains(t, out, "abc")
	assert.Contains(t, out, "✓ Bob")
}
