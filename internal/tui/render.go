package tui

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/waclient/internal/view"
)

const (
	sidebarWidth = 22
	panelWidth   = 40
	minChatWidth = 30
)

var (
	titleStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("63"))
	mutedStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("247"))
	badgeStyle     = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("0")).Background(lipgloss.Color("42")).Padding(0, 1)
	errorStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	noticeStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	highlightStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("226"))
	ownStyle       = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	deletedStyle   = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("241"))
	selectedStyle  = lipgloss.NewStyle().Bold(true)
	activeStyle    = lipgloss.NewStyle().Bold(true).Underline(true)
	focusStyle     = lipgloss.NewStyle().Reverse(true)
	buttonStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	boxStyle       = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).Padding(0, 1)
	modalStyle     = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("63")).Padding(0, 1)
)

// renderer turns a node tree into terminal text. input is the view of the
// text field, drawn in place of the focused input node.
type renderer struct {
	focus string
	input string
	width int
}

func (r renderer) node(n *view.Node) string {
	switch n.Kind {
	case view.KindRow:
		return r.row(n)
	case view.KindText:
		return roleStyle(n.Role).Render(n.Text)
	case view.KindButton:
		return r.button(n)
	case view.KindInput:
		return r.field(n)
	case view.KindItem:
		return r.item(n)
	case view.KindModal:
		body := titleStyle.Render(n.Text) + "\n" + r.children(n)
		return modalStyle.Width(panelWidth + 10).Render(body)
	default:
		return r.box(n)
	}
}

func (r renderer) children(n *view.Node) string {
	parts := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		if s := r.node(c); s != "" {
			parts = append(parts, s)
		}
	}
	return lipgloss.JoinVertical(lipgloss.Left, parts...)
}

func (r renderer) row(n *view.Node) string {
	parts := make([]string, 0, len(n.Children))
	for _, c := range n.Children {
		parts = append(parts, r.node(c))
	}
	s := lipgloss.JoinHorizontal(lipgloss.Top, intersperse(parts, " ")...)
	if n.Role != view.RoleNone {
		s = roleStyle(n.Role).Render(s)
	}
	return s
}

func (r renderer) box(n *view.Node) string {
	body := r.children(n)
	switch n.Role {
	case view.RoleSidebar:
		return boxStyle.Width(sidebarWidth).Render(body)
	case view.RolePanel:
		return boxStyle.Width(panelWidth).Render(body)
	case view.RoleChat:
		return boxStyle.Width(r.chatWidth()).Render(body)
	}
	if n.Role != view.RoleNone {
		return roleStyle(n.Role).Render(body)
	}
	return body
}

func (r renderer) chatWidth() int {
	// рамки панелей и промежутки между ними
	w := r.width - sidebarWidth - panelWidth - 14
	if w < minChatWidth {
		return minChatWidth
	}
	return w
}

func (r renderer) button(n *view.Node) string {
	label := "[" + n.Text + "]"
	switch {
	case n.ID == r.focus:
		return focusStyle.Render(label)
	case n.Role == view.RoleActive:
		return activeStyle.Render(label)
	}
	return buttonStyle.Render(label)
}

func (r renderer) field(n *view.Node) string {
	if n.ID == r.focus {
		return r.input
	}
	switch {
	case n.Value == "":
		return mutedStyle.Render("  " + n.Placeholder)
	case n.Secret:
		return "  " + strings.Repeat("•", len([]rune(n.Value)))
	}
	return "  " + n.Value
}

func (r renderer) item(n *view.Node) string {
	marker := "  "
	if n.ID == r.focus {
		marker = focusStyle.Render("▸") + " "
	}
	check := ""
	if n.Checked {
		check = "✓ "
	}
	var lines []string
	if n.Text != "" {
		lines = append(lines, check+roleStyle(n.Role).Render(n.Text))
		check = ""
	}
	if body := r.children(n); body != "" {
		lines = append(lines, body)
	}
	s := lipgloss.JoinVertical(lipgloss.Left, lines...)
	if n.Text == "" && n.Role != view.RoleNone {
		s = roleStyle(n.Role).Render(s)
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, marker, check+s)
}

func roleStyle(role view.Role) lipgloss.Style {
	switch role {
	case view.RoleTitle:
		return titleStyle
	case view.RoleMuted:
		return mutedStyle
	case view.RoleBadge:
		return badgeStyle
	case view.RoleError:
		return errorStyle
	case view.RoleNotice:
		return noticeStyle
	case view.RoleHighlight:
		return highlightStyle
	case view.RoleOwn:
		return ownStyle
	case view.RoleDeleted:
		return deletedStyle
	case view.RoleSelected:
		return selectedStyle
	case view.RoleActive:
		return activeStyle
	}
	return lipgloss.NewStyle()
}

func intersperse(parts []string, sep string) []string {
	if len(parts) < 2 {
		return parts
	}
	out := make([]string, 0, 2*len(parts)-1)
	for i, p := range parts {
		if i > 0 {
			out = append(out, sep)
		}
		out = append(out, p)
	}
	return out
}
