// Package view builds the UI as a tree of neutral nodes. Views are pure
// functions of a state snapshot; handlers change state through the Context
// and then ask for a rerender.
package view

import (
	"time"

	"github.com/waclient/internal/model"
	"github.com/waclient/internal/service"
	"github.com/waclient/internal/state"
)

type Kind string

const (
	KindBox    Kind = "box"
	KindRow    Kind = "row"
	KindText   Kind = "text"
	KindButton Kind = "button"
	KindInput  Kind = "input"
	KindItem   Kind = "item"
	KindModal  Kind = "modal"
)

// Role is a styling hint for the host.
type Role string

const (
	RoleNone      Role = ""
	RoleTitle     Role = "title"
	RoleMuted     Role = "muted"
	RoleBadge     Role = "badge"
	RoleError     Role = "error"
	RoleNotice    Role = "notice"
	RoleSelected  Role = "selected"
	RoleActive    Role = "active"
	RoleOwn       Role = "own"
	RoleOther     Role = "other"
	RoleDeleted   Role = "deleted"
	RoleHighlight Role = "highlight"
	RoleSidebar   Role = "sidebar"
	RolePanel     Role = "panel"
	RoleChat      Role = "chat"
)

// Node is one element of the UI tree. ID is stable across renders and is
// what hosts use to keep focus.
type Node struct {
	Kind        Kind
	ID          string
	Text        string
	Role        Role
	Value       string
	Placeholder string
	Secret      bool
	Checked     bool
	Children    []*Node

	OnSelect func()
	OnChange func(string)
	OnSubmit func(string)
}

// Focusable reports whether the host can move focus to n.
func (n *Node) Focusable() bool {
	return n.OnSelect != nil || n.OnSubmit != nil || n.OnChange != nil
}

// Walk visits n and its descendants depth-first until fn returns false.
func (n *Node) Walk(fn func(*Node) bool) bool {
	if n == nil {
		return true
	}
	if !fn(n) {
		return false
	}
	for _, c := range n.Children {
		if !c.Walk(fn) {
			return false
		}
	}
	return true
}

// Find returns the node with id, nil if absent.
func (n *Node) Find(id string) *Node {
	var found *Node
	n.Walk(func(x *Node) bool {
		if x.ID == id {
			found = x
			return false
		}
		return true
	})
	return found
}

// Contains reports whether id is n or one of its descendants. The empty id
// is never contained.
func (n *Node) Contains(id string) bool { return id != "" && n.Find(id) != nil }

// Focusables lists the interactive nodes in tree order. When a modal is
// present only its nodes are returned.
func Focusables(root *Node) []*Node {
	scope := root
	root.Walk(func(x *Node) bool {
		if x.Kind == KindModal {
			scope = x
			return false
		}
		return true
	})
	var out []*Node
	scope.Walk(func(x *Node) bool {
		if x.Focusable() {
			out = append(out, x)
		}
		return true
	})
	return out
}

func box(id string, role Role, children ...*Node) *Node {
	return &Node{Kind: KindBox, ID: id, Role: role, Children: compact(children)}
}

func row(children ...*Node) *Node {
	return &Node{Kind: KindRow, Children: compact(children)}
}

func text(s string, role Role) *Node {
	return &Node{Kind: KindText, Text: s, Role: role}
}

func button(id, label string, onSelect func()) *Node {
	return &Node{Kind: KindButton, ID: id, Text: label, OnSelect: onSelect}
}

func compact(nodes []*Node) []*Node {
	out := nodes[:0]
	for _, n := range nodes {
		if n != nil {
			out = append(out, n)
		}
	}
	return out
}

// Event is delivered to global listeners: key presses and selections
// anywhere in the tree.
type Event struct {
	Key    string
	Target string
}

const (
	KeyEscape = "esc"
	KeySelect = "select"
)

// Actions are the operations views can start. They run asynchronously and
// merge their results into state themselves.
type Actions interface {
	Login(identifier, password string)
	Logout()
	Reload()
	OpenConversation(id model.ID)
	SendText(text string)
	SendFile(path, caption string)
	StartRecording()
	StopRecording()
	CancelRecording()
	DeleteMessage(id model.ID)
	ToggleImportant(id model.ID)
	TogglePin(id model.ID)
	ToggleArchive(id model.ID)
	CreateGroup(name string, members model.IDs)
	DeleteGroup(id model.ID)
	LeaveGroup(id model.ID)
	AddParticipant(convID, userID model.ID)
	SearchUsers(query string)
	StartDirect(userID model.ID)
	CreateContact(name, phone string)
	ToggleFavorite(id model.ID)
	ToggleContactArchive(id model.ID)
	SetContactAvatar(id model.ID, path string)
	DeleteContact(id model.ID)
}

// Context is handed to every view. Rerender is always the top-level one.
type Context struct {
	State    state.AppState
	Now      time.Time
	Merge    func(patches ...state.Patch)
	Rerender func()
	// Listen registers a global listener for this render. Registering the
	// same name again replaces the previous listener.
	Listen func(name string, fn func(Event))
	Do     Actions
}

// update merges patches and rerenders; the common tail of every local handler.
func (c *Context) update(patches ...state.Patch) {
	c.Merge(patches...)
	c.Rerender()
}

func (c *Context) viewer() model.ID {
	if c.State.CurrentUser == nil {
		return ""
	}
	return c.State.CurrentUser.ID
}

// mediaLabel describes a media payload in one line.
func mediaLabel(m *model.Message) string {
	if m.Media == nil {
		return m.Preview()
	}
	label := m.Preview()
	switch m.Kind() {
	case model.MessageVideo, model.MessageVoice:
		label += " " + service.FormatDuration(m.Media.Duration)
	}
	if m.Media.Size > 0 {
		label += " (" + service.FormatFileSize(m.Media.Size) + ")"
	}
	return label
}
