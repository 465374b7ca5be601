// Package state holds the single application state record. Views get a
// snapshot from Read; every change goes through Merge.
package state

import (
	"sync"

	"github.com/waclient/internal/model"
)

type Filter string

const (
	FilterAll       Filter = "all"
	FilterPinned    Filter = "pinned"
	FilterFavorites Filter = "favorites"
	FilterArchived  Filter = "archived"
	FilterUnread    Filter = "unread"
	FilterGroups    Filter = "groups"
	FilterDirect    Filter = "direct"
)

// AppState is the whole UI state. At most one of SelectedContactID and
// SelectedConversationID is set, and Messages always belongs to
// SelectedConversationID (MessagesFor records which one).
type AppState struct {
	SelectedContactID      model.ID
	SelectedConversationID model.ID
	CurrentFilter          Filter
	SearchTerm             string
	UserQuery              string

	CurrentUser   *model.User
	Users         []model.User
	Conversations []model.Conversation
	Contacts      []model.Contact
	Messages      []model.Message
	MessagesFor   model.ID
	UserResults   []model.User

	// Fields holds form drafts keyed by input id; GroupMembers is the
	// selection of the group form.
	Fields       map[string]string
	GroupMembers model.IDs

	ShowLoginForm        bool
	ShowConversationList bool
	ShowContactForm      bool
	ShowGroupForm        bool
	ShowUserSearch       bool
	ShowGroupInfo        bool

	LoadingConversations bool
	LoadingMessages      bool
	LoadFailed           bool
	TypingIn             model.ID
	IsRecording          bool

	Notice        string
	NoticeIsError bool
}

// Defaults is the state of a fresh, logged-out client.
func Defaults() AppState {
	return AppState{
		CurrentFilter:        FilterAll,
		ShowLoginForm:        true,
		ShowConversationList: true,
	}
}

// Authenticated reports whether a user is logged in.
func (s AppState) Authenticated() bool { return s.CurrentUser != nil && !s.ShowLoginForm }

// SelectedConversation returns the cached selected conversation, nil if none.
func (s AppState) SelectedConversation() *model.Conversation {
	if s.SelectedConversationID.IsZero() {
		return nil
	}
	for i := range s.Conversations {
		if s.Conversations[i].ID == s.SelectedConversationID {
			return &s.Conversations[i]
		}
	}
	return nil
}

func (s AppState) SelectedContact() *model.Contact {
	if s.SelectedContactID.IsZero() {
		return nil
	}
	for i := range s.Contacts {
		if s.Contacts[i].ID == s.SelectedContactID {
			return &s.Contacts[i]
		}
	}
	return nil
}

// Field returns the draft value of a form input.
func (s AppState) Field(key string) string { return s.Fields[key] }

// User returns the cached user with id, nil if unknown.
func (s AppState) User(id model.ID) *model.User {
	for i := range s.Users {
		if s.Users[i].ID == id {
			return &s.Users[i]
		}
	}
	return nil
}

func (s AppState) clone() AppState {
	if s.CurrentUser != nil {
		u := *s.CurrentUser
		s.CurrentUser = &u
	}
	s.Users = cloneSlice(s.Users)
	s.UserResults = cloneSlice(s.UserResults)
	s.Contacts = cloneSlice(s.Contacts)
	s.GroupMembers = cloneSlice(s.GroupMembers)
	if s.Fields != nil {
		fields := make(map[string]string, len(s.Fields))
		for k, v := range s.Fields {
			fields[k] = v
		}
		s.Fields = fields
	}
	if s.Conversations != nil {
		convs := make([]model.Conversation, len(s.Conversations))
		for i, c := range s.Conversations {
			convs[i] = c.Clone()
		}
		s.Conversations = convs
	}
	if s.Messages != nil {
		msgs := make([]model.Message, len(s.Messages))
		for i, m := range s.Messages {
			m.ReadBy = append(model.IDs(nil), m.ReadBy...)
			if m.Media != nil {
				media := *m.Media
				m.Media = &media
			}
			msgs[i] = m
		}
		s.Messages = msgs
	}
	return s
}

func cloneSlice[T any](in []T) []T {
	if in == nil {
		return nil
	}
	return append(make([]T, 0, len(in)), in...)
}

// Patch changes the live state inside Merge. Patches must not keep s.
type Patch func(s *AppState)

// Guard inspects the live state inside MergeIf. It must not modify it.
type Guard func(s *AppState) bool

type Container struct {
	mu      sync.RWMutex
	st      AppState
	version uint64
}

func New(initial AppState) *Container {
	return &Container{st: initial.clone()}
}

// Read returns a copy of the current state; callers may modify it freely.
func (c *Container) Read() AppState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.st.clone()
}

// Version increases with every Merge that applied patches.
func (c *Container) Version() uint64 {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.version
}

// Merge applies patches in order; later patches win.
func (c *Container) Merge(patches ...Patch) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.apply(patches)
}

// MergeIf applies patches only when guard holds against the live state and
// reports whether it did.
func (c *Container) MergeIf(guard Guard, patches ...Patch) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if guard != nil && !guard(&c.st) {
		return false
	}
	c.apply(patches)
	return true
}

func (c *Container) apply(patches []Patch) {
	if len(patches) == 0 {
		return
	}
	before := c.st
	for _, p := range patches {
		if p != nil {
			p(&c.st)
		}
	}
	normalize(&c.st, &before)
	c.version++
}

// normalize restores the selection invariants after arbitrary patches. When
// both selections end up set, the one that changed wins.
func normalize(s, before *AppState) {
	if !s.SelectedContactID.IsZero() && !s.SelectedConversationID.IsZero() {
		if s.SelectedConversationID != before.SelectedConversationID {
			s.SelectedContactID = ""
		} else {
			s.SelectedConversationID = ""
		}
	}
	if s.MessagesFor != s.SelectedConversationID {
		s.Messages = nil
		s.MessagesFor = ""
	}
	if s.TypingIn != "" && s.TypingIn != s.SelectedConversationID {
		s.TypingIn = ""
	}
}
