package state

import (
	"strings"

	"github.com/waclient/internal/model"
)

type Modal int

const (
	ModalContactForm Modal = iota + 1
	ModalGroupForm
	ModalUserSearch
	ModalGroupInfo
)

func SelectConversation(id model.ID) Patch {
	return func(s *AppState) {
		if s.SelectedConversationID != id {
			s.Messages, s.MessagesFor = nil, ""
			s.ShowGroupInfo = false
			s.LoadingMessages = !id.IsZero()
		}
		s.SelectedConversationID = id
		s.SelectedContactID = ""
	}
}

func SelectContact(id model.ID) Patch {
	return func(s *AppState) {
		s.SelectedContactID = id
		s.SelectedConversationID = ""
		s.Messages, s.MessagesFor = nil, ""
	}
}

// ShowConversations switches the list panel and drops the selection of the
// other mode.
func ShowConversations(on bool) Patch {
	return func(s *AppState) {
		s.ShowConversationList = on
		if on {
			s.SelectedContactID = ""
		} else {
			s.SelectedConversationID = ""
			s.Messages, s.MessagesFor = nil, ""
		}
		s.CurrentFilter = FilterAll
		s.SearchTerm = ""
	}
}

func SetUsers(users []model.User) Patch {
	return func(s *AppState) { s.Users = users }
}

func SetConversations(convs []model.Conversation) Patch {
	return func(s *AppState) {
		s.Conversations = convs
		s.LoadingConversations = false
	}
}

func SetContacts(contacts []model.Contact) Patch {
	return func(s *AppState) { s.Contacts = contacts }
}

// SetMessages installs the thread of convID. It is a no-op when convID is no
// longer the selected conversation.
func SetMessages(convID model.ID, msgs []model.Message) Patch {
	return func(s *AppState) {
		if s.SelectedConversationID != convID {
			return
		}
		s.Messages, s.MessagesFor = msgs, convID
		s.LoadingMessages = false
	}
}

// AppendMessage merges one message into the selected thread, replacing a
// copy with the same id.
func AppendMessage(m model.Message) Patch {
	return func(s *AppState) {
		if s.SelectedConversationID != m.ConversationID {
			return
		}
		s.MessagesFor = m.ConversationID
		for i := range s.Messages {
			if s.Messages[i].ID == m.ID {
				s.Messages[i] = m
				return
			}
		}
		s.Messages = append(s.Messages, m)
	}
}

// ReplaceConversation updates one cached conversation in place.
func ReplaceConversation(c model.Conversation) Patch {
	return func(s *AppState) {
		for i := range s.Conversations {
			if s.Conversations[i].ID == c.ID {
				s.Conversations[i] = c
				return
			}
		}
		s.Conversations = append(s.Conversations, c)
	}
}

func SetFilter(f Filter) Patch {
	return func(s *AppState) { s.CurrentFilter = f }
}

func SetSearch(term string) Patch {
	return func(s *AppState) { s.SearchTerm = term }
}

func SetNotice(msg string, isError bool) Patch {
	return func(s *AppState) { s.Notice, s.NoticeIsError = msg, isError }
}

func ClearNotice() Patch {
	return func(s *AppState) { s.Notice, s.NoticeIsError = "", false }
}

func SetTyping(convID model.ID) Patch {
	return func(s *AppState) { s.TypingIn = convID }
}

// CloseModals hides every modal form.
func CloseModals() Patch {
	return func(s *AppState) {
		s.ShowContactForm = false
		s.ShowGroupForm = false
		s.ShowUserSearch = false
		s.ShowGroupInfo = false
		s.UserQuery = ""
		s.UserResults = nil
		s.GroupMembers = nil
		for k := range s.Fields {
			if !strings.HasPrefix(k, "login.") && !strings.HasPrefix(k, "chat.") {
				delete(s.Fields, k)
			}
		}
	}
}

// OpenModal shows one modal form and hides the others.
func OpenModal(m Modal) Patch {
	return func(s *AppState) {
		CloseModals()(s)
		switch m {
		case ModalContactForm:
			s.ShowContactForm = true
		case ModalGroupForm:
			s.ShowGroupForm = true
		case ModalUserSearch:
			s.ShowUserSearch = true
		case ModalGroupInfo:
			s.ShowGroupInfo = true
		}
	}
}

// SetField stores a form draft.
func SetField(key, value string) Patch {
	return func(s *AppState) {
		if s.Fields == nil {
			s.Fields = make(map[string]string)
		}
		s.Fields[key] = value
	}
}

func ClearFields(keys ...string) Patch {
	return func(s *AppState) {
		for _, k := range keys {
			delete(s.Fields, k)
		}
	}
}

// ToggleGroupMember adds or removes id from the group form selection.
func ToggleGroupMember(id model.ID) Patch {
	return func(s *AppState) {
		if s.GroupMembers.Contains(id) {
			s.GroupMembers = s.GroupMembers.Without(id)
		} else {
			s.GroupMembers = s.GroupMembers.With(id)
		}
	}
}

func SetUserResults(query string, users []model.User) Patch {
	return func(s *AppState) {
		if s.UserQuery != query {
			return
		}
		s.UserResults = users
	}
}

// SetUserQuery starts a user search; older results are dropped.
func SetUserQuery(q string) Patch {
	return func(s *AppState) {
		s.UserQuery = q
		s.UserResults = nil
	}
}

func SetRecording(on bool) Patch {
	return func(s *AppState) { s.IsRecording = on }
}

// LoadFailed marks the initial conversation load as failed.
func LoadFailed() Patch {
	return func(s *AppState) {
		s.LoadingConversations = false
		s.LoadFailed = true
	}
}

// LoggedIn enters the authenticated state for u.
func LoggedIn(u model.User) Patch {
	return func(s *AppState) {
		pub := u.Public()
		s.CurrentUser = &pub
		s.ShowLoginForm = false
		s.LoadingConversations = true
		s.LoadFailed = false
	}
}

// LoggedOut drops every user-scoped field and shows the login form.
func LoggedOut() Patch {
	return func(s *AppState) {
		*s = Defaults()
	}
}
