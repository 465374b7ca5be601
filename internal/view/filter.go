package view

import (
	"sort"
	"strings"

	"github.com/waclient/internal/model"
	"github.com/waclient/internal/state"
)

const unknownUser = "Utilisateur inconnu"

func findUser(users []model.User, id model.ID) *model.User {
	for i := range users {
		if users[i].ID == id {
			return &users[i]
		}
	}
	return nil
}

// ConversationName is the group name, or the other participant's name for
// direct conversations.
func ConversationName(c *model.Conversation, viewer model.ID, users []model.User) string {
	if c.IsGroup() {
		return c.Name
	}
	if u := findUser(users, c.Other(viewer)); u != nil {
		return u.DisplayName()
	}
	return unknownUser
}

func matchesFilter(c *model.Conversation, f state.Filter, viewer model.ID) bool {
	switch f {
	case state.FilterPinned:
		return c.IsPinned && !c.IsArchived
	case state.FilterArchived:
		return c.IsArchived
	case state.FilterUnread:
		return c.UnreadFor(viewer) > 0 && !c.IsArchived
	case state.FilterGroups:
		return c.IsGroup() && !c.IsArchived
	case state.FilterDirect:
		return !c.IsGroup() && !c.IsArchived
	}
	return !c.IsArchived
}

func matchesTerm(c *model.Conversation, term string, viewer model.ID, users []model.User) bool {
	if c.IsGroup() {
		return strings.Contains(strings.ToLower(c.Name), term)
	}
	u := findUser(users, c.Other(viewer))
	if u == nil {
		return strings.Contains(strings.ToLower(unknownUser), term)
	}
	return strings.Contains(strings.ToLower(u.Name), term) ||
		strings.Contains(strings.ToLower(u.Username), term)
}

// FilterConversations applies the list filter and the search term, then
// sorts the result with SortConversations. The input is not modified.
func FilterConversations(convs []model.Conversation, f state.Filter, term string, viewer model.ID, users []model.User) []model.Conversation {
	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]model.Conversation, 0, len(convs))
	for i := range convs {
		c := &convs[i]
		if !matchesFilter(c, f, viewer) {
			continue
		}
		if term != "" && !matchesTerm(c, term, viewer, users) {
			continue
		}
		out = append(out, *c)
	}
	SortConversations(out, viewer)
	return out
}

// SortConversations orders pinned first, then those with unread messages
// for viewer, then by last activity, newest first. Ties keep their order.
func SortConversations(convs []model.Conversation, viewer model.ID) {
	sort.SliceStable(convs, func(i, j int) bool {
		a, b := &convs[i], &convs[j]
		if a.IsPinned != b.IsPinned {
			return a.IsPinned
		}
		ua, ub := a.UnreadFor(viewer) > 0, b.UnreadFor(viewer) > 0
		if ua != ub {
			return ua
		}
		return a.LastMessageTime.After(b.LastMessageTime.Time)
	})
}

// FilterContacts keeps contacts matching the filter whose name or phone
// contains term.
func FilterContacts(contacts []model.Contact, f state.Filter, term string) []model.Contact {
	term = strings.ToLower(strings.TrimSpace(term))
	out := make([]model.Contact, 0, len(contacts))
	for _, c := range contacts {
		var keep bool
		switch f {
		case state.FilterFavorites:
			keep = c.IsFavorite && !c.IsArchived
		case state.FilterArchived:
			keep = c.IsArchived
		case state.FilterUnread:
			keep = c.UnreadCount > 0 && !c.IsArchived
		default:
			keep = !c.IsArchived
		}
		if !keep {
			continue
		}
		if term != "" && !strings.Contains(strings.ToLower(c.Name), term) && !strings.Contains(c.Phone, term) {
			continue
		}
		out = append(out, c)
	}
	return out
}

func filterLabel(f state.Filter, contacts bool) string {
	switch f {
	case state.FilterPinned:
		return "épinglée"
	case state.FilterArchived:
		if contacts {
			return "archivé"
		}
		return "archivée"
	case state.FilterFavorites:
		return "favori"
	case state.FilterUnread:
		return "non lue"
	case state.FilterGroups:
		return "de groupe"
	case state.FilterDirect:
		return "directe"
	}
	return ""
}
