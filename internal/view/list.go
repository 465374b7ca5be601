package view

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/waclient/internal/model"
	"github.com/waclient/internal/state"
)

const previewLength = 50

func ConversationList(c *Context) *Node {
	st := &c.State
	list := box("conversations", RoleNone)
	switch {
	case st.LoadFailed:
		list.Children = append(list.Children,
			text("Impossible de charger les conversations", RoleError),
			button("conversations.reload", "Réessayer", c.Do.Reload),
		)
		return list
	case st.LoadingConversations && len(st.Conversations) == 0:
		list.Children = append(list.Children, text("Chargement...", RoleMuted))
		return list
	}

	viewer := c.viewer()
	convs := FilterConversations(st.Conversations, st.CurrentFilter, st.SearchTerm, viewer, st.Users)
	if len(convs) == 0 {
		list.Children = append(list.Children,
			text(strings.TrimSpace("Aucune conversation "+filterLabel(st.CurrentFilter, false)), RoleMuted))
		return list
	}
	for i := range convs {
		list.Children = append(list.Children, conversationItem(c, &convs[i], viewer))
	}
	return list
}

func conversationItem(c *Context, conv *model.Conversation, viewer model.ID) *Node {
	id := conv.ID
	selected := c.State.SelectedConversationID == id
	unread := conv.UnreadFor(viewer)

	title := row(highlighted(ConversationName(conv, viewer, c.State.Users), c.State.SearchTerm, RoleTitle))
	if conv.IsGroup() {
		title.Children = append(title.Children, text("👥", RoleMuted))
	}
	if conv.IsPinned {
		title.Children = append(title.Children, text("📌", RoleNone))
	}
	if conv.IsArchived {
		title.Children = append(title.Children, text("📁", RoleMuted))
	}
	title.Children = append(title.Children, text(FormatTime(conv.LastMessageTime, c.Now), RoleMuted))

	preview := row(text(Truncate(conv.LastMessage, previewLength), RoleMuted))
	if unread > 0 {
		preview.Children = append(preview.Children, text(strconv.Itoa(unread), RoleBadge))
	}

	item := &Node{
		Kind:     KindItem,
		ID:       "conv:" + id.String(),
		Children: []*Node{title, preview},
		OnSelect: func() {
			if !selected {
				c.Do.OpenConversation(id)
			}
		},
	}
	if !selected {
		return item
	}
	item.Role = RoleSelected

	// действия видны только у выбранной беседы
	pin, archive := "Épingler", "Archiver"
	if conv.IsPinned {
		pin = "Désépingler"
	}
	if conv.IsArchived {
		archive = "Désarchiver"
	}
	actions := row(
		button("conv.pin:"+id.String(), pin, func() { c.Do.TogglePin(id) }),
		button("conv.archive:"+id.String(), archive, func() { c.Do.ToggleArchive(id) }),
	)
	if conv.IsGroup() {
		actions.Children = append(actions.Children,
			button("conv.info:"+id.String(), "Info groupe", func() { c.update(state.OpenModal(state.ModalGroupInfo)) }))
		if conv.IsAdmin(viewer) {
			actions.Children = append(actions.Children,
				button("conv.delete:"+id.String(), "Supprimer groupe", func() { c.Do.DeleteGroup(id) }))
		} else {
			actions.Children = append(actions.Children,
				button("conv.leave:"+id.String(), "Quitter groupe", func() { c.Do.LeaveGroup(id) }))
		}
	}
	item.Children = append(item.Children, actions)
	return item
}

func ContactList(c *Context) *Node {
	st := &c.State
	list := box("contacts", RoleNone)
	contacts := FilterContacts(st.Contacts, st.CurrentFilter, st.SearchTerm)
	if len(contacts) == 0 {
		msg := strings.TrimSpace("Aucun contact " + filterLabel(st.CurrentFilter, true))
		if strings.TrimSpace(st.SearchTerm) != "" {
			msg = fmt.Sprintf("Aucun contact trouvé pour %q", st.SearchTerm)
		}
		list.Children = append(list.Children, text(msg, RoleMuted))
		return list
	}
	for i := range contacts {
		list.Children = append(list.Children, contactItem(c, &contacts[i]))
	}
	return list
}

func contactItem(c *Context, ct *model.Contact) *Node {
	id := ct.ID
	title := row(highlighted(ct.Name, c.State.SearchTerm, RoleTitle))
	if ct.IsFavorite {
		title.Children = append(title.Children, text("♥", RoleHighlight))
	}
	if ct.IsArchived {
		title.Children = append(title.Children, text("📁", RoleMuted))
	}
	title.Children = append(title.Children, text(ct.LastMessageTime, RoleMuted))
	preview := row(text(Truncate(ct.LastMessage, previewLength), RoleMuted))
	if ct.UnreadCount > 0 {
		preview.Children = append(preview.Children, text(strconv.Itoa(ct.UnreadCount), RoleBadge))
	}

	item := &Node{
		Kind:     KindItem,
		ID:       "contact:" + id.String(),
		Children: []*Node{title, preview},
		OnSelect: func() { c.update(state.SelectContact(id)) },
	}
	if c.State.SelectedContactID != id {
		return item
	}
	item.Role = RoleSelected
	fav, archive := "Favori", "Archiver"
	if ct.IsFavorite {
		fav = "Retirer favori"
	}
	if ct.IsArchived {
		archive = "Désarchiver"
	}
	item.Children = append(item.Children, row(
		button("contact.favorite:"+id.String(), fav, func() { c.Do.ToggleFavorite(id) }),
		button("contact.archive:"+id.String(), archive, func() { c.Do.ToggleContactArchive(id) }),
		button("contact.delete:"+id.String(), "Supprimer", func() { c.Do.DeleteContact(id) }),
	))
	return item
}
