package view

import (
	"fmt"
	"strings"

	"github.com/waclient/internal/model"
	"github.com/waclient/internal/state"
)

// ChatWindow shows the selected conversation, the selected contact card,
// or a placeholder.
func ChatWindow(c *Context) *Node {
	st := &c.State
	if ct := st.SelectedContact(); ct != nil {
		return contactCard(c, ct)
	}
	conv := st.SelectedConversation()
	if conv == nil {
		return box("chat", RoleChat,
			text("WhatsApp", RoleTitle),
			text("Sélectionnez une conversation pour commencer", RoleMuted),
		)
	}
	return box("chat", RoleChat,
		chatHeader(c, conv),
		messageList(c, conv),
		typingIndicator(c, conv),
		composer(c),
	)
}

func chatHeader(c *Context, conv *model.Conversation) *Node {
	viewer := c.viewer()
	status := fmt.Sprintf("%d participants", len(conv.Participants))
	if !conv.IsGroup() {
		status = lastSeen(c.State.User(conv.Other(viewer)), c.Now)
	}
	h := row(
		text(ConversationName(conv, viewer, c.State.Users), RoleTitle),
		text(status, RoleMuted),
	)
	if conv.IsGroup() {
		h.Children = append(h.Children,
			button("chat.info", "Info groupe", func() { c.update(state.OpenModal(state.ModalGroupInfo)) }))
	}
	return h
}

func messageList(c *Context, conv *model.Conversation) *Node {
	st := &c.State
	list := box("messages", RoleNone)
	if st.LoadingMessages && len(st.Messages) == 0 {
		list.Children = append(list.Children, text("Chargement des messages...", RoleMuted))
		return list
	}
	if len(st.Messages) == 0 {
		list.Children = append(list.Children, text("Aucun message", RoleMuted))
		return list
	}
	var day string
	for i := range st.Messages {
		m := &st.Messages[i]
		if d := FormatDate(m.Timestamp, c.Now.Location()); d != day {
			day = d
			list.Children = append(list.Children, text(d, RoleMuted))
		}
		list.Children = append(list.Children, messageItem(c, conv, m))
	}
	return list
}

func messageItem(c *Context, conv *model.Conversation, m *model.Message) *Node {
	viewer := c.viewer()
	own := m.SenderID == viewer
	id := m.ID
	item := &Node{Kind: KindItem, ID: "msg:" + id.String(), Role: RoleOther}
	if own {
		item.Role = RoleOwn
	}
	if conv.IsGroup() && !own {
		name := unknownUser
		if u := c.State.User(m.SenderID); u != nil {
			name = u.DisplayName()
		}
		item.Children = append(item.Children, text(name, RoleTitle))
	}

	if m.IsDeleted {
		item.Role = RoleDeleted
		item.Children = append(item.Children,
			text(model.DeletedPlaceholder, RoleDeleted),
			text(FormatTime(m.Timestamp, c.Now), RoleMuted))
		return item
	}

	if m.Kind() == model.MessageText {
		item.Children = append(item.Children, text(m.Text, RoleNone))
	} else {
		item.Children = append(item.Children, text(mediaLabel(m), RoleNone))
		if strings.TrimSpace(m.Text) != "" {
			item.Children = append(item.Children, text(m.Text, RoleNone))
		}
	}

	meta := row(text(FormatTime(m.Timestamp, c.Now), RoleMuted))
	if m.IsImportant {
		meta.Children = append(meta.Children, text("★", RoleHighlight))
	}
	if own {
		ticks := "✓"
		if m.IsRead {
			ticks = "✓✓"
		}
		meta.Children = append(meta.Children, text(ticks, RoleMuted))
	}
	item.Children = append(item.Children, meta)

	star := "Important"
	if m.IsImportant {
		star = "Retirer important"
	}
	actions := row(button("msg.important:"+id.String(), star, func() { c.Do.ToggleImportant(id) }))
	if own {
		actions.Children = append(actions.Children,
			button("msg.delete:"+id.String(), "Supprimer", func() { c.Do.DeleteMessage(id) }))
	}
	item.Children = append(item.Children, actions)
	return item
}

func typingIndicator(c *Context, conv *model.Conversation) *Node {
	if c.State.TypingIn != conv.ID {
		return nil
	}
	return text(ConversationName(conv, c.viewer(), c.State.Users)+" est en train d'écrire...", RoleMuted)
}

func composer(c *Context) *Node {
	if c.State.IsRecording {
		return row(
			text("● Enregistrement en cours...", RoleError),
			button("voice.stop", "Envoyer", c.Do.StopRecording),
			button("voice.cancel", "Annuler", c.Do.CancelRecording),
		)
	}
	msg := c.input("chat.text", "Tapez un message...", func(v string) {
		c.Merge(state.SetField("chat.text", ""))
		c.Do.SendText(v)
	})
	file := c.input("chat.file", "Joindre un fichier (chemin)", func(path string) {
		caption := c.State.Field("chat.text")
		c.Merge(state.ClearFields("chat.file", "chat.text"))
		c.Do.SendFile(path, caption)
	})
	return box("composer", RoleNone,
		msg,
		row(file, button("voice.start", "🎤", c.Do.StartRecording)),
	)
}

func contactCard(c *Context, ct *model.Contact) *Node {
	id := ct.ID
	avatar := c.input("contact.avatar", "Nouvelle photo (chemin)", func(path string) {
		c.Merge(state.ClearFields("contact.avatar"))
		c.Do.SetContactAvatar(id, path)
	})
	return box("chat", RoleChat,
		text(ct.Name, RoleTitle),
		text(ct.Phone, RoleMuted),
		text(ct.LastMessage, RoleNone),
		avatar,
	)
}
