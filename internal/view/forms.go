package view

import (
	"fmt"

	"github.com/waclient/internal/model"
	"github.com/waclient/internal/state"
)

// modal wraps a form and registers the close-on-escape / outside-select
// listener. The listener name is shared by all modals, so only the open one
// is ever registered.
func modal(c *Context, id, title string, children ...*Node) *Node {
	closeModal := func() { c.update(state.CloseModals()) }
	n := &Node{Kind: KindModal, ID: id, Text: title}
	n.Children = compact(append(children, button(id+".close", "Annuler", closeModal)))
	c.Listen("modal", func(ev Event) {
		if ev.Key == KeyEscape || (ev.Key == KeySelect && !n.Contains(ev.Target)) {
			closeModal()
		}
	})
	return n
}

func GroupForm(c *Context) *Node {
	st := &c.State
	viewer := c.viewer()
	members := box("group.members", RoleNone)
	for _, u := range st.Users {
		if u.ID == viewer {
			continue
		}
		uid := u.ID
		status := "Hors ligne"
		if u.IsOnline {
			status = "En ligne"
		}
		members.Children = append(members.Children, &Node{
			Kind:     KindItem,
			ID:       "member:" + uid.String(),
			Text:     u.DisplayName(),
			Checked:  st.GroupMembers.Contains(uid),
			Children: []*Node{text(status, RoleMuted)},
			OnSelect: func() { c.update(state.ToggleGroupMember(uid)) },
		})
	}
	create := func() {
		c.Do.CreateGroup(c.State.Field("group.name"), append(model.IDs(nil), c.State.GroupMembers...))
	}
	return modal(c, "group-form", "Nouveau groupe",
		c.input("group.name", "Nom du groupe", func(string) { create() }),
		text("Sélectionnez au moins 2 participants pour créer un groupe", RoleMuted),
		members,
		text(fmt.Sprintf("%d sélectionné(s)", len(st.GroupMembers)), RoleMuted),
		button("group.create", "Créer le groupe", create),
	)
}

func ContactForm(c *Context) *Node {
	create := func() {
		c.Do.CreateContact(c.State.Field("contact.name"), c.State.Field("contact.phone"))
	}
	return modal(c, "contact-form", "Nouveau contact",
		c.input("contact.name", "Nom du contact", nil),
		c.input("contact.phone", "+221 78 011 82 23", func(string) { create() }),
		button("contact.create", "Ajouter", create),
	)
}

func UserSearch(c *Context) *Node {
	st := &c.State
	query := &Node{
		Kind:        KindInput,
		ID:          "users.query",
		Value:       st.UserQuery,
		Placeholder: "Rechercher par nom...",
		OnChange:    c.Do.SearchUsers,
	}
	results := box("users.results", RoleNone)
	switch {
	case st.UserQuery == "":
		results.Children = append(results.Children, text("Tapez pour rechercher des utilisateurs", RoleMuted))
	case len(st.UserResults) == 0:
		results.Children = append(results.Children, text("Aucun utilisateur trouvé", RoleMuted))
	}
	for _, u := range st.UserResults {
		uid := u.ID
		results.Children = append(results.Children, &Node{
			Kind:     KindItem,
			ID:       "user:" + uid.String(),
			Children: []*Node{highlighted(u.DisplayName(), st.UserQuery, RoleTitle), text(lastSeen(&u, c.Now), RoleMuted)},
			OnSelect: func() { c.Do.StartDirect(uid) },
		})
	}
	return modal(c, "user-search", "Nouvelle discussion", query, results)
}

func GroupInfo(c *Context) *Node {
	conv := c.State.SelectedConversation()
	if conv == nil || !conv.IsGroup() {
		return nil
	}
	viewer := c.viewer()
	id := conv.ID
	admin := conv.IsAdmin(viewer)

	people := box("group.participants", RoleNone)
	for _, p := range conv.Participants {
		name := unknownUser
		if u := c.State.User(p); u != nil {
			name = u.DisplayName()
		}
		if conv.IsAdmin(p) {
			name += " (Admin)"
		}
		if p == viewer {
			name += " (Vous)"
		}
		people.Children = append(people.Children, text(name, RoleNone))
	}

	children := []*Node{
		text(fmt.Sprintf("%d participants", len(conv.Participants)), RoleMuted),
		people,
	}
	if admin {
		add := box("group.add", RoleNone)
		for _, u := range c.State.Users {
			if conv.Participants.Contains(u.ID) {
				continue
			}
			uid := u.ID
			add.Children = append(add.Children,
				button("group.add:"+uid.String(), "Ajouter "+u.DisplayName(), func() { c.Do.AddParticipant(id, uid) }))
		}
		children = append(children, add,
			button("group.delete", "Supprimer le groupe", func() { c.Do.DeleteGroup(id) }))
	}
	children = append(children, button("group.leave", "Quitter le groupe", func() { c.Do.LeaveGroup(id) }))
	return modal(c, "group-info", conv.Name, children...)
}
