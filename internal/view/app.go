package view

import "github.com/waclient/internal/state"

// Root builds the whole tree: the login form when logged out, the main
// interface otherwise.
func Root(c *Context) *Node {
	if !c.State.Authenticated() {
		return box("app", RoleNone, Notice(c), Login(c))
	}
	return box("app", RoleNone,
		Notice(c),
		row(Sidebar(c), ListPanel(c), ChatWindow(c)),
		activeModal(c),
	)
}

func activeModal(c *Context) *Node {
	switch {
	case c.State.ShowGroupForm:
		return GroupForm(c)
	case c.State.ShowContactForm:
		return ContactForm(c)
	case c.State.ShowUserSearch:
		return UserSearch(c)
	case c.State.ShowGroupInfo:
		return GroupInfo(c)
	}
	return nil
}

// Notice is the alert area.
func Notice(c *Context) *Node {
	if c.State.Notice == "" {
		return nil
	}
	role := RoleNotice
	if c.State.NoticeIsError {
		role = RoleError
	}
	return &Node{Kind: KindRow, ID: "notice", Role: role, Children: []*Node{
		text(c.State.Notice, role),
		button("notice.close", "OK", func() { c.update(state.ClearNotice()) }),
	}}
}

// input is a text field bound to a form draft.
func (c *Context) input(id, placeholder string, submit func(string)) *Node {
	return &Node{
		Kind:        KindInput,
		ID:          id,
		Value:       c.State.Field(id),
		Placeholder: placeholder,
		OnChange:    func(v string) { c.update(state.SetField(id, v)) },
		OnSubmit:    submit,
	}
}

func Login(c *Context) *Node {
	submit := func(string) {
		c.Do.Login(c.State.Field("login.identifier"), c.State.Field("login.password"))
	}
	pw := c.input("login.password", "password123", func(v string) {
		c.Do.Login(c.State.Field("login.identifier"), v)
	})
	pw.Secret = true
	return box("login", RolePanel,
		text("WhatsApp", RoleTitle),
		text("Connectez-vous pour continuer", RoleMuted),
		c.input("login.identifier", "mohamed ou mohamed@gmail.com", submit),
		pw,
		button("login.submit", "Se connecter", func() { submit("") }),
	)
}

func Sidebar(c *Context) *Node {
	st := &c.State
	conv := button("nav.conversations", "Discussions", func() { c.update(state.ShowConversations(true)) })
	contacts := button("nav.contacts", "Contacts", func() { c.update(state.ShowConversations(false)) })
	if st.ShowConversationList {
		conv.Role = RoleActive
	} else {
		contacts.Role = RoleActive
	}
	return box("sidebar", RoleSidebar,
		text(st.CurrentUser.DisplayName(), RoleTitle),
		conv,
		contacts,
		button("nav.search", "Nouvelle discussion", func() { c.update(state.OpenModal(state.ModalUserSearch)) }),
		button("nav.group", "Nouveau groupe", func() { c.update(state.OpenModal(state.ModalGroupForm)) }),
		button("nav.contact", "Nouveau contact", func() { c.update(state.OpenModal(state.ModalContactForm)) }),
		button("nav.logout", "Déconnexion", c.Do.Logout),
	)
}

type filterTab struct {
	filter state.Filter
	label  string
}

var (
	conversationTabs = []filterTab{
		{state.FilterAll, "Toutes"},
		{state.FilterUnread, "Non lues"},
		{state.FilterPinned, "Épinglées"},
		{state.FilterGroups, "Groupes"},
		{state.FilterDirect, "Directes"},
		{state.FilterArchived, "Archivées"},
	}
	contactTabs = []filterTab{
		{state.FilterAll, "Tous"},
		{state.FilterFavorites, "Favoris"},
		{state.FilterArchived, "Archivés"},
	}
)

// ListPanel is the search box, the filter tabs and the conversation or
// contact list.
func ListPanel(c *Context) *Node {
	st := &c.State
	tabs, placeholder := conversationTabs, "Rechercher une conversation..."
	if !st.ShowConversationList {
		tabs, placeholder = contactTabs, "Rechercher un contact..."
	}
	search := &Node{
		Kind:        KindInput,
		ID:          "list.search",
		Value:       st.SearchTerm,
		Placeholder: placeholder,
		OnChange:    func(v string) { c.update(state.SetSearch(v)) },
	}
	bar := row()
	for _, t := range tabs {
		f := t.filter
		b := button("filter."+string(f), t.label, func() { c.update(state.SetFilter(f)) })
		if st.CurrentFilter == f {
			b.Role = RoleActive
		}
		bar.Children = append(bar.Children, b)
	}
	list := ConversationList(c)
	if !st.ShowConversationList {
		list = ContactList(c)
	}
	return box("list", RolePanel, search, bar, list)
}
