package model

type ConversationType string

const (
	ConversationDirect ConversationType = "direct"
	ConversationGroup  ConversationType = "group"
)

type Conversation struct {
	ID              ID               `json:"id,omitempty"`
	Type            ConversationType `json:"type"`
	Participants    IDs              `json:"participants"`
	Name            string           `json:"name,omitempty"`
	Avatar          string           `json:"avatar,omitempty"`
	IsPinned        bool             `json:"isPinned"`
	IsArchived      bool             `json:"isArchived"`
	LastMessage     string           `json:"lastMessage"`
	LastMessageTime Time             `json:"lastMessageTime"`
	LastSenderID    ID               `json:"lastSenderId,omitempty"`
	UnreadCount     int              `json:"unreadCount"`
	UnreadBy        map[ID]int       `json:"unreadBy,omitempty"`
	Admins          IDs              `json:"admins,omitempty"`
	CreatedBy       ID               `json:"createdBy,omitempty"`
	CreatedAt       Time             `json:"createdAt"`
}

func (c *Conversation) IsGroup() bool { return c.Type == ConversationGroup }

func (c *Conversation) IsAdmin(userID ID) bool { return c.Admins.Contains(userID) }

// Other returns the other participant of a direct conversation.
func (c *Conversation) Other(viewer ID) ID {
	for _, p := range c.Participants {
		if p != viewer {
			return p
		}
	}
	return ""
}

// UnreadFor is the number of unread messages for viewer. Records written
// before per-viewer counters existed only carry the shared counter.
func (c *Conversation) UnreadFor(viewer ID) int {
	if c.UnreadBy != nil {
		if n, ok := c.UnreadBy[viewer]; ok {
			return n
		}
		return 0
	}
	return c.UnreadCount
}

// Clone copies the slices and the map so callers can modify the result.
func (c Conversation) Clone() Conversation {
	c.Participants = append(IDs(nil), c.Participants...)
	c.Admins = append(IDs(nil), c.Admins...)
	if c.UnreadBy != nil {
		m := make(map[ID]int, len(c.UnreadBy))
		for k, v := range c.UnreadBy {
			m[k] = v
		}
		c.UnreadBy = m
	}
	return c
}
