package model

// Contact is a record of the legacy contacts collection shown in the contacts panel.
type Contact struct {
	ID              ID     `json:"id,omitempty"`
	Name            string `json:"name"`
	Phone           string `json:"phone"`
	Avatar          string `json:"avatar"`
	IsFavorite      bool   `json:"isFavorite"`
	IsArchived      bool   `json:"isArchived"`
	LastMessage     string `json:"lastMessage"`
	LastMessageTime string `json:"lastMessageTime"`
	UnreadCount     int    `json:"unreadCount"`
}
