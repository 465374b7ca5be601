package model

type MessageType string

const (
	MessageText  MessageType = "text"
	MessageImage MessageType = "image"
	MessageVideo MessageType = "video"
	MessageVoice MessageType = "voice"
)

// DeletedPlaceholder replaces the text of a soft-deleted message.
const DeletedPlaceholder = "Ce message a été supprimé"

// Media is the transport payload of image, video and voice messages.
type Media struct {
	Content      string `json:"content"`
	Thumbnail    string `json:"thumbnail,omitempty"`
	Duration     int    `json:"duration,omitempty"`
	MimeType     string `json:"mimeType,omitempty"`
	FileName     string `json:"fileName,omitempty"`
	OriginalName string `json:"originalName,omitempty"`
	Size         int64  `json:"size,omitempty"`
}

type Message struct {
	ID             ID          `json:"id,omitempty"`
	ConversationID ID          `json:"conversationId"`
	SenderID       ID          `json:"senderId"`
	Type           MessageType `json:"type,omitempty"`
	Text           string      `json:"text"`
	Media          *Media      `json:"media,omitempty"`
	Timestamp      Time        `json:"timestamp"`
	IsRead         bool        `json:"isRead"`
	ReadBy         IDs         `json:"readBy"`
	IsDeleted      bool        `json:"isDeleted"`
	IsImportant    bool        `json:"isImportant,omitempty"`
}

// Kind treats records without a type as text.
func (m *Message) Kind() MessageType {
	if m.Type == "" {
		return MessageText
	}
	return m.Type
}

// UnreadBy reports whether viewer still has to read m. Deleted messages
// never count as unread.
func (m *Message) UnreadBy(viewer ID) bool {
	return !m.IsDeleted && m.NotSeenBy(viewer)
}

// NotSeenBy reports whether viewer is missing from readBy of someone else's
// message, deleted or not.
func (m *Message) NotSeenBy(viewer ID) bool {
	return m.SenderID != viewer && !m.ReadBy.Contains(viewer)
}

// Preview is the denormalized lastMessage text for the conversation list.
func (m *Message) Preview() string {
	switch m.Kind() {
	case MessageImage:
		return "📷 Photo"
	case MessageVideo:
		return "🎥 Vidéo"
	case MessageVoice:
		return "🎤 Message vocal"
	}
	return m.Text
}
