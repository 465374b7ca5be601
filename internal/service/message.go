package service

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/waclient/internal/apperr"
	"github.com/waclient/internal/logger"
	"github.com/waclient/internal/model"
	"github.com/waclient/internal/remotestore"
)

const (
	errEmptyMessage   = "Le message ne peut pas être vide"
	errDeleteOwnOnly  = "Vous ne pouvez supprimer que vos propres messages"
	errNoConversation = "Aucune conversation sélectionnée"
)

type MessageService struct {
	msgs  *remotestore.Collection[model.Message]
	convs *ConversationService
	clock Clock
}

func NewMessageService(cols Collections, convs *ConversationService, clock Clock) *MessageService {
	return &MessageService{msgs: cols.Messages, convs: convs, clock: clock}
}

// GetConversationMessages returns the thread in timestamp order, or an empty
// slice when the store cannot be read.
func (s *MessageService) GetConversationMessages(ctx context.Context, convID model.ID) []model.Message {
	defer logger.DeferLogDuration("messages.GetConversationMessages", time.Now())()
	msgs := s.msgs.GetAll(ctx, remotestore.Where("conversationId", convID.String()).
		Sort("timestamp", remotestore.Asc))
	sort.SliceStable(msgs, func(i, j int) bool {
		return msgs[i].Timestamp.Before(msgs[j].Timestamp.Time)
	})
	return msgs
}

// send stores msg and refreshes the conversation summary. When only the
// summary update fails the stored message is returned along with the error.
func (s *MessageService) send(ctx context.Context, msg model.Message) (model.Message, error) {
	if msg.ConversationID.IsZero() {
		return model.Message{}, apperr.Validation(errNoConversation)
	}
	msg.Timestamp = s.clock.now()
	msg.IsRead = false
	msg.ReadBy = model.IDs{msg.SenderID}
	msg.IsDeleted = false

	saved, err := s.msgs.Create(ctx, msg)
	if err != nil {
		return model.Message{}, fmt.Errorf("msgService.send: %w", err)
	}
	if _, err := s.convs.RecordMessage(ctx, saved); err != nil {
		return saved, fmt.Errorf("msgService.send: update conversation: %w", err)
	}
	logger.Debugf("message %s sent to %s", saved.ID, saved.ConversationID)
	return saved, nil
}

// SendText sends a trimmed, non-empty text message.
func (s *MessageService) SendText(ctx context.Context, convID, senderID model.ID, text string) (model.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return model.Message{}, apperr.Validation(errEmptyMessage)
	}
	return s.send(ctx, model.Message{
		ConversationID: convID,
		SenderID:       senderID,
		Type:           model.MessageText,
		Text:           text,
	})
}

// SendMedia sends an image or video prepared by MediaService.Prepare.
// caption may be empty.
func (s *MessageService) SendMedia(ctx context.Context, convID, senderID model.ID, p PreparedMedia, caption string) (model.Message, error) {
	if p.Type != model.MessageImage && p.Type != model.MessageVideo {
		return model.Message{}, apperr.Validation(errUnsupportedMedia)
	}
	media := p.Media
	return s.send(ctx, model.Message{
		ConversationID: convID,
		SenderID:       senderID,
		Type:           p.Type,
		Text:           strings.TrimSpace(caption),
		Media:          &media,
	})
}

// SendVoice sends a finished recording.
func (s *MessageService) SendVoice(ctx context.Context, convID, senderID model.ID, rec VoiceRecording) (model.Message, error) {
	if rec.Media.Content == "" {
		return model.Message{}, apperr.Validation(errNoRecording)
	}
	media := rec.Media
	if media.FileName == "" {
		media.FileName = voiceFileName(convID, senderID, s.clock.now().Time)
	}
	return s.send(ctx, model.Message{
		ConversationID: convID,
		SenderID:       senderID,
		Type:           model.MessageVoice,
		Media:          &media,
	})
}

// Delete soft-deletes a message: the text becomes the placeholder and the
// media payload is dropped. Only the sender may delete.
func (s *MessageService) Delete(ctx context.Context, msgID, requester model.ID) (model.Message, error) {
	m, err := s.msgs.Get(ctx, msgID)
	if err != nil {
		return model.Message{}, fmt.Errorf("msgService.Delete: %w", err)
	}
	if m.SenderID != requester {
		return model.Message{}, apperr.Permission(errDeleteOwnOnly)
	}
	m.IsDeleted = true
	m.Text = model.DeletedPlaceholder
	m.Media = nil
	saved, err := s.msgs.Update(ctx, msgID, *m)
	if err != nil {
		return model.Message{}, fmt.Errorf("msgService.Delete: %w", err)
	}
	if _, err := s.convs.RefreshSummary(ctx, saved.ConversationID); err != nil {
		return saved, fmt.Errorf("msgService.Delete: update conversation: %w", err)
	}
	return saved, nil
}

// ToggleImportant flips the important flag and returns the new value.
func (s *MessageService) ToggleImportant(ctx context.Context, msgID model.ID) (bool, error) {
	m, err := s.msgs.Get(ctx, msgID)
	if err != nil {
		return false, fmt.Errorf("msgService.ToggleImportant: %w", err)
	}
	m.IsImportant = !m.IsImportant
	saved, err := s.msgs.Update(ctx, msgID, *m)
	if err != nil {
		return false, fmt.Errorf("msgService.ToggleImportant: %w", err)
	}
	return saved.IsImportant, nil
}

// MarkConversationAsRead marks every message of the thread as read by userID.
func (s *MessageService) MarkConversationAsRead(ctx context.Context, convID, userID model.ID) error {
	return s.convs.MarkAsRead(ctx, convID, userID)
}

func voiceFileName(convID, senderID model.ID, at time.Time) string {
	return fmt.Sprintf("voice_%s_%s_%d.webm", convID, senderID, at.UnixMilli())
}
