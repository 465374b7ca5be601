package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/waclient/internal/apperr"
	"github.com/waclient/internal/logger"
	"github.com/waclient/internal/model"
	"github.com/waclient/internal/remotestore"
)

const groupCreatedText = "Groupe créé"

const (
	errNotAdminDelete = "Seuls les administrateurs peuvent supprimer le groupe"
	errNotAdminAdd    = "Seuls les administrateurs peuvent ajouter des participants"
	errNotParticipant = "Vous n'êtes pas autorisé à marquer cette conversation comme lue"
)

// GroupInput describes a group to create. Participants may include the creator.
type GroupInput struct {
	Name         string `validate:"required"`
	Participants model.IDs
	CreatedBy    model.ID `validate:"required"`
	Avatar       string
}

type ConversationService struct {
	convs *remotestore.Collection[model.Conversation]
	msgs  *remotestore.Collection[model.Message]
	locks *keyedMutex
	clock Clock
}

func NewConversationService(cols Collections, clock Clock) *ConversationService {
	return &ConversationService{
		convs: cols.Conversations,
		msgs:  cols.Messages,
		locks: newKeyedMutex(),
		clock: clock,
	}
}

// applyUnread recomputes the per-viewer unread counters of c from msgs, the
// full message set of the conversation. UnreadCount keeps the largest one
// for readers that only know the shared counter.
func applyUnread(c *model.Conversation, msgs []model.Message) {
	c.UnreadBy = make(map[model.ID]int, len(c.Participants))
	c.UnreadCount = 0
	for _, p := range c.Participants {
		n := 0
		for i := range msgs {
			if msgs[i].UnreadBy(p) {
				n++
			}
		}
		c.UnreadBy[p] = n
		if n > c.UnreadCount {
			c.UnreadCount = n
		}
	}
}

// GetUserConversations returns the conversations userID takes part in,
// most recent first. Read failures yield an empty list.
func (s *ConversationService) GetUserConversations(ctx context.Context, userID model.ID) []model.Conversation {
	out, err := s.LoadUserConversations(ctx, userID)
	if err != nil {
		logger.Errorf("convService.GetUserConversations: %v", err)
		return []model.Conversation{}
	}
	return out
}

// LoadUserConversations is GetUserConversations with the read error
// returned; the initial load uses it to offer a reload.
func (s *ConversationService) LoadUserConversations(ctx context.Context, userID model.ID) ([]model.Conversation, error) {
	defer logger.DeferLogDuration("conversations.LoadUserConversations", time.Now())()
	all, err := s.convs.List(ctx, remotestore.Query{}.
		Like("participants", userID.String()).
		Sort("lastMessageTime", remotestore.Desc))
	if err != nil {
		return nil, fmt.Errorf("convService.LoadUserConversations: %w", err)
	}
	// participants_like is a regex on "1,2": "1" also matches "11".
	out := all[:0]
	for _, c := range all {
		if c.Participants.Contains(userID) {
			out = append(out, c)
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].LastMessageTime.After(out[j].LastMessageTime.Time)
	})
	return out, nil
}

// Get returns one conversation, nil when it cannot be read.
func (s *ConversationService) Get(ctx context.Context, id model.ID) *model.Conversation {
	return s.convs.GetByID(ctx, id)
}

// FindDirect returns the direct conversation between a and b. When several
// exist the oldest one wins so every client converges on the same thread.
func (s *ConversationService) FindDirect(ctx context.Context, a, b model.ID) (*model.Conversation, error) {
	all, err := s.convs.List(ctx, remotestore.Where("type", string(model.ConversationDirect)))
	if err != nil {
		return nil, fmt.Errorf("convService.FindDirect: %w", err)
	}
	var found *model.Conversation
	for i := range all {
		c := &all[i]
		if c.Type != model.ConversationDirect || !c.Participants.Contains(a) || !c.Participants.Contains(b) {
			continue
		}
		if found == nil || c.CreatedAt.Before(found.CreatedAt.Time) {
			found = c
		}
	}
	return found, nil
}

func pairKey(a, b model.ID) string {
	if b < a {
		a, b = b, a
	}
	return "direct:" + a.String() + ":" + b.String()
}

// CreateDirect returns the direct conversation between a and b, creating it
// if needed. Calls for the same pair are serialized.
func (s *ConversationService) CreateDirect(ctx context.Context, a, b model.ID) (model.Conversation, error) {
	if a.IsZero() || b.IsZero() || a == b {
		return model.Conversation{}, apperr.Validation("Une conversation directe nécessite deux participants distincts")
	}
	unlock := s.locks.Lock(pairKey(a, b))
	defer unlock()

	existing, err := s.FindDirect(ctx, a, b)
	if err != nil {
		return model.Conversation{}, err
	}
	if existing != nil {
		return *existing, nil
	}
	now := s.clock.now()
	conv := model.Conversation{
		Type:            model.ConversationDirect,
		Participants:    model.IDs{a, b},
		LastMessageTime: now,
		UnreadBy:        map[model.ID]int{a: 0, b: 0},
		CreatedBy:       a,
		CreatedAt:       now,
	}
	created, err := s.convs.Create(ctx, conv)
	if err != nil {
		return model.Conversation{}, fmt.Errorf("convService.CreateDirect: %w", err)
	}
	logger.Infof("conversation %s created for %s and %s", created.ID, a, b)
	return created, nil
}

// CreateGroup creates a group whose creator is the only admin. At least two
// participants besides the creator are required.
func (s *ConversationService) CreateGroup(ctx context.Context, in GroupInput) (model.Conversation, error) {
	if err := validateInput(in); err != nil {
		return model.Conversation{}, err
	}
	members := model.IDs{in.CreatedBy}
	for _, p := range in.Participants {
		if !p.IsZero() {
			members = members.With(p)
		}
	}
	if len(members)-1 < 2 {
		return model.Conversation{}, apperr.Validation("Un groupe doit avoir au moins 2 participants en plus de vous")
	}
	now := s.clock.now()
	group := model.Conversation{
		Type:            model.ConversationGroup,
		Participants:    members,
		Name:            in.Name,
		Avatar:          in.Avatar,
		LastMessage:     groupCreatedText,
		LastMessageTime: now,
		Admins:          model.IDs{in.CreatedBy},
		CreatedBy:       in.CreatedBy,
		CreatedAt:       now,
	}
	applyUnread(&group, nil)
	created, err := s.convs.Create(ctx, group)
	if err != nil {
		return model.Conversation{}, fmt.Errorf("convService.CreateGroup: %w", err)
	}
	return created, nil
}

// loadForWrite fetches a conversation, propagating the failure instead of
// defaulting like the read paths do.
func (s *ConversationService) loadForWrite(ctx context.Context, op string, id model.ID) (*model.Conversation, error) {
	c, err := s.convs.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("convService.%s: %w", op, err)
	}
	return c, nil
}

// DeleteGroup removes a group and all of its messages. Only admins may do it.
func (s *ConversationService) DeleteGroup(ctx context.Context, id, requester model.ID) error {
	unlock := s.locks.Lock(id.String())
	defer unlock()

	g, err := s.loadForWrite(ctx, "DeleteGroup", id)
	if err != nil {
		return err
	}
	if !g.IsGroup() {
		return apperr.Validation("Seuls les groupes peuvent être supprimés")
	}
	if !g.IsAdmin(requester) {
		return apperr.Permission(errNotAdminDelete)
	}
	msgs, err := s.msgs.List(ctx, remotestore.Where("conversationId", id.String()))
	if err != nil {
		return fmt.Errorf("convService.DeleteGroup: %w", err)
	}
	for _, m := range msgs {
		if err := s.msgs.Delete(ctx, m.ID); err != nil {
			return fmt.Errorf("convService.DeleteGroup: message %s: %w", m.ID, err)
		}
	}
	if err := s.convs.Delete(ctx, id); err != nil {
		return fmt.Errorf("convService.DeleteGroup: %w", err)
	}
	logger.Infof("group %s deleted by %s (%d messages)", id, requester, len(msgs))
	return nil
}

// update runs a read-modify-write cycle on one conversation under its lock.
func (s *ConversationService) update(ctx context.Context, op string, id model.ID, fn func(c *model.Conversation) error) (model.Conversation, error) {
	unlock := s.locks.Lock(id.String())
	defer unlock()

	c, err := s.loadForWrite(ctx, op, id)
	if err != nil {
		return model.Conversation{}, err
	}
	if err := fn(c); err != nil {
		return model.Conversation{}, err
	}
	saved, err := s.convs.Update(ctx, id, *c)
	if err != nil {
		return model.Conversation{}, fmt.Errorf("convService.%s: %w", op, err)
	}
	return saved, nil
}

// TogglePin flips isPinned and returns the new value.
func (s *ConversationService) TogglePin(ctx context.Context, id model.ID) (bool, error) {
	c, err := s.update(ctx, "TogglePin", id, func(c *model.Conversation) error {
		c.IsPinned = !c.IsPinned
		return nil
	})
	return c.IsPinned, err
}

// ToggleArchive flips isArchived and returns the new value.
func (s *ConversationService) ToggleArchive(ctx context.Context, id model.ID) (bool, error) {
	c, err := s.update(ctx, "ToggleArchive", id, func(c *model.Conversation) error {
		c.IsArchived = !c.IsArchived
		return nil
	})
	return c.IsArchived, err
}

// MarkAsRead adds userID to readBy of every message it has not read yet and
// recomputes the unread counters.
func (s *ConversationService) MarkAsRead(ctx context.Context, id, userID model.ID) error {
	_, err := s.update(ctx, "MarkAsRead", id, func(c *model.Conversation) error {
		if !c.Participants.Contains(userID) {
			return apperr.Permission(errNotParticipant)
		}
		msgs, err := s.msgs.List(ctx, remotestore.Where("conversationId", id.String()))
		if err != nil {
			return fmt.Errorf("convService.MarkAsRead: %w", err)
		}
		for i := range msgs {
			m := &msgs[i]
			if !m.NotSeenBy(userID) {
				continue
			}
			m.ReadBy = m.ReadBy.With(userID)
			m.IsRead = len(m.ReadBy) > 1
			if _, err := s.msgs.Update(ctx, m.ID, *m); err != nil {
				return fmt.Errorf("convService.MarkAsRead: message %s: %w", m.ID, err)
			}
		}
		applyUnread(c, msgs)
		return nil
	})
	return err
}

// RecordMessage refreshes the conversation summary after msg was stored:
// last message preview, time, sender and the unread counters.
func (s *ConversationService) RecordMessage(ctx context.Context, msg model.Message) (model.Conversation, error) {
	return s.update(ctx, "RecordMessage", msg.ConversationID, func(c *model.Conversation) error {
		msgs, err := s.msgs.List(ctx, remotestore.Where("conversationId", c.ID.String()))
		if err != nil {
			return fmt.Errorf("convService.RecordMessage: %w", err)
		}
		if !containsMessage(msgs, msg.ID) {
			msgs = append(msgs, msg)
		}
		if !msg.Timestamp.Before(c.LastMessageTime.Time) || c.LastMessage == "" || c.LastMessage == groupCreatedText {
			c.LastMessage = msg.Preview()
			c.LastMessageTime = msg.Timestamp
			c.LastSenderID = msg.SenderID
		}
		applyUnread(c, msgs)
		return nil
	})
}

// RefreshSummary recomputes the summary after a message changed in place
// (soft delete): the preview follows the latest message.
func (s *ConversationService) RefreshSummary(ctx context.Context, id model.ID) (model.Conversation, error) {
	return s.update(ctx, "RefreshSummary", id, func(c *model.Conversation) error {
		msgs, err := s.msgs.List(ctx, remotestore.Where("conversationId", id.String()))
		if err != nil {
			return fmt.Errorf("convService.RefreshSummary: %w", err)
		}
		if last := latestMessage(msgs); last != nil {
			c.LastMessage = last.Preview()
			if last.IsDeleted {
				c.LastMessage = model.DeletedPlaceholder
			}
			c.LastMessageTime = last.Timestamp
			c.LastSenderID = last.SenderID
		}
		applyUnread(c, msgs)
		return nil
	})
}

// AddParticipants adds users to a group. Only admins may do it.
func (s *ConversationService) AddParticipants(ctx context.Context, id, requester model.ID, users model.IDs) (model.Conversation, error) {
	return s.update(ctx, "AddParticipants", id, func(c *model.Conversation) error {
		if !c.IsGroup() {
			return apperr.Validation("Impossible d'ajouter des participants à une conversation directe")
		}
		if !c.IsAdmin(requester) {
			return apperr.Permission(errNotAdminAdd)
		}
		for _, u := range users {
			if !u.IsZero() {
				c.Participants = c.Participants.With(u)
			}
		}
		if c.UnreadBy != nil {
			for _, p := range c.Participants {
				if _, ok := c.UnreadBy[p]; !ok {
					c.UnreadBy[p] = 0
				}
			}
		}
		return nil
	})
}

// LeaveGroup removes userID from a group. The oldest remaining member is
// promoted when the last admin leaves.
func (s *ConversationService) LeaveGroup(ctx context.Context, id, userID model.ID) error {
	_, err := s.update(ctx, "LeaveGroup", id, func(c *model.Conversation) error {
		if !c.IsGroup() {
			return apperr.Validation("Seuls les groupes peuvent être quittés")
		}
		if !c.Participants.Contains(userID) {
			return apperr.Permission("Vous ne faites pas partie de ce groupe")
		}
		c.Participants = c.Participants.Without(userID)
		c.Admins = c.Admins.Without(userID)
		if len(c.Admins) == 0 && len(c.Participants) > 0 {
			c.Admins = model.IDs{c.Participants[0]}
		}
		delete(c.UnreadBy, userID)
		return nil
	})
	return err
}

// GetUnread returns the conversations with unread messages for userID.
func (s *ConversationService) GetUnread(ctx context.Context, userID model.ID) []model.Conversation {
	var out []model.Conversation
	for _, c := range s.GetUserConversations(ctx, userID) {
		if c.UnreadFor(userID) > 0 {
			out = append(out, c)
		}
	}
	return out
}

func containsMessage(msgs []model.Message, id model.ID) bool {
	for i := range msgs {
		if msgs[i].ID == id {
			return true
		}
	}
	return false
}

func latestMessage(msgs []model.Message) *model.Message {
	var last *model.Message
	for i := range msgs {
		if last == nil || !msgs[i].Timestamp.Before(last.Timestamp.Time) {
			last = &msgs[i]
		}
	}
	return last
}
