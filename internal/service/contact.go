package service

import (
	"context"
	"fmt"
	"regexp"
	"strings"

	"github.com/waclient/internal/model"
	"github.com/waclient/internal/remotestore"
)

const (
	DefaultAvatarPath  = "/avatars/default.jpg"
	newContactMessage  = "Nouveau contact"
	newContactTimeText = "Maintenant"
)

var (
	phonePattern  = regexp.MustCompile(`^\+221\s?[6-7]\s?\d{2}\s?\d{2}\s?\d{2}\s?\d{2}$`)
	phoneGrouping = regexp.MustCompile(`(\+221)(\d)(\d{2})(\d{2})(\d{2})(\d{2})`)
)

// ValidatePhone accepts Senegalese mobile numbers: +221 followed by 6 or 7
// and eight more digits, spaces allowed between groups.
func ValidatePhone(phone string) bool {
	return phonePattern.MatchString(phone)
}

// FormatPhoneNumber groups a compact +221 number as "+221 7 80 11 82 23".
// Anything else is returned unchanged.
func FormatPhoneNumber(phone string) string {
	return phoneGrouping.ReplaceAllString(phone, "$1 $2 $3 $4 $5 $6")
}

type ContactInput struct {
	Name       string `validate:"required"`
	Phone      string `validate:"required,senegal_phone"`
	IsFavorite bool
}

type ContactService struct {
	contacts *remotestore.Collection[model.Contact]
}

func NewContactService(cols Collections) *ContactService {
	return &ContactService{contacts: cols.Contacts}
}

func (s *ContactService) GetAll(ctx context.Context) []model.Contact {
	return s.contacts.GetAll(ctx, remotestore.Query{})
}

// Create stores a new contact with the default avatar.
func (s *ContactService) Create(ctx context.Context, in ContactInput) (model.Contact, error) {
	in.Name = strings.TrimSpace(in.Name)
	in.Phone = strings.TrimSpace(in.Phone)
	if err := validateInput(in); err != nil {
		return model.Contact{}, err
	}
	created, err := s.contacts.Create(ctx, model.Contact{
		Name:            in.Name,
		Phone:           in.Phone,
		Avatar:          DefaultAvatarPath,
		IsFavorite:      in.IsFavorite,
		LastMessage:     newContactMessage,
		LastMessageTime: newContactTimeText,
	})
	if err != nil {
		return model.Contact{}, fmt.Errorf("contactService.Create: %w", err)
	}
	return created, nil
}

func (s *ContactService) update(ctx context.Context, op string, id model.ID, fn func(c *model.Contact)) (model.Contact, error) {
	c, err := s.contacts.Get(ctx, id)
	if err != nil {
		return model.Contact{}, fmt.Errorf("contactService.%s: %w", op, err)
	}
	fn(c)
	saved, err := s.contacts.Update(ctx, id, *c)
	if err != nil {
		return model.Contact{}, fmt.Errorf("contactService.%s: %w", op, err)
	}
	return saved, nil
}

func (s *ContactService) ToggleFavorite(ctx context.Context, id model.ID) (bool, error) {
	c, err := s.update(ctx, "ToggleFavorite", id, func(c *model.Contact) { c.IsFavorite = !c.IsFavorite })
	return c.IsFavorite, err
}

func (s *ContactService) ToggleArchive(ctx context.Context, id model.ID) (bool, error) {
	c, err := s.update(ctx, "ToggleArchive", id, func(c *model.Contact) { c.IsArchived = !c.IsArchived })
	return c.IsArchived, err
}

// UpdateAvatar points the contact at an avatar path returned by AvatarService.Save.
func (s *ContactService) UpdateAvatar(ctx context.Context, id model.ID, path string) (model.Contact, error) {
	if path == "" {
		path = DefaultAvatarPath
	}
	return s.update(ctx, "UpdateAvatar", id, func(c *model.Contact) { c.Avatar = path })
}

func (s *ContactService) Delete(ctx context.Context, id model.ID) error {
	if err := s.contacts.Delete(ctx, id); err != nil {
		return fmt.Errorf("contactService.Delete: %w", err)
	}
	return nil
}
