package service

import (
	"context"
	"strings"

	"github.com/waclient/internal/model"
	"github.com/waclient/internal/remotestore"
)

type UserService struct {
	users *remotestore.Collection[model.User]
}

func NewUserService(cols Collections) *UserService {
	return &UserService{users: cols.Users}
}

func publicUsers(users []model.User) []model.User {
	for i := range users {
		users[i] = users[i].Public()
	}
	return users
}

// GetAll returns every user without credentials.
func (s *UserService) GetAll(ctx context.Context) []model.User {
	return publicUsers(s.users.GetAll(ctx, remotestore.Query{}))
}

func (s *UserService) GetByID(ctx context.Context, id model.ID) *model.User {
	u := s.users.GetByID(ctx, id)
	if u == nil {
		return nil
	}
	pub := u.Public()
	return &pub
}

// GetByIDs keeps the order of the full user list.
func (s *UserService) GetByIDs(ctx context.Context, ids model.IDs) []model.User {
	out := []model.User{}
	for _, u := range s.GetAll(ctx) {
		if ids.Contains(u.ID) {
			out = append(out, u)
		}
	}
	return out
}

// Search runs the store full-text search. An empty query returns nothing.
func (s *UserService) Search(ctx context.Context, query string) []model.User {
	query = strings.TrimSpace(query)
	if query == "" {
		return []model.User{}
	}
	return publicUsers(s.users.GetAll(ctx, remotestore.Query{}.Search(query)))
}
