package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/waclient/internal/apperr"
	"github.com/waclient/internal/logger"
	"github.com/waclient/internal/model"
	"github.com/waclient/internal/remotestore"
	"github.com/waclient/internal/session"
	"golang.org/x/crypto/bcrypt"
)

// ErrInvalidCredentials is a validation failure so the login form shows it as is.
var ErrInvalidCredentials error = &apperr.ValidationError{Errors: []string{"Identifiants incorrects"}}

type LoginInput struct {
	Identifier string `validate:"required"`
	Password   string `validate:"required"`
}

type RegisterInput struct {
	Username string `validate:"required"`
	Name     string
	Email    string `validate:"omitempty,email"`
	Phone    string `validate:"omitempty,senegal_phone"`
	Password string `validate:"required,min=4"`
}

type AuthService struct {
	users      *remotestore.Collection[model.User]
	sessions   session.Store
	clock      Clock
	bcryptCost int
}

// NewAuthService creates the service; bcryptCost <= 0 selects bcrypt.DefaultCost.
func NewAuthService(cols Collections, sessions session.Store, clock Clock, bcryptCost int) *AuthService {
	if bcryptCost <= 0 {
		bcryptCost = bcrypt.DefaultCost
	}
	return &AuthService{users: cols.Users, sessions: sessions, clock: clock, bcryptCost: bcryptCost}
}

// passwordMatches accepts both bcrypt hashes and the plaintext passwords of
// seed data.
func passwordMatches(stored, given string) bool {
	if strings.HasPrefix(stored, "$2") {
		return bcrypt.CompareHashAndPassword([]byte(stored), []byte(given)) == nil
	}
	return stored != "" && stored == given
}

// Login looks the user up by username or email, marks them online and
// persists the session. Wrong credentials give ErrInvalidCredentials.
func (s *AuthService) Login(ctx context.Context, identifier, password string) (model.User, error) {
	in := LoginInput{Identifier: strings.TrimSpace(identifier), Password: password}
	if err := validateInput(in); err != nil {
		return model.User{}, err
	}
	users, err := s.users.List(ctx, remotestore.Query{})
	if err != nil {
		return model.User{}, fmt.Errorf("authService.Login: %w", err)
	}
	var found *model.User
	for i := range users {
		u := &users[i]
		if (u.Username == in.Identifier || (u.Email != "" && u.Email == in.Identifier)) && passwordMatches(u.Password, in.Password) {
			found = u
			break
		}
	}
	if found == nil {
		logger.Warnf("login failed for %q", in.Identifier)
		return model.User{}, ErrInvalidCredentials
	}
	if err := s.UpdateStatus(ctx, found.ID, true); err != nil {
		logger.Errorf("authService.Login: status: %v", err)
	} else {
		found.IsOnline = true
		found.LastSeen = s.clock.now()
	}
	if err := session.SaveUser(ctx, s.sessions, *found); err != nil {
		return model.User{}, fmt.Errorf("authService.Login: %w", err)
	}
	logger.Infof("user %s logged in", found.ID)
	return found.Public(), nil
}

// Logout marks the current user offline and clears the session. The session
// is cleared even when the status update fails.
func (s *AuthService) Logout(ctx context.Context) error {
	u, err := s.CurrentUser(ctx)
	if err != nil {
		logger.Errorf("authService.Logout: %v", err)
	}
	if u != nil {
		if err := s.UpdateStatus(ctx, u.ID, false); err != nil {
			logger.Errorf("authService.Logout: status: %v", err)
		}
	}
	if err := session.ClearUser(ctx, s.sessions); err != nil {
		return fmt.Errorf("authService.Logout: %w", err)
	}
	return nil
}

// CurrentUser returns the persisted session user, nil when logged out.
func (s *AuthService) CurrentUser(ctx context.Context) (*model.User, error) {
	return session.LoadUser(ctx, s.sessions)
}

// UpdateStatus sets isOnline and lastSeen of a user.
func (s *AuthService) UpdateStatus(ctx context.Context, userID model.ID, online bool) error {
	u, err := s.users.Get(ctx, userID)
	if err != nil {
		return fmt.Errorf("authService.UpdateStatus: %w", err)
	}
	u.IsOnline = online
	u.LastSeen = s.clock.now()
	if _, err := s.users.Update(ctx, userID, *u); err != nil {
		return fmt.Errorf("authService.UpdateStatus: %w", err)
	}
	return nil
}

// Register creates an account with a bcrypt-hashed password and logs it in.
func (s *AuthService) Register(ctx context.Context, in RegisterInput) (model.User, error) {
	in.Username = strings.TrimSpace(in.Username)
	in.Email = strings.TrimSpace(in.Email)
	if err := validateInput(in); err != nil {
		return model.User{}, err
	}
	users, err := s.users.List(ctx, remotestore.Query{})
	if err != nil {
		return model.User{}, fmt.Errorf("authService.Register: %w", err)
	}
	for _, u := range users {
		if strings.EqualFold(u.Username, in.Username) {
			return model.User{}, apperr.Validation("Ce nom d'utilisateur est déjà pris")
		}
		if in.Email != "" && strings.EqualFold(u.Email, in.Email) {
			return model.User{}, apperr.Validation("Cette adresse email est déjà utilisée")
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(in.Password), s.bcryptCost)
	if err != nil {
		return model.User{}, fmt.Errorf("authService.Register: hash: %w", err)
	}
	name := in.Name
	if name == "" {
		name = in.Username
	}
	created, err := s.users.Create(ctx, model.User{
		Username: in.Username,
		Name:     name,
		Email:    in.Email,
		Phone:    FormatPhoneNumber(in.Phone),
		Password: string(hash),
		IsOnline: true,
		LastSeen: s.clock.now(),
	})
	if err != nil {
		return model.User{}, fmt.Errorf("authService.Register: %w", err)
	}
	if err := session.SaveUser(ctx, s.sessions, created); err != nil {
		return model.User{}, fmt.Errorf("authService.Register: %w", err)
	}
	return created.Public(), nil
}
