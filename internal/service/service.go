// Package service wraps the remote store collections with the messenger's
// domain rules: who may delete what, how unread counters are derived, how
// media is validated and packaged.
package service

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/waclient/internal/apperr"
	"github.com/waclient/internal/model"
	"github.com/waclient/internal/remotestore"
)

// Collections are the remote store collections the services work on.
type Collections struct {
	Users         *remotestore.Collection[model.User]
	Conversations *remotestore.Collection[model.Conversation]
	Messages      *remotestore.Collection[model.Message]
	Contacts      *remotestore.Collection[model.Contact]
}

func NewCollections(c *remotestore.Client) Collections {
	return Collections{
		Users:         remotestore.NewCollection[model.User](c, "users"),
		Conversations: remotestore.NewCollection[model.Conversation](c, "conversations"),
		Messages:      remotestore.NewCollection[model.Message](c, "messages"),
		Contacts:      remotestore.NewCollection[model.Contact](c, "contacts"),
	}
}

// Clock returns the current time; tests replace it.
type Clock func() time.Time

func (c Clock) now() model.Time {
	if c == nil {
		return model.Now()
	}
	return model.At(c())
}

// validationMessages maps "Struct.Field.tag" to the text shown to the user.
var validationMessages = map[string]string{
	"GroupInput.Name.required":          "Le nom du groupe est obligatoire",
	"GroupInput.CreatedBy.required":     "Créateur du groupe inconnu",
	"ContactInput.Name.required":        "Veuillez remplir tous les champs obligatoires",
	"ContactInput.Phone.required":       "Veuillez remplir tous les champs obligatoires",
	"ContactInput.Phone.senegal_phone":  "Numéro de téléphone invalide",
	"RegisterInput.Username.required":   "Le nom d'utilisateur est obligatoire",
	"RegisterInput.Password.required":   "Le mot de passe est obligatoire",
	"RegisterInput.Password.min":        "Le mot de passe doit contenir au moins 4 caractères",
	"RegisterInput.Email.email":         "Adresse email invalide",
	"RegisterInput.Phone.senegal_phone": "Numéro de téléphone invalide",
	"LoginInput.Identifier.required":    "Veuillez remplir tous les champs",
	"LoginInput.Password.required":      "Veuillez remplir tous les champs",
}

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	if err := v.RegisterValidation("senegal_phone", func(fl validator.FieldLevel) bool {
		return ValidatePhone(fl.Field().String())
	}); err != nil {
		panic(err)
	}
	return v
}

// validateInput runs struct validation and turns failures into an apperr.ValidationError.
func validateInput(in any) error {
	err := validate.Struct(in)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	msgs := make([]string, 0, len(verrs))
	seen := make(map[string]bool, len(verrs))
	for _, fe := range verrs {
		msg, ok := validationMessages[fe.StructNamespace()+"."+fe.Tag()]
		if !ok {
			msg = fmt.Sprintf("%s invalide", fe.Field())
		}
		if !seen[msg] {
			seen[msg] = true
			msgs = append(msgs, msg)
		}
	}
	return apperr.Validation(msgs...)
}

// keyedMutex serializes read-modify-write cycles per key (conversation id,
// direct pair) inside one process.
type keyedMutex struct {
	mu    sync.Mutex
	locks map[string]*keyedEntry
}

type keyedEntry struct {
	mu   sync.Mutex
	refs int
}

func newKeyedMutex() *keyedMutex {
	return &keyedMutex{locks: make(map[string]*keyedEntry)}
}

// Lock blocks until key is free and returns the matching unlock.
func (k *keyedMutex) Lock(key string) func() {
	k.mu.Lock()
	e, ok := k.locks[key]
	if !ok {
		e = &keyedEntry{}
		k.locks[key] = e
	}
	e.refs++
	k.mu.Unlock()

	e.mu.Lock()
	return func() {
		e.mu.Unlock()
		k.mu.Lock()
		e.refs--
		if e.refs == 0 {
			delete(k.locks, key)
		}
		k.mu.Unlock()
	}
}
