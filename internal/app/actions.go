package app

import (
	"context"
	"fmt"
	"net/http"
	"path/filepath"
	"strings"

	"github.com/waclient/internal/apperr"
	"github.com/waclient/internal/logger"
	"github.com/waclient/internal/model"
	"github.com/waclient/internal/service"
	"github.com/waclient/internal/state"
	"github.com/waclient/internal/view"
)

var _ view.Actions = (*App)(nil)

func (a *App) Login(identifier, password string) {
	a.do("Login", func(ctx context.Context) error {
		u, err := a.svc.Auth.Login(ctx, identifier, password)
		if err != nil {
			return err
		}
		a.store.Merge(
			state.LoggedIn(u),
			state.ClearFields("login.identifier", "login.password"),
			state.ClearNotice(),
		)
		a.Invalidate()
		return a.load(ctx)
	})
}

// Logout always ends the local session, even when the remote status update fails.
func (a *App) Logout() {
	if a.svc.Recorder != nil {
		a.svc.Recorder.Cancel()
	}
	a.do("Logout", func(ctx context.Context) error {
		if err := a.svc.Auth.Logout(ctx); err != nil {
			logger.Errorf("app.Logout: %v", err)
		}
		a.store.Merge(state.LoggedOut())
		return nil
	})
}

func (a *App) Reload() {
	a.store.Merge(func(s *state.AppState) {
		s.LoadFailed = false
		s.LoadingConversations = true
	})
	a.Invalidate()
	a.do("Reload", a.load)
}

func (a *App) OpenConversation(id model.ID) {
	a.store.Merge(state.SelectConversation(id))
	a.Invalidate()
	a.do("OpenConversation", func(ctx context.Context) error {
		return a.open(ctx, id)
	})
}

// afterSend merges the saved message right away, then replaces it with the
// authoritative thread and list.
func (a *App) afterSend(ctx context.Context, msg model.Message) {
	a.store.Merge(state.AppendMessage(msg))
	a.Invalidate()
	a.loadMessages(ctx, msg.ConversationID)
	a.refreshConversations(ctx)
	a.showTyping(msg.ConversationID)
}

// target is the conversation a send goes to: the selection at the time of
// the user action.
func (a *App) target() (convID, viewer model.ID) {
	st := a.store.Read()
	if st.CurrentUser != nil {
		viewer = st.CurrentUser.ID
	}
	return st.SelectedConversationID, viewer
}

func (a *App) SendText(text string) {
	convID, viewer := a.target()
	if convID.IsZero() {
		return
	}
	a.do("SendText", func(ctx context.Context) error {
		msg, err := a.svc.Messages.SendText(ctx, convID, viewer, text)
		if err != nil {
			return err
		}
		a.afterSend(ctx, msg)
		return nil
	})
}

var mimeByExt = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".gif":  "image/gif",
	".webp": "image/webp",
	".mp4":  "video/mp4",
	".webm": "video/webm",
	".ogg":  "video/ogg",
	".ogv":  "video/ogg",
	".avi":  "video/avi",
	".mov":  "video/mov",
}

func (a *App) readFile(path string) (*service.File, error) {
	path = strings.TrimSpace(path)
	data, err := a.opts.ReadFile(path)
	if err != nil {
		logger.Warnf("app: read %s: %v", path, err)
		return nil, apperr.Validation("Impossible de lire le fichier " + filepath.Base(path))
	}
	mime, ok := mimeByExt[strings.ToLower(filepath.Ext(path))]
	if !ok {
		mime = http.DetectContentType(data)
	}
	return &service.File{Name: filepath.Base(path), MimeType: mime, Data: data}, nil
}

func (a *App) SendFile(path, caption string) {
	convID, viewer := a.target()
	if convID.IsZero() || strings.TrimSpace(path) == "" {
		return
	}
	a.do("SendFile", func(ctx context.Context) error {
		f, err := a.readFile(path)
		if err != nil {
			return err
		}
		media, err := a.svc.Media.Prepare(ctx, f, convID, viewer)
		if err != nil {
			return err
		}
		msg, err := a.svc.Messages.SendMedia(ctx, convID, viewer, media, caption)
		if err != nil {
			return err
		}
		a.afterSend(ctx, msg)
		return nil
	})
}

func (a *App) StartRecording() {
	convID, _ := a.target()
	if convID.IsZero() {
		return
	}
	if a.svc.Recorder == nil {
		a.store.Merge(state.SetNotice(apperr.UserMessage(service.ErrMicrophone), true))
		a.Invalidate()
		return
	}
	a.do("StartRecording", func(context.Context) error {
		if err := a.svc.Recorder.Start(); err != nil {
			return err
		}
		a.recMu.Lock()
		a.recConv = convID
		a.recMu.Unlock()
		a.store.Merge(state.SetRecording(true))
		return nil
	})
}

func (a *App) recordingTarget() model.ID {
	a.recMu.Lock()
	defer a.recMu.Unlock()
	id := a.recConv
	a.recConv = ""
	return id
}

func (a *App) sendVoice(ctx context.Context, rec service.VoiceRecording) error {
	convID := a.recordingTarget()
	viewer := a.viewer()
	if convID.IsZero() || viewer == "" {
		return nil
	}
	msg, err := a.svc.Messages.SendVoice(ctx, convID, viewer, rec)
	if err != nil {
		return err
	}
	a.afterSend(ctx, msg)
	return nil
}

func (a *App) StopRecording() {
	if a.svc.Recorder == nil {
		return
	}
	a.do("StopRecording", func(ctx context.Context) error {
		a.store.Merge(state.SetRecording(false))
		rec, err := a.svc.Recorder.Stop()
		if err != nil {
			a.recordingTarget()
			return err
		}
		return a.sendVoice(ctx, rec)
	})
}

// autoStopped receives recordings cut at the maximum duration.
func (a *App) autoStopped(rec service.VoiceRecording, err error) {
	a.do("AutoStop", func(ctx context.Context) error {
		a.store.Merge(state.SetRecording(false))
		if err != nil {
			a.recordingTarget()
			return err
		}
		return a.sendVoice(ctx, rec)
	})
}

func (a *App) CancelRecording() {
	if a.svc.Recorder != nil {
		a.svc.Recorder.Cancel()
	}
	a.recordingTarget()
	a.store.Merge(state.SetRecording(false))
	a.Invalidate()
}

func (a *App) DeleteMessage(id model.ID) {
	viewer := a.viewer()
	a.do("DeleteMessage", func(ctx context.Context) error {
		msg, err := a.svc.Messages.Delete(ctx, id, viewer)
		if err != nil {
			return err
		}
		a.mergeAs(viewer, state.AppendMessage(msg))
		a.refreshConversations(ctx)
		return nil
	})
}

func (a *App) ToggleImportant(id model.ID) {
	a.do("ToggleImportant", func(ctx context.Context) error {
		if _, err := a.svc.Messages.ToggleImportant(ctx, id); err != nil {
			return err
		}
		if convID, _ := a.target(); !convID.IsZero() {
			a.loadMessages(ctx, convID)
		}
		return nil
	})
}

func (a *App) TogglePin(id model.ID) {
	a.do("TogglePin", func(ctx context.Context) error {
		if _, err := a.svc.Conversations.TogglePin(ctx, id); err != nil {
			return err
		}
		a.refreshConversations(ctx)
		return nil
	})
}

func (a *App) ToggleArchive(id model.ID) {
	a.do("ToggleArchive", func(ctx context.Context) error {
		if _, err := a.svc.Conversations.ToggleArchive(ctx, id); err != nil {
			return err
		}
		a.refreshConversations(ctx)
		return nil
	})
}

func (a *App) CreateGroup(name string, members model.IDs) {
	viewer := a.viewer()
	a.do("CreateGroup", func(ctx context.Context) error {
		conv, err := a.svc.Conversations.CreateGroup(ctx, service.GroupInput{
			Name:         strings.TrimSpace(name),
			Participants: members,
			CreatedBy:    viewer,
		})
		if err != nil {
			return err
		}
		if !a.mergeAs(viewer,
			state.CloseModals(),
			state.ShowConversations(true),
			state.ReplaceConversation(conv),
			state.SelectConversation(conv.ID),
		) {
			return nil
		}
		a.notify(viewer, fmt.Sprintf("Groupe %q créé", conv.Name))
		a.Invalidate()
		return a.open(ctx, conv.ID)
	})
}

// deselect drops the selection of a conversation that went away.
func deselect(id model.ID) state.Patch {
	return func(s *state.AppState) {
		if s.SelectedConversationID == id {
			state.SelectConversation("")(s)
		}
	}
}

func (a *App) DeleteGroup(id model.ID) {
	viewer := a.viewer()
	a.do("DeleteGroup", func(ctx context.Context) error {
		if err := a.svc.Conversations.DeleteGroup(ctx, id, viewer); err != nil {
			return err
		}
		a.mergeAs(viewer, state.CloseModals(), deselect(id))
		a.refreshConversations(ctx)
		return nil
	})
}

func (a *App) LeaveGroup(id model.ID) {
	viewer := a.viewer()
	a.do("LeaveGroup", func(ctx context.Context) error {
		if err := a.svc.Conversations.LeaveGroup(ctx, id, viewer); err != nil {
			return err
		}
		a.mergeAs(viewer, state.CloseModals(), deselect(id))
		a.refreshConversations(ctx)
		return nil
	})
}

func (a *App) AddParticipant(convID, userID model.ID) {
	viewer := a.viewer()
	a.do("AddParticipant", func(ctx context.Context) error {
		conv, err := a.svc.Conversations.AddParticipants(ctx, convID, viewer, model.IDs{userID})
		if err != nil {
			return err
		}
		a.mergeAs(viewer, state.ReplaceConversation(conv))
		return nil
	})
}

func (a *App) SearchUsers(query string) {
	viewer := a.viewer()
	a.store.Merge(state.SetUserQuery(query))
	a.Invalidate()
	a.do("SearchUsers", func(ctx context.Context) error {
		found := a.svc.Users.Search(ctx, query)
		results := found[:0]
		for _, u := range found {
			if u.ID != viewer {
				results = append(results, u)
			}
		}
		a.mergeAs(viewer, state.SetUserResults(query, results))
		return nil
	})
}

// StartDirect opens the direct conversation with userID, creating it when
// it does not exist yet.
func (a *App) StartDirect(userID model.ID) {
	viewer := a.viewer()
	a.do("StartDirect", func(ctx context.Context) error {
		conv, err := a.svc.Conversations.CreateDirect(ctx, viewer, userID)
		if err != nil {
			return err
		}
		if !a.mergeAs(viewer,
			state.CloseModals(),
			state.ShowConversations(true),
			state.ReplaceConversation(conv),
			state.SelectConversation(conv.ID),
		) {
			return nil
		}
		a.Invalidate()
		return a.open(ctx, conv.ID)
	})
}

func (a *App) CreateContact(name, phone string) {
	viewer := a.viewer()
	a.do("CreateContact", func(ctx context.Context) error {
		if _, err := a.svc.Contacts.Create(ctx, service.ContactInput{Name: name, Phone: phone}); err != nil {
			return err
		}
		a.mergeAs(viewer, state.CloseModals())
		a.notify(viewer, "Contact ajouté")
		a.refreshContacts(ctx, viewer)
		return nil
	})
}

func (a *App) ToggleFavorite(id model.ID) {
	viewer := a.viewer()
	a.do("ToggleFavorite", func(ctx context.Context) error {
		if _, err := a.svc.Contacts.ToggleFavorite(ctx, id); err != nil {
			return err
		}
		a.refreshContacts(ctx, viewer)
		return nil
	})
}

func (a *App) ToggleContactArchive(id model.ID) {
	viewer := a.viewer()
	a.do("ToggleContactArchive", func(ctx context.Context) error {
		if _, err := a.svc.Contacts.ToggleArchive(ctx, id); err != nil {
			return err
		}
		a.refreshContacts(ctx, viewer)
		return nil
	})
}

func (a *App) SetContactAvatar(id model.ID, path string) {
	viewer := a.viewer()
	a.do("SetContactAvatar", func(ctx context.Context) error {
		f, err := a.readFile(path)
		if err != nil {
			return err
		}
		avatar, err := a.svc.Avatars.Save(ctx, f, id)
		if err != nil {
			return err
		}
		if _, err := a.svc.Contacts.UpdateAvatar(ctx, id, avatar); err != nil {
			return err
		}
		a.refreshContacts(ctx, viewer)
		return nil
	})
}

func (a *App) DeleteContact(id model.ID) {
	viewer := a.viewer()
	a.do("DeleteContact", func(ctx context.Context) error {
		if err := a.svc.Avatars.Delete(ctx, id); err != nil {
			logger.Warnf("app.DeleteContact: avatar %s: %v", id, err)
		}
		if err := a.svc.Contacts.Delete(ctx, id); err != nil {
			return err
		}
		a.mergeAs(viewer, func(s *state.AppState) {
			if s.SelectedContactID == id {
				s.SelectedContactID = ""
			}
		})
		a.refreshContacts(ctx, viewer)
		return nil
	})
}
