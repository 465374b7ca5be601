// Package app is the render orchestrator: it owns the state container and
// the services, rebuilds the whole view tree on every invalidation and runs
// user actions in the background.
package app

import (
	"context"
	"os"
	"sync"
	"time"

	"github.com/waclient/internal/apperr"
	"github.com/waclient/internal/config"
	"github.com/waclient/internal/logger"
	"github.com/waclient/internal/model"
	"github.com/waclient/internal/service"
	"github.com/waclient/internal/state"
	"github.com/waclient/internal/view"
	"golang.org/x/sync/errgroup"
)

type Services struct {
	Auth          *service.AuthService
	Users         *service.UserService
	Conversations *service.ConversationService
	Messages      *service.MessageService
	Contacts      *service.ContactService
	Avatars       *service.AvatarService
	Media         *service.MediaService
	// Recorder is nil when no microphone is available.
	Recorder *service.Recorder
}

type Options struct {
	Typing config.TypingConfig
	// Now defaults to time.Now.
	Now func() time.Time
	// ReadFile loads attachments; defaults to os.ReadFile.
	ReadFile func(path string) ([]byte, error)
	// OnRender receives every new tree.
	OnRender func(root *view.Node)
}

type App struct {
	store     *state.Container
	svc       Services
	opts      Options
	sched     *Scheduler
	listeners *Listeners

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	renderMu sync.Mutex
	tree     *view.Node

	recMu   sync.Mutex
	recConv model.ID
}

func New(store *state.Container, svc Services, opts Options) *App {
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.ReadFile == nil {
		opts.ReadFile = os.ReadFile
	}
	ctx, cancel := context.WithCancel(context.Background())
	a := &App{
		store:     store,
		svc:       svc,
		opts:      opts,
		listeners: NewListeners(),
		ctx:       ctx,
		cancel:    cancel,
	}
	a.sched = NewScheduler(func() { a.Render() })
	if svc.Recorder != nil {
		svc.Recorder.OnAutoStop = a.autoStopped
	}
	return a
}

// Start restores the saved session and starts the render loop.
func (a *App) Start() {
	go a.sched.Run(a.ctx)
	u, err := a.svc.Auth.CurrentUser(a.ctx)
	if err != nil {
		logger.Warnf("app: restore session: %v", err)
	}
	if u != nil {
		logger.Infof("app: session restored for %s", u.Username)
		a.store.Merge(state.LoggedIn(*u))
		a.do("load", a.load)
	}
	a.Invalidate()
}

// Close cancels running actions and waits for them.
func (a *App) Close() {
	a.cancel()
	if a.svc.Recorder != nil {
		a.svc.Recorder.Cancel()
	}
	a.wg.Wait()
}

// Wait blocks until no action is running.
func (a *App) Wait() { a.wg.Wait() }

func (a *App) State() state.AppState { return a.store.Read() }

// Invalidate schedules a full render. It is the Rerender of every view.
func (a *App) Invalidate() { a.sched.Invalidate() }

// Render builds the tree for the current state, replacing the previous one
// and its global listeners.
func (a *App) Render() *view.Node {
	a.renderMu.Lock()
	defer a.renderMu.Unlock()
	a.listeners.begin()
	c := &view.Context{
		State:    a.store.Read(),
		Now:      a.opts.Now(),
		Merge:    a.store.Merge,
		Rerender: a.Invalidate,
		Listen:   a.listeners.Register,
		Do:       a,
	}
	root := view.Root(c)
	a.listeners.end()
	a.tree = root
	if a.opts.OnRender != nil {
		a.opts.OnRender(root)
	}
	return root
}

// Tree is the last rendered tree.
func (a *App) Tree() *view.Node {
	a.renderMu.Lock()
	defer a.renderMu.Unlock()
	return a.tree
}

// Dispatch hands a global event to the registered listeners.
func (a *App) Dispatch(ev view.Event) { a.listeners.Dispatch(ev) }

// do runs an action in the background. Its error becomes the notice.
func (a *App) do(name string, fn func(ctx context.Context) error) {
	viewer := a.viewer()
	a.wg.Add(1)
	go func() {
		defer a.wg.Done()
		defer logger.DeferLogDuration("app."+name, time.Now())()
		if err := fn(a.ctx); err != nil {
			if a.ctx.Err() != nil {
				return
			}
			logger.Errorf("app.%s: %v", name, err)
			notice := state.SetNotice(apperr.UserMessage(err), true)
			if viewer == "" {
				a.store.Merge(notice)
			} else {
				a.mergeAs(viewer, notice)
			}
		}
		a.Invalidate()
	}()
}

// mergeAs applies patches only while viewer is still the logged-in user.
func (a *App) mergeAs(viewer model.ID, patches ...state.Patch) bool {
	return a.store.MergeIf(loggedInAs(viewer), patches...)
}

func (a *App) notify(viewer model.ID, msg string) {
	a.mergeAs(viewer, state.SetNotice(msg, false))
}

func (a *App) viewer() model.ID {
	st := a.store.Read()
	if st.CurrentUser == nil {
		return ""
	}
	return st.CurrentUser.ID
}

func selected(id model.ID) state.Guard {
	return func(s *state.AppState) bool { return s.SelectedConversationID == id }
}

func loggedInAs(id model.ID) state.Guard {
	return func(s *state.AppState) bool { return s.CurrentUser != nil && s.CurrentUser.ID == id }
}

// load fetches users, conversations and contacts in parallel. A failed
// conversation read marks the load as failed so the list offers a reload.
func (a *App) load(ctx context.Context) error {
	viewer := a.viewer()
	if viewer == "" {
		return nil
	}
	var (
		users    []model.User
		convs    []model.Conversation
		contacts []model.Contact
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		users = a.svc.Users.GetAll(gctx)
		return nil
	})
	g.Go(func() error {
		var err error
		convs, err = a.svc.Conversations.LoadUserConversations(gctx, viewer)
		return err
	})
	g.Go(func() error {
		contacts = a.svc.Contacts.GetAll(gctx)
		return nil
	})
	if err := g.Wait(); err != nil {
		a.store.MergeIf(loggedInAs(viewer), state.LoadFailed())
		return err
	}
	a.store.MergeIf(loggedInAs(viewer),
		state.SetUsers(users),
		state.SetConversations(convs),
		state.SetContacts(contacts),
	)
	return nil
}

func (a *App) refreshConversations(ctx context.Context) {
	viewer := a.viewer()
	if viewer == "" {
		return
	}
	convs := a.svc.Conversations.GetUserConversations(ctx, viewer)
	if a.store.MergeIf(loggedInAs(viewer), state.SetConversations(convs)) {
		a.Invalidate()
	}
}

func (a *App) refreshContacts(ctx context.Context, viewer model.ID) {
	contacts := a.svc.Contacts.GetAll(ctx)
	a.mergeAs(viewer, state.SetContacts(contacts))
}

func (a *App) loadMessages(ctx context.Context, convID model.ID) {
	msgs := a.svc.Messages.GetConversationMessages(ctx, convID)
	if a.store.MergeIf(selected(convID), state.SetMessages(convID, msgs)) {
		a.Invalidate()
	}
}

// open marks the conversation read, then loads its thread and the list.
func (a *App) open(ctx context.Context, convID model.ID) error {
	markErr := a.svc.Messages.MarkConversationAsRead(ctx, convID, a.viewer())
	if markErr != nil {
		logger.Warnf("app.open: mark read %s: %v", convID, markErr)
	}
	a.loadMessages(ctx, convID)
	a.refreshConversations(ctx)
	return markErr
}

// showTyping simulates the other side typing after a send in a direct
// conversation. Both steps are dropped once the conversation is left.
func (a *App) showTyping(convID model.ID) {
	st := a.store.Read()
	conv := st.SelectedConversation()
	if conv == nil || conv.ID != convID || conv.IsGroup() || a.opts.Typing.ShowAfter <= 0 {
		return
	}
	time.AfterFunc(a.opts.Typing.ShowAfter, func() {
		if a.ctx.Err() != nil || !a.store.MergeIf(selected(convID), state.SetTyping(convID)) {
			return
		}
		a.Invalidate()
		time.AfterFunc(a.opts.Typing.HideAfter, func() {
			stillTyping := func(s *state.AppState) bool { return s.TypingIn == convID }
			if a.ctx.Err() == nil && a.store.MergeIf(stillTyping, state.SetTyping("")) {
				a.Invalidate()
			}
		})
	})
}
