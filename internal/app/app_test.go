package app

import (
	"bytes"
	"context"
	"errors"
	"image"
	"image/png"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/waclient/internal/config"
	"github.com/waclient/internal/model"
	"github.com/waclient/internal/remotestore"
	"github.com/waclient/internal/service"
	"github.com/waclient/internal/session"
	"github.com/waclient/internal/state"
	"github.com/waclient/internal/storage/memory"
	"github.com/waclient/internal/storeserver"
	"github.com/waclient/internal/view"
	"golang.org/x/crypto/bcrypt"
)

const fixtureDB = `{
  "users": [
    {"id": 1, "username": "alice", "name": "Alice Diop", "password": "secret"},
    {"id": 2, "username": "bob", "name": "Bob Sow", "password": "pw"},
    {"id": 3, "username": "carol", "name": "Carol Fall", "password": "pw"}
  ],
  "conversations": [
    {"id": 1, "type": "direct", "participants": [1, 2], "lastMessage": "", "lastMessageTime": "2024-03-01T10:00:00.000Z", "createdAt": "2024-03-01T10:00:00.000Z"}
  ],
  "messages": [],
  "contacts": [
    {"id": 1, "name": "Awa", "phone": "+221 77 111 22 33", "avatar": "/avatars/default.jpg"}
  ]
}`

var mediaCfg = config.MediaConfig{
	MaxFileSize:      50 << 20,
	ResizeThreshold:  2 << 20,
	MaxImageWidth:    800,
	MaxImageHeight:   600,
	MaxAvatarSize:    5 << 20,
	MinVoiceDuration: time.Second,
	MaxVoiceDuration: 300 * time.Second,
}

// steppingClock advances two seconds per call.
func steppingClock() service.Clock {
	base := time.Date(2024, 3, 10, 12, 0, 0, 0, time.UTC)
	var n atomic.Int64
	return func() time.Time { return base.Add(time.Duration(n.Add(1)) * 2 * time.Second) }
}

type fakeMic struct{ started atomic.Bool }

func (m *fakeMic) Supports(mime string) bool { return mime == "audio/webm" }
func (m *fakeMic) Start(string) error        { m.started.Store(true); return nil }
func (m *fakeMic) Stop() ([]byte, error)     { m.started.Store(false); return []byte("opus"), nil }

type AppSuite struct {
	suite.Suite
	ctx       context.Context
	srv       *httptest.Server
	failConvs atomic.Bool
	svc       Services
	sessions  *session.Memory
	files     map[string][]byte
	app       *App
}

func (s *AppSuite) SetupTest() {
	s.ctx = context.Background()
	store := memory.New()
	s.Require().NoError(storeserver.Seed(s.ctx, store, []byte(fixtureDB), storeserver.SeedOptions{}))
	router := storeserver.NewRouter(store, storeserver.Options{})
	s.failConvs.Store(false)
	s.srv = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if s.failConvs.Load() && strings.HasPrefix(r.URL.Path, "/conversations") {
			http.Error(w, "boom", http.StatusInternalServerError)
			return
		}
		router.ServeHTTP(w, r)
	}))
	s.sessions = session.NewMemory()
	s.svc = newServices(s.srv.URL, s.sessions)
	s.files = map[string][]byte{}
	s.app = s.newApp(s.svc)
}

func newServices(url string, sessions session.Store) Services {
	clock := steppingClock()
	cols := service.NewCollections(remotestore.New(url))
	convs := service.NewConversationService(cols, clock)
	return Services{
		Auth:          service.NewAuthService(cols, sessions, clock, bcrypt.MinCost),
		Users:         service.NewUserService(cols),
		Conversations: convs,
		Messages:      service.NewMessageService(cols, convs, clock),
		Contacts:      service.NewContactService(cols),
		Avatars:       service.NewAvatarService(sessions, mediaCfg.MaxAvatarSize),
		Media:         service.NewMediaService(mediaCfg, nil, clock),
		Recorder:      service.NewRecorder(&fakeMic{}, mediaCfg, clock),
	}
}

func (s *AppSuite) newApp(svc Services) *App {
	return New(state.New(state.Defaults()), svc, Options{
		Typing: config.TypingConfig{ShowAfter: 10 * time.Millisecond, HideAfter: 20 * time.Millisecond},
		ReadFile: func(path string) ([]byte, error) {
			if data, ok := s.files[path]; ok {
				return data, nil
			}
			return nil, errors.New("no such file")
		},
	})
}

func (s *AppSuite) TearDownTest() {
	s.app.Close()
	s.srv.Close()
}

func (s *AppSuite) login(a *App, user, pw string) state.AppState {
	a.Login(user, pw)
	a.Wait()
	st := a.State()
	s.Require().True(st.Authenticated(), "notice: %s", st.Notice)
	return st
}

func (s *AppSuite) open(a *App, id model.ID) state.AppState {
	a.OpenConversation(id)
	a.Wait()
	return a.State()
}

func (s *AppSuite) TestLoginLoadsEverything() {
	st := s.login(s.app, "alice", "secret")
	s.Equal(model.ID("1"), st.CurrentUser.ID)
	s.Len(st.Users, 3)
	s.Len(st.Conversations, 1)
	s.Len(st.Contacts, 1)
	s.False(st.LoadingConversations)
	s.Empty(st.Field("login.password"))

	u, err := s.svc.Auth.CurrentUser(s.ctx)
	s.Require().NoError(err)
	s.Require().NotNil(u)
	s.Equal("alice", u.Username)
}

func (s *AppSuite) TestWrongPasswordShowsNotice() {
	s.app.Login("alice", "nope")
	s.app.Wait()
	st := s.app.State()
	s.False(st.Authenticated())
	s.True(st.NoticeIsError)
	s.Equal("Identifiants incorrects", st.Notice)
}

func (s *AppSuite) TestStartRestoresSession() {
	s.Require().NoError(session.SaveUser(s.ctx, s.sessions, model.User{ID: "2", Username: "bob"}))
	s.app.Start()
	s.app.Wait()
	st := s.app.State()
	s.True(st.Authenticated())
	s.Len(st.Conversations, 1)
	s.Eventually(func() bool { return s.app.Tree() != nil }, time.Second, 5*time.Millisecond)
}

func (s *AppSuite) TestLoadFailureThenReload() {
	s.failConvs.Store(true)
	s.app.Login("alice", "secret")
	s.app.Wait()
	st := s.app.State()
	s.True(st.Authenticated())
	s.True(st.LoadFailed)
	s.Equal("Erreur de connexion au serveur", st.Notice)
	s.NotNil(s.app.Render().Find("conversations.reload"))

	s.failConvs.Store(false)
	s.app.Reload()
	s.app.Wait()
	st = s.app.State()
	s.False(st.LoadFailed)
	s.Len(st.Conversations, 1)
}

func (s *AppSuite) TestSendTextReconcilesAndSimulatesTyping() {
	s.login(s.app, "alice", "secret")
	s.open(s.app, "1")

	s.app.SendText("  bonjour  ")
	s.app.Wait()
	st := s.app.State()
	s.Require().Len(st.Messages, 1)
	s.Equal("bonjour", st.Messages[0].Text)
	s.NotEmpty(st.Messages[0].ID)
	s.Equal("bonjour", st.Conversations[0].LastMessage)
	s.Equal(0, st.Conversations[0].UnreadFor("1"))
	s.Equal(1, st.Conversations[0].UnreadFor("2"))

	s.Eventually(func() bool { return s.app.State().TypingIn == "1" }, time.Second, 2*time.Millisecond)
	s.Eventually(func() bool { return s.app.State().TypingIn.IsZero() }, time.Second, 2*time.Millisecond)
}

func (s *AppSuite) TestEmptyTextIsRejected() {
	s.login(s.app, "alice", "secret")
	s.open(s.app, "1")
	s.app.SendText("   ")
	s.app.Wait()
	st := s.app.State()
	s.Equal("Le message ne peut pas être vide", st.Notice)
	s.Empty(st.Messages)
}

func (s *AppSuite) TestOpeningMarksRead() {
	_, err := s.svc.Messages.SendText(s.ctx, "1", "1", "salut bob")
	s.Require().NoError(err)

	bob := s.newApp(newServices(s.srv.URL, session.NewMemory()))
	defer bob.Close()
	st := s.login(bob, "bob", "pw")
	s.Equal(1, st.Conversations[0].UnreadFor("2"))

	st = s.open(bob, "1")
	s.Len(st.Messages, 1)
	s.Equal(0, st.Conversations[0].UnreadFor("2"))
	s.True(st.Messages[0].ReadBy.Contains("2"))
}

func (s *AppSuite) TestLateMessagesForLeftConversationAreDropped() {
	s.login(s.app, "alice", "secret")
	s.app.StartDirect("3")
	s.app.Wait()
	st := s.app.State()
	s.Require().NotEqual(model.ID("1"), st.SelectedConversationID)
	s.Len(st.Conversations, 2)
	s.False(st.ShowUserSearch)

	v := s.app.store.Version()
	s.app.loadMessages(s.ctx, "1")
	s.Equal(v, s.app.store.Version())
	s.NotEqual(model.ID("1"), s.app.State().MessagesFor)
}

func (s *AppSuite) TestDeletingSomeoneElsesMessageIsRefused() {
	msg, err := s.svc.Messages.SendText(s.ctx, "1", "2", "de bob")
	s.Require().NoError(err)
	s.login(s.app, "alice", "secret")
	s.open(s.app, "1")

	s.app.DeleteMessage(msg.ID)
	s.app.Wait()
	st := s.app.State()
	s.True(st.NoticeIsError)
	s.Equal("Vous ne pouvez supprimer que vos propres messages", st.Notice)
	s.False(st.Messages[0].IsDeleted)
}

func (s *AppSuite) TestDeleteOwnMessage() {
	s.login(s.app, "alice", "secret")
	s.open(s.app, "1")
	s.app.SendText("oups")
	s.app.Wait()
	id := s.app.State().Messages[0].ID

	s.app.DeleteMessage(id)
	s.app.Wait()
	st := s.app.State()
	s.True(st.Messages[0].IsDeleted)
	s.Equal(model.DeletedPlaceholder, st.Conversations[0].LastMessage)
}

func (s *AppSuite) TestGroupLifecycle() {
	s.login(s.app, "alice", "secret")
	s.app.CreateGroup("Projet", model.IDs{"2"})
	s.app.Wait()
	s.Equal("Un groupe doit avoir au moins 2 participants en plus de vous", s.app.State().Notice)

	s.app.CreateGroup("Projet", model.IDs{"2", "3"})
	s.app.Wait()
	st := s.app.State()
	group := st.SelectedConversation()
	s.Require().NotNil(group)
	s.True(group.IsGroup())
	s.Equal(model.IDs{"1"}, group.Admins)
	s.False(st.NoticeIsError)

	s.app.DeleteGroup(group.ID)
	s.app.Wait()
	st = s.app.State()
	s.True(st.SelectedConversationID.IsZero())
	s.Len(st.Conversations, 1)
}

func (s *AppSuite) TestPinAndArchive() {
	s.login(s.app, "alice", "secret")
	s.app.TogglePin("1")
	s.app.Wait()
	s.True(s.app.State().Conversations[0].IsPinned)
	s.app.ToggleArchive("1")
	s.app.Wait()
	s.True(s.app.State().Conversations[0].IsArchived)
}

func (s *AppSuite) TestSendImageFile() {
	img := image.NewRGBA(image.Rect(0, 0, 4, 4))
	var buf bytes.Buffer
	s.Require().NoError(png.Encode(&buf, img))
	s.files["/tmp/photo.png"] = buf.Bytes()

	s.login(s.app, "alice", "secret")
	s.open(s.app, "1")
	s.app.SendFile("/tmp/photo.png", "vacances")
	s.app.Wait()
	st := s.app.State()
	s.Require().Len(st.Messages, 1)
	m := st.Messages[0]
	s.Equal(model.MessageImage, m.Type)
	s.Equal("vacances", m.Text)
	s.Equal("photo.png", m.Media.OriginalName)
	s.True(strings.HasPrefix(m.Media.Content, "data:image/png;base64,"))

	s.app.SendFile("/tmp/missing.png", "")
	s.app.Wait()
	s.Equal("Impossible de lire le fichier missing.png", s.app.State().Notice)
}

func (s *AppSuite) TestVoiceRecording() {
	s.login(s.app, "alice", "secret")
	s.open(s.app, "1")
	s.app.StartRecording()
	s.app.Wait()
	s.True(s.app.State().IsRecording)

	s.app.StopRecording()
	s.app.Wait()
	st := s.app.State()
	s.False(st.IsRecording)
	s.Require().Len(st.Messages, 1)
	s.Equal(model.MessageVoice, st.Messages[0].Type)
	s.Equal("🎤 Message vocal", st.Conversations[0].LastMessage)
}

func (s *AppSuite) TestContacts() {
	s.login(s.app, "alice", "secret")
	s.app.CreateContact("Moussa", "+221 7 71 23 45 67")
	s.app.Wait()
	st := s.app.State()
	s.Len(st.Contacts, 2)
	s.Equal("Contact ajouté", st.Notice)

	s.app.CreateContact("Faux", "123")
	s.app.Wait()
	s.Equal("Numéro de téléphone invalide", s.app.State().Notice)

	s.app.ToggleFavorite("1")
	s.app.Wait()
	s.True(s.app.State().Contacts[0].IsFavorite)

	s.app.DeleteContact("1")
	s.app.Wait()
	s.Len(s.app.State().Contacts, 1)
}

func (s *AppSuite) TestUserSearchExcludesSelf() {
	s.login(s.app, "alice", "secret")
	s.app.SearchUsers("a")
	s.app.Wait()
	st := s.app.State()
	s.Equal("a", st.UserQuery)
	for _, u := range st.UserResults {
		s.NotEqual(model.ID("1"), u.ID)
	}
	s.NotEmpty(st.UserResults)
}

func (s *AppSuite) TestLogoutClearsEverything() {
	s.login(s.app, "alice", "secret")
	s.open(s.app, "1")
	s.app.Logout()
	s.app.Wait()
	s.Equal(state.Defaults(), s.app.State())
	u, err := s.svc.Auth.CurrentUser(s.ctx)
	s.NoError(err)
	s.Nil(u)
}

func (s *AppSuite) TestLateContactResultsDroppedAfterLogout() {
	st := s.login(s.app, "alice", "secret")
	viewer := st.CurrentUser.ID
	s.app.Logout()
	s.app.Wait()

	s.app.refreshContacts(s.ctx, viewer)
	s.app.notify(viewer, "Contact ajouté")
	s.False(s.app.mergeAs(viewer, state.ShowConversations(false)))
	s.Equal(state.Defaults(), s.app.State())
}

func (s *AppSuite) TestModalListenerIsManagedAcrossRenders() {
	s.login(s.app, "alice", "secret")
	s.app.store.Merge(state.OpenModal(state.ModalContactForm))
	s.app.Render()
	s.app.Render()
	s.Equal(1, s.app.listeners.Len())

	s.app.Dispatch(view.Event{Key: view.KeyEscape})
	s.False(s.app.State().ShowContactForm)
	s.app.Render()
	s.Equal(0, s.app.listeners.Len())
}

func TestAppSuite(t *testing.T) {
	suite.Run(t, new(AppSuite))
}

func TestSchedulerCoalesces(t *testing.T) {
	var renders atomic.Int32
	s := NewScheduler(func() { renders.Add(1) })
	for i := 0; i < 100; i++ {
		s.Invalidate()
	}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Run(ctx)

	require.Eventually(t, func() bool { return renders.Load() == 1 }, time.Second, time.Millisecond)
	assert.Never(t, func() bool { return renders.Load() > 1 }, 30*time.Millisecond, 5*time.Millisecond)

	s.Invalidate()
	require.Eventually(t, func() bool { return renders.Load() == 2 }, time.Second, time.Millisecond)
}

func TestListenersReplaceAndDrop(t *testing.T) {
	l := NewListeners()
	var mu sync.Mutex
	var got []string
	record := func(tag string) func(view.Event) {
		return func(view.Event) {
			mu.Lock()
			got = append(got, tag)
			mu.Unlock()
		}
	}

	l.begin()
	l.Register("modal", record("first"))
	l.Register("modal", record("second"))
	l.Register("other", record("other"))
	l.end()
	require.Equal(t, 2, l.Len())

	l.begin()
	l.Register("modal", record("third"))
	l.end()
	require.Equal(t, 1, l.Len())

	l.Dispatch(view.Event{Key: view.KeyEscape})
	require.Equal(t, []string{"third"}, got)
}
