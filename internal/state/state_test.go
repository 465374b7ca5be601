package state

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/waclient/internal/model"
)

func TestReadReturnsIsolatedCopy(t *testing.T) {
	c := New(Defaults())
	c.Merge(
		SetConversations([]model.Conversation{{ID: "1", Participants: model.IDs{"1", "2"}}}),
		SelectConversation("1"),
		SetMessages("1", []model.Message{{ID: "m1", ConversationID: "1", ReadBy: model.IDs{"1"}}}),
	)

	snap := c.Read()
	snap.Conversations[0].Participants[0] = "99"
	snap.Messages[0].ReadBy[0] = "99"
	snap.Messages = append(snap.Messages, model.Message{ID: "m2"})

	live := c.Read()
	require.Equal(t, model.ID("1"), live.Conversations[0].Participants[0])
	require.Equal(t, model.ID("1"), live.Messages[0].ReadBy[0])
	require.Len(t, live.Messages, 1)
}

func TestMergeLastWriteWins(t *testing.T) {
	c := New(Defaults())
	v := c.Version()
	c.Merge(SetSearch("a"), SetSearch("b"), SetFilter(FilterUnread))
	st := c.Read()
	require.Equal(t, "b", st.SearchTerm)
	require.Equal(t, FilterUnread, st.CurrentFilter)
	require.Equal(t, v+1, c.Version())

	c.Merge()
	require.Equal(t, v+1, c.Version())
}

func TestSelectionInvariant(t *testing.T) {
	c := New(Defaults())
	c.Merge(SelectContact("c1"))
	c.Merge(SelectConversation("1"))
	st := c.Read()
	require.Equal(t, model.ID("1"), st.SelectedConversationID)
	require.True(t, st.SelectedContactID.IsZero())

	c.Merge(SelectContact("c2"))
	st = c.Read()
	require.Equal(t, model.ID("c2"), st.SelectedContactID)
	require.True(t, st.SelectedConversationID.IsZero())

	// патч, нарушающий инвариант напрямую: побеждает изменённое поле
	c.Merge(func(s *AppState) { s.SelectedConversationID = "7" })
	st = c.Read()
	require.Equal(t, model.ID("7"), st.SelectedConversationID)
	require.True(t, st.SelectedContactID.IsZero())

	c.Merge(func(s *AppState) { s.SelectedContactID = "c3" })
	st = c.Read()
	require.Equal(t, model.ID("c3"), st.SelectedContactID)
	require.True(t, st.SelectedConversationID.IsZero())
}

func TestMessagesBelongToSelectedConversation(t *testing.T) {
	c := New(Defaults())
	c.Merge(SelectConversation("1"), SetMessages("1", []model.Message{{ID: "a", ConversationID: "1"}}))
	require.Len(t, c.Read().Messages, 1)

	// результат, пришедший для другого разговора, игнорируется
	c.Merge(SetMessages("2", []model.Message{{ID: "b", ConversationID: "2"}}))
	require.Equal(t, "a", c.Read().Messages[0].ID.String())

	c.Merge(AppendMessage(model.Message{ID: "c", ConversationID: "1"}), AppendMessage(model.Message{ID: "a", ConversationID: "1", Text: "edited"}))
	st := c.Read()
	require.Len(t, st.Messages, 2)
	require.Equal(t, "edited", st.Messages[0].Text)

	c.Merge(SelectConversation("2"))
	st = c.Read()
	require.Empty(t, st.Messages)
	require.True(t, st.MessagesFor.IsZero())
}

func TestShowConversationsClearsOtherMode(t *testing.T) {
	c := New(Defaults())
	c.Merge(SelectConversation("1"), SetMessages("1", []model.Message{{ID: "a", ConversationID: "1"}}), SetFilter(FilterPinned))
	c.Merge(ShowConversations(false))
	st := c.Read()
	require.False(t, st.ShowConversationList)
	require.True(t, st.SelectedConversationID.IsZero())
	require.Empty(t, st.Messages)
	require.Equal(t, FilterAll, st.CurrentFilter)

	c.Merge(SelectContact("c1"), ShowConversations(true))
	require.True(t, c.Read().SelectedContactID.IsZero())
}

func TestMergeIf(t *testing.T) {
	c := New(Defaults())
	c.Merge(SelectConversation("1"))
	still := func(id model.ID) Guard {
		return func(s *AppState) bool { return s.SelectedConversationID == id }
	}
	require.True(t, c.MergeIf(still("1"), SetTyping("1")))
	require.Equal(t, model.ID("1"), c.Read().TypingIn)

	c.Merge(SelectConversation("2"))
	require.True(t, c.Read().TypingIn.IsZero())
	v := c.Version()
	require.False(t, c.MergeIf(still("1"), SetTyping("1")))
	require.Equal(t, v, c.Version())
}

func TestLoginLogout(t *testing.T) {
	c := New(Defaults())
	c.Merge(LoggedIn(model.User{ID: "1", Username: "alice", Password: "secret"}))
	st := c.Read()
	require.True(t, st.Authenticated())
	require.Empty(t, st.CurrentUser.Password)

	c.Merge(SetConversations([]model.Conversation{{ID: "1"}}), SelectConversation("1"), SetNotice("x", true))
	c.Merge(LoggedOut())
	require.Equal(t, Defaults(), c.Read())
}

func TestConcurrentMerges(t *testing.T) {
	c := New(Defaults())
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			c.Merge(func(s *AppState) { s.Users = append(s.Users, model.User{}) })
			_ = c.Read()
		}()
	}
	wg.Wait()
	require.Len(t, c.Read().Users, 50)
	require.Equal(t, uint64(50), c.Version())
}

func TestModalsAndDrafts(t *testing.T) {
	c := New(Defaults())
	c.Merge(SetField("login.identifier", "alice"), SetField("group.name", "Famille"))
	c.Merge(OpenModal(ModalGroupForm), ToggleGroupMember("2"), ToggleGroupMember("3"), ToggleGroupMember("2"))
	st := c.Read()
	require.True(t, st.ShowGroupForm)
	require.Equal(t, model.IDs{"3"}, st.GroupMembers)

	c.Merge(OpenModal(ModalUserSearch))
	st = c.Read()
	require.False(t, st.ShowGroupForm)
	require.True(t, st.ShowUserSearch)
	require.Empty(t, st.GroupMembers)
	require.Empty(t, st.Field("group.name"))
	require.Equal(t, "alice", st.Field("login.identifier"))

	st.Fields["login.identifier"] = "mallory"
	require.Equal(t, "alice", c.Read().Field("login.identifier"))
}

func TestUserResultsIgnoreStaleQuery(t *testing.T) {
	c := New(Defaults())
	c.Merge(SetUserQuery("al"))
	c.Merge(SetUserQuery("ali"))
	c.Merge(SetUserResults("al", []model.User{{ID: "9"}}))
	require.Empty(t, c.Read().UserResults)
	c.Merge(SetUserResults("ali", []model.User{{ID: "1"}}))
	require.Len(t, c.Read().UserResults, 1)
}

func TestHelpersOnSnapshotValue(t *testing.T) {
	c := New(Defaults())
	require.False(t, c.Read().Authenticated())

	c.Merge(
		LoggedIn(model.User{ID: "1", Username: "alice"}),
		SetUsers([]model.User{{ID: "1", Username: "alice"}, {ID: "2", Username: "bob"}}),
		SetConversations([]model.Conversation{{ID: "7", Participants: model.IDs{"1", "2"}}}),
		SelectConversation("7"),
		SetField("chat.text", "salut"),
	)
	require.True(t, c.Read().Authenticated())
	require.Equal(t, "salut", c.Read().Field("chat.text"))
	require.Equal(t, "bob", c.Read().User("2").Username)
	require.Equal(t, model.ID("7"), c.Read().SelectedConversation().ID)
	require.Nil(t, c.Read().SelectedContact())
}
