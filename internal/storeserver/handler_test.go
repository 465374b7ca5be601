package storeserver

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/stretchr/testify/suite"
	"github.com/waclient/internal/storage/memory"
	"golang.org/x/crypto/bcrypt"
)

const seedDB = `{
  "users": [
    {"id": 1, "username": "alice", "name": "Alice", "password": "secret"},
    {"id": 2, "username": "bob", "name": "Bob", "password": "pw"}
  ],
  "conversations": [
    {"id": 1, "type": "direct", "participants": [1, 2], "lastMessageTime": "2024-03-01T10:00:00.000Z", "isPinned": false},
    {"id": 2, "type": "group", "participants": [1, 2, 11], "lastMessageTime": "2024-03-03T10:00:00.000Z", "isPinned": true},
    {"id": 3, "type": "direct", "participants": [11, 2], "lastMessageTime": "2024-03-02T10:00:00.000Z", "isPinned": false}
  ],
  "messages": [
    {"id": 1, "conversationId": 1, "text": "b", "timestamp": "2024-03-01T10:00:02.000Z"},
    {"id": 2, "conversationId": 1, "text": "a", "timestamp": "2024-03-01T10:00:01.000Z"},
    {"id": 3, "conversationId": 2, "text": "Hello World", "timestamp": "2024-03-01T10:00:03.000Z"}
  ]
}`

type StoreServerSuite struct {
	suite.Suite
	srv *httptest.Server
}

func (s *StoreServerSuite) SetupTest() {
	store := memory.New()
	s.Require().NoError(Seed(context.Background(), store, []byte(seedDB), SeedOptions{}))
	s.srv = httptest.NewServer(NewRouter(store, Options{}))
}

func (s *StoreServerSuite) TearDownTest() {
	s.srv.Close()
}

func (s *StoreServerSuite) do(method, path, body string) (int, string) {
	var rd io.Reader
	if body != "" {
		rd = strings.NewReader(body)
	}
	req, err := http.NewRequest(method, s.srv.URL+path, rd)
	s.Require().NoError(err)
	resp, err := s.srv.Client().Do(req)
	s.Require().NoError(err)
	defer resp.Body.Close()
	raw, err := io.ReadAll(resp.Body)
	s.Require().NoError(err)
	return resp.StatusCode, string(raw)
}

func (s *StoreServerSuite) ids(body string) []string {
	var recs []struct {
		ID json.Number `json:"id"`
	}
	s.Require().NoError(json.Unmarshal([]byte(body), &recs))
	out := make([]string, len(recs))
	for i, r := range recs {
		out[i] = r.ID.String()
	}
	return out
}

func (s *StoreServerSuite) TestEqualityFilterAndSort() {
	code, body := s.do(http.MethodGet, "/messages?conversationId=1&_sort=timestamp&_order=asc", "")
	s.Equal(http.StatusOK, code)
	s.Equal([]string{"2", "1"}, s.ids(body))
}

func (s *StoreServerSuite) TestLikeMatchesArrayText() {
	// participants_like=1 совпадает и с 11, как у json-server.
	_, body := s.do(http.MethodGet, "/conversations?participants_like=1&_sort=lastMessageTime&_order=desc", "")
	s.Equal([]string{"2", "3", "1"}, s.ids(body))
}

func (s *StoreServerSuite) TestNeAndFullText() {
	_, body := s.do(http.MethodGet, "/conversations?type_ne=direct", "")
	s.Equal([]string{"2"}, s.ids(body))

	_, body = s.do(http.MethodGet, "/messages?q=hello", "")
	s.Equal([]string{"3"}, s.ids(body))
}

func (s *StoreServerSuite) TestLimitAndTotalCount() {
	resp, err := s.srv.Client().Get(s.srv.URL + "/messages?_sort=id&_order=desc&_limit=2")
	s.Require().NoError(err)
	defer resp.Body.Close()
	s.Equal("3", resp.Header.Get("X-Total-Count"))
	raw, _ := io.ReadAll(resp.Body)
	s.Equal([]string{"3", "2"}, s.ids(string(raw)))
}

func (s *StoreServerSuite) TestCreateAssignsNumericID() {
	code, body := s.do(http.MethodPost, "/messages", `{"conversationId":1,"text":"new"}`)
	s.Equal(http.StatusCreated, code)
	s.JSONEq(`{"conversationId":1,"text":"new","id":4}`, body)

	code, _ = s.do(http.MethodPost, "/messages", `{"id":4,"text":"dup"}`)
	s.Equal(http.StatusConflict, code)

	code, _ = s.do(http.MethodPost, "/messages", `[1,2]`)
	s.Equal(http.StatusBadRequest, code)
}

func (s *StoreServerSuite) TestPutReplacesWholeRecord() {
	code, body := s.do(http.MethodPut, "/users/2", `{"username":"bobby"}`)
	s.Equal(http.StatusOK, code)
	s.JSONEq(`{"username":"bobby","id":2}`, body)

	_, body = s.do(http.MethodGet, "/users/2", "")
	s.JSONEq(`{"username":"bobby","id":2}`, body)

	code, _ = s.do(http.MethodPut, "/users/99", `{}`)
	s.Equal(http.StatusNotFound, code)
}

func (s *StoreServerSuite) TestPatchMerges() {
	code, body := s.do(http.MethodPatch, "/users/1", `{"isOnline":true,"id":"ignored"}`)
	s.Equal(http.StatusOK, code)
	s.JSONEq(`{"id":1,"username":"alice","name":"Alice","password":"secret","isOnline":true}`, body)
}

func (s *StoreServerSuite) TestDelete() {
	code, _ := s.do(http.MethodDelete, "/messages/1", "")
	s.Equal(http.StatusOK, code)
	code, body := s.do(http.MethodGet, "/messages/1", "")
	s.Equal(http.StatusNotFound, code)
	s.Equal("{}", body)
	code, _ = s.do(http.MethodDelete, "/messages/1", "")
	s.Equal(http.StatusNotFound, code)
}

func (s *StoreServerSuite) TestUnknownCollection() {
	code, _ := s.do(http.MethodGet, "/secrets", "")
	s.Equal(http.StatusNotFound, code)
}

func (s *StoreServerSuite) TestDump() {
	code, body := s.do(http.MethodGet, "/db", "")
	s.Equal(http.StatusOK, code)
	var db map[string][]json.RawMessage
	s.Require().NoError(json.Unmarshal([]byte(body), &db))
	s.Len(db["users"], 2)
	s.Len(db["contacts"], 0)
}

func TestStoreServerSuite(t *testing.T) {
	suite.Run(t, new(StoreServerSuite))
}

func TestSeedHashesPasswords(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	err := Seed(ctx, store, []byte(`{"users":[{"username":"a","password":"pw"},{"username":"b","password":"$2a$04$alreadyhashed"}]}`),
		SeedOptions{HashPasswords: true, BcryptCost: bcrypt.MinCost})
	require.NoError(t, err)

	rec, err := store.Get(ctx, "users", "1")
	require.NoError(t, err)
	var u struct{ Password string }
	require.NoError(t, json.Unmarshal(rec.Data, &u))
	require.NoError(t, bcrypt.CompareHashAndPassword([]byte(u.Password), []byte("pw")))

	rec, err = store.Get(ctx, "users", "2")
	require.NoError(t, err)
	require.Contains(t, string(rec.Data), "alreadyhashed")
}

func TestSeedRejectsNonObject(t *testing.T) {
	require.Error(t, Seed(context.Background(), memory.New(), []byte(`[]`), SeedOptions{}))
}
