package main

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestGetChatHistory_RequiresAuthentication(t *testing.T) {
	req := require.New(t)
	setupSessionGlobals(t)
	messages = &fakeMessageStore{}

	handler := requireRole(roleAdmin, roleUser)(getChatHistory)

	w := httptest.NewRecorder()
	handler(w, httptest.NewRequest(http.MethodGet, "/api/chat?user1=alice&user2=bob", nil))

	req.Equal(http.StatusUnauthorized, w.Code)
}

func TestGetChatHistory_ReturnsMessagesBetweenPair(t *testing.T) {
	req := require.New(t)
	setupSessionGlobals(t)
	store := &fakeMessageStore{appended: []ChatMessage{
		{ID: "m1", Sender: "alice", Receiver: "bob", Message: "hi", Status: statusDelivered},
		{ID: "m2", Sender: "bob", Receiver: "alice", Message: "hello", Status: statusDelivered},
	}}
	messages = store

	handler := requireRole(roleAdmin, roleUser)(getChatHistory)

	r := httptest.NewRequest(http.MethodGet, "/api/chat?user1=alice&user2=bob", nil)
	authedRequest(t, r, "alice", []int64{roleUser})
	w := httptest.NewRecorder()
	handler(w, r)

	req.Equal(http.StatusOK, w.Code)

	var got []ChatMessage
	req.NoError(json.Unmarshal(w.Body.Bytes(), &got))
	req.Len(got, 2)
}

func TestCreateChatMessage_RejectsMissingFields(t *testing.T) {
	req := require.New(t)
	setupSessionGlobals(t)
	store := &fakeMessageStore{}
	messages = store

	handler := requireRole(roleAdmin, roleUser)(createChatMessage)

	for _, body := range []string{
		`{"receiver":"bob","message":"hi"}`,
		`{"sender":"alice","message":"hi"}`,
		`{"sender":"alice","receiver":"bob"}`,
	} {
		r := httptest.NewRequest(http.MethodPost, "/api/chat", strings.NewReader(body))
		r.Header.Set("Content-Type", "application/json")
		authedRequest(t, r, "alice", []int64{roleUser})
		w := httptest.NewRecorder()
		handler(w, r)

		req.Equal(http.StatusBadRequest, w.Code)
		req.Contains(w.Body.String(), "Missing required fields.")
	}

	req.Empty(store.appended)
}

func TestCreateChatMessage_PersistsMessage(t *testing.T) {
	req := require.New(t)
	setupSessionGlobals(t)
	store := &fakeMessageStore{}
	messages = store

	handler := requireRole(roleAdmin, roleUser)(createChatMessage)

	r := httptest.NewRequest(http.MethodPost, "/api/chat",
		strings.NewReader(`{"sender":"alice","receiver":"bob","message":"hi"}`))
	r.Header.Set("Content-Type", "application/json")
	authedRequest(t, r, "alice", []int64{roleUser})
	w := httptest.NewRecorder()
	handler(w, r)

	req.Equal(http.StatusCreated, w.Code)
	req.Contains(w.Body.String(), `"success":true`)

	req.Len(store.appended, 1)
	msg := store.appended[0]
	req.Equal("alice", msg.Sender)
	req.Equal("bob", msg.Receiver)
	req.Equal(statusDelivered, msg.Status)
	req.NotEmpty(msg.ID)
	req.False(msg.Timestamp.IsZero())
}
