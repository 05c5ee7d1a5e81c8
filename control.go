package main

import (
	"fmt"
	"net/http"
)

// UserPresence for one account: how many sessions it holds and whether
// any of them has a registered websocket.
type UserPresence struct {
	Sessions  int  `json:"sessions,omitempty"`
	Websocket bool `json:"websocket,omitempty"`
}

// GET /api/control/who
//
// Reports every known account with its live session count and socket
// presence, assembled from a session directory snapshot crossed with
// the connection registry.
func getWho(w http.ResponseWriter, r *http.Request) {
	usernames, err := queryUsernames(r.Context())
	if err != nil {
		respondError(w, err)
		return
	}

	users := make(map[string]*UserPresence, len(usernames))
	for _, username := range usernames {
		users[username] = &UserPresence{}
	}

	sessions, err := sessionStore.EnumerateActiveSessions()
	if err != nil {
		respondError(w, fmt.Errorf("could not enumerate sessions: %w", err))
		return
	}

	for _, sess := range sessions {
		presence, ok := users[sess.Username]
		if !ok {
			// Anonymous sessions and accounts removed since login.
			continue
		}
		presence.Sessions++
		if registry.Contains(sess.ID) {
			presence.Websocket = true
		}
	}

	respond(w, users, http.StatusOK)
}
