package main

import (
	"context"
	"crypto/sha256"
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
)

const (
	roleAdmin int64 = 0
	roleUser  int64 = 1
)

// POST /api/auth
func login(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Username string `json:"username"`
		Password string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		jsonError(w, http.StatusBadRequest, err.Error())
		return
	}
	defer r.Body.Close()

	in.Username = strings.TrimSpace(in.Username)
	if in.Username == "" || in.Password == "" {
		jsonError(w, http.StatusBadRequest, "Username and password required")
		return
	}

	user, err := queryUserByCredentials(r.Context(), in.Username, hashPassword(in.Password))
	if err == sql.ErrNoRows {
		jsonError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	} else if err != nil {
		respondError(w, fmt.Errorf("could not query user: %w", err))
		return
	}

	// Logging in replaces whatever session the visitor held before.
	if old, ok := sessionFromRequest(r); ok {
		sessionStore.Destroy(old.ID)
	}

	sess, err := sessionStore.Issue(user.Username, user.Roles)
	if err != nil {
		respondError(w, fmt.Errorf("could not issue session: %w", err))
		return
	}

	if err := setSessionCookie(w, r, sess.ID); err != nil {
		respondError(w, err)
		return
	}

	respondWhoami(w, sess)
}

// GET /api/auth
//
// Always answers with a session id: a visitor without one gets a fresh
// anonymous session, which is what the frontend later hands to /ws.
func whoami(w http.ResponseWriter, r *http.Request) {
	sess, ok := sessionFromRequest(r)
	if !ok {
		var err error
		if sess, err = sessionStore.Issue("", nil); err != nil {
			respondError(w, fmt.Errorf("could not issue session: %w", err))
			return
		}
		if err = setSessionCookie(w, r, sess.ID); err != nil {
			respondError(w, err)
			return
		}
	}

	respondWhoami(w, sess)
}

// DELETE /api/auth
func logout(w http.ResponseWriter, r *http.Request) {
	if sess, ok := sessionFromRequest(r); ok {
		sessionStore.Destroy(sess.ID)
	}

	sess, err := sessionStore.Issue("", nil)
	if err != nil {
		respondError(w, fmt.Errorf("could not issue session: %w", err))
		return
	}
	if err = setSessionCookie(w, r, sess.ID); err != nil {
		respondError(w, err)
		return
	}

	respondWhoami(w, sess)
}

func respondWhoami(w http.ResponseWriter, sess Session) {
	data := map[string]interface{}{"sessionid": sess.ID}
	if sess.Username != "" {
		data["username"] = sess.Username
		data["roles"] = sess.Roles
	}
	respond(w, data, http.StatusOK)
}

// requireRole guards a handler behind an authenticated session holding
// at least one of the allowed roles.
func requireRole(allowed ...int64) func(http.HandlerFunc) http.HandlerFunc {
	return func(handler http.HandlerFunc) http.HandlerFunc {
		guarded := func(w http.ResponseWriter, r *http.Request) {
			sess, ok := sessionFromRequest(r)
			if !ok || sess.Username == "" {
				jsonError(w, http.StatusUnauthorized, "Unauthorized")
				return
			}

			if !rolesIntersect(allowed, sess.Roles) {
				jsonError(w, http.StatusForbidden, "Permission denied")
				return
			}

			ctx := r.Context()
			ctx = context.WithValue(ctx, keyAuthUsername, sess.Username)
			ctx = context.WithValue(ctx, keySessionID, sess.ID)

			handler(w, r.WithContext(ctx))
		}
		return guarded
	}
}

func rolesIntersect(allowed, held []int64) bool {
	lookup := make(map[int64]struct{}, len(held))
	for _, role := range held {
		lookup[role] = struct{}{}
	}
	for _, role := range allowed {
		if _, ok := lookup[role]; ok {
			return true
		}
	}
	return false
}

func hashPassword(password string) string {
	sum := sha256.Sum256([]byte(password))
	return base64.StdEncoding.EncodeToString(sum[:])
}
