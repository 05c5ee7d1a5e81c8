package main

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/google/uuid"
	"github.com/lib/pq"
	gonanoid "github.com/matoous/go-nanoid"
)

// GithubUser data.
type GithubUser struct {
	ID    int64  `json:"id"`
	Login string `json:"login"`
}

// GET /api/oauth/github
func githubOAuthStart(w http.ResponseWriter, r *http.Request) {
	state, err := gonanoid.Nanoid()
	if err != nil {
		respondError(w, fmt.Errorf("could not generate state: %w", err))
		return
	}

	stateCookieValue, err := cookieSigner.Encode("state", state)
	if err != nil {
		respondError(w, fmt.Errorf("could not encode state cookie: %w", err))
		return
	}

	http.SetCookie(w, &http.Cookie{
		Name:     "state",
		Value:    stateCookieValue,
		Path:     "/api/oauth/github",
		HttpOnly: true,
		Secure:   r.TLS != nil,
		SameSite: http.SameSiteLaxMode,
	})
	http.Redirect(w, r, githubOAuthConfig.AuthCodeURL(state), http.StatusTemporaryRedirect)
}

// GET /api/oauth/github/callback
//
// Exchanges the code, upserts the account with the ordinary user role,
// and issues a session like the JSON login path does.
func githubOAuthCallback(w http.ResponseWriter, r *http.Request) {
	stateCookie, err := r.Cookie("state")
	if err != nil {
		jsonError(w, http.StatusBadRequest, "OAuth state missing")
		return
	}

	http.SetCookie(w, &http.Cookie{Name: "state", Value: "", MaxAge: -1})

	var state string
	if err = cookieSigner.Decode("state", stateCookie.Value, &state); err != nil {
		jsonError(w, http.StatusBadRequest, "OAuth state invalid")
		return
	}

	q := r.URL.Query()

	if state != q.Get("state") {
		jsonError(w, http.StatusBadRequest, "OAuth state mismatch")
		return
	}

	ctx := r.Context()

	t, err := githubOAuthConfig.Exchange(ctx, q.Get("code"))
	if err != nil {
		respondError(w, fmt.Errorf("could not fetch github token: %w", err))
		return
	}

	client := githubOAuthConfig.Client(ctx, t)
	resp, err := client.Get("https://api.github.com/user")
	if err != nil {
		respondError(w, fmt.Errorf("could not fetch github user: %w", err))
		return
	}
	defer resp.Body.Close()

	var githubUser GithubUser
	if err = json.NewDecoder(resp.Body).Decode(&githubUser); err != nil {
		respondError(w, fmt.Errorf("could not decode github user: %w", err))
		return
	}

	var user User
	if err = db.QueryRowContext(ctx, `
		SELECT id, username, roles FROM users WHERE github_id = $1
	`, githubUser.ID).Scan(&user.ID, &user.Username, pq.Array(&user.Roles)); err == sql.ErrNoRows {
		user = User{
			ID:       uuid.NewString(),
			Username: githubUser.Login,
			Roles:    []int64{roleUser},
		}
		if _, err = db.ExecContext(ctx, `
			INSERT INTO users (id, username, password, roles, github_id) VALUES
				($1, $2, '', $3, $4)
		`, user.ID, user.Username, pq.Array(user.Roles), githubUser.ID); err != nil {
			respondError(w, fmt.Errorf("could not insert github user: %w", err))
			return
		}
	} else if err != nil {
		respondError(w, fmt.Errorf("could not query user by github ID: %w", err))
		return
	}

	sess, err := sessionStore.Issue(user.Username, user.Roles)
	if err != nil {
		respondError(w, fmt.Errorf("could not issue session: %w", err))
		return
	}
	if err = setSessionCookie(w, r, sess.ID); err != nil {
		respondError(w, err)
		return
	}

	http.Redirect(w, r, origin.String(), http.StatusTemporaryRedirect)
}
