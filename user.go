package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// User model.
type User struct {
	ID       string  `json:"id"`
	Username string  `json:"username"`
	Roles    []int64 `json:"roles"`
}

// ensureSeedUsers creates the default admin and user accounts on first
// start so a fresh deployment is immediately usable.
func ensureSeedUsers(ctx context.Context) error {
	seeds := []struct {
		username string
		password string
		roles    []int64
	}{
		{"admin", "admin", []int64{roleAdmin}},
		{"user", "user", []int64{roleUser}},
	}

	for _, seed := range seeds {
		var exists bool
		if err := db.QueryRowContext(ctx, `SELECT EXISTS (
			SELECT 1 FROM users WHERE username = $1
		)`, seed.username).Scan(&exists); err != nil {
			return fmt.Errorf("could not query user existence: %w", err)
		}

		if exists {
			continue
		}

		if _, err := db.ExecContext(ctx, `
			INSERT INTO users (id, username, password, roles) VALUES
				($1, $2, $3, $4)
		`, uuid.NewString(), seed.username, hashPassword(seed.password), pq.Array(seed.roles)); err != nil {
			return fmt.Errorf("could not insert seed user: %w", err)
		}

		log.Printf("created default account %q\n", seed.username)
	}

	return nil
}

func queryUserByCredentials(ctx context.Context, username, passwordDigest string) (User, error) {
	var user User
	if err := db.QueryRowContext(ctx, `
		SELECT id, roles FROM users
		WHERE username = $1 AND password = $2
	`, username, passwordDigest).Scan(&user.ID, pq.Array(&user.Roles)); err != nil {
		return user, err
	}

	user.Username = username
	return user, nil
}

func queryUsernames(ctx context.Context) ([]string, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT username FROM users ORDER BY username
	`)
	if err != nil {
		return nil, fmt.Errorf("could not query usernames: %w", err)
	}
	defer rows.Close()

	usernames := make([]string, 0)
	for rows.Next() {
		var username string
		if err = rows.Scan(&username); err != nil {
			return nil, fmt.Errorf("could not scan username: %w", err)
		}
		usernames = append(usernames, username)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate over usernames: %w", err)
	}
	return usernames, nil
}

// GET /api/usernames?search={search}
func searchUsernames(w http.ResponseWriter, r *http.Request) {
	search := strings.TrimSpace(r.URL.Query().Get("search"))
	if search == "" {
		jsonError(w, http.StatusUnprocessableEntity, "Search required")
		return
	}

	ctx := r.Context()
	authUsername := ctx.Value(keyAuthUsername).(string)

	rows, err := db.QueryContext(ctx, `
		SELECT username
		FROM users
		WHERE username != $1
			AND username ILIKE $2 || '%'
		ORDER BY username
		LIMIT 5
	`, authUsername, search)
	if err != nil {
		respondError(w, fmt.Errorf("could not query usernames: %w", err))
		return
	}
	defer rows.Close()

	usernames := make([]string, 0)
	for rows.Next() {
		var username string
		if err = rows.Scan(&username); err != nil {
			respondError(w, fmt.Errorf("could not scan username: %w", err))
			return
		}
		usernames = append(usernames, username)
	}

	if err = rows.Err(); err != nil {
		respondError(w, fmt.Errorf("could not iterate over usernames: %w", err))
		return
	}

	respond(w, usernames, http.StatusOK)
}
