package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	statusDelivered = "delivered"
	statusRead      = "read"

	chatHistoryLimit   = 50
	maxChatUploadBytes = 10 << 20
)

// ChatMessage model. A message carries text, an image reference, or
// both; status is only ever flipped by the bulk mark-as-read path.
type ChatMessage struct {
	ID        string    `json:"id"`
	Sender    string    `json:"sender"`
	Receiver  string    `json:"receiver"`
	Message   string    `json:"message,omitempty"`
	Image     string    `json:"image,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	Status    string    `json:"status"`
}

// MessageStore is the durable side of the chat feature, consumed by
// both the REST handlers and the websocket protocol handler.
type MessageStore interface {
	Append(ctx context.Context, msg ChatMessage) error
	QueryRecent(ctx context.Context, user1, user2 string, limit int) ([]ChatMessage, error)
	// MarkRead flips every delivered message from sender to receiver
	// to read.
	MarkRead(ctx context.Context, sender, receiver string) error
}

type pgMessageStore struct {
	db *sql.DB
}

func (s *pgMessageStore) Append(ctx context.Context, msg ChatMessage) error {
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO chat (id, sender, receiver, message, image, timestamp, status) VALUES
			($1, $2, $3, $4, $5, $6, $7)
	`, msg.ID, msg.Sender, msg.Receiver,
		nullableString(msg.Message), nullableString(msg.Image),
		msg.Timestamp, msg.Status); err != nil {
		return fmt.Errorf("could not insert chat message: %w", err)
	}
	return nil
}

// QueryRecent returns the newest messages between the pair in either
// direction, newest first. With an empty pair it returns the newest
// messages overall.
func (s *pgMessageStore) QueryRecent(ctx context.Context, user1, user2 string, limit int) ([]ChatMessage, error) {
	query := `
		SELECT id, sender, receiver, message, image, timestamp, status
		FROM chat`
	args := []interface{}{}

	if user1 != "" && user2 != "" {
		query += `
		WHERE (sender = $1 AND receiver = $2)
			OR (sender = $2 AND receiver = $1)`
		args = append(args, user1, user2)
	}

	args = append(args, limit)
	query += fmt.Sprintf(`
		ORDER BY timestamp DESC
		LIMIT $%d`, len(args))

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("could not query chat messages: %w", err)
	}
	defer rows.Close()

	msgs := make([]ChatMessage, 0)
	for rows.Next() {
		var msg ChatMessage
		var message, image sql.NullString
		if err = rows.Scan(
			&msg.ID,
			&msg.Sender,
			&msg.Receiver,
			&message,
			&image,
			&msg.Timestamp,
			&msg.Status,
		); err != nil {
			return nil, fmt.Errorf("could not scan chat message: %w", err)
		}
		msg.Message = message.String
		msg.Image = image.String
		msgs = append(msgs, msg)
	}

	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("could not iterate over chat messages: %w", err)
	}
	return msgs, nil
}

func (s *pgMessageStore) MarkRead(ctx context.Context, sender, receiver string) error {
	if _, err := s.db.ExecContext(ctx, `
		UPDATE chat SET status = $1
		WHERE sender = $2 AND receiver = $3 AND status != $1
	`, statusRead, sender, receiver); err != nil {
		return fmt.Errorf("could not mark chat messages as read: %w", err)
	}
	return nil
}

func nullableString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// GET /api/chat?user1={user1}&user2={user2}
func getChatHistory(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	user1 := strings.TrimSpace(q.Get("user1"))
	user2 := strings.TrimSpace(q.Get("user2"))

	msgs, err := messages.QueryRecent(r.Context(), user1, user2, chatHistoryLimit)
	if err != nil {
		respondError(w, fmt.Errorf("could not query chat history: %w", err))
		return
	}

	respond(w, msgs, http.StatusOK)
}

// POST /api/chat
//
// Accepts either a JSON body or a multipart form with an optional image
// upload. Creation over REST does not fan out to live sockets; the
// client that wants live delivery sends over the websocket instead.
func createChatMessage(w http.ResponseWriter, r *http.Request) {
	var in struct {
		Sender   string `json:"sender"`
		Receiver string `json:"receiver"`
		Message  string `json:"message"`
		Image    string `json:"image"`
	}

	if ct := r.Header.Get("Content-Type"); strings.HasPrefix(ct, "multipart/form-data") {
		if err := r.ParseMultipartForm(maxChatUploadBytes); err != nil {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		in.Sender = r.FormValue("sender")
		in.Receiver = r.FormValue("receiver")
		in.Message = r.FormValue("message")

		if file, header, err := r.FormFile("image"); err == nil {
			defer file.Close()
			name, err := saveUpload(file, header.Filename)
			if err != nil {
				respondError(w, fmt.Errorf("could not save chat image: %w", err))
				return
			}
			in.Image = name
		}
	} else {
		if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
			jsonError(w, http.StatusBadRequest, err.Error())
			return
		}
		defer r.Body.Close()
	}

	if in.Sender == "" || in.Receiver == "" || (in.Message == "" && in.Image == "") {
		jsonError(w, http.StatusBadRequest, "Missing required fields.")
		return
	}

	msg := ChatMessage{
		ID:        uuid.NewString(),
		Sender:    in.Sender,
		Receiver:  in.Receiver,
		Message:   in.Message,
		Image:     in.Image,
		Timestamp: time.Now(),
		Status:    statusDelivered,
	}

	if err := messages.Append(r.Context(), msg); err != nil {
		respondError(w, fmt.Errorf("could not store chat message: %w", err))
		return
	}

	respond(w, map[string]interface{}{
		"success": true,
		"message": "Message stored successfully.",
	}, http.StatusCreated)
}
