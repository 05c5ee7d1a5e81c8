package main

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
)

const (
	frameTypeReadReceipt = "read-receipt"

	writeWait     = time.Second * 10
	sendQueueSize = 32
)

var errSendQueueFull = errors.New("send queue full")
var errConnClosed = errors.New("connection closed")

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// inboundFrame is the wire shape of every client frame. The protocol
// has no discriminator for chat messages: any frame whose type is not
// "read-receipt" is a chat message. That convention is part of the
// client contract and is preserved here as an explicit classification
// step.
type inboundFrame struct {
	Type    string `json:"type,omitempty"`
	From    string `json:"from"`
	To      string `json:"to"`
	Message string `json:"message,omitempty"`
	Image   string `json:"image,omitempty"`
}

type frameKind int

const (
	frameMalformed frameKind = iota
	frameInvalid
	frameReadReceipt
	frameChat
)

func classifyFrame(raw []byte) (inboundFrame, frameKind) {
	var frame inboundFrame
	if err := json.Unmarshal(raw, &frame); err != nil {
		return frame, frameMalformed
	}

	if frame.Type == frameTypeReadReceipt {
		if frame.From == "" || frame.To == "" {
			return frame, frameInvalid
		}
		return frame, frameReadReceipt
	}

	if frame.From == "" || frame.To == "" || (frame.Message == "" && frame.Image == "") {
		return frame, frameInvalid
	}
	return frame, frameChat
}

// wsConn is one live socket. Reads happen on the handler goroutine;
// writes are funneled through the send queue so a slow client never
// stalls a fan-out. The mutex orders Enqueue against shutdown: a
// dispatcher holding a registry lookup from just before teardown gets
// a delivery error, never a send on a closed channel.
type wsConn struct {
	sessionID string
	socket    *websocket.Conn

	mu     sync.Mutex
	send   chan []byte
	closed bool
}

func (c *wsConn) Enqueue(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return errConnClosed
	}

	select {
	case c.send <- payload:
		return nil
	default:
		return errSendQueueFull
	}
}

// shutdown stops the write pump. Only the read loop calls it, exactly
// once, after unregistering.
func (c *wsConn) shutdown() {
	c.mu.Lock()
	c.closed = true
	close(c.send)
	c.mu.Unlock()
}

func (c *wsConn) writePump() {
	defer c.socket.Close()

	for payload := range c.send {
		c.socket.SetWriteDeadline(time.Now().Add(writeWait))
		if err := c.socket.WriteMessage(websocket.TextMessage, payload); err != nil {
			log.Printf("could not write to websocket of session %s: %v\n", c.sessionID, err)
			return
		}
	}
	c.socket.WriteMessage(websocket.CloseMessage, []byte{})
}

// GET /ws?sessionID={sessionID}
func serveWS(w http.ResponseWriter, r *http.Request) {
	socket, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("could not upgrade websocket connection: %v\n", err)
		return
	}

	conn := &wsConn{
		sessionID: r.URL.Query().Get("sessionID"),
		socket:    socket,
		send:      make(chan []byte, sendQueueSize),
	}

	// A connection without a session identifier stays open and may send
	// frames, but it can never be the target of a delivery.
	if conn.sessionID != "" {
		registry.Register(conn.sessionID, conn)
		log.Printf("websocket associated with session %s\n", conn.sessionID)
	}

	go conn.writePump()
	conn.readLoop()
}

func (c *wsConn) readLoop() {
	defer func() {
		if c.sessionID != "" {
			registry.Unregister(c.sessionID)
		}
		c.shutdown()
		c.socket.Close()
	}()

	for {
		_, raw, err := c.socket.ReadMessage()
		if err != nil {
			return
		}
		protocol.HandleFrame(context.Background(), raw)
	}
}

// protocolHandler is the state-free per-frame logic: classify the
// frame, persist its side effects, fan it out. Errors are logged and
// swallowed; nothing is ever reported back over the socket.
type protocolHandler struct {
	store      MessageStore
	dispatcher *Dispatcher
}

func (h *protocolHandler) HandleFrame(ctx context.Context, raw []byte) {
	frame, kind := classifyFrame(raw)
	switch kind {
	case frameMalformed:
		log.Printf("discarding malformed websocket frame\n")
	case frameInvalid:
		log.Printf("discarding invalid websocket frame from %q to %q\n", frame.From, frame.To)
	case frameReadReceipt:
		h.handleReadReceipt(ctx, frame)
	case frameChat:
		h.handleChat(ctx, frame, raw)
	}
}

// handleReadReceipt flips the delivered messages of one conversation
// direction to read and echoes the receipt to their author. The reader
// is frame.From; the author being notified is frame.To.
func (h *protocolHandler) handleReadReceipt(ctx context.Context, frame inboundFrame) {
	if err := h.store.MarkRead(ctx, frame.To, frame.From); err != nil {
		log.Printf("could not mark messages as read: %v\n", err)
		return
	}

	echo, err := json.Marshal(inboundFrame{
		Type: frameTypeReadReceipt,
		From: frame.From,
		To:   frame.To,
	})
	if err != nil {
		log.Printf("could not marshal read receipt: %v\n", err)
		return
	}

	h.dispatcher.DeliverToIdentity(frame.To, echo)
}

func (h *protocolHandler) handleChat(ctx context.Context, frame inboundFrame, raw []byte) {
	msg := ChatMessage{
		ID:        uuid.NewString(),
		Sender:    frame.From,
		Receiver:  frame.To,
		Message:   frame.Message,
		Image:     frame.Image,
		Timestamp: time.Now(),
		Status:    statusDelivered,
	}

	if err := h.store.Append(ctx, msg); err != nil {
		// Durability over availability: an unsaved message is never
		// fanned out.
		log.Printf("could not persist chat message: %v\n", err)
		return
	}

	// The frame is forwarded verbatim so every tab of both parties
	// renders exactly what was sent.
	h.dispatcher.DeliverToIdentities([]string{frame.From, frame.To}, raw)
}
