package main

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"
)

// fakeDirectory serves a fixed session snapshot.
type fakeDirectory struct {
	sessions []Session
	err      error
}

func (d *fakeDirectory) EnumerateActiveSessions() ([]Session, error) {
	return d.sessions, d.err
}

func TestDispatcher_DeliversToEverySessionOfIdentity(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	s1 := &captureConn{}
	s3 := &captureConn{}
	reg.Register("s1", s1)
	reg.Register("s3", s3)

	// Given alice holds two live sessions
	directory := &fakeDirectory{sessions: []Session{
		{ID: "s1", Username: "alice"},
		{ID: "s3", Username: "alice"},
	}}
	d := NewDispatcher(directory, reg)

	// When a payload is delivered to alice
	d.DeliverToIdentity("alice", []byte("hello"))

	// Then each of her sessions receives exactly one copy
	req.Len(s1.received(), 1)
	req.Len(s3.received(), 1)
	req.Equal([]byte("hello"), s1.received()[0])
}

func TestDispatcher_DeliversOncePerSession(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	s1 := &captureConn{}
	s2 := &captureConn{}
	reg.Register("s1", s1)
	reg.Register("s2", s2)

	directory := &fakeDirectory{sessions: []Session{
		{ID: "s1", Username: "alice"},
		{ID: "s2", Username: "bob"},
	}}
	d := NewDispatcher(directory, reg)

	// When both parties of a conversation are notified, with the sender
	// listed twice
	d.DeliverToIdentities([]string{"alice", "bob", "alice"}, []byte("hi"))

	// Then every live session still receives exactly one copy
	req.Len(s1.received(), 1)
	req.Len(s2.received(), 1)
}

func TestDispatcher_SkipsSessionsWithoutLiveConnection(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	s1 := &captureConn{}
	reg.Register("s1", s1)

	// Given a session that logged in but never opened a socket
	directory := &fakeDirectory{sessions: []Session{
		{ID: "s1", Username: "alice"},
		{ID: "s2", Username: "alice"},
	}}
	d := NewDispatcher(directory, reg)

	d.DeliverToIdentity("alice", []byte("hello"))

	// Then the miss is a non-delivery, not an error
	req.Len(s1.received(), 1)
}

func TestDispatcher_ContinuesAfterFailedWrite(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	broken := &captureConn{err: errors.New("socket gone")}
	healthy := &captureConn{}
	reg.Register("s1", broken)
	reg.Register("s2", healthy)

	directory := &fakeDirectory{sessions: []Session{
		{ID: "s1", Username: "alice"},
		{ID: "s2", Username: "alice"},
	}}
	d := NewDispatcher(directory, reg)

	// When delivery to the first session fails
	d.DeliverToIdentity("alice", []byte("hello"))

	// Then the remaining recipients are unaffected
	req.Len(healthy.received(), 1)
}

func TestDispatcher_AbortsWhenEnumerationFails(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	s1 := &captureConn{}
	reg.Register("s1", s1)

	directory := &fakeDirectory{err: errors.New("directory unavailable")}
	d := NewDispatcher(directory, reg)

	d.DeliverToIdentity("alice", []byte("hello"))

	// No partial delivery is attempted
	req.Empty(s1.received())
}

func TestDispatcher_IgnoresAnonymousIdentities(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	anon := &captureConn{}
	reg.Register("s9", anon)

	// Given an anonymous session with an empty username
	directory := &fakeDirectory{sessions: []Session{
		{ID: "s9", Username: ""},
	}}
	d := NewDispatcher(directory, reg)

	// When an empty identity slips into the target set
	d.DeliverToIdentities([]string{""}, []byte("hello"))

	// Then anonymous connections are never targeted
	req.Empty(anon.received())
}
