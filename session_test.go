package main

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestSessionStore_IssueLookupDestroy(t *testing.T) {
	req := require.New(t)
	store := NewSessionStore()

	// When a session is issued for an authenticated user
	sess, err := store.Issue("alice", []int64{roleUser})
	req.NoError(err)
	req.NotEmpty(sess.ID)
	req.Equal("alice", sess.Username)
	req.False(sess.CreatedAt.IsZero())

	// Then it can be looked up by id
	got, ok := store.Lookup(sess.ID)
	req.True(ok)
	req.Equal(sess, got)

	// And destroying it makes it unknown
	store.Destroy(sess.ID)
	_, ok = store.Lookup(sess.ID)
	req.False(ok)

	// Destroying again is a no-op
	store.Destroy(sess.ID)
}

func TestSessionStore_IssuesDistinctIDsPerLogin(t *testing.T) {
	req := require.New(t)
	store := NewSessionStore()

	// The same user logging in twice holds two live sessions
	first, err := store.Issue("alice", []int64{roleUser})
	req.NoError(err)
	second, err := store.Issue("alice", []int64{roleUser})
	req.NoError(err)

	req.NotEqual(first.ID, second.ID)

	sessions, err := store.EnumerateActiveSessions()
	req.NoError(err)
	req.Len(sessions, 2)
}

func TestSessionStore_EnumerateReturnsSnapshot(t *testing.T) {
	req := require.New(t)
	store := NewSessionStore()

	_, err := store.Issue("alice", []int64{roleUser})
	req.NoError(err)

	snapshot, err := store.EnumerateActiveSessions()
	req.NoError(err)
	req.Len(snapshot, 1)

	// Mutating the store after enumeration leaves the snapshot alone
	_, err = store.Issue("bob", []int64{roleUser})
	req.NoError(err)
	req.Len(snapshot, 1)
}

func TestSessionStore_AnonymousSession(t *testing.T) {
	req := require.New(t)
	store := NewSessionStore()

	sess, err := store.Issue("", nil)
	req.NoError(err)
	req.Empty(sess.Username)
	req.Empty(sess.Roles)
}
