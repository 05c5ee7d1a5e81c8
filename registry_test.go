package main

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"
)

// captureConn records every payload enqueued on it; err makes every
// enqueue fail.
type captureConn struct {
	mu       sync.Mutex
	payloads [][]byte
	err      error
}

func (c *captureConn) Enqueue(payload []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return c.err
	}
	c.payloads = append(c.payloads, payload)
	return nil
}

func (c *captureConn) received() [][]byte {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([][]byte, len(c.payloads))
	copy(out, c.payloads)
	return out
}

func TestRegistry_RegisterAndLookup(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	conn := &captureConn{}

	// Given an empty registry
	_, ok := reg.Lookup("s1")
	req.False(ok)

	// When a connection registers
	reg.Register("s1", conn)

	// Then it is reachable by its session id
	got, ok := reg.Lookup("s1")
	req.True(ok)
	req.Same(conn, got)
	req.True(reg.Contains("s1"))
}

func TestRegistry_RegisterReplacesPreviousConnection(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	first := &captureConn{}
	second := &captureConn{}

	// Given a registered connection
	reg.Register("s1", first)

	// When a new connection registers under the same session id
	reg.Register("s1", second)

	// Then only the most recently registered one is reachable
	got, ok := reg.Lookup("s1")
	req.True(ok)
	req.Same(second, got)
}

func TestRegistry_UnregisterRemovesConnection(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	reg.Register("s1", &captureConn{})

	reg.Unregister("s1")

	req.False(reg.Contains("s1"))
}

func TestRegistry_UnregisterUnknownSessionIsNoOp(t *testing.T) {
	req := require.New(t)
	reg := NewRegistry()
	reg.Register("s1", &captureConn{})

	// When a session that was never registered unregisters
	reg.Unregister("never-registered")

	// Then existing state is untouched
	req.True(reg.Contains("s1"))
}

func TestRegistry_ConcurrentAccess(t *testing.T) {
	reg := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		sessionID := fmt.Sprintf("s%d", i%10)
		wg.Add(3)
		go func() {
			defer wg.Done()
			reg.Register(sessionID, &captureConn{})
		}()
		go func() {
			defer wg.Done()
			reg.Lookup(sessionID)
		}()
		go func() {
			defer wg.Done()
			reg.Unregister(sessionID)
		}()
	}
	wg.Wait()
}
