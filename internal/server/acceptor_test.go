package server

import (
	"fmt"
	"io"
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestAcceptor(t *testing.T) *Acceptor {
	t.Helper()
	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })

	a := NewAcceptor(listener)
	go a.Run()
	return a
}

func dialWithToken(t *testing.T, a *Acceptor, token string) net.Conn {
	t.Helper()
	conn, err := net.Dial("tcp", a.Addr().String())
	require.NoError(t, err)
	_, err = fmt.Fprintf(conn, "%s\n", token)
	require.NoError(t, err)
	return conn
}

func TestAwaitReceivesTokenedConnection(t *testing.T) {
	a := newTestAcceptor(t)
	token := a.Claim()

	client := dialWithToken(t, a, token)
	defer client.Close()
	_, err := client.Write([]byte("payload"))
	require.NoError(t, err)

	conn, err := a.Await(token, time.Second)
	require.NoError(t, err)
	defer conn.Close()

	buf := make([]byte, 7)
	_, err = io.ReadFull(conn, buf)
	require.NoError(t, err)
	// the token line is consumed by routing, the payload is untouched
	assert.Equal(t, "payload", string(buf))
}

func TestAwaitTimesOutWithoutConnection(t *testing.T) {
	a := newTestAcceptor(t)
	token := a.Claim()

	start := time.Now()
	_, err := a.Await(token, 50*time.Millisecond)

	assert.ErrorIs(t, err, ErrTransferTimeout)
	assert.Less(t, time.Since(start), time.Second)
}

func TestUnknownTokenConnectionIsClosed(t *testing.T) {
	a := newTestAcceptor(t)

	conn := dialWithToken(t, a, "bogus-token")
	defer conn.Close()

	// the acceptor closes unknown-token connections; the read unblocks
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	_, err := conn.Read(buf)
	assert.Error(t, err)
}

func TestConcurrentNegotiationsRouteToTheRightWorker(t *testing.T) {
	a := newTestAcceptor(t)

	tokenA := a.Claim()
	tokenB := a.Claim()

	// connect in the opposite order of the claims
	connB := dialWithToken(t, a, tokenB)
	defer connB.Close()
	_, err := connB.Write([]byte("BBBB"))
	require.NoError(t, err)

	connA := dialWithToken(t, a, tokenA)
	defer connA.Close()
	_, err = connA.Write([]byte("AAAA"))
	require.NoError(t, err)

	var wg sync.WaitGroup
	results := make(map[string]string)
	var mu sync.Mutex
	for token, want := range map[string]string{tokenA: "AAAA", tokenB: "BBBB"} {
		wg.Add(1)
		go func(token, want string) {
			defer wg.Done()
			conn, err := a.Await(token, 2*time.Second)
			if !assert.NoError(t, err) {
				return
			}
			defer conn.Close()

			buf := make([]byte, 4)
			if !assert.NoError(t, readFull(conn, buf)) {
				return
			}
			mu.Lock()
			results[want] = string(buf)
			mu.Unlock()
		}(token, want)
	}
	wg.Wait()

	// each worker got the stream that presented its own token
	assert.Equal(t, map[string]string{"AAAA": "AAAA", "BBBB": "BBBB"}, results)
}

func readFull(conn net.Conn, buf []byte) error {
	_, err := io.ReadFull(conn, buf)
	return err
}

func TestReleaseClosesRoutedConnection(t *testing.T) {
	a := newTestAcceptor(t)
	token := a.Claim()

	conn := dialWithToken(t, a, token)
	defer conn.Close()

	// give the acceptor a moment to route the connection
	time.Sleep(100 * time.Millisecond)
	a.Release(token)

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	buf := make([]byte, 1)
	_, err := conn.Read(buf)
	assert.Error(t, err)
}
