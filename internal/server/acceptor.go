package server

import (
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/webforum-dev/webforum/shared/logger"
)

// tokenReadTimeout bounds how long a freshly accepted connection may take to
// present its session token before it is dropped.
const tokenReadTimeout = 5 * time.Second

// maxTokenLine caps the token line; uuid tokens are 36 bytes.
const maxTokenLine = 128

var ErrTransferTimeout = errors.New("no data-channel connection arrived for token")

// Acceptor is the single owner of the TCP listener. Workers never call
// Accept themselves: each UPD/DWN negotiation claims a session token, the
// client writes that token as the first line on its stream connection, and
// the acceptor routes the connection to whichever worker claimed the token.
// This correlates a data-channel connection to its control-plane request
// even when several transfers are being negotiated at once.
type Acceptor struct {
	listener net.Listener

	mu      sync.Mutex
	pending map[string]chan net.Conn
}

func NewAcceptor(listener net.Listener) *Acceptor {
	return &Acceptor{
		listener: listener,
		pending:  make(map[string]chan net.Conn),
	}
}

// Addr reports the data-channel address, useful when listening on :0.
func (a *Acceptor) Addr() net.Addr {
	return a.listener.Addr()
}

// Run accepts stream connections until the listener is closed.
func (a *Acceptor) Run() {
	for {
		conn, err := a.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logger.Log.Error("accept failed", "error", err)
			continue
		}
		go a.route(conn)
	}
}

// route reads the token line off a new connection and hands the connection
// to the waiting worker. Unknown or absent tokens close the connection.
func (a *Acceptor) route(conn net.Conn) {
	conn.SetReadDeadline(time.Now().Add(tokenReadTimeout))
	token, err := readTokenLine(conn)
	if err != nil {
		logger.Log.Warn("data connection sent no token", "remote", conn.RemoteAddr(), "error", err)
		conn.Close()
		return
	}
	conn.SetReadDeadline(time.Time{})

	a.mu.Lock()
	ch, ok := a.pending[token]
	if ok {
		delete(a.pending, token)
	}
	a.mu.Unlock()

	if !ok {
		logger.Log.Warn("data connection presented unknown token", "remote", conn.RemoteAddr())
		conn.Close()
		return
	}
	ch <- conn
}

// readTokenLine reads up to the first newline one byte at a time, so none of
// the payload that follows is consumed from the connection.
func readTokenLine(conn net.Conn) (string, error) {
	var line []byte
	buf := make([]byte, 1)
	for len(line) < maxTokenLine {
		if _, err := conn.Read(buf); err != nil {
			return "", err
		}
		if buf[0] == '\n' {
			return strings.TrimSpace(string(line)), nil
		}
		line = append(line, buf[0])
	}
	return "", errors.New("token line too long")
}

// Claim registers a new session token and returns it. The caller must either
// Await the connection or Release the token.
func (a *Acceptor) Claim() string {
	token := uuid.NewString()
	a.mu.Lock()
	a.pending[token] = make(chan net.Conn, 1)
	a.mu.Unlock()
	return token
}

// Await blocks until the client's stream connection for the token arrives or
// the timeout elapses.
func (a *Acceptor) Await(token string, timeout time.Duration) (net.Conn, error) {
	a.mu.Lock()
	ch, ok := a.pending[token]
	a.mu.Unlock()
	if !ok {
		return nil, ErrTransferTimeout
	}

	select {
	case conn := <-ch:
		return conn, nil
	case <-time.After(timeout):
		a.Release(token)
		// the connection may have been routed while we were releasing
		select {
		case conn := <-ch:
			return conn, nil
		default:
			return nil, ErrTransferTimeout
		}
	}
}

// Release abandons a claimed token. A connection already routed to the
// token's channel is closed.
func (a *Acceptor) Release(token string) {
	a.mu.Lock()
	ch, ok := a.pending[token]
	if ok {
		delete(a.pending, token)
	}
	a.mu.Unlock()

	if ok {
		select {
		case conn := <-ch:
			conn.Close()
		default:
		}
	}
}
