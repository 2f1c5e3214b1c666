package server

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/webforum-dev/webforum/internal/registry"
	"github.com/webforum-dev/webforum/internal/storage/fs"
	"github.com/webforum-dev/webforum/shared/config"
	"github.com/webforum-dev/webforum/shared/protocol"
)

// panickyHandler crashes on a chosen username and otherwise echoes success.
type panickyHandler struct {
	panicOn string

	mu      sync.Mutex
	handled []string
}

func (p *panickyHandler) Handle(req protocol.Event, send func(protocol.Event)) {
	if req.Username == p.panicOn {
		panic("boom")
	}
	p.mu.Lock()
	p.handled = append(p.handled, req.Username)
	p.mu.Unlock()
	send(protocol.Event{Action: req.Action, Status: protocol.Success, Username: req.Username, Content: "Success"})
}

func startDispatcher(t *testing.T, handler RequestHandler, poolSize int) *Dispatcher {
	t.Helper()
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	d := NewDispatcher(conn, handler, poolSize)
	go d.Run()
	t.Cleanup(func() { d.Close() })
	return d
}

func sendDatagram(t *testing.T, target net.Addr, e protocol.Event) net.Conn {
	t.Helper()
	conn, err := net.Dial("udp", target.String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	data, err := e.Encode()
	require.NoError(t, err)
	_, err = conn.Write(data)
	require.NoError(t, err)
	return conn
}

func readReply(t *testing.T, conn net.Conn) protocol.Event {
	t.Helper()
	buf := make([]byte, protocol.MaxMessageSize)
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	n, err := conn.Read(buf)
	require.NoError(t, err)

	reply, err := protocol.Decode(buf[:n])
	require.NoError(t, err)
	return reply
}

func TestDispatcherRepliesToSender(t *testing.T) {
	h := &panickyHandler{}
	d := startDispatcher(t, h, 4)

	conn := sendDatagram(t, d.Addr(), protocol.Event{Action: protocol.Login, Status: protocol.FromClient, Username: "alice", Content: "pw"})
	reply := readReply(t, conn)

	assert.Equal(t, protocol.Login, reply.Action)
	assert.Equal(t, protocol.Success, reply.Status)
	assert.Equal(t, "alice", reply.Username)
}

func TestWorkerPanicDoesNotKillDispatcher(t *testing.T) {
	h := &panickyHandler{panicOn: "mallory"}
	d := startDispatcher(t, h, 2)

	sendDatagram(t, d.Addr(), protocol.Event{Action: protocol.Login, Status: protocol.FromClient, Username: "mallory", Content: "pw"})

	// the dispatcher keeps serving other requests after the crash
	conn := sendDatagram(t, d.Addr(), protocol.Event{Action: protocol.Login, Status: protocol.FromClient, Username: "alice", Content: "pw"})
	reply := readReply(t, conn)
	assert.Equal(t, "alice", reply.Username)
}

func TestMalformedDatagramIsDropped(t *testing.T) {
	h := &panickyHandler{}
	d := startDispatcher(t, h, 2)

	conn, err := net.Dial("udp", d.Addr().String())
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	_, err = conn.Write([]byte("complete garbage"))
	require.NoError(t, err)

	// a valid request afterwards is still served
	good := sendDatagram(t, d.Addr(), protocol.Event{Action: protocol.Exit, Status: protocol.FromClient, Username: "alice", Content: "exit"})
	reply := readReply(t, good)
	assert.Equal(t, protocol.Exit, reply.Action)
}

// TestServerEndToEnd drives the real handler through the dispatcher over
// loopback UDP.
func TestServerEndToEnd(t *testing.T) {
	storage, err := fs.New(t.TempDir())
	require.NoError(t, err)

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	t.Cleanup(func() { listener.Close() })
	acceptor := NewAcceptor(listener)
	go acceptor.Run()

	cfg := config.Default()
	users := registry.NewUsers(storage)
	threads := registry.NewThreads(storage)
	handler := NewHandler(users, threads, storage, acceptor, cfg)
	d := startDispatcher(t, handler, cfg.Server.WorkerPoolSize)

	login := sendDatagram(t, d.Addr(), protocol.Event{Action: protocol.Login, Status: protocol.FromClient, Username: "alice", Content: "pw"})
	assert.Equal(t, protocol.Success, readReply(t, login).Status)

	crt := sendDatagram(t, d.Addr(), protocol.Event{Action: protocol.CreateThread, Status: protocol.FromClient, Username: "alice", Content: "general"})
	reply := readReply(t, crt)
	assert.Equal(t, protocol.Success, reply.Status)
	assert.Equal(t, "Thread general created", reply.Content)

	msg := sendDatagram(t, d.Addr(), protocol.Event{Action: protocol.PostMessage, Status: protocol.FromClient, Username: "alice", Content: "general hello world"})
	assert.Equal(t, protocol.Success, readReply(t, msg).Status)

	rdt := sendDatagram(t, d.Addr(), protocol.Event{Action: protocol.ReadThread, Status: protocol.FromClient, Username: "alice", Content: "general"})
	reply = readReply(t, rdt)
	assert.Equal(t, protocol.Success, reply.Status)
	assert.Equal(t, "1 alice: hello world", reply.Content)
}
