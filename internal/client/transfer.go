package client

import (
	"fmt"
	"io"
	"net"
	"strings"
	"time"
)

const streamDialTimeout = 5 * time.Second

// Transfer opens data-channel connections for bulk file movement. Every
// connection starts with the session token line from the negotiation reply
// so the server can correlate the stream to the right worker.
type Transfer struct {
	serverAddr string
	bufferSize int
}

func NewTransfer(serverAddr string, bufferSize int) *Transfer {
	return &Transfer{serverAddr: serverAddr, bufferSize: bufferSize}
}

// ParseReadyToken extracts the session token from a "ready <token>" reply.
func ParseReadyToken(content string) (string, error) {
	fields := strings.Fields(content)
	if len(fields) != 2 || fields[0] != "ready" {
		return "", fmt.Errorf("unexpected negotiation reply: %q", content)
	}
	return fields[1], nil
}

func (t *Transfer) dial(token string) (net.Conn, error) {
	conn, err := net.DialTimeout("tcp", t.serverAddr, streamDialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to open data connection: %w", err)
	}
	if _, err := fmt.Fprintf(conn, "%s\n", token); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to send session token: %w", err)
	}
	return conn, nil
}

// Upload streams src to the server, half-closes to signal end-of-stream,
// then reads the server's textual acknowledgment.
func (t *Transfer) Upload(token string, src io.Reader) error {
	conn, err := t.dial(token)
	if err != nil {
		return err
	}
	defer conn.Close()

	buf := make([]byte, t.bufferSize)
	if _, err := io.CopyBuffer(conn, src, buf); err != nil {
		return fmt.Errorf("failed to stream upload: %w", err)
	}
	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.CloseWrite()
	}

	ackBuf := make([]byte, 1024)
	if _, err := conn.Read(ackBuf); err != nil && err != io.EOF {
		return fmt.Errorf("no upload ack from server: %w", err)
	}
	return nil
}

// Download reads the payload until the server signals end-of-stream, then
// writes the textual acknowledgment back on the same connection.
func (t *Transfer) Download(token string, dst io.Writer) error {
	conn, err := t.dial(token)
	if err != nil {
		return err
	}
	defer conn.Close()

	buf := make([]byte, t.bufferSize)
	if _, err := io.CopyBuffer(dst, conn, buf); err != nil {
		return fmt.Errorf("failed to stream download: %w", err)
	}

	if _, err := conn.Write([]byte("Success")); err != nil {
		return fmt.Errorf("failed to send download ack: %w", err)
	}
	return nil
}
