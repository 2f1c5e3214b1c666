// Package client implements the client side of the forum protocol: the
// retry/timeout logic for the unreliable control channel, the data-channel
// transfer helpers, and the interactive command loop.
package client

import (
	"errors"
	"fmt"
	"net"
	"os"
	"time"

	"github.com/webforum-dev/webforum/shared/protocol"
)

var (
	// ErrNoReply means the retry budget was exhausted without a matching reply.
	ErrNoReply = errors.New("no valid response from server")
	// ErrUnauthenticated is terminal: the server refused the request before
	// login, so retrying cannot help.
	ErrUnauthenticated = errors.New("server says you're not logged in")
)

// Requester provides send(request) -> reply over a connected UDP socket.
// Each attempt transmits the request and waits up to ReplyTimeout; replies
// whose action code does not match are stray traffic and are discarded,
// with the next read re-arming the timeout.
type Requester struct {
	conn         net.Conn
	replyTimeout time.Duration
	maxRetries   int

	// transmissions made by the most recent Send, for observability
	lastTransmissions int
}

func NewRequester(serverAddr string, replyTimeout time.Duration, maxRetries int) (*Requester, error) {
	conn, err := net.Dial("udp", serverAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to dial server: %w", err)
	}
	return &Requester{conn: conn, replyTimeout: replyTimeout, maxRetries: maxRetries}, nil
}

func (r *Requester) Close() error {
	return r.conn.Close()
}

// LastTransmissions reports how many datagrams the previous Send put on the
// wire.
func (r *Requester) LastTransmissions() int {
	return r.lastTransmissions
}

// Send transmits the request and retries until an action-matching reply
// arrives or the budget runs out. UPD and DWN negotiations get a single
// attempt: a slow transfer response must not be chased with duplicate
// negotiations.
func (r *Requester) Send(req protocol.Event) (protocol.Event, error) {
	data, err := req.Encode()
	if err != nil {
		return protocol.Event{}, err
	}

	budget := r.maxRetries
	if req.Action == protocol.Upload || req.Action == protocol.Download {
		budget = 1
	}

	buf := make([]byte, protocol.MaxMessageSize)
	r.lastTransmissions = 0

	for attempt := 0; attempt < budget; attempt++ {
		if _, err := r.conn.Write(data); err != nil {
			return protocol.Event{}, fmt.Errorf("failed to send request: %w", err)
		}
		r.lastTransmissions++

		for {
			if err := r.conn.SetReadDeadline(time.Now().Add(r.replyTimeout)); err != nil {
				return protocol.Event{}, err
			}
			n, err := r.conn.Read(buf)
			if err != nil {
				if errors.Is(err, os.ErrDeadlineExceeded) {
					break // retransmit
				}
				return protocol.Event{}, fmt.Errorf("failed to read reply: %w", err)
			}

			reply, err := protocol.Decode(buf[:n])
			if err != nil {
				continue // garbage datagram, keep waiting
			}
			if reply.Status == protocol.Unauthenticated {
				return reply, ErrUnauthenticated
			}
			if reply.Action == req.Action {
				return reply, nil
			}
			// mismatched action code: stray or late reply, ignore
		}
	}

	return protocol.Event{}, fmt.Errorf("%w after %d attempts", ErrNoReply, budget)
}

// AwaitAck waits for the server's best-effort confirmation after a bulk
// transfer. A timeout is not a failure: the transfer already completed on
// the data channel, so the caller assumes success.
func (r *Requester) AwaitAck(timeout time.Duration) (protocol.Event, bool) {
	buf := make([]byte, protocol.MaxMessageSize)
	if err := r.conn.SetReadDeadline(time.Now().Add(timeout)); err != nil {
		return protocol.Event{}, false
	}
	n, err := r.conn.Read(buf)
	if err != nil {
		return protocol.Event{}, false
	}
	ack, err := protocol.Decode(buf[:n])
	if err != nil {
		return protocol.Event{}, false
	}
	return ack, true
}
