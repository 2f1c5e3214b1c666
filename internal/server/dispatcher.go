package server

import (
	"errors"
	"net"
	"sync"

	"github.com/webforum-dev/webforum/shared/logger"
	"github.com/webforum-dev/webforum/shared/protocol"
)

// jobQueueDepth buffers inbound datagrams so the receive loop keeps reading
// while all workers are busy.
const jobQueueDepth = 1024

type job struct {
	data []byte
	addr net.Addr
}

// RequestHandler executes one decoded request, replying through send.
type RequestHandler interface {
	Handle(req protocol.Event, send func(protocol.Event))
}

// Dispatcher reads control-channel datagrams and fans them out to a bounded
// worker pool. Workers run fully independently: there is no ordering
// guarantee between requests, and a panic in one worker is contained.
type Dispatcher struct {
	conn     net.PacketConn
	handler  RequestHandler
	poolSize int

	jobs chan job
	wg   sync.WaitGroup
}

func NewDispatcher(conn net.PacketConn, handler RequestHandler, poolSize int) *Dispatcher {
	return &Dispatcher{
		conn:     conn,
		handler:  handler,
		poolSize: poolSize,
		jobs:     make(chan job, jobQueueDepth),
	}
}

// Run blocks reading datagrams until the connection is closed.
func (d *Dispatcher) Run() {
	for i := 0; i < d.poolSize; i++ {
		d.wg.Add(1)
		go d.worker()
	}

	buf := make([]byte, protocol.MaxMessageSize)
	for {
		n, addr, err := d.conn.ReadFrom(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				break
			}
			logger.Log.Error("datagram read failed", "error", err)
			continue
		}

		// copy before handoff so the receive buffer can be reused
		data := make([]byte, n)
		copy(data, buf[:n])
		d.jobs <- job{data: data, addr: addr}
	}

	close(d.jobs)
	d.wg.Wait()
}

// Close stops the receive loop; Run returns once in-flight jobs drain.
func (d *Dispatcher) Close() error {
	return d.conn.Close()
}

// Addr reports the control-channel address, useful when listening on :0.
func (d *Dispatcher) Addr() net.Addr {
	return d.conn.LocalAddr()
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for j := range d.jobs {
		d.process(j)
	}
}

func (d *Dispatcher) process(j job) {
	defer func() {
		requestsInFlight.Dec()
		if r := recover(); r != nil {
			workerPanicsTotal.Inc()
			logger.Log.Error("worker crashed", "panic", r, "remote", j.addr)
		}
	}()
	requestsInFlight.Inc()

	req, err := protocol.Decode(j.data)
	if err != nil {
		logger.Log.Warn("dropping malformed datagram", "remote", j.addr, "error", err)
		return
	}

	send := func(reply protocol.Event) {
		requestsTotal.WithLabelValues(reply.Action.String(), reply.Status.String()).Inc()

		data, err := reply.Encode()
		if err != nil {
			logger.Log.Error("failed to encode reply", "action", reply.Action, "error", err)
			return
		}
		if _, err := d.conn.WriteTo(data, j.addr); err != nil {
			logger.Log.Error("failed to send reply", "remote", j.addr, "error", err)
		}
	}

	d.handler.Handle(req, send)
}
