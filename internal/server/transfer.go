package server

import (
	"fmt"
	"io"
	"net"

	"github.com/webforum-dev/webforum/shared/logger"
)

// receiveUpload drains the client's stream into the attachment payload, then
// writes the textual acknowledgment back on the same connection.
func (h *Handler) receiveUpload(conn net.Conn, title, filename string) error {
	limited := io.LimitReader(conn, int64(h.cfg.Transfer.MaxFileSize))
	n, err := h.files.SaveAttachment(title, filename, limited)
	if err != nil {
		transfersTotal.WithLabelValues("upload", "error").Inc()
		return fmt.Errorf("failed to store upload: %w", err)
	}
	transferBytes.WithLabelValues("upload").Add(float64(n))

	ack := fmt.Sprintf("The File %s has been uploaded to Thread %s", filename, title)
	if _, err := conn.Write([]byte(ack)); err != nil {
		logger.Log.Warn("failed to write upload ack", "thread", title, "file", filename, "error", err)
	}
	transfersTotal.WithLabelValues("upload", "ok").Inc()
	return nil
}

// sendDownload streams the payload to the client, half-closes the write side
// to signal end-of-stream, and waits for the client's textual acknowledgment.
func (h *Handler) sendDownload(conn net.Conn, title, filename string) error {
	src, err := h.files.OpenAttachment(title, filename)
	if err != nil {
		transfersTotal.WithLabelValues("download", "error").Inc()
		return err
	}
	defer src.Close()

	buf := make([]byte, h.cfg.Transfer.BufferSize)
	n, err := io.CopyBuffer(conn, src, buf)
	if err != nil {
		transfersTotal.WithLabelValues("download", "error").Inc()
		return fmt.Errorf("failed to stream download: %w", err)
	}
	transferBytes.WithLabelValues("download").Add(float64(n))

	if tcp, ok := conn.(*net.TCPConn); ok {
		tcp.CloseWrite()
	}

	ackBuf := make([]byte, 1024)
	if _, err := conn.Read(ackBuf); err != nil && err != io.EOF {
		logger.Log.Warn("no download ack from client", "thread", title, "file", filename, "error", err)
	}
	transfersTotal.WithLabelValues("download", "ok").Inc()
	return nil
}
