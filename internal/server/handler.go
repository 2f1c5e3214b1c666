package server

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/webforum-dev/webforum/internal/registry"
	"github.com/webforum-dev/webforum/internal/storage/fs"
	"github.com/webforum-dev/webforum/shared/config"
	internal_errors "github.com/webforum-dev/webforum/shared/errors"
	"github.com/webforum-dev/webforum/shared/logger"
	"github.com/webforum-dev/webforum/shared/protocol"
)

// Handler is the command interpreter: it maps one decoded request to
// registry operations and a reply. UPD and DWN additionally run the bulk
// transfer negotiation, which sends intermediate datagrams through the same
// send callback the dispatcher provides.
type Handler struct {
	users    *registry.Users
	threads  *registry.Threads
	files    *fs.Storage
	acceptor *Acceptor
	cfg      *config.Config
}

func NewHandler(users *registry.Users, threads *registry.Threads, files *fs.Storage, acceptor *Acceptor, cfg *config.Config) *Handler {
	return &Handler{users: users, threads: threads, files: files, acceptor: acceptor, cfg: cfg}
}

// Handle executes one request. send transmits a reply datagram to the
// requesting client; it may be called more than once for transfer
// negotiations, or not at all when a negotiation is abandoned.
func (h *Handler) Handle(req protocol.Event, send func(protocol.Event)) {
	// everything past LOGIN requires an online user
	if req.Action > protocol.Login && !h.users.IsOnline(req.Username) {
		send(protocol.Event{Action: req.Action, Status: protocol.Unauthenticated,
			Username: req.Username, Content: "Please Log in first"})
		return
	}

	switch req.Action {
	case protocol.FirstConn:
		send(h.firstConn(req))
	case protocol.Login:
		send(h.login(req))
	case protocol.CreateThread:
		send(h.createThread(req))
	case protocol.PostMessage:
		send(h.postMessage(req))
	case protocol.DeleteMessage:
		send(h.deleteMessage(req))
	case protocol.EditMessage:
		send(h.editMessage(req))
	case protocol.ListThreads:
		send(h.listThreads(req))
	case protocol.ReadThread:
		send(h.readThread(req))
	case protocol.Upload:
		h.upload(req, send)
	case protocol.Download:
		h.download(req, send)
	case protocol.RemoveThread:
		send(h.removeThread(req))
	case protocol.Exit:
		send(h.exit(req))
	default:
		send(failure(req, "Invalid command"))
	}
}

func success(req protocol.Event, content string) protocol.Event {
	return protocol.Event{Action: req.Action, Status: protocol.Success, Username: req.Username, Content: content}
}

func failure(req protocol.Event, content string) protocol.Event {
	return protocol.Event{Action: req.Action, Status: protocol.Failure, Username: req.Username, Content: content}
}

// separateContent splits content into at most n space-separated parts, the
// last part keeping its embedded spaces. Missing parts come back empty.
func separateContent(content string, n int) []string {
	parts := strings.SplitN(content, " ", n)
	for len(parts) < n {
		parts = append(parts, "")
	}
	return parts
}

func (h *Handler) firstConn(req protocol.Event) protocol.Event {
	logger.Log.Info("client authenticating", "user", req.Username)

	switch {
	case !h.users.Exists(req.Username):
		return success(req, "New User, enter password: ")
	case h.users.IsOnline(req.Username):
		logger.Log.Info("user is already logged in", "user", req.Username)
		return failure(req, fmt.Sprintf("%s has already logged in", req.Username))
	default:
		return success(req, "Enter password: ")
	}
}

func (h *Handler) login(req protocol.Event) protocol.Event {
	password := req.Content

	switch {
	case !h.users.Exists(req.Username):
		h.users.Add(req.Username, password)
		h.users.SetOnline(req.Username, true)
		logger.Log.Info("new user logged in", "user", req.Username)
		return success(req, "Success")
	case !h.users.ValidPassword(req.Username, password):
		logger.Log.Info("incorrect password", "user", req.Username)
		return failure(req, "Invalid login credentials (password)")
	case h.users.IsOnline(req.Username):
		logger.Log.Info("user is already logged in", "user", req.Username)
		return failure(req, fmt.Sprintf("%s has already logged in", req.Username))
	default:
		h.users.SetOnline(req.Username, true)
		logger.Log.Info("user logged in", "user", req.Username)
		return success(req, "Success")
	}
}

func (h *Handler) createThread(req protocol.Event) protocol.Event {
	title := req.Content

	if err := h.threads.Create(title, req.Username); err != nil {
		logger.Log.Info("thread already exists", "thread", title)
		return failure(req, fmt.Sprintf("Thread %s already exists", title))
	}
	logger.Log.Info("thread created", "thread", title, "user", req.Username)
	return success(req, fmt.Sprintf("Thread %s created", title))
}

func (h *Handler) postMessage(req protocol.Event) protocol.Event {
	parts := separateContent(req.Content, 2)
	title, text := parts[0], parts[1]

	if err := h.threads.Post(title, req.Username, text); err != nil {
		logger.Log.Info("thread does not exist", "thread", title)
		return failure(req, fmt.Sprintf("Thread %s does not exist", title))
	}
	logger.Log.Info("message posted", "thread", title, "user", req.Username)
	return success(req, fmt.Sprintf("Message posted to %s thread", title))
}

func (h *Handler) deleteMessage(req protocol.Event) protocol.Event {
	parts := separateContent(req.Content, 2)
	title := parts[0]
	number, err := strconv.Atoi(parts[1])
	if err != nil {
		return failure(req, "Message number must be an integer")
	}

	if !h.threads.Exists(title) {
		return failure(req, fmt.Sprintf("Thread %s does not exist", title))
	}

	switch err := h.threads.DeleteMessage(title, req.Username, number); {
	case errors.Is(err, internal_errors.NotOwner):
		return failure(req, "The message belongs to another user and cannot be deleted")
	case errors.Is(err, internal_errors.NotFound):
		return failure(req, "The message of the number does not exist")
	default:
		logger.Log.Info("message deleted", "thread", title, "number", number)
		return success(req, "The message has been deleted")
	}
}

func (h *Handler) editMessage(req protocol.Event) protocol.Event {
	parts := separateContent(req.Content, 3)
	title, newText := parts[0], parts[2]
	number, err := strconv.Atoi(parts[1])
	if err != nil {
		return failure(req, "Message number must be an integer")
	}

	if !h.threads.Exists(title) {
		return failure(req, fmt.Sprintf("Thread %s does not exist", title))
	}

	switch err := h.threads.EditMessage(title, req.Username, number, newText); {
	case errors.Is(err, internal_errors.NotOwner):
		return failure(req, "The message belongs to another user and cannot be edited")
	case errors.Is(err, internal_errors.NotFound):
		return failure(req, "The message of the number does not exist")
	default:
		logger.Log.Info("message edited", "thread", title, "number", number)
		return success(req, fmt.Sprintf("The message %d in %s has been edited", number, title))
	}
}

func (h *Handler) listThreads(req protocol.Event) protocol.Event {
	titles := h.threads.Titles()
	if len(titles) == 0 {
		return failure(req, "No threads to list")
	}
	return success(req, strings.Join(titles, " "))
}

func (h *Handler) readThread(req protocol.Event) protocol.Event {
	title := separateContent(req.Content, 1)[0]

	switch content, err := h.threads.Read(title); {
	case errors.Is(err, internal_errors.NotFound):
		return failure(req, fmt.Sprintf("Thread %s does not exist", title))
	case errors.Is(err, internal_errors.EmptyThread):
		return failure(req, fmt.Sprintf("Thread %s is empty", title))
	default:
		logger.Log.Info("thread content sent", "thread", title)
		return success(req, content)
	}
}

func (h *Handler) removeThread(req protocol.Event) protocol.Event {
	title := req.Content

	switch err := h.threads.Remove(req.Username, title); {
	case errors.Is(err, internal_errors.NotFound):
		return failure(req, fmt.Sprintf("Thread %s does not exist", title))
	case errors.Is(err, internal_errors.NotOwner):
		return failure(req, "Thread was created by another user and cannot be removed")
	default:
		logger.Log.Info("thread removed", "thread", title, "user", req.Username)
		return success(req, fmt.Sprintf("Thread %s removed", title))
	}
}

func (h *Handler) exit(req protocol.Event) protocol.Event {
	h.users.SetOnline(req.Username, false)
	logger.Log.Info("user logged out", "user", req.Username)
	return success(req, "Goodbye")
}

// upload negotiates the data-channel handshake for UPD. Preconditions are
// checked over the control channel; on success the reply carries the session
// token and the worker waits for the client's stream connection. Only after
// the stream completes is the attachment registered.
func (h *Handler) upload(req protocol.Event, send func(protocol.Event)) {
	parts := separateContent(req.Content, 2)
	title, filename := parts[0], parts[1]

	if !h.threads.Exists(title) {
		send(failure(req, fmt.Sprintf("Thread %s does not exist", title)))
		return
	}
	if h.threads.AttachmentExists(title, filename) {
		send(failure(req, fmt.Sprintf("The file %s has already been posted in the Thread %s", filename, title)))
		return
	}

	token := h.acceptor.Claim()
	send(success(req, "ready "+token))

	conn, err := h.acceptor.Await(token, h.cfg.Server.AcceptTimeout())
	if err != nil {
		transfersTotal.WithLabelValues("upload", "timeout").Inc()
		logger.Log.Warn("stale UPD request, no data connection arrived", "thread", title, "file", filename)
		return
	}
	defer conn.Close()

	if err := h.receiveUpload(conn, title, filename); err != nil {
		logger.Log.Error("upload failed", "thread", title, "file", filename, "error", err)
		return
	}

	if err := h.threads.Attach(title, req.Username, filename); err != nil {
		logger.Log.Error("failed to register attachment", "thread", title, "file", filename, "error", err)
		return
	}

	logger.Log.Info("file uploaded", "thread", title, "file", filename, "user", req.Username)
	// best-effort confirmation; the client assumes success if it never lands
	send(success(req, fmt.Sprintf("%s successfully uploaded", filename)))
}

// download mirrors upload for DWN and mutates no state.
func (h *Handler) download(req protocol.Event, send func(protocol.Event)) {
	parts := separateContent(req.Content, 2)
	title, filename := parts[0], parts[1]

	if !h.threads.Exists(title) {
		send(failure(req, fmt.Sprintf("Thread %s does not exist", title)))
		return
	}
	if !h.threads.AttachmentExists(title, filename) {
		send(failure(req, fmt.Sprintf("File does not exist in Thread %s", title)))
		return
	}

	token := h.acceptor.Claim()
	send(success(req, "ready "+token))

	conn, err := h.acceptor.Await(token, h.cfg.Server.AcceptTimeout())
	if err != nil {
		transfersTotal.WithLabelValues("download", "timeout").Inc()
		logger.Log.Warn("stale DWN request, no data connection arrived", "thread", title, "file", filename)
		return
	}
	defer conn.Close()

	if err := h.sendDownload(conn, title, filename); err != nil {
		logger.Log.Error("download failed", "thread", title, "file", filename, "error", err)
		return
	}

	logger.Log.Info("file downloaded", "thread", title, "file", filename, "user", req.Username)
	send(success(req, fmt.Sprintf("%s successfully downloaded", filename)))
}
