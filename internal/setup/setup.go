package setup

import (
	"fmt"
	"net"

	"github.com/webforum-dev/webforum/internal/registry"
	"github.com/webforum-dev/webforum/internal/server"
	"github.com/webforum-dev/webforum/internal/storage/fs"
	"github.com/webforum-dev/webforum/shared/config"
)

// Dependencies holds everything the server binary needs running.
type Dependencies struct {
	Storage    *fs.Storage
	Users      *registry.Users
	Threads    *registry.Threads
	Acceptor   *server.Acceptor
	Dispatcher *server.Dispatcher
}

// SetupServer initializes storage, registries, both transports, and the
// dispatcher for the given config.
func SetupServer(cfg *config.Config) (*Dependencies, error) {
	storage, err := fs.New(cfg.Server.DataDir)
	if err != nil {
		return nil, err
	}

	users := registry.NewUsers(storage)
	threads := registry.NewThreads(storage)

	listener, err := net.Listen("tcp", cfg.Server.TCPAddr)
	if err != nil {
		return nil, fmt.Errorf("failed to listen on data channel: %w", err)
	}
	acceptor := server.NewAcceptor(listener)

	conn, err := net.ListenPacket("udp", cfg.Server.UDPAddr)
	if err != nil {
		listener.Close()
		return nil, fmt.Errorf("failed to listen on control channel: %w", err)
	}

	handler := server.NewHandler(users, threads, storage, acceptor, cfg)
	dispatcher := server.NewDispatcher(conn, handler, cfg.Server.WorkerPoolSize)

	return &Dependencies{
		Storage:    storage,
		Users:      users,
		Threads:    threads,
		Acceptor:   acceptor,
		Dispatcher: dispatcher,
	}, nil
}
