// Package registry holds the server's authoritative in-memory state: the
// user registry and the thread registry. Each entity guards its own
// mutations, so workers touching different threads never block each other.
// Durability is a best-effort mirror; a failed write is logged and the
// in-memory state stays authoritative.
package registry

import (
	"sync"

	"github.com/webforum-dev/webforum/shared/domain"
	"github.com/webforum-dev/webforum/shared/logger"
)

// CredentialStore mirrors user registrations onto disk.
type CredentialStore interface {
	LoadUsers() ([]domain.User, error)
	AppendUser(name, password string) error
}

type Users struct {
	mu    sync.Mutex
	users map[string]*domain.User
	store CredentialStore
}

// NewUsers loads previously registered users from the store. A load failure
// starts with an empty registry rather than refusing to boot.
func NewUsers(store CredentialStore) *Users {
	u := &Users{
		users: make(map[string]*domain.User),
		store: store,
	}

	loaded, err := store.LoadUsers()
	if err != nil {
		logger.Log.Error("failed to load credentials, starting empty", "error", err)
		return u
	}
	for i := range loaded {
		user := loaded[i]
		u.users[user.Name] = &user
	}
	return u
}

// Add registers a new user and appends it to the credentials mirror.
func (u *Users) Add(name, password string) {
	u.mu.Lock()
	defer u.mu.Unlock()

	u.users[name] = &domain.User{Name: name, Password: password}
	if err := u.store.AppendUser(name, password); err != nil {
		logger.Log.Error("failed to persist credentials", "user", name, "error", err)
	}
}

func (u *Users) Exists(name string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	_, ok := u.users[name]
	return ok
}

func (u *Users) ValidPassword(name, password string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.users[name]
	return ok && user.PasswordOK(password)
}

func (u *Users) SetOnline(name string, online bool) {
	u.mu.Lock()
	defer u.mu.Unlock()
	if user, ok := u.users[name]; ok {
		user.Online = online
	}
}

func (u *Users) IsOnline(name string) bool {
	u.mu.Lock()
	defer u.mu.Unlock()
	user, ok := u.users[name]
	return ok && user.Online
}
