// Package fs mirrors the in-memory registries onto flat text files: a
// credentials file, one log file per thread, and attachment payloads keyed
// by "<title>-<filename>". It is a durability aid, not a storage engine;
// callers treat write failures as non-fatal.
package fs

import (
	"bufio"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/webforum-dev/webforum/internal/registry"
	"github.com/webforum-dev/webforum/shared/domain"
)

const credentialsFile = "credentials.txt"

type Storage struct {
	rootPath string
}

// Ensure Storage implements the registry mirrors at compile time.
var (
	_ registry.CredentialStore = (*Storage)(nil)
	_ registry.ThreadStore     = (*Storage)(nil)
)

func New(rootPath string) (*Storage, error) {
	// Clean to prevent path traversal like "data/../"
	p := filepath.Clean(rootPath)

	if err := os.MkdirAll(p, 0755); err != nil {
		return nil, fmt.Errorf("failed to create storage directory %s: %w", p, err)
	}

	return &Storage{rootPath: p}, nil
}

/* ---------- credentials ---------- */

// LoadUsers reads the credentials file. A missing file means a fresh server
// and yields an empty slice; malformed lines are skipped.
func (s *Storage) LoadUsers() ([]domain.User, error) {
	f, err := os.Open(filepath.Join(s.rootPath, credentialsFile))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to open credentials file: %w", err)
	}
	defer f.Close()

	var users []domain.User
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		tokens := strings.Split(scanner.Text(), " ")
		if len(tokens) == 2 {
			users = append(users, domain.User{Name: tokens[0], Password: tokens[1]})
		}
	}
	return users, scanner.Err()
}

func (s *Storage) AppendUser(name, password string) error {
	f, err := os.OpenFile(filepath.Join(s.rootPath, credentialsFile),
		os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open credentials file: %w", err)
	}
	defer f.Close()

	if _, err := fmt.Fprintf(f, "%s %s\n", name, password); err != nil {
		return fmt.Errorf("failed to append credentials: %w", err)
	}
	return nil
}

/* ---------- thread logs ---------- */

func (s *Storage) threadLogPath(title string) string {
	return filepath.Join(s.rootPath, filepath.Clean(title))
}

// CreateThreadLog starts a thread log holding the creator's name on line one.
func (s *Storage) CreateThreadLog(title, creator string) error {
	return os.WriteFile(s.threadLogPath(title), []byte(creator+"\n"), 0644)
}

func (s *Storage) AppendPost(title, line string) error {
	f, err := os.OpenFile(s.threadLogPath(title), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		return fmt.Errorf("failed to open thread log %s: %w", title, err)
	}
	defer f.Close()

	if _, err := fmt.Fprintln(f, line); err != nil {
		return fmt.Errorf("failed to append to thread log %s: %w", title, err)
	}
	return nil
}

// RewriteThreadLog replaces the whole log after an edit or delete.
func (s *Storage) RewriteThreadLog(title, creator string, lines []string) error {
	var b strings.Builder
	b.WriteString(creator)
	b.WriteByte('\n')
	for _, line := range lines {
		b.WriteString(line)
		b.WriteByte('\n')
	}
	return os.WriteFile(s.threadLogPath(title), []byte(b.String()), 0644)
}

/* ---------- attachment payloads ---------- */

func (s *Storage) attachmentPath(title, filename string) string {
	return filepath.Join(s.rootPath, filepath.Clean(title)+"-"+filepath.Clean(filename))
}

// SaveAttachment streams payload bytes into the thread-scoped file. On a
// failed copy the partial file is removed best-effort.
func (s *Storage) SaveAttachment(title, filename string, data io.Reader) (int64, error) {
	fullPath := s.attachmentPath(title, filename)

	dst, err := os.Create(fullPath)
	if err != nil {
		return 0, fmt.Errorf("failed to create attachment file: %w", err)
	}
	defer dst.Close()

	n, err := io.Copy(dst, data)
	if err != nil {
		os.Remove(fullPath)
		return 0, fmt.Errorf("failed to write attachment data: %w", err)
	}
	return n, nil
}

func (s *Storage) OpenAttachment(title, filename string) (io.ReadCloser, error) {
	f, err := os.Open(s.attachmentPath(title, filename))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("attachment not found: %w", err)
		}
		return nil, fmt.Errorf("failed to open attachment: %w", err)
	}
	return f, nil
}

func (s *Storage) AttachmentExists(title, filename string) bool {
	_, err := os.Stat(s.attachmentPath(title, filename))
	return err == nil
}

// RemoveThreadFiles deletes the thread log and every payload stored under
// the thread's title prefix.
func (s *Storage) RemoveThreadFiles(title string) error {
	if err := os.Remove(s.threadLogPath(title)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove thread log %s: %w", title, err)
	}

	prefix := filepath.Clean(title) + "-"
	entries, err := os.ReadDir(s.rootPath)
	if err != nil {
		return fmt.Errorf("failed to list storage directory: %w", err)
	}
	for _, entry := range entries {
		if strings.HasPrefix(entry.Name(), prefix) {
			if err := os.Remove(filepath.Join(s.rootPath, entry.Name())); err != nil && !os.IsNotExist(err) {
				return fmt.Errorf("failed to remove attachment %s: %w", entry.Name(), err)
			}
		}
	}
	return nil
}
