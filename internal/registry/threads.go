package registry

import (
	"sort"
	"strings"
	"sync"

	"github.com/webforum-dev/webforum/shared/domain"
	internal_errors "github.com/webforum-dev/webforum/shared/errors"
	"github.com/webforum-dev/webforum/shared/logger"
)

// ThreadStore mirrors thread state onto disk: one log file per thread plus
// attachment payloads keyed by title and filename.
type ThreadStore interface {
	CreateThreadLog(title, creator string) error
	AppendPost(title, line string) error
	RewriteThreadLog(title, creator string, lines []string) error
	RemoveThreadFiles(title string) error
	AttachmentExists(title, filename string) bool
}

// ForumThread owns its posts and the dense 1..N message numbering. All
// mutations happen under the thread's own lock, so two workers editing
// different threads proceed in parallel.
type ForumThread struct {
	mu      sync.Mutex
	title   string
	creator string
	posts   []*domain.Post
	nextNum int
	store   ThreadStore
}

func (t *ForumThread) Creator() string {
	return t.creator
}

func (t *ForumThread) addMessage(author, text string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	post := &domain.Post{Kind: domain.Message, Number: t.nextNum, Author: author, Text: text}
	t.nextNum++
	t.posts = append(t.posts, post)

	if err := t.store.AppendPost(t.title, post.Display()); err != nil {
		logger.Log.Error("failed to persist post", "thread", t.title, "error", err)
	}
}

func (t *ForumThread) addAttachment(author, filename string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	post := &domain.Post{Kind: domain.Attachment, Author: author, Text: filename}
	t.posts = append(t.posts, post)

	if err := t.store.AppendPost(t.title, post.Display()); err != nil {
		logger.Log.Error("failed to persist attachment record", "thread", t.title, "error", err)
	}
}

// deleteMessage removes message `number` and compacts the numbering of every
// remaining message so the sequence stays contiguous.
func (t *ForumThread) deleteMessage(requester string, number int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	idx := -1
	for i, post := range t.posts {
		if post.Kind == domain.Message && post.Number == number {
			idx = i
			break
		}
	}
	if idx == -1 {
		return internal_errors.NotFound
	}
	if t.posts[idx].Author != requester {
		return internal_errors.NotOwner
	}

	t.posts = append(t.posts[:idx], t.posts[idx+1:]...)
	t.renumber()
	t.rewrite()
	return nil
}

func (t *ForumThread) editMessage(requester string, number int, newText string) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, post := range t.posts {
		if post.Kind == domain.Message && post.Number == number {
			if post.Author != requester {
				return internal_errors.NotOwner
			}
			post.Text = newText
			t.rewrite()
			return nil
		}
	}
	return internal_errors.NotFound
}

func (t *ForumThread) render() (string, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if len(t.posts) == 0 {
		return "", internal_errors.EmptyThread
	}

	lines := make([]string, len(t.posts))
	for i, post := range t.posts {
		lines[i] = post.Display()
	}
	return strings.Join(lines, ";"), nil
}

func (t *ForumThread) hasAttachment(filename string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	for _, post := range t.posts {
		if post.Kind == domain.Attachment && post.Text == filename {
			return true
		}
	}
	return false
}

// renumber restores dense numbering after a delete. Caller holds t.mu.
func (t *ForumThread) renumber() {
	n := 1
	for _, post := range t.posts {
		if post.Kind == domain.Message {
			post.Number = n
			n++
		}
	}
	t.nextNum = n
}

// rewrite replaces the on-disk log with the current posts. Caller holds t.mu.
func (t *ForumThread) rewrite() {
	lines := make([]string, len(t.posts))
	for i, post := range t.posts {
		lines[i] = post.Display()
	}
	if err := t.store.RewriteThreadLog(t.title, t.creator, lines); err != nil {
		logger.Log.Error("failed to rewrite thread log", "thread", t.title, "error", err)
	}
}

// Threads is the thread registry. The registry lock only guards membership;
// post mutations take the individual thread's lock.
type Threads struct {
	mu      sync.RWMutex
	threads map[string]*ForumThread
	store   ThreadStore
}

func NewThreads(store ThreadStore) *Threads {
	return &Threads{
		threads: make(map[string]*ForumThread),
		store:   store,
	}
}

func (r *Threads) get(title string) (*ForumThread, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	t, ok := r.threads[title]
	return t, ok
}

func (r *Threads) Exists(title string) bool {
	_, ok := r.get(title)
	return ok
}

func (r *Threads) Create(title, creator string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.threads[title]; ok {
		return internal_errors.AlreadyExists
	}

	t := &ForumThread{title: title, creator: creator, nextNum: 1, store: r.store}
	if err := r.store.CreateThreadLog(title, creator); err != nil {
		logger.Log.Error("failed to create thread log", "thread", title, "error", err)
	}
	r.threads[title] = t
	return nil
}

// Titles returns the current thread titles, sorted for stable output.
func (r *Threads) Titles() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	titles := make([]string, 0, len(r.threads))
	for title := range r.threads {
		titles = append(titles, title)
	}
	sort.Strings(titles)
	return titles
}

func (r *Threads) Post(title, author, text string) error {
	t, ok := r.get(title)
	if !ok {
		return internal_errors.NotFound
	}
	t.addMessage(author, text)
	return nil
}

func (r *Threads) DeleteMessage(title, requester string, number int) error {
	t, ok := r.get(title)
	if !ok {
		return internal_errors.NotFound
	}
	return t.deleteMessage(requester, number)
}

func (r *Threads) EditMessage(title, requester string, number int, newText string) error {
	t, ok := r.get(title)
	if !ok {
		return internal_errors.NotFound
	}
	return t.editMessage(requester, number, newText)
}

// Read renders all posts in insertion order joined by ';'. An existing
// thread with no posts is a distinct outcome from an unknown thread.
func (r *Threads) Read(title string) (string, error) {
	t, ok := r.get(title)
	if !ok {
		return "", internal_errors.NotFound
	}
	return t.render()
}

// Remove deletes the thread and all of its on-disk artifacts. Only the
// creator may remove a thread.
func (r *Threads) Remove(requester, title string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	t, ok := r.threads[title]
	if !ok {
		return internal_errors.NotFound
	}
	if t.creator != requester {
		return internal_errors.NotOwner
	}

	if err := r.store.RemoveThreadFiles(title); err != nil {
		logger.Log.Error("failed to remove thread files", "thread", title, "error", err)
	}
	delete(r.threads, title)
	return nil
}

func (r *Threads) Attach(title, author, filename string) error {
	t, ok := r.get(title)
	if !ok {
		return internal_errors.NotFound
	}
	t.addAttachment(author, filename)
	return nil
}

// AttachmentExists requires both the post record and the payload file, the
// same double check the upload path relies on to reject duplicates.
func (r *Threads) AttachmentExists(title, filename string) bool {
	t, ok := r.get(title)
	if !ok {
		return false
	}
	return t.hasAttachment(filename) && r.store.AttachmentExists(title, filename)
}

func (r *Threads) Creator(title string) (string, bool) {
	t, ok := r.get(title)
	if !ok {
		return "", false
	}
	return t.Creator(), true
}
