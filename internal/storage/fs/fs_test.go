package fs

import (
	"bytes"
	"io"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	t.Run("creates storage directory", func(t *testing.T) {
		dir := filepath.Join(t.TempDir(), "data")
		storage, err := New(dir)

		require.NoError(t, err)
		assert.NotNil(t, storage)

		_, err = os.Stat(dir)
		assert.NoError(t, err)
	})

	t.Run("cleans path to prevent traversal", func(t *testing.T) {
		tmpDir := t.TempDir()
		dirtyPath := filepath.Join(tmpDir, "data", "..", "data")

		storage, err := New(dirtyPath)

		require.NoError(t, err)
		assert.Equal(t, filepath.Join(tmpDir, "data"), storage.rootPath)
	})
}

func TestCredentials(t *testing.T) {
	t.Run("missing file yields no users", func(t *testing.T) {
		storage, err := New(t.TempDir())
		require.NoError(t, err)

		users, err := storage.LoadUsers()
		require.NoError(t, err)
		assert.Empty(t, users)
	})

	t.Run("append then load round-trips", func(t *testing.T) {
		storage, err := New(t.TempDir())
		require.NoError(t, err)

		require.NoError(t, storage.AppendUser("alice", "hunter2"))
		require.NoError(t, storage.AppendUser("bob", "pass"))

		users, err := storage.LoadUsers()
		require.NoError(t, err)
		require.Len(t, users, 2)
		assert.Equal(t, "alice", users[0].Name)
		assert.Equal(t, "hunter2", users[0].Password)
		assert.Equal(t, "bob", users[1].Name)
	})

	t.Run("malformed lines are skipped", func(t *testing.T) {
		dir := t.TempDir()
		storage, err := New(dir)
		require.NoError(t, err)

		content := "alice hunter2\ngarbage\nbob pass\n"
		require.NoError(t, os.WriteFile(filepath.Join(dir, "credentials.txt"), []byte(content), 0o644))

		users, err := storage.LoadUsers()
		require.NoError(t, err)
		assert.Len(t, users, 2)
	})
}

func TestThreadLogs(t *testing.T) {
	storage, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, storage.CreateThreadLog("general", "alice"))
	require.NoError(t, storage.AppendPost("general", "1 alice: hello"))
	require.NoError(t, storage.AppendPost("general", "2 bob: hi"))

	data, err := os.ReadFile(filepath.Join(storage.rootPath, "general"))
	require.NoError(t, err)
	assert.Equal(t, "alice\n1 alice: hello\n2 bob: hi\n", string(data))

	// a delete compacts numbers and rewrites the whole file
	require.NoError(t, storage.RewriteThreadLog("general", "alice", []string{"1 bob: hi"}))

	data, err = os.ReadFile(filepath.Join(storage.rootPath, "general"))
	require.NoError(t, err)
	assert.Equal(t, "alice\n1 bob: hi\n", string(data))
}

func TestAttachments(t *testing.T) {
	t.Run("save open round-trips bytes", func(t *testing.T) {
		storage, err := New(t.TempDir())
		require.NoError(t, err)

		content := []byte("attachment payload bytes")
		n, err := storage.SaveAttachment("general", "notes.txt", bytes.NewReader(content))
		require.NoError(t, err)
		assert.Equal(t, int64(len(content)), n)

		assert.True(t, storage.AttachmentExists("general", "notes.txt"))
		assert.False(t, storage.AttachmentExists("general", "other.txt"))

		r, err := storage.OpenAttachment("general", "notes.txt")
		require.NoError(t, err)
		defer r.Close()

		got, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, content, got)
	})

	t.Run("payload key is thread scoped", func(t *testing.T) {
		storage, err := New(t.TempDir())
		require.NoError(t, err)

		_, err = storage.SaveAttachment("general", "a.txt", bytes.NewReader([]byte("one")))
		require.NoError(t, err)
		_, err = storage.SaveAttachment("random", "a.txt", bytes.NewReader([]byte("two")))
		require.NoError(t, err)

		r, err := storage.OpenAttachment("random", "a.txt")
		require.NoError(t, err)
		defer r.Close()

		got, err := io.ReadAll(r)
		require.NoError(t, err)
		assert.Equal(t, []byte("two"), got)
	})
}

func TestRemoveThreadFiles(t *testing.T) {
	storage, err := New(t.TempDir())
	require.NoError(t, err)

	require.NoError(t, storage.CreateThreadLog("general", "alice"))
	_, err = storage.SaveAttachment("general", "a.txt", bytes.NewReader([]byte("one")))
	require.NoError(t, err)
	_, err = storage.SaveAttachment("general", "b.txt", bytes.NewReader([]byte("two")))
	require.NoError(t, err)
	// a different thread's payload must survive
	require.NoError(t, storage.CreateThreadLog("random", "bob"))
	_, err = storage.SaveAttachment("random", "c.txt", bytes.NewReader([]byte("three")))
	require.NoError(t, err)

	require.NoError(t, storage.RemoveThreadFiles("general"))

	assert.False(t, storage.AttachmentExists("general", "a.txt"))
	assert.False(t, storage.AttachmentExists("general", "b.txt"))
	_, err = os.Stat(filepath.Join(storage.rootPath, "general"))
	assert.True(t, os.IsNotExist(err))

	assert.True(t, storage.AttachmentExists("random", "c.txt"))
	_, err = os.Stat(filepath.Join(storage.rootPath, "random"))
	assert.NoError(t, err)

	// removing an already-removed thread is not an error
	assert.NoError(t, storage.RemoveThreadFiles("general"))
}
