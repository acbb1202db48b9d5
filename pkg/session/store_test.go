package session

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := NewStore(t.TempDir())
	require.NoError(t, err)
	return store
}

func TestCreate(t *testing.T) {
	t.Run("generated id", func(t *testing.T) {
		store := newTestStore(t)

		id, err := store.Create("")
		require.NoError(t, err)
		assert.True(t, strings.HasPrefix(id, "session_"))
		assert.True(t, store.Exists(id))
	})

	t.Run("explicit id", func(t *testing.T) {
		store := newTestStore(t)

		id, err := store.Create("my_session")
		require.NoError(t, err)
		assert.Equal(t, "my_session", id)
	})

	t.Run("duplicate explicit id rejected", func(t *testing.T) {
		store := newTestStore(t)

		_, err := store.Create("dup")
		require.NoError(t, err)
		_, err = store.Create("dup")
		assert.ErrorContains(t, err, "already exists")
	})

	t.Run("generated ids are unique within a second", func(t *testing.T) {
		store := newTestStore(t)

		a, err := store.Create("")
		require.NoError(t, err)
		b, err := store.Create("")
		require.NoError(t, err)
		assert.NotEqual(t, a, b)
	})

	t.Run("path traversal rejected", func(t *testing.T) {
		store := newTestStore(t)

		_, err := store.Create("../escape")
		assert.Error(t, err)
	})
}

func TestAppendAndLoad(t *testing.T) {
	store := newTestStore(t)
	id, err := store.Create("")
	require.NoError(t, err)

	require.NoError(t, store.Append(id, "user", "what skills are trending?", nil))
	require.NoError(t, store.Append(id, "assistant", "SQL and Go.", map[string]interface{}{
		"tool_calls": 2,
	}))

	doc, err := store.Load(id)
	require.NoError(t, err)
	assert.Equal(t, id, doc.SessionID)
	assert.Equal(t, 2, doc.MessageCount)
	require.Len(t, doc.Messages, 2)
	assert.Equal(t, "user", doc.Messages[0].Role)
	assert.Equal(t, "what skills are trending?", doc.Messages[0].Content)
	assert.Equal(t, "assistant", doc.Messages[1].Role)
	assert.EqualValues(t, 2, doc.Messages[1].Metadata["tool_calls"])
}

func TestAppendUnknownSession(t *testing.T) {
	store := newTestStore(t)
	err := store.Append("missing", "user", "hi", nil)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestLoadNotFound(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Load("missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDocumentFormat(t *testing.T) {
	store := newTestStore(t)
	id, err := store.Create("format_check")
	require.NoError(t, err)
	require.NoError(t, store.Append(id, "user", "hello", nil))

	raw, err := os.ReadFile(filepath.Join(store.Dir(), id+".json"))
	require.NoError(t, err)

	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &doc))

	assert.Equal(t, "format_check", doc["session_id"])
	assert.Contains(t, doc, "created_at")
	assert.EqualValues(t, 1, doc["message_count"])

	messages := doc["messages"].([]interface{})
	first := messages[0].(map[string]interface{})
	assert.Contains(t, first, "timestamp")
	assert.Equal(t, "user", first["role"])
	assert.Equal(t, "hello", first["content"])
}

func TestList(t *testing.T) {
	store := newTestStore(t)

	for _, id := range []string{"a", "b", "c"} {
		_, err := store.Create(id)
		require.NoError(t, err)
		time.Sleep(5 * time.Millisecond)
	}

	summaries, err := store.List()
	require.NoError(t, err)
	require.Len(t, summaries, 3)

	// Newest first.
	assert.Equal(t, "c", summaries[0].SessionID)
	assert.Equal(t, "a", summaries[2].SessionID)
}

func TestListSkipsGarbage(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Create("good")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "bad.json"), []byte("{not json"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(store.Dir(), "notes.txt"), []byte("ignore"), 0644))

	summaries, err := store.List()
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, "good", summaries[0].SessionID)
}

func TestStats(t *testing.T) {
	store := newTestStore(t)
	id, err := store.Create("")
	require.NoError(t, err)

	require.NoError(t, store.Append(id, "user", "q1", nil))
	require.NoError(t, store.Append(id, "assistant", "a1", nil))
	require.NoError(t, store.Append(id, "user", "q2", nil))

	stats, err := store.Stats(id)
	require.NoError(t, err)
	assert.Equal(t, 3, stats.MessageCount)
	assert.Equal(t, 2, stats.RoleCounts["user"])
	assert.Equal(t, 1, stats.RoleCounts["assistant"])
	assert.GreaterOrEqual(t, stats.DurationSeconds, 0.0)
}

func TestConcurrentAppends(t *testing.T) {
	store := newTestStore(t)
	id, err := store.Create("")
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			assert.NoError(t, store.Append(id, "user", "msg", nil))
		}()
	}
	wg.Wait()

	doc, err := store.Load(id)
	require.NoError(t, err)
	assert.Equal(t, 20, doc.MessageCount)
	assert.Len(t, doc.Messages, 20)
}
