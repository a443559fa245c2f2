package session

import (
	"fmt"
	"sync"
	"testing"

	"github.com/hupe1980/agentforge/core"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Interface compliance (compile-time assertion)
var _ Store = (*InMemoryStore)(nil)

func TestInMemoryStore_RoundTrip(t *testing.T) {
	store := NewInMemoryStore()

	require.NoError(t, store.Append("s1",
		core.NewUserMessage("hello"),
		core.NewAssistantMessage("hi there", nil),
	))

	sess, err := store.Get("s1")
	require.NoError(t, err)
	require.Len(t, sess.Messages, 2)
	assert.Equal(t, core.RoleUser, sess.Messages[0].Role)
	assert.Equal(t, "hello", sess.Messages[0].Content)
	assert.Equal(t, core.RoleAssistant, sess.Messages[1].Role)
	assert.False(t, sess.LastUpdated.IsZero())
}

func TestInMemoryStore_UnknownSessionIsEmpty(t *testing.T) {
	store := NewInMemoryStore()

	sess, err := store.Get("never-seen")
	require.NoError(t, err)
	assert.Empty(t, sess.Messages)

	// A read must not materialize the session.
	assert.Equal(t, 0, store.Len())
}

func TestInMemoryStore_GetReturnsClone(t *testing.T) {
	store := NewInMemoryStore()
	require.NoError(t, store.Append("s1", core.NewUserMessage("original")))

	sess, err := store.Get("s1")
	require.NoError(t, err)
	sess.Messages[0].Content = "mutated"

	again, err := store.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, "original", again.Messages[0].Content)
}

func TestInMemoryStore_AppendOrderPreserved(t *testing.T) {
	store := NewInMemoryStore()

	for i := 0; i < 10; i++ {
		require.NoError(t, store.Append("s1", core.NewUserMessage(fmt.Sprintf("msg-%d", i))))
	}

	sess, err := store.Get("s1")
	require.NoError(t, err)
	require.Len(t, sess.Messages, 10)
	for i, msg := range sess.Messages {
		assert.Equal(t, fmt.Sprintf("msg-%d", i), msg.Content)
	}
}

func TestInMemoryStore_ConcurrentSameSession(t *testing.T) {
	store := NewInMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			assert.NoError(t, store.Append("shared", core.NewUserMessage(fmt.Sprintf("msg-%d", i))))
		}(i)
	}
	wg.Wait()

	sess, err := store.Get("shared")
	require.NoError(t, err)
	// No lost writes under concurrent appends to the same session.
	assert.Len(t, sess.Messages, 50)
}

func TestInMemoryStore_ConcurrentDistinctSessions(t *testing.T) {
	store := NewInMemoryStore()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			id := fmt.Sprintf("session-%d", i)
			for j := 0; j < 5; j++ {
				assert.NoError(t, store.Append(id, core.NewUserMessage(fmt.Sprintf("msg-%d", j))))
			}
		}(i)
	}
	wg.Wait()

	assert.Equal(t, 20, store.Len())
	for i := 0; i < 20; i++ {
		sess, err := store.Get(fmt.Sprintf("session-%d", i))
		require.NoError(t, err)
		assert.Len(t, sess.Messages, 5)
	}
}
