package agent

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/soyeahso/vyrtuous/internal/domain"
)

func TestConversationStoreInsertionOrder(t *testing.T) {
	s := NewMemoryConversationStore(0)
	s.Append("owner", domain.NewDirective("one"))
	s.Append("owner", domain.NewAssistantText("two"))
	s.Append("owner", domain.NewToolResult(domain.ToolInvocationResult{Message: "three"}))

	snap := s.Snapshot("owner")
	require.Len(t, snap, 3)
	assert.Equal(t, "one", snap[0].Text)
	assert.Equal(t, "two", snap[1].Text)
	assert.Equal(t, "three", snap[2].Text)
}

func TestConversationStoreSnapshotIsCopy(t *testing.T) {
	s := NewMemoryConversationStore(0)
	s.Append("k", domain.NewDirective("a"))

	snap := s.Snapshot("k")
	snap[0].Text = "mutated"
	assert.Equal(t, "a", s.Snapshot("k")[0].Text)
}

func TestConversationStoreWindow(t *testing.T) {
	s := NewMemoryConversationStore(3)
	for i := range 5 {
		s.Append("k", domain.NewAssistantText(fmt.Sprint(i)))
	}
	snap := s.Snapshot("k")
	require.Len(t, snap, 3)
	assert.Equal(t, "2", snap[0].Text)
	assert.Equal(t, "4", snap[2].Text)
}

func TestConversationStoreClear(t *testing.T) {
	s := NewMemoryConversationStore(0)
	s.Append("k", domain.NewDirective("a"))
	s.SetContinuation("k", "resp-1")
	s.Append("other", domain.NewDirective("b"))

	s.Clear("k")
	assert.Empty(t, s.Snapshot("k"))
	assert.Empty(t, s.Continuation("k"))
	assert.Len(t, s.Snapshot("other"), 1)

	s.Clear("missing")
	assert.Nil(t, s.Snapshot("missing"))
}

func TestConversationStoreConcurrentKeys(t *testing.T) {
	s := NewMemoryConversationStore(1000)
	var wg sync.WaitGroup
	for k := range 8 {
		wg.Add(1)
		go func(key string) {
			defer wg.Done()
			for i := range 100 {
				s.Append(key, domain.NewAssistantText(fmt.Sprint(i)))
			}
		}(fmt.Sprint("key-", k))
	}
	wg.Wait()

	assert.Len(t, s.Keys(), 8)
	for _, key := range s.Keys() {
		snap := s.Snapshot(key)
		require.Len(t, snap, 100)
		for i, m := range snap {
			assert.Equal(t, fmt.Sprint(i), m.Text)
		}
	}
}

func TestRenderContext(t *testing.T) {
	assert.Equal(t, "No conversation context available.", RenderContext(nil))

	got := RenderContext([]domain.Message{
		domain.NewDirective("find the fallacy"),
		domain.NewAssistantText("ad hominem"),
	})
	assert.Equal(t, "USER: find the fallacy\nASSISTANT: ad hominem", got)
}

func TestLastText(t *testing.T) {
	_, ok := LastText(nil)
	assert.False(t, ok)

	text, ok := LastText([]domain.Message{domain.NewDirective("a"), domain.NewToolResult(domain.ToolInvocationResult{Message: "b"})})
	require.True(t, ok)
	assert.Equal(t, "b", text)
}
