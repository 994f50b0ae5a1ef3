package session

import (
	"fmt"
	"strings"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetOrCreateMintsFreshID(t *testing.T) {
	m := NewManager()

	s := m.GetOrCreate("does-not-exist")
	require.NotNil(t, s)
	assert.NotEqual(t, "does-not-exist", s.ID, "stale ids must not be resurrected")

	again := m.GetOrCreate(s.ID)
	assert.Same(t, s, again)

	empty := m.GetOrCreate("")
	assert.NotEqual(t, s.ID, empty.ID)
	assert.Equal(t, 2, m.Count())
}

func TestAppendOrderPreserved(t *testing.T) {
	m := NewManager()
	s := m.Create()

	s.Append(RoleUser, "first")
	s.Append(RoleAssistant, "second")
	s.Append(RoleUser, "third")

	msgs := s.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, RoleUser, msgs[0].Role)
	assert.Equal(t, "first", msgs[0].Content)
	assert.Equal(t, "second", msgs[1].Content)
	assert.Equal(t, "third", msgs[2].Content)
}

func TestSummaryEmptySession(t *testing.T) {
	s := NewManager().Create()
	assert.Equal(t, NoHistoryMarker, s.Summary())
}

func TestSummaryWindowAndTruncation(t *testing.T) {
	s := NewManager().Create()

	for i := 0; i < 12; i++ {
		s.Append(RoleUser, fmt.Sprintf("message %d", i))
	}
	long := strings.Repeat("x", 250)
	s.Append(RoleAssistant, long)

	summary := s.Summary()
	parts := strings.Split(summary, " | ")
	require.Len(t, parts, 10, "summary keeps the last ten messages")

	assert.False(t, strings.Contains(summary, "message 0"))
	assert.False(t, strings.Contains(summary, "message 2"))
	assert.True(t, strings.Contains(summary, "User: message 4"))

	last := parts[len(parts)-1]
	require.True(t, strings.HasPrefix(last, "Assistant: "))
	content := strings.TrimPrefix(last, "Assistant: ")
	assert.Len(t, []rune(content), 100, "long messages are truncated to 100 runes")
}

func TestSummaryTruncatesByRunes(t *testing.T) {
	s := NewManager().Create()
	s.Append(RoleUser, strings.Repeat("ü", 150))

	content := strings.TrimPrefix(s.Summary(), "User: ")
	assert.Equal(t, 100, len([]rune(content)))
	assert.Equal(t, strings.Repeat("ü", 100), content)
}

func TestClearKeepsSessionRegistered(t *testing.T) {
	m := NewManager()
	s := m.Create()
	s.Append(RoleUser, "hello")
	s.SetCollection("col-1")

	s.Clear()

	got, ok := m.Get(s.ID)
	require.True(t, ok)
	assert.Empty(t, got.Messages())
	assert.Equal(t, NoHistoryMarker, got.Summary())
	assert.Equal(t, "col-1", got.Collection(), "clearing messages keeps the collection binding")
}

func TestConcurrentSessionsIndependent(t *testing.T) {
	m := NewManager()

	const sessions = 8
	const perSession = 50

	ids := make([]string, sessions)
	for i := range ids {
		ids[i] = m.Create().ID
	}

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			s, _ := m.Get(id)
			for j := 0; j < perSession; j++ {
				s.Append(RoleUser, fmt.Sprintf("q%d", j))
				_ = s.Summary()
			}
		}(id)
	}
	wg.Wait()

	for _, id := range ids {
		s, ok := m.Get(id)
		require.True(t, ok)
		assert.Len(t, s.Messages(), perSession)
	}
}
