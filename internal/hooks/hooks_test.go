package hooks

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/soyeahso/vyrtuous/internal/logging"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testManager() *Manager {
	return NewManager(logging.New(nil, "silent"))
}

func TestManager_On_And_Emit(t *testing.T) {
	m := testManager()

	var got Payload
	m.On(EventRunStart, "test", func(_ context.Context, p Payload) error {
		got = p
		return nil
	})

	m.Emit(context.Background(), EventRunStart, map[string]any{"session": "42"})
	assert.Equal(t, EventRunStart, got.Event)
	assert.Equal(t, "42", got.Data["session"])
	assert.False(t, got.Time.IsZero())
}

func TestManager_Emit_OrderAndErrors(t *testing.T) {
	m := testManager()

	var order []string
	m.On(EventToolCall, "first", func(_ context.Context, _ Payload) error {
		order = append(order, "first")
		return errors.New("handler broke")
	})
	m.On(EventToolCall, "second", func(_ context.Context, _ Payload) error {
		order = append(order, "second")
		return nil
	})

	m.Emit(context.Background(), EventToolCall, nil)
	assert.Equal(t, []string{"first", "second"}, order)
}

func TestManager_NilIsSilent(t *testing.T) {
	var m *Manager
	assert.NotPanics(t, func() {
		m.Emit(context.Background(), EventRunEnd, nil)
		m.EmitAsync(context.Background(), EventRunEnd, nil)
	})
	assert.Zero(t, m.Count(EventRunEnd))
}

func TestManager_Off(t *testing.T) {
	m := testManager()
	var calls atomic.Int32
	h := func(_ context.Context, _ Payload) error { calls.Add(1); return nil }
	m.On(EventTailBatch, "a", h)
	m.On(EventTailBatch, "b", h)

	m.Off(EventTailBatch, "a")
	assert.Equal(t, 1, m.Count(EventTailBatch))

	m.Emit(context.Background(), EventTailBatch, nil)
	assert.Equal(t, int32(1), calls.Load())
}

func TestManager_OnAllAndEvents(t *testing.T) {
	m := testManager()
	m.OnAll("publisher", func(_ context.Context, _ Payload) error { return nil })

	for _, e := range AllEvents {
		assert.Equal(t, 1, m.Count(e), e)
	}
	events := m.Events()
	assert.Len(t, events, len(AllEvents))
	assert.IsIncreasing(t, events)
}

func TestManager_EmitAsync(t *testing.T) {
	m := testManager()

	var wg sync.WaitGroup
	wg.Add(2)
	var calls atomic.Int32
	for _, name := range []string{"a", "b"} {
		m.On(EventFeedbackApproved, name, func(ctx context.Context, _ Payload) error {
			defer wg.Done()
			assert.NoError(t, ctx.Err(), "async handlers ignore caller cancellation")
			calls.Add(1)
			return nil
		})
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	m.EmitAsync(ctx, EventFeedbackApproved, nil)

	done := make(chan struct{})
	go func() { wg.Wait(); close(done) }()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		require.FailNow(t, "async handlers did not run")
	}
	assert.Equal(t, int32(2), calls.Load())
}
