package channel

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInbox_FIFO(t *testing.T) {
	in := NewInbox[string](3)
	in.Send("snapshot-1")
	in.Send("click")
	require.NoError(t, in.SendContext(context.Background(), "snapshot-2"))

	assert.Equal(t, 3, in.Len())
	for _, want := range []string{"snapshot-1", "click", "snapshot-2"} {
		assert.Equal(t, want, <-in.Receive())
	}
	assert.Zero(t, in.Len())
}

func TestInbox_SendContext(t *testing.T) {
	t.Run("full inbox times out", func(t *testing.T) {
		in := NewInbox[int](1)
		in.Send(1)

		ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer cancel()

		assert.ErrorIs(t, in.SendContext(ctx, 2), context.DeadlineExceeded)
		assert.Equal(t, 1, in.Len())
	})

	t.Run("done context beats free room", func(t *testing.T) {
		in := NewInbox[int](4)
		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		assert.ErrorIs(t, in.SendContext(ctx, 1), context.Canceled)
		assert.Zero(t, in.Len())
	})
}

func TestInbox_ZeroCapacityHandsOver(t *testing.T) {
	in := NewInbox[int](-5)
	assert.Zero(t, in.Cap())

	sent := make(chan error, 1)
	go func() { sent <- in.SendContext(context.Background(), 42) }()

	select {
	case v := <-in.Receive():
		assert.Equal(t, 42, v)
	case <-time.After(time.Second):
		t.Fatal("no hand-over")
	}
	require.NoError(t, <-sent)
}

func TestInbox_CloseTwice(t *testing.T) {
	in := NewInbox[int](1)
	in.Close()
	assert.NotPanics(t, in.Close)

	_, ok := <-in.Receive()
	assert.False(t, ok)
}

func TestNew_SatisfiesChannel(t *testing.T) {
	var ch Channel[int] = New[int](4)
	require.NotNil(t, ch)
	ch.Close()
}
