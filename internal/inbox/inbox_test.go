package inbox

import (
	"context"
	gosync "sync"
	"testing"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/nhle/campus-notifier/internal/model"
)

type recordingSink struct {
	mu  gosync.Mutex
	got []model.Notification
}

func (r *recordingSink) ProcessNewNotification(n model.Notification) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, x := range r.got {
		if x.ID == n.ID {
			return false
		}
	}
	r.got = append(r.got, n)
	return true
}

func (r *recordingSink) ids() []model.ID {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]model.ID, 0, len(r.got))
	for _, n := range r.got {
		out = append(out, n.ID)
	}
	return out
}

func startConsumer(t *testing.T) (*Publisher, *recordingSink, func() error) {
	t.Helper()
	bus := NewBus(zap.NewNop())
	t.Cleanup(func() { _ = bus.Close() })

	sink := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- NewConsumer(bus, sink, nil).Run(ctx) }()

	pub := NewPublisher(bus)
	// gochannel drops messages published before a subscriber exists.
	require.Eventually(t, func() bool {
		_ = pub.Publish(model.Notification{ID: "warmup"})
		return len(sink.ids()) > 0
	}, time.Second, 10*time.Millisecond)

	return pub, sink, func() error {
		cancel()
		return <-errCh
	}
}

func TestConsumer_DeliversPublishedNotifications(t *testing.T) {
	pub, sink, stop := startConsumer(t)

	n := Synthetic(true, time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC))
	require.NoError(t, pub.Publish(n))

	assert.Eventually(t, func() bool {
		for _, id := range sink.ids() {
			if id == n.ID {
				return true
			}
		}
		return false
	}, time.Second, 5*time.Millisecond)

	sink.mu.Lock()
	last := sink.got[len(sink.got)-1]
	sink.mu.Unlock()
	assert.True(t, last.Important)
	assert.Equal(t, n.Title, last.Title)

	assert.NoError(t, stop())
}

func TestConsumer_SkipsMalformedPayload(t *testing.T) {
	bus := NewBus(zap.NewNop())
	defer bus.Close()

	sink := &recordingSink{}
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	messages, err := bus.Subscribe(ctx, Topic)
	require.NoError(t, err)

	c := NewConsumer(bus, sink, nil)
	require.NoError(t, bus.Publish(Topic, message.NewMessage("m1", []byte("{not json"))))

	msg := <-messages
	c.process(msg)
	assert.Empty(t, sink.ids())

	select {
	case <-msg.Acked():
	case <-time.After(time.Second):
		t.Fatal("malformed message was not acked")
	}
}

func TestSynthetic(t *testing.T) {
	now := time.Date(2026, 10, 19, 9, 30, 0, 0, time.UTC)
	n := Synthetic(false, now)

	assert.NotEmpty(t, n.ID)
	assert.True(t, n.NotificationType.Known())
	assert.NotEmpty(t, n.Title)
	assert.Equal(t, "2026-10-19T09:30:00Z", n.CreatedAt)
	assert.False(t, n.IsRead())
	if n.NotificationType != model.TypeSystemAnnouncement {
		_, ok := n.EventID()
		assert.True(t, ok)
	}
}
