package inbox

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/ThreeDotsLabs/watermill/message"
	"go.uber.org/zap"

	"github.com/nhle/campus-notifier/internal/model"
)

// Sink receives decoded notifications. notify.Store implements it.
type Sink interface {
	ProcessNewNotification(n model.Notification) bool
}

// Consumer feeds bus messages into a Sink.
type Consumer struct {
	sub  message.Subscriber
	sink Sink
	log  *zap.Logger
}

// NewConsumer creates a consumer.
func NewConsumer(sub message.Subscriber, sink Sink, l *zap.Logger) *Consumer {
	if l == nil {
		l = zap.NewNop()
	}
	return &Consumer{sub: sub, sink: sink, log: l}
}

// Run subscribes and processes messages until ctx is done.
func (c *Consumer) Run(ctx context.Context) error {
	messages, err := c.sub.Subscribe(ctx, Topic)
	if err != nil {
		return fmt.Errorf("subscribing to %s: %w", Topic, err)
	}

	for {
		select {
		case <-ctx.Done():
			return nil
		case msg, ok := <-messages:
			if !ok {
				return nil
			}
			c.process(msg)
		}
	}
}

func (c *Consumer) process(msg *message.Message) {
	// Malformed payloads are acked so they are not redelivered.
	defer msg.Ack()

	var n model.Notification
	if err := json.Unmarshal(msg.Payload, &n); err != nil {
		c.log.Warn("dropping malformed notification",
			zap.String("message_uuid", msg.UUID), zap.Error(err))
		return
	}

	if !c.sink.ProcessNewNotification(n) {
		c.log.Debug("duplicate notification ignored", zap.String("id", string(n.ID)))
	}
}
