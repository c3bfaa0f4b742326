package inbox

import (
	"encoding/json"
	"fmt"
	"math/rand"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	"github.com/google/uuid"

	"github.com/nhle/campus-notifier/internal/model"
)

// Publisher puts notifications on the bus.
type Publisher struct {
	pub message.Publisher
}

// NewPublisher wraps a watermill publisher.
func NewPublisher(pub message.Publisher) *Publisher {
	return &Publisher{pub: pub}
}

// Publish sends one notification.
func (p *Publisher) Publish(n model.Notification) error {
	payload, err := json.Marshal(n)
	if err != nil {
		return fmt.Errorf("marshaling notification %s: %w", n.ID, err)
	}

	msg := message.NewMessage(uuid.NewString(), payload)
	msg.Metadata.Set("notification_id", string(n.ID))
	if err := p.pub.Publish(Topic, msg); err != nil {
		return fmt.Errorf("publishing notification %s: %w", n.ID, err)
	}
	return nil
}

var syntheticTitles = map[model.NotificationType]string{
	model.TypeEventRegistration:  "Registration confirmed",
	model.TypeEventReminder:      "Event starts in one hour",
	model.TypeEventCancellation:  "Event cancelled",
	model.TypeEventUpdate:        "Event details changed",
	model.TypeVenueChange:        "Venue changed",
	model.TypeSystemAnnouncement: "Campus announcement",
}

// Synthetic builds a fake incoming notification for local testing of the
// delivery path.
func Synthetic(important bool, now time.Time) model.Notification {
	t := model.KnownTypes[rand.Intn(len(model.KnownTypes))]
	n := model.Notification{
		ID:               model.ID(uuid.NewString()),
		Title:            syntheticTitles[t],
		Content:          "Simulated delivery at " + now.Format("15:04:05"),
		NotificationType: t,
		CreatedAt:        now.UTC().Format(time.RFC3339),
		Important:        important,
	}
	if t != model.TypeSystemAnnouncement {
		n.ReferenceType = "EVENT"
		n.ReferenceID = fmt.Sprintf("%d", 1000+rand.Intn(9000))
	}
	return n
}
