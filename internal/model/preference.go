package model

import "fmt"

// Channel is a delivery channel a preference can toggle.
type Channel string

const (
	ChannelEmail Channel = "email"
	ChannelPush  Channel = "push"
	ChannelInApp Channel = "inApp"
)

// Channels lists every channel in display order.
var Channels = []Channel{ChannelEmail, ChannelPush, ChannelInApp}

// Label returns the column heading for the channel.
func (c Channel) Label() string {
	switch c {
	case ChannelEmail:
		return "Email"
	case ChannelPush:
		return "Push"
	case ChannelInApp:
		return "In-app"
	default:
		return string(c)
	}
}

// Preference holds the channel toggles for one notification type.
type Preference struct {
	NotificationType NotificationType `json:"notificationType"`
	EmailEnabled     bool             `json:"emailEnabled"`
	PushEnabled      bool             `json:"pushEnabled"`
	InAppEnabled     bool             `json:"inAppEnabled"`
}

// DefaultPreference returns the implicit all-enabled record for t.
func DefaultPreference(t NotificationType) Preference {
	return Preference{
		NotificationType: t,
		EmailEnabled:     true,
		PushEnabled:      true,
		InAppEnabled:     true,
	}
}

// DefaultPreferences returns an all-enabled record for every known type.
func DefaultPreferences() []Preference {
	prefs := make([]Preference, 0, len(KnownTypes))
	for _, t := range KnownTypes {
		prefs = append(prefs, DefaultPreference(t))
	}
	return prefs
}

// Enabled reports the value of a single channel.
func (p Preference) Enabled(c Channel) bool {
	switch c {
	case ChannelEmail:
		return p.EmailEnabled
	case ChannelPush:
		return p.PushEnabled
	case ChannelInApp:
		return p.InAppEnabled
	default:
		return false
	}
}

// Set changes a single channel.
func (p *Preference) Set(c Channel, value bool) error {
	switch c {
	case ChannelEmail:
		p.EmailEnabled = value
	case ChannelPush:
		p.PushEnabled = value
	case ChannelInApp:
		p.InAppEnabled = value
	default:
		return fmt.Errorf("unknown channel %q", c)
	}
	return nil
}
