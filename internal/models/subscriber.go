// internal/models/subscriber.go
package models

// Notification channels.
const (
	ChannelEmail = "email"
	ChannelSMS   = "sms"
)

// Subscriber holds a subscriber's contact channels, regions of interest,
// hazard-type opt-ins and per-channel opt-in flags. Owned by the subscriber
// directory; this core only reads it.
type Subscriber struct {
	ID          string   `json:"id"`
	Email       string   `json:"email,omitempty"`
	Phone       string   `json:"phone,omitempty"`
	Regions     []string `json:"regions"`
	HazardTypes []string `json:"hazardTypes,omitempty"` // empty opts into every hazard type
	EmailOptIn  bool     `json:"emailOptIn"`
	SMSOptIn    bool     `json:"smsOptIn"`
}

// WantsHazard reports whether the subscriber has opted into alerts for the
// given hazard type.
func (s Subscriber) WantsHazard(hazardType string) bool {
	if len(s.HazardTypes) == 0 {
		return true
	}
	for _, h := range s.HazardTypes {
		if h == hazardType {
			return true
		}
	}
	return false
}

// Channels returns the channels the subscriber has opted into and has a
// destination for.
func (s Subscriber) Channels() []string {
	var out []string
	if s.EmailOptIn && s.Email != "" {
		out = append(out, ChannelEmail)
	}
	if s.SMSOptIn && s.Phone != "" {
		out = append(out, ChannelSMS)
	}
	return out
}
