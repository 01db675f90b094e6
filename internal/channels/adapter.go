// internal/channels/adapter.go
package channels

import (
	"context"
	"fmt"
	"strings"
	"text/template"

	"bushfire-beacon/internal/models"
)

// Message is a rendered notification, ready for a channel adapter.
type Message struct {
	Subject string `json:"subject,omitempty"`
	Body    string `json:"body"`
}

// Adapter delivers one message to one destination on one channel. Send
// returns a transient delivery error when a retry may succeed and a permanent
// one when it cannot (rejected or malformed destination).
type Adapter interface {
	Channel() string
	Send(ctx context.Context, destination string, msg Message) error
}

const emailBodyTemplate = `A {{.HazardType}} hazard has been reported in region {{.Region}}.

Severity:    {{.Severity}}
Reported at: {{.ReportedAt}}
Source:      {{.Source}}

Follow the advice of your local emergency services.`

var emailBody = template.Must(template.New("emailBody").Parse(emailBodyTemplate))

// Render builds the channel-appropriate message for an alert. Email gets a
// subject plus a multi-line body; sms gets a single compact line.
func Render(alert *models.Alert, channel string) Message {
	reported := alert.ReportedAt.UTC().Format("2006-01-02 15:04 MST")

	if channel == models.ChannelSMS {
		return Message{
			Body: fmt.Sprintf("%s ALERT: %s reported in %s at %s. Follow local emergency advice.",
				strings.ToUpper(alert.Severity), alert.HazardType, alert.Region, reported),
		}
	}

	var body strings.Builder
	_ = emailBody.Execute(&body, map[string]interface{}{
		"HazardType": alert.HazardType,
		"Region":     alert.Region,
		"Severity":   alert.Severity,
		"ReportedAt": reported,
		"Source":     alert.Source,
	})
	return Message{
		Subject: fmt.Sprintf("[%s] %s alert for %s", strings.ToUpper(alert.Severity), alert.HazardType, alert.Region),
		Body:    body.String(),
	}
}
