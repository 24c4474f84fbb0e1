package notify

import (
	"fmt"
	"strings"
	"time"

	"github.com/hamed0406/pingwatch/internal/domain"
)

const (
	ColorDanger = "danger"
	ColorGood   = "good"
)

// Field is one row of a chat attachment.
type Field struct {
	Title string `json:"title"`
	Value string `json:"value"`
	Short bool   `json:"short"`
}

type Attachment struct {
	Color  string  `json:"color"`
	Fields []Field `json:"fields"`
}

// WebhookPayload is the chat-compatible body POSTed to webhook channels.
type WebhookPayload struct {
	Text        string       `json:"text"`
	Attachments []Attachment `json:"attachments"`
}

// Message is one alert rendered for every channel.
type Message struct {
	Subject string
	Heading string
	Footer  string
	Color   string
	Fields  []Field
}

func DownMessage(m domain.Monitor, r domain.PingResult) Message {
	name := m.DisplayName()
	return Message{
		Subject: fmt.Sprintf("Alert: %s is down", name),
		Heading: "Monitor Alert",
		Footer:  "The monitor detected that the service is not responding correctly.",
		Color:   ColorDanger,
		Fields: []Field{
			{Title: "Monitor Name", Value: name, Short: true},
			{Title: "URL", Value: m.URL, Short: true},
			{Title: "Status Code", Value: fmt.Sprintf("%d", r.StatusCode), Short: true},
			{Title: "Response Time", Value: fmt.Sprintf("%dms", r.ResponseTimeMs), Short: true},
			{Title: "Timestamp", Value: isoTime(r.Timestamp), Short: false},
		},
	}
}

func RecoveryMessage(m domain.Monitor, downSince, recoveredAt time.Time) Message {
	name := m.DisplayName()
	return Message{
		Subject: fmt.Sprintf("Recovery: %s is back online", name),
		Heading: "Monitor Recovery Alert",
		Footer:  "The monitor detected that the service has recovered and is now responding correctly.",
		Color:   ColorGood,
		Fields: []Field{
			{Title: "Monitor Name", Value: name, Short: true},
			{Title: "URL", Value: m.URL, Short: true},
			{Title: "Status", Value: "Back online", Short: true},
			{Title: "Downtime Duration", Value: FormatDowntime(recoveredAt.Sub(downSince)), Short: true},
			{Title: "Recovered At", Value: isoTime(recoveredAt), Short: false},
		},
	}
}

// Body renders the plain-text email body.
func (m Message) Body() string {
	var b strings.Builder
	b.WriteString(m.Heading)
	b.WriteString("\n\n")
	for _, f := range m.Fields {
		fmt.Fprintf(&b, "%s: %s\n", f.Title, f.Value)
	}
	if m.Footer != "" {
		b.WriteString("\n")
		b.WriteString(m.Footer)
	}
	return strings.TrimSpace(b.String())
}

func (m Message) WebhookPayload() WebhookPayload {
	return WebhookPayload{
		Text:        m.Subject,
		Attachments: []Attachment{{Color: m.Color, Fields: m.Fields}},
	}
}

// FormatDowntime renders "2h 5m" from one hour up, "42m" below. Partial
// minutes are dropped.
func FormatDowntime(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	minutes := int64(d / time.Minute)
	hours := minutes / 60
	if hours > 0 {
		return fmt.Sprintf("%dh %dm", hours, minutes%60)
	}
	return fmt.Sprintf("%dm", minutes)
}

func isoTime(t time.Time) string {
	return t.UTC().Format("2006-01-02T15:04:05.000Z07:00")
}
