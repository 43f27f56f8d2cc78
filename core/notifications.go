package core

import (
	"bytes"
	"context"
	"fmt"
	"strings"

	"github.com/resend/resend-go/v2"
	"github.com/rs/zerolog/log"
	"github.com/yuin/goldmark"
)

type Notifier interface {
	Notify(ctx context.Context, event *Event, attendee *Attendee, reason NotificationReason) error
}

type Message struct {
	To      string
	Subject string
	HTML    string
}

type notificationTemplate struct {
	subject string
	content string
}

var notificationTemplates = map[NotificationReason]notificationTemplate{
	Invitation: {
		subject: "Invitation: %s",
		content: "You have been invited to the above event. Please confirm your attendance.",
	},
	Reminder: {
		subject: "Reminder: %s is upcoming",
		content: "This is a friendly reminder about the upcoming event.",
	},
	Cancellation: {
		subject: "Cancelled: %s",
		content: "We regret to inform you that this event has been cancelled.",
	},
	Rescheduled: {
		subject: "Rescheduled: %s",
		content: "This event has been rescheduled. Please review the updated time.",
	},
	UpdatedDetails: {
		subject: "Updated: %s",
		content: "The details for this event have been updated.",
	},
}

var fallbackTemplate = notificationTemplate{
	subject: "Event Notification: %s",
	content: "This is a notification regarding your event.",
}

const (
	startLayout = "Monday, January 2, 2006 at 3:04 PM"
	endLayout   = "3:04 PM"
)

// RenderNotification builds the email for one attendee. The body is written as
// markdown and converted to HTML.
func RenderNotification(event *Event, attendee *Attendee, reason NotificationReason) (*Message, error) {
	tmpl, ok := notificationTemplates[reason]
	if !ok {
		tmpl = fallbackTemplate
	}

	var md strings.Builder

	fmt.Fprintf(&md, "Hello %s,\n\n", attendee.Name)
	fmt.Fprintf(&md, "**Event:** %s  \n", event.Title)
	fmt.Fprintf(&md, "**When:** %s to %s  \n", event.StartTime.Format(startLayout), event.EndTime.Format(endLayout))
	fmt.Fprintf(&md, "**Description:** %s\n\n", event.Description)
	md.WriteString(tmpl.content)
	md.WriteString("\n\nThank you,  \nDoctor's Appointment System\n")

	var html bytes.Buffer

	err := goldmark.Convert([]byte(md.String()), &html)
	if err != nil {
		return nil, fmt.Errorf("failed to render notification body: %w", err)
	}

	return &Message{
		To:      attendee.Email,
		Subject: fmt.Sprintf(tmpl.subject, event.Title),
		HTML:    html.String(),
	}, nil
}

// LogNotifier only logs what it would have sent.
type LogNotifier struct{}

func NewLogNotifier() *LogNotifier {
	return &LogNotifier{}
}

func (n *LogNotifier) Notify(ctx context.Context, event *Event, attendee *Attendee, reason NotificationReason) error {
	msg, err := RenderNotification(event, attendee, reason)
	if err != nil {
		return err
	}

	log.Ctx(ctx).Info().Str("component", "notifier").Str("to", msg.To).Str("subject", msg.Subject).
		Str("reason", reason.String()).Msg("email notification sent")

	return nil
}

type ResendNotifier struct {
	client *resend.Client
	from   string
}

func NewResendNotifier(apiKey string, from string) *ResendNotifier {
	return &ResendNotifier{
		client: resend.NewClient(apiKey),
		from:   from,
	}
}

func (n *ResendNotifier) Notify(ctx context.Context, event *Event, attendee *Attendee, reason NotificationReason) error {
	msg, err := RenderNotification(event, attendee, reason)
	if err != nil {
		return err
	}

	sent, err := n.client.Emails.SendWithContext(ctx, &resend.SendEmailRequest{
		From:    n.from,
		To:      []string{msg.To},
		Subject: msg.Subject,
		Html:    msg.HTML,
	})
	if err != nil {
		return fmt.Errorf("resend send failed: %w", err)
	}

	log.Ctx(ctx).Info().Str("component", "notifier").Str("message_id", sent.Id).Str("to", msg.To).
		Str("subject", msg.Subject).Msg("email notification sent")

	return nil
}
