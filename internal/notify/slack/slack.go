// Package slack sends job lifecycle notifications to a Slack incoming
// webhook, formatted as block-kit messages.
package slack

import (
	"context"
	"fmt"
	"time"

	"github.com/slack-go/slack"

	"github.com/joshgermon/bksd/internal/interfaces"
	"github.com/joshgermon/bksd/internal/model"
)

// Notifier posts to a single incoming webhook URL.
type Notifier struct {
	WebhookURL string
	Timeout    time.Duration
}

// New creates a Notifier posting to webhookURL with a 5 second default
// timeout.
func New(webhookURL string) *Notifier {
	return &Notifier{WebhookURL: webhookURL, Timeout: 5 * time.Second}
}

func (n *Notifier) Notify(ctx context.Context, event model.JobEvent) error {
	msg := n.format(event)

	timeout := n.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	if err := slack.PostWebhookContext(ctx, n.WebhookURL, &msg); err != nil {
		return fmt.Errorf("slack: post webhook: %w", err)
	}
	return nil
}

func (n *Notifier) format(event model.JobEvent) slack.WebhookMessage {
	shortID := event.JobID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}

	switch event.Kind {
	case model.EventStarted:
		return slack.WebhookMessage{Blocks: &slack.Blocks{BlockSet: []slack.Block{
			header("Backup Started"),
			fields(
				field("Device", event.DeviceLabel),
				field("Job ID", "`"+shortID+"`"),
				field("Source", "`"+event.Source+"`"),
				field("Destination", "`"+event.Destination+"`"),
			),
		}}}
	case model.EventCompleted:
		sizeMB := float64(event.TotalBytes) / (1024 * 1024)
		speed := 0.0
		if event.DurationSecs > 0 {
			speed = sizeMB / event.DurationSecs
		}
		return slack.WebhookMessage{Blocks: &slack.Blocks{BlockSet: []slack.Block{
			header("Backup Complete"),
			fields(
				field("Device", event.DeviceLabel),
				field("Job ID", "`"+shortID+"`"),
				field("Size", fmt.Sprintf("%.1f MB", sizeMB)),
				field("Duration", fmt.Sprintf("%.0fs (%.1f MB/s)", event.DurationSecs, speed)),
			),
		}}}
	case model.EventFailed:
		return slack.WebhookMessage{Blocks: &slack.Blocks{BlockSet: []slack.Block{
			header("Backup Failed"),
			fields(
				field("Device", event.DeviceLabel),
				field("Job ID", "`"+shortID+"`"),
			),
			slack.NewSectionBlock(slack.NewTextBlockObject(slack.MarkdownType, "*Error:*\n"+event.Message, false, false), nil, nil),
		}}}
	default:
		return slack.WebhookMessage{Text: fmt.Sprintf("job %s: %s", shortID, event.Kind)}
	}
}

func header(text string) *slack.HeaderBlock {
	return slack.NewHeaderBlock(slack.NewTextBlockObject(slack.PlainTextType, text, true, false))
}

func field(label, value string) *slack.TextBlockObject {
	return slack.NewTextBlockObject(slack.MarkdownType, fmt.Sprintf("*%s:*\n%s", label, value), false, false)
}

func fields(f ...*slack.TextBlockObject) *slack.SectionBlock {
	return slack.NewSectionBlock(nil, f, nil)
}

var _ interfaces.Notifier = (*Notifier)(nil)
