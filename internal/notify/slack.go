package notify

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/slack-go/slack"
)

// SlackNotifier sends notifications to Slack via an incoming webhook.
type SlackNotifier struct {
	WebhookURL string
	Client     *http.Client
}

// NewSlackNotifier creates a new SlackNotifier.
func NewSlackNotifier(webhookURL string) *SlackNotifier {
	return &SlackNotifier{
		WebhookURL: webhookURL,
		Client:     &http.Client{Timeout: 10 * time.Second},
	}
}

// Notify posts the summary with an attachment colored by outcome.
func (s *SlackNotifier) Notify(ctx context.Context, sum Summary) error {
	if s.WebhookURL == "" {
		return fmt.Errorf("slack webhook URL is not configured")
	}

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	msg := &slack.WebhookMessage{
		Text: sum.Text(),
		Attachments: []slack.Attachment{{
			Color: color(sum),
			Fields: []slack.AttachmentField{
				{Title: "Plans", Value: strings.Join(sum.Plans, ", "), Short: true},
				{Title: "State", Value: sum.State, Short: true},
				{Title: "Runs", Value: strconv.Itoa(sum.Runs), Short: true},
				{Title: "Gaps", Value: strconv.Itoa(sum.Gaps), Short: true},
			},
			Footer: sum.ID,
		}},
	}
	if err := slack.PostWebhookCustomHTTPContext(ctx, s.WebhookURL, client, msg); err != nil {
		return fmt.Errorf("failed to send slack notification: %w", err)
	}
	return nil
}

func color(s Summary) string {
	switch {
	case s.State != StateCompleted:
		return "danger"
	case s.Gaps > 0:
		return "warning"
	default:
		return "good"
	}
}
