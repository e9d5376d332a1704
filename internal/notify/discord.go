package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Embed colors matching the Slack attachment colors.
var embedColors = map[string]int{
	"good":    0x2EB67D,
	"warning": 0xECB22E,
	"danger":  0xE01E5A,
}

type discordPayload struct {
	Content string         `json:"content"`
	Embeds  []discordEmbed `json:"embeds,omitempty"`
}

type discordEmbed struct {
	Title  string         `json:"title"`
	Color  int            `json:"color"`
	Fields []discordField `json:"fields,omitempty"`
	Footer *discordFooter `json:"footer,omitempty"`
}

type discordField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type discordFooter struct {
	Text string `json:"text"`
}

// DiscordNotifier posts sweep summaries to a Discord webhook.
type DiscordNotifier struct {
	URL    string
	Client *http.Client
}

func NewDiscordNotifier(url string) *DiscordNotifier {
	return &DiscordNotifier{URL: url, Client: &http.Client{Timeout: 10 * time.Second}}
}

// Notify posts the summary line plus an embed colored by outcome.
func (d *DiscordNotifier) Notify(ctx context.Context, sum Summary) error {
	if d.URL == "" {
		return fmt.Errorf("discord webhook URL is not configured")
	}

	payload := discordPayload{
		Content: sum.Text(),
		Embeds: []discordEmbed{{
			Title: "Sweep " + sum.State,
			Color: embedColors[color(sum)],
			Fields: []discordField{
				{Name: "Plans", Value: strings.Join(sum.Plans, ", "), Inline: true},
				{Name: "Runs", Value: fmt.Sprint(sum.Runs), Inline: true},
				{Name: "Failed", Value: fmt.Sprint(sum.Failed), Inline: true},
				{Name: "Gaps", Value: fmt.Sprint(sum.Gaps), Inline: true},
			},
			Footer: &discordFooter{Text: sum.ID},
		}},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode discord payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, d.URL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build discord request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := d.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		return fmt.Errorf("post discord webhook: %w", err)
	}
	defer resp.Body.Close()

	// Discord answers 204 unless ?wait=true is set.
	if resp.StatusCode/100 != 2 {
		return fmt.Errorf("discord webhook returned %s", resp.Status)
	}
	return nil
}
