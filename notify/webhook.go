package notify

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/rs/zerolog"

	"github.com/warden-ac/warden/worker"
)

// Webhook posts events as Discord embeds, routed per channel. Sends run on
// the shared worker pool so the pipeline never waits on Discord.
type Webhook struct {
	http *http.Client
	log  zerolog.Logger
	urls map[string]string
}

var _ Notifier = (*Webhook)(nil)

// NewWebhook creates a Webhook notifier. urls maps channel names to
// webhook endpoints; events for unmapped channels are dropped.
func NewWebhook(urls map[string]string, log zerolog.Logger) *Webhook {
	return &Webhook{
		http: &http.Client{Timeout: 15 * time.Second},
		log:  log.With().Str("component", "notify").Logger(),
		urls: urls,
	}
}

type webhookPayload struct {
	Embeds []webhookEmbed `json:"embeds"`
}

type webhookEmbed struct {
	Title       string         `json:"title,omitempty"`
	Description string         `json:"description,omitempty"`
	Color       int            `json:"color,omitempty"`
	Fields      []webhookField `json:"fields,omitempty"`
}

type webhookField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

// Notify queues the event for delivery.
func (w *Webhook) Notify(ev Event) {
	url, ok := w.urls[ev.Channel]
	if !ok || url == "" {
		return
	}

	embed := webhookEmbed{
		Title:       ev.Title,
		Description: ev.Description,
		Color:       ev.Color,
	}
	for _, f := range ev.Fields {
		embed.Fields = append(embed.Fields, webhookField{Name: f.Name, Value: f.Value, Inline: true})
	}
	body, err := json.Marshal(webhookPayload{Embeds: []webhookEmbed{embed}})
	if err != nil {
		w.log.Error().Err(err).Str("title", ev.Title).Msg("Encode webhook payload")
		return
	}

	worker.Submit(func() {
		resp, err := w.http.Post(url, "application/json", bytes.NewReader(body))
		if err != nil {
			w.log.Warn().Err(err).Str("channel", ev.Channel).Msg("Webhook send failed")
			return
		}
		defer resp.Body.Close()
		if resp.StatusCode >= 300 {
			w.log.Warn().Int("status", resp.StatusCode).Str("channel", ev.Channel).Msg("Webhook rejected event")
		}
	})
}
