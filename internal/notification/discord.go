package notification

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"

	"signalgateway/internal/metrics"
	"signalgateway/internal/signal"
)

const defaultColor = 0x667eea

var ratingColors = map[signal.Rating]int{
	signal.RatingStrongBuy:  0x22c55e,
	signal.RatingBuy:        0x84cc16,
	signal.RatingHold:       0xf59e0b,
	signal.RatingSell:       0xef4444,
	signal.RatingStrongSell: 0xef4444,
}

type embedField struct {
	Name   string `json:"name"`
	Value  string `json:"value"`
	Inline bool   `json:"inline"`
}

type embed struct {
	Title       string       `json:"title"`
	Description string       `json:"description,omitempty"`
	Color       int          `json:"color"`
	Fields      []embedField `json:"fields"`
	Timestamp   string       `json:"timestamp,omitempty"`
}

type webhookMessage struct {
	Username string  `json:"username,omitempty"`
	Embeds   []embed `json:"embeds"`
}

// Discord posts an embed to a Discord webhook for every pushed signal.
type Discord struct {
	client     *resty.Client
	webhookURL string
	username   string
}

func NewDiscord(webhookURL, username string, timeout time.Duration) (*Discord, error) {
	webhookURL = strings.TrimSpace(webhookURL)
	if webhookURL == "" {
		return nil, errors.New("discord webhook url is empty")
	}
	client := resty.New().SetHeader("Content-Type", "application/json")
	if timeout > 0 {
		client.SetTimeout(timeout)
	}
	return &Discord{client: client, webhookURL: webhookURL, username: username}, nil
}

func (d *Discord) NotifySignal(ctx context.Context, rec signal.Record) (err error) {
	defer func() {
		status := "ok"
		if err != nil {
			status = "error"
		}
		metrics.NotificationsTotal.WithLabelValues("discord", status).Inc()
	}()

	resp, err := d.client.R().
		SetContext(ctx).
		SetBody(webhookMessage{Username: d.username, Embeds: []embed{signalEmbed(rec)}}).
		Post(d.webhookURL)
	if err != nil {
		return err
	}
	if resp.IsError() {
		return fmt.Errorf("discord webhook http %d: %s", resp.StatusCode(), strings.TrimSpace(resp.String()))
	}
	return nil
}

func signalEmbed(rec signal.Record) embed {
	color := defaultColor
	rating := "-"
	if rec.Rating != nil {
		rating = strings.ToUpper(string(*rec.Rating))
		if c, ok := ratingColors[*rec.Rating]; ok {
			color = c
		}
	}

	e := embed{
		Title:       "New signal: " + orDash(rec.Symbol),
		Description: orEmpty(rec.Description),
		Color:       color,
		Fields: []embedField{
			{Name: "Rating", Value: "`" + rating + "`", Inline: true},
			{Name: "Score", Value: "`" + intOrDash(rec.Score) + "/300`", Inline: true},
			{Name: "Timeframe", Value: "`" + orDash(rec.Timeframe) + "`", Inline: true},
			{Name: "Entry", Value: price(rec.Entry), Inline: true},
			{Name: "Stop loss", Value: price(rec.StopLoss), Inline: true},
			{Name: "TP1 / TP2 / TP3", Value: price(rec.TP1) + " / " + price(rec.TP2) + " / " + price(rec.TP3), Inline: false},
			{Name: "R:R", Value: ratio(rec.RR), Inline: true},
			{Name: "Confluence", Value: intOrDash(rec.Confluence) + "%", Inline: true},
		},
	}
	if !rec.CreatedAt.IsZero() {
		e.Timestamp = rec.CreatedAt.UTC().Format(time.RFC3339)
	}
	return e
}

func price(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("$%.2f", *v)
}

func ratio(v *float64) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprintf("1:%.1f", *v)
}

func intOrDash(v *int) string {
	if v == nil {
		return "-"
	}
	return fmt.Sprint(*v)
}

func orDash(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func orEmpty(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
