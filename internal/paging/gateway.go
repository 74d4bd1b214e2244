// Package paging alerts a human operator over Telegram when a room asks
// for help, behind a global enable flag and a per-connection cooldown.
package paging

import (
	"context"
	"encoding/json"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"sync/atomic"
	"time"
)

const defaultAPIBase = "https://api.telegram.org"

// Gateway sends operator pages through the Telegram Bot API.
type Gateway struct {
	botToken string
	chatID   string
	apiBase  string
	client   *http.Client
	enabled  atomic.Bool
}

// NewGateway builds a Telegram gateway. Returns ErrMissingConfig when
// the bot token or chat ID is empty.
func NewGateway(botToken, chatID string) (*Gateway, error) {
	if botToken == "" || chatID == "" {
		return nil, ErrMissingConfig
	}

	g := &Gateway{
		botToken: botToken,
		chatID:   chatID,
		apiBase:  defaultAPIBase,
		client:   &http.Client{Timeout: 10 * time.Second},
	}
	g.enabled.Store(true)
	return g, nil
}

// Enabled reports whether operator paging currently accepts requests.
func (g *Gateway) Enabled() bool {
	return g.enabled.Load()
}

// SetEnabled flips the global paging flag.
func (g *Gateway) SetEnabled(enabled bool) {
	g.enabled.Store(enabled)
}

// NoopGateway stands in when paging is configured off and no Telegram
// credentials exist. It rejects every page and cannot be re-enabled.
type NoopGateway struct{}

func (NoopGateway) Page(ctx context.Context, roomCode, username, message string) error {
	return ErrPagingDisabled
}

func (NoopGateway) Enabled() bool { return false }

func (NoopGateway) SetEnabled(enabled bool) {}

// Page sends one operator alert. It returns ErrPagingDisabled when the
// flag is off and a wrapped transport error on HTTP failure. No retry;
// the caller reports failure to the requesting user.
func (g *Gateway) Page(ctx context.Context, roomCode, username, message string) error {
	if !g.enabled.Load() {
		return ErrPagingDisabled
	}

	var b strings.Builder
	fmt.Fprintf(&b, "<b>Help requested in room %s</b>\n", html.EscapeString(roomCode))
	fmt.Fprintf(&b, "From: %s", html.EscapeString(username))
	if message != "" {
		fmt.Fprintf(&b, "\nMessage: %s", html.EscapeString(message))
	}

	body, err := json.Marshal(map[string]string{
		"chat_id":    g.chatID,
		"text":       b.String(),
		"parse_mode": "HTML",
	})
	if err != nil {
		return fmt.Errorf("encode telegram request: %w", err)
	}

	url := fmt.Sprintf("%s/bot%s/sendMessage", g.apiBase, g.botToken)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, strings.NewReader(string(body)))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := g.client.Do(req)
	if err != nil {
		return fmt.Errorf("send telegram request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("telegram returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	return nil
}
