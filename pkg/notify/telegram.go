package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
)

const defaultTelegramAPI = "https://api.telegram.org"

// TelegramSink sends reminders to one chat through the Telegram Bot API.
type TelegramSink struct {
	// BaseURL is the Bot API root; tests point it at an httptest server.
	BaseURL string
	Client  *http.Client

	token  string
	chatID int64
}

// NewTelegramSink creates a sink for the given bot token and chat.
func NewTelegramSink(token string, chatID int64) *TelegramSink {
	return &TelegramSink{
		BaseURL: defaultTelegramAPI,
		Client:  &http.Client{Timeout: 10 * time.Second},
		token:   token,
		chatID:  chatID,
	}
}

// ReminderText is the message body for a reminder.
func ReminderText(pendingCount int) string {
	if pendingCount == 1 {
		return "You have 1 kanji waiting for review."
	}
	return fmt.Sprintf("You have %d kanji waiting for review.", pendingCount)
}

type sendMessageRequest struct {
	ChatID int64  `json:"chat_id"`
	Text   string `json:"text"`
}

type botResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

// SendReviewReminder implements Sink.
func (s *TelegramSink) SendReviewReminder(ctx context.Context, pendingCount int) error {
	body, err := json.Marshal(sendMessageRequest{ChatID: s.chatID, Text: ReminderText(pendingCount)})
	if err != nil {
		return err
	}

	url := strings.TrimSuffix(s.BaseURL, "/") + "/bot" + s.token + "/sendMessage"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build telegram request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}
	resp, err := client.Do(req)
	if err != nil {
		// The URL carries the bot token; keep it out of logs.
		return fmt.Errorf("telegram sendMessage: %w", redactToken(err, s.token))
	}
	defer resp.Body.Close()

	// Bot API error payloads are small; cap the read anyway.
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 64*1024))
	var br botResponse
	_ = json.Unmarshal(raw, &br)

	if resp.StatusCode != http.StatusOK || !br.OK {
		if br.Description != "" {
			return fmt.Errorf("telegram sendMessage: %s: %s", resp.Status, br.Description)
		}
		return fmt.Errorf("telegram sendMessage: %s", resp.Status)
	}
	return nil
}

type redactedError struct{ msg string }

func (e *redactedError) Error() string { return e.msg }

func redactToken(err error, token string) error {
	if token == "" || !strings.Contains(err.Error(), token) {
		return err
	}
	return &redactedError{strings.ReplaceAll(err.Error(), token, "<redacted>")}
}

// LogSink only logs reminders. It is used when no bot token is configured.
type LogSink struct {
	Log *zap.Logger
}

// SendReviewReminder implements Sink.
func (s LogSink) SendReviewReminder(ctx context.Context, pendingCount int) error {
	log := s.Log
	if log == nil {
		log = zap.NewNop()
	}
	log.Info(ReminderText(pendingCount), zap.Int("pending", pendingCount))
	return nil
}
