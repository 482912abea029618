package telegram

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

	"github.com/shestoi/marketsettle/internal/templates"
)

const defaultAPIBase = "https://api.telegram.org"

// Sender определяет интерфейс для отправки сообщений
type Sender interface {
	Send(ctx context.Context, chatID, text string) error
}

// TelegramSender реализует отправку сообщений через Telegram Bot API
type TelegramSender struct {
	logger *zap.Logger
	apiURL string
	client *http.Client
}

// NewTelegramSender создаёт новый Telegram sender. apiBase пустой — api.telegram.org
func NewTelegramSender(logger *zap.Logger, botToken, apiBase string) *TelegramSender {
	if apiBase == "" {
		apiBase = defaultAPIBase
	}
	return &TelegramSender{
		logger: logger,
		apiURL: strings.TrimRight(apiBase, "/") + "/bot" + botToken,
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// Send отправляет сообщение в Telegram
func (s *TelegramSender) Send(ctx context.Context, chatID, text string) error {
	body, err := json.Marshal(map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.apiURL+"/sendMessage", bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	// При не-200 читаем тело ответа для диагностики и не декодируем JSON
	if resp.StatusCode != http.StatusOK {
		raw, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("telegram API status %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var result struct {
		OK          bool   `json:"ok"`
		Description string `json:"description"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	if !result.OK {
		return fmt.Errorf("telegram API error: %s", result.Description)
	}

	s.logger.Debug("telegram message sent", zap.String("chat_id", chatID))
	return nil
}

// NoOpSender - no-op реализация Sender (когда Telegram отключён)
type NoOpSender struct {
	logger *zap.Logger
}

// NewNoOpSender создаёт no-op sender
func NewNoOpSender(logger *zap.Logger) *NoOpSender {
	return &NoOpSender{logger: logger}
}

// Send ничего не делает, только логирует
func (s *NoOpSender) Send(ctx context.Context, chatID, text string) error {
	s.logger.Debug("no-op sender: message not sent",
		zap.String("chat_id", chatID),
		zap.String("text_preview", truncate(text, 50)),
	)
	return nil
}

// OpsAlerter шлёт алерты операторам в один чат, реализует service.OpsAlerter
type OpsAlerter struct {
	sender   Sender
	renderer *templates.Renderer
	chatID   string
}

// NewOpsAlerter создаёт алертер поверх Sender
func NewOpsAlerter(sender Sender, renderer *templates.Renderer, chatID string) *OpsAlerter {
	return &OpsAlerter{sender: sender, renderer: renderer, chatID: chatID}
}

// Alert рендерит ops_alert шаблон и отправляет его
func (a *OpsAlerter) Alert(ctx context.Context, text string) error {
	msg, err := a.renderer.Render(templates.OpsAlert, map[string]string{"text": text})
	if err != nil {
		return err
	}
	return a.sender.Send(ctx, a.chatID, msg)
}

// truncate обрезает строку до указанной длины
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
