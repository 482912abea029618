package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/shestoi/marketsettle/internal/service"
	"github.com/shestoi/marketsettle/internal/templates"
	platformkafka "github.com/shestoi/marketsettle/platform/kafka"
	"github.com/shestoi/marketsettle/platform/observability"
)

const (
	notificationEventType    = "user.notification.requested"
	notificationEventVersion = 1
)

// messageWriter — часть kafka.Writer, которая нужна publisher-у
type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// NotificationPublisher реализует service.Notifier: кладёт уведомление в Kafka,
// доставку пользователю делает сервис уведомлений
type NotificationPublisher struct {
	logger   *zap.Logger
	writer   messageWriter
	renderer *templates.Renderer
	topic    string
}

// NewNotificationPublisher создаёт новый Kafka publisher уведомлений в cfg.NotificationsTopic
func NewNotificationPublisher(logger *zap.Logger, cfg platformkafka.Config, renderer *templates.Renderer) *NotificationPublisher {
	writer := platformkafka.NewWriter(cfg, cfg.NotificationsTopic)
	return newNotificationPublisher(logger, writer, cfg.NotificationsTopic, renderer)
}

func newNotificationPublisher(logger *zap.Logger, writer messageWriter, topic string, renderer *templates.Renderer) *NotificationPublisher {
	return &NotificationPublisher{
		logger:   logger,
		writer:   writer,
		renderer: renderer,
		topic:    topic,
	}
}

// Close закрывает Kafka writer
func (p *NotificationPublisher) Close() error {
	return p.writer.Close()
}

// Notify рендерит текст и публикует событие с ключом user_id (порядок по пользователю)
func (p *NotificationPublisher) Notify(ctx context.Context, userID string, kind service.NotificationKind, payload map[string]string) error {
	text, err := p.renderer.Render(string(kind), payload)
	if err != nil {
		return err
	}

	event := map[string]any{
		"event_id":      uuid.New().String(),
		"event_type":    notificationEventType,
		"event_version": notificationEventVersion,
		"occurred_at":   time.Now().UTC().Format(time.RFC3339),
		"user_id":       userID,
		"kind":          string(kind),
		"text":          text,
		"data":          payload,
	}
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal notification: %w", err)
	}

	msg := kafka.Message{
		Key:   []byte(userID),
		Value: value,
	}
	observability.InjectKafkaHeaders(ctx, &msg)

	err = p.writer.WriteMessages(ctx, msg)
	if err != nil {
		p.logger.Error("failed to publish notification",
			zap.Error(err),
			zap.String("topic", p.topic),
			zap.String("user_id", userID),
			zap.String("kind", string(kind)),
		)
		return err
	}

	p.logger.Info("notification published",
		zap.String("topic", p.topic),
		zap.String("user_id", userID),
		zap.String("kind", string(kind)),
	)
	return nil
}
