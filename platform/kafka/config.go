package kafka

import (
	"time"

	kafkago "github.com/segmentio/kafka-go"
)

// Config параметры подключения к Kafka
type Config struct {
	// Brokers список брокеров, через запятую в KAFKA_BROKERS.
	// Пусто = адрес по умолчанию для APP_ENV (см. DefaultBrokers)
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	// NotificationsTopic топик запросов на уведомления пользователей
	NotificationsTopic string `env:"NOTIFICATIONS_TOPIC" envDefault:"user.notifications"`
	// WriteTimeout таймаут записи одного батча
	WriteTimeout time.Duration `env:"KAFKA_WRITE_TIMEOUT" envDefault:"10s"`
}

// DefaultBrokers возвращает брокеры для окружения: локально внешний listener, в docker имя контейнера
func DefaultBrokers(appEnv string) []string {
	if appEnv == "docker" {
		return []string{"kafka:9092"}
	}
	return []string{"127.0.0.1:19092"}
}

// NewWriter создаёт writer для topic. Hash balancer: сообщения с одним ключом попадают в одну партицию
func NewWriter(cfg Config, topic string) *kafkago.Writer {
	return &kafkago.Writer{
		Addr:                   kafkago.TCP(cfg.Brokers...),
		Topic:                  topic,
		Balancer:               &kafkago.Hash{},
		RequiredAcks:           kafkago.RequireAll,
		WriteTimeout:           cfg.WriteTimeout,
		AllowAutoTopicCreation: true,
	}
}
