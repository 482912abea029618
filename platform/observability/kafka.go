package observability

import (
	"context"

	kafkago "github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
)

// kafkaHeaderCarrier адаптирует заголовки kafka.Message к propagation.TextMapCarrier
type kafkaHeaderCarrier struct {
	headers *[]kafkago.Header
}

func (c kafkaHeaderCarrier) Get(key string) string {
	for _, h := range *c.headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}

func (c kafkaHeaderCarrier) Set(key, value string) {
	for i, h := range *c.headers {
		if h.Key == key {
			(*c.headers)[i].Value = []byte(value)
			return
		}
	}
	*c.headers = append(*c.headers, kafkago.Header{Key: key, Value: []byte(value)})
}

func (c kafkaHeaderCarrier) Keys() []string {
	out := make([]string, 0, len(*c.headers))
	for _, h := range *c.headers {
		out = append(out, h.Key)
	}
	return out
}

// InjectKafkaHeaders пишет trace context из ctx в заголовки сообщения (traceparent, baggage)
func InjectKafkaHeaders(ctx context.Context, msg *kafkago.Message) {
	otel.GetTextMapPropagator().Inject(ctx, kafkaHeaderCarrier{headers: &msg.Headers})
}

// ExtractKafkaHeaders восстанавливает trace context из заголовков сообщения
func ExtractKafkaHeaders(ctx context.Context, msg kafkago.Message) context.Context {
	headers := msg.Headers
	return otel.GetTextMapPropagator().Extract(ctx, kafkaHeaderCarrier{headers: &headers})
}
