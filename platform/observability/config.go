package observability

import "time"

// Config настройки OpenTelemetry. Заполняется из OTEL_* переменных в internal/config
type Config struct {
	Enabled bool
	// OTLPEndpoint host:port OTLP gRPC коллектора, общий для трейсов и метрик
	OTLPEndpoint string
	// SamplingRatio 0..1
	SamplingRatio float64
	// MetricsInterval период выгрузки метрик, 0 = 10s
	MetricsInterval       time.Duration
	ServiceName           string
	DeploymentEnvironment string // local или docker
	ServiceVersion        string
}
