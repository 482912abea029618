package logging

import (
	"fmt"
	"io"
	"os"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Config содержит конфигурацию logger
type Config struct {
	ServiceName string
	// Env local или docker
	Env string
	// Level debug/info/warn/error, по умолчанию info
	Level string
	// Format json или console; по умолчанию json в docker, console локально
	Format string
	// Output куда писать, по умолчанию os.Stderr
	Output io.Writer
}

// New создаёт zap.Logger. Ко всем записям добавляются поля service и env,
// caller пишется только локально
func New(cfg Config) (*zap.Logger, error) {
	level := zapcore.InfoLevel
	if cfg.Level != "" {
		parsed, err := zapcore.ParseLevel(cfg.Level)
		if err != nil {
			return nil, fmt.Errorf("invalid log level %q: %w", cfg.Level, err)
		}
		level = parsed
	}

	format := cfg.Format
	if format == "" {
		format = "console"
		if cfg.Env == "docker" {
			format = "json"
		}
	}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.TimeKey = "ts"
	encoderConfig.EncodeTime = zapcore.RFC3339NanoTimeEncoder
	encoderConfig.EncodeDuration = zapcore.MillisDurationEncoder

	var encoder zapcore.Encoder
	switch format {
	case "json":
		encoder = zapcore.NewJSONEncoder(encoderConfig)
	case "console":
		encoderConfig.EncodeLevel = zapcore.CapitalColorLevelEncoder
		encoder = zapcore.NewConsoleEncoder(encoderConfig)
	default:
		return nil, fmt.Errorf("invalid log format %q (must be json/console)", format)
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}

	var opts []zap.Option
	if cfg.Env != "docker" {
		opts = append(opts, zap.AddCaller())
	}
	opts = append(opts, zap.AddStacktrace(zapcore.DPanicLevel))

	core := zapcore.NewCore(encoder, zapcore.AddSync(out), level)
	return zap.New(core, opts...).With(
		zap.String("service", cfg.ServiceName),
		zap.String("env", cfg.Env),
	), nil
}

// Sync дописывает буфер; ошибку sync /dev/stderr на некоторых ОС игнорируем
func Sync(log *zap.Logger) {
	_ = log.Sync()
}
