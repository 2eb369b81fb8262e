package logger

import (
	"context"

	"go.uber.org/fx"
)

// FXModule provides *LoggerClient and the Logger interface.
//
// A logger.Config must be present in the container.
var FXModule = fx.Module("logger",
	fx.Provide(
		NewLoggerClient,
		ProvideLogger,
	),
	fx.Invoke(RegisterLoggerLifecycle),
)

// ProvideLogger exposes the concrete client as the Logger interface.
func ProvideLogger(l *LoggerClient) Logger {
	return l
}

// RegisterLoggerLifecycle flushes buffered entries on shutdown.
func RegisterLoggerLifecycle(lc fx.Lifecycle, client *LoggerClient) {
	lc.Append(fx.Hook{
		OnStop: func(ctx context.Context) error {
			// Sync on stderr returns EINVAL on some platforms; it is not actionable.
			_ = client.Zap.Sync()
			return nil
		},
	})
}
