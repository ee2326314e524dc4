package logging

import (
	"context"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"go.opentelemetry.io/contrib/bridges/otelslog"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"
)

const instrumentationName = "GoEvolveAI"

var (
	meter    = otel.Meter(instrumentationName)
	logger   atomic.Pointer[slog.Logger]
	counters sync.Map
)

func init() {
	logger.Store(slog.New(slog.NewTextHandler(os.Stderr, nil)))
}

// Logger returns the process logger. It writes to stderr until UseOTel is called.
func Logger() *slog.Logger {
	return logger.Load()
}

// UseOTel routes every later log record through the OpenTelemetry log bridge.
func UseOTel() {
	logger.Store(otelslog.NewLogger(instrumentationName))
}

func Log(content string, level slog.Level, args ...any) {
	Logger().Log(context.Background(), level, content, args...)
}

// Counter returns a named Int64 counter, creating it on first use.
func Counter(name, description, unit string) metric.Int64Counter {
	if c, ok := counters.Load(name); ok {
		return c.(metric.Int64Counter)
	}
	counter, err := meter.Int64Counter(name,
		metric.WithDescription(description),
		metric.WithUnit(unit))
	if err != nil {
		Log("⚠️ Failed to create metric "+name, slog.LevelError, "error", err)
		return nil
	}
	actual, _ := counters.LoadOrStore(name, counter)
	return actual.(metric.Int64Counter)
}

// Inc adds one to the named counter. Attributes are passed as key/value string pairs.
func Inc(ctx context.Context, name string, kv ...string) {
	c := Counter(name, name, "1")
	if c == nil {
		return
	}
	attrs := make([]attribute.KeyValue, 0, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		attrs = append(attrs, attribute.String(kv[i], kv[i+1]))
	}
	c.Add(ctx, 1, metric.WithAttributes(attrs...))
}
