// Package tracing はOpenTelemetryのTracerProviderを構成する。
package tracing

import (
	"context"
	"fmt"
	"io"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/exporters/stdout/stdouttrace"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
)

// ExporterStdout はスパンをJSONでwriterへ出力するエクスポーター名。
const ExporterStdout = "stdout"

// ShutdownFunc はTracerProviderを停止し、未送信のスパンをフラッシュする。
type ShutdownFunc func(ctx context.Context) error

// Setup はexporterに応じてグローバルTracerProviderを設定する。
// exporterが空の場合は何もせず、otelの既定（no-op）プロバイダーのままとなる。
func Setup(exporter string, w io.Writer) (ShutdownFunc, error) {
	switch exporter {
	case "":
		return func(context.Context) error { return nil }, nil
	case ExporterStdout:
		exp, err := stdouttrace.New(stdouttrace.WithWriter(w))
		if err != nil {
			return nil, fmt.Errorf("failed to create stdout exporter: %w", err)
		}
		tp := sdktrace.NewTracerProvider(sdktrace.WithBatcher(exp))
		otel.SetTracerProvider(tp)
		return tp.Shutdown, nil
	default:
		return nil, fmt.Errorf("unsupported trace exporter: %q", exporter)
	}
}
