// Package clog 提供基于 slog 的结构化日志组件。
//
// 特性：
//   - 抽象 Logger 接口，不暴露底层 slog
//   - 层级命名空间（awx.server.metrics）
//   - 从 Context 提取请求字段与 OpenTelemetry trace_id/span_id
//   - 运行时调整日志级别（配置热更新使用）
//
// 基本使用：
//
//	logger, _ := clog.New(&clog.Config{Level: "info", Format: "json"},
//	    clog.WithNamespace("awx"),
//	    clog.WithTraceContext(),
//	)
//	logger.Info("exporter started", clog.String("addr", ":8080"))
package clog

import "context"

// Logger 结构化日志接口
type Logger interface {
	Debug(msg string, fields ...Field)
	Info(msg string, fields ...Field)
	Warn(msg string, fields ...Field)
	Error(msg string, fields ...Field)
	Fatal(msg string, fields ...Field)

	// 带 Context 的版本会附加配置的 Context 字段
	DebugContext(ctx context.Context, msg string, fields ...Field)
	InfoContext(ctx context.Context, msg string, fields ...Field)
	WarnContext(ctx context.Context, msg string, fields ...Field)
	ErrorContext(ctx context.Context, msg string, fields ...Field)
	FatalContext(ctx context.Context, msg string, fields ...Field)

	// With 返回带预设字段的子 Logger
	With(fields ...Field) Logger

	// WithNamespace 在现有命名空间后追加片段，例如 "awx" + "server" => "awx.server"
	WithNamespace(parts ...string) Logger

	// SetLevel 动态调整级别，所有派生 Logger 共享同一级别
	SetLevel(level Level) error

	Flush()
}
