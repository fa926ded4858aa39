// Package logger is a key/value facade over eto.Log for handlers and stages.
//
//	logger.Info(ctx, "message", "key1", value1, "key2", value2)
package logger

import (
	"context"

	"github.com/icpmtech/Open-Telemetry-Solutions/eto"
)

func Info(ctx context.Context, msg string, fields ...any) {
	send(eto.Log().FromContext(ctx).Info(), msg, fields)
}

func Debug(ctx context.Context, msg string, fields ...any) {
	send(eto.Log().FromContext(ctx).Debug(), msg, fields)
}

func Warn(ctx context.Context, msg string, fields ...any) {
	send(eto.Log().FromContext(ctx).Warn(), msg, fields)
}

func Error(ctx context.Context, msg string, fields ...any) {
	send(eto.Log().FromContext(ctx).Error(), msg, fields)
}

// send attaches alternating key/value pairs. A trailing key without a value
// and non-string keys are ignored.
func send(builder *eto.LogBuilder, msg string, fields []any) {
	builder.Msg(msg)
	for i := 0; i+1 < len(fields); i += 2 {
		key, ok := fields[i].(string)
		if !ok {
			continue
		}
		builder.Field(key, fields[i+1])
	}
	builder.Send()
}
