package emit

import "go.uber.org/zap"

// ZapEmitter implements Emitter by logging events through a zap logger.
//
// Events with an "error" meta entry are logged at warn level, everything
// else at info. The node key, version and remaining metadata become
// structured fields, so the output composes with whatever encoder and
// sinks the application configured on the logger.
//
// Usage:
//
//	logger, _ := zap.NewProduction()
//	emitter := emit.NewZapEmitter(logger)
//	ev := eval.New(registry, nil, emitter, eval.Options{})
type ZapEmitter struct {
	logger *zap.Logger
}

// NewZapEmitter creates a ZapEmitter. A nil logger falls back to
// zap.NewNop so the emitter is always safe to call.
func NewZapEmitter(logger *zap.Logger) *ZapEmitter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ZapEmitter{logger: logger}
}

// Emit logs one event. Safe for concurrent use; zap loggers are
// concurrency-safe by construction.
func (z *ZapEmitter) Emit(event Event) {
	fields := make([]zap.Field, 0, len(event.Meta)+2)
	fields = append(fields,
		zap.String("key", event.Key),
		zap.Int64("version", event.Version),
	)
	errMsg := ""
	for k, v := range event.Meta {
		if k == "error" {
			if s, ok := v.(string); ok {
				errMsg = s
			}
		}
		fields = append(fields, zap.Any(k, v))
	}
	if errMsg != "" {
		z.logger.Warn(event.Msg, fields...)
		return
	}
	z.logger.Info(event.Msg, fields...)
}
