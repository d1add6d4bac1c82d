package zaptrace

import (
	"go.uber.org/zap"

	"github.com/byte4ever/armor"
)

// Reporter is an [armor.TraceReporter] that logs dependency traces through
// zap. Safe for concurrent use; zap loggers are.
type Reporter struct {
	logger *zap.Logger
}

// NewReporter creates a Reporter writing to logger.
func NewReporter(logger *zap.Logger) *Reporter {
	return &Reporter{logger: logger}
}

// Report logs one retried-attempt trace. Failed attempts log at warn so they
// stand out in production streams.
func (r *Reporter) Report(trace armor.DependencyTrace) {
	fields := []zap.Field{
		zap.String("dependency_type", trace.Type),
		zap.String("target", trace.Target),
		zap.String("operation", trace.Operation),
		zap.String("data", trace.Data),
		zap.String("result_code", trace.ResultCode),
		zap.Bool("success", trace.Success),
		zap.Time("start", trace.Start),
		zap.Duration("duration", trace.Duration),
	}

	if trace.Success {
		r.logger.Info("dependency retry attempt", fields...)
		return
	}

	r.logger.Warn("dependency retry attempt", fields...)
}

// Hooks returns an [armor.Hooks] set that logs pipeline lifecycle events
// through logger. Pass it to armor.WithHooks when building a pipeline.
func Hooks(logger *zap.Logger) armor.Hooks {
	return armor.Hooks{
		OnRetry: func(attempt int, cause error) {
			logger.Warn("attempt failed, retrying",
				zap.Int("attempt", attempt),
				zap.Error(cause),
			)
		},
		OnThrottleQueued: func() {
			logger.Debug("request queued for next window")
		},
		OnThrottleRejected: func() {
			logger.Warn("request rejected, throttle queue full")
		},
		OnAttemptTimeout: func() {
			logger.Warn("attempt exceeded per-try deadline")
		},
	}
}
