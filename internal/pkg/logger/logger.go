package logger

import (
	"context"
	"strings"
	"sync"

	"github.com/ougirez/areametrics/internal/pkg/constants"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

var (
	global   *zap.SugaredLogger
	globalMx sync.RWMutex
)

func init() {
	global = zap.NewNop().Sugar()
}

// Setup builds the process logger. format is "json" or "console".
func Setup(level, format string) error {
	lvl, err := zapcore.ParseLevel(strings.ToLower(level))
	if err != nil {
		lvl = zapcore.InfoLevel
	}

	cfg := zap.NewProductionConfig()
	if strings.ToLower(format) == "console" {
		cfg = zap.NewDevelopmentConfig()
	}
	cfg.Level = zap.NewAtomicLevelAt(lvl)
	cfg.DisableStacktrace = true

	l, err := cfg.Build(zap.AddCallerSkip(1))
	if err != nil {
		return err
	}

	SetLogger(l)
	return nil
}

func SetLogger(l *zap.Logger) {
	globalMx.Lock()
	defer globalMx.Unlock()
	global = l.Sugar()
}

func Sync() {
	_ = fromCtx(context.Background()).Sync()
}

func fromCtx(ctx context.Context) *zap.SugaredLogger {
	globalMx.RLock()
	l := global
	globalMx.RUnlock()

	if ctx == nil {
		return l
	}
	if id, ok := ctx.Value(constants.CtxKeyRequestID).(string); ok && id != "" {
		return l.With(constants.CtxKeyRequestID, id)
	}
	return l
}

func Debugf(ctx context.Context, format string, args ...any) {
	fromCtx(ctx).Debugf(format, args...)
}

func Info(ctx context.Context, msg string, keysAndValues ...any) {
	fromCtx(ctx).Infow(msg, keysAndValues...)
}

func Infof(ctx context.Context, format string, args ...any) {
	fromCtx(ctx).Infof(format, args...)
}

func Warnf(ctx context.Context, format string, args ...any) {
	fromCtx(ctx).Warnf(format, args...)
}

func Error(ctx context.Context, msg string, keysAndValues ...any) {
	fromCtx(ctx).Errorw(msg, keysAndValues...)
}

func Errorf(ctx context.Context, format string, args ...any) {
	fromCtx(ctx).Errorf(format, args...)
}

func Fatal(ctx context.Context, err error) {
	fromCtx(ctx).Fatal(err)
}

func Fatalf(ctx context.Context, format string, args ...any) {
	fromCtx(ctx).Fatalf(format, args...)
}
