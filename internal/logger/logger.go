package logger

import (
	"io"
	"os"
	"runtime"
	"strings"
	"time"

	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Logger is a thin structured logger over zap. Every entry carries the
// application name, environment and caller.
type Logger struct {
	appName string
	appEnv  string
	l       *zap.Logger
}

// New builds a JSON logger writing to stdout, or to writers when given.
func New(appName, appEnv, level string, writers ...io.Writer) *Logger {
	cfg := zap.NewProductionEncoderConfig()
	cfg.TimeKey = "timestamp"
	cfg.EncodeTime = zapcore.ISO8601TimeEncoder

	var sinks []zapcore.WriteSyncer
	if len(writers) == 0 {
		sinks = append(sinks, zapcore.AddSync(os.Stdout))
	}
	for _, w := range writers {
		sinks = append(sinks, zapcore.AddSync(w))
	}

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(cfg),
		zapcore.NewMultiWriteSyncer(sinks...),
		parseLevel(level),
	)

	return &Logger{
		appName: appName,
		appEnv:  appEnv,
		l:       zap.New(core),
	}
}

// NewNop returns a logger that discards everything.
func NewNop() *Logger {
	return &Logger{l: zap.NewNop()}
}

// Sync flushes buffered entries.
func (l *Logger) Sync() error {
	return l.l.Sync()
}

func (l *Logger) Debug(msg string, fields ...map[string]any) {
	l.l.Debug(msg, l.fields(fields)...)
}

func (l *Logger) Info(msg string, fields ...map[string]any) {
	l.l.Info(msg, l.fields(fields)...)
}

func (l *Logger) Warning(msg string, fields ...map[string]any) {
	l.l.Warn(msg, l.fields(fields)...)
}

// Error logs err with a stack trace.
func (l *Logger) Error(msg string, err error, fields ...map[string]any) {
	zf := l.fields(fields)
	if err != nil {
		zf = append(zf, zap.String("error", err.Error()))
	}
	zf = append(zf, zap.Stack("stack"))
	l.l.Error(msg, zf...)
}

func (l *Logger) fields(extra []map[string]any) []zap.Field {
	file, line, funcName := caller()
	out := []zap.Field{
		zap.String("app_name", l.appName),
		zap.String("app_env", l.appEnv),
		zap.String("caller_file", file),
		zap.Int("caller_line", line),
		zap.String("caller_func", funcName),
	}
	for _, m := range extra {
		for k, v := range m {
			out = append(out, anyField(k, v))
		}
	}
	return out
}

func anyField(k string, v any) zap.Field {
	switch val := v.(type) {
	case time.Duration:
		return zap.Duration(k, val)
	case error:
		return zap.String(k, val.Error())
	default:
		return zap.Any(k, val)
	}
}

func caller() (file string, line int, funcName string) {
	pc, file, line, ok := runtime.Caller(3)
	if !ok {
		return "not_defined", 0, "not_defined"
	}
	if fn := runtime.FuncForPC(pc); fn != nil {
		funcName = fn.Name()
	}
	return file, line, funcName
}

func parseLevel(level string) zapcore.Level {
	lvl, err := zapcore.ParseLevel(strings.ToLower(strings.TrimSpace(level)))
	if err != nil {
		return zapcore.InfoLevel
	}
	return lvl
}
