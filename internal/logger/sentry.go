package logger

import (
	"encoding/json"
	"time"

	"github.com/getsentry/sentry-go"
	"github.com/pkg/errors"
	"go.uber.org/zap/zapcore"
)

const (
	sentryMaxErrorDepth = 9
	sentryFlushTimeout  = 5 * time.Second
	sentryHTTPTimeout   = 5 * time.Second
)

// SentryHook is an io.Writer that forwards error-level JSON log lines to Sentry.
// Add it as an extra writer to New.
type SentryHook struct {
	appName string
	appEnv  string
	capture func(*sentry.Event) *sentry.EventID
}

// NewSentryHook initialises the Sentry client for dsn.
func NewSentryHook(appName, appEnv, dsn string) (*SentryHook, error) {
	if dsn == "" {
		return nil, errors.New("sentry: empty DSN")
	}
	transport := sentry.NewHTTPTransport()
	transport.Timeout = sentryHTTPTimeout
	err := sentry.Init(sentry.ClientOptions{
		Dsn:              dsn,
		AttachStacktrace: true,
		Environment:      appEnv,
		ServerName:       appName,
		MaxErrorDepth:    sentryMaxErrorDepth,
		Transport:        transport,
	})
	if err != nil {
		return nil, errors.Wrap(err, "sentry: init")
	}
	return &SentryHook{appName: appName, appEnv: appEnv, capture: sentry.CaptureEvent}, nil
}

// Flush waits for buffered events to be delivered.
func (h *SentryHook) Flush() bool {
	return sentry.Flush(sentryFlushTimeout)
}

type logLine struct {
	Level      string `json:"level"`
	Message    string `json:"msg"`
	Error      string `json:"error"`
	CallerFile string `json:"caller_file"`
	CallerLine int    `json:"caller_line"`
	CallerFunc string `json:"caller_func"`
	Stack      string `json:"stack"`
}

// Write never fails so logging is not disturbed by Sentry problems.
func (h *SentryHook) Write(p []byte) (int, error) {
	event, err := h.toEvent(p)
	if err == nil && event != nil {
		h.capture(event)
	}
	return len(p), nil
}

func (h *SentryHook) toEvent(p []byte) (*sentry.Event, error) {
	var line logLine
	if err := json.Unmarshal(p, &line); err != nil {
		return nil, errors.Wrap(err, "sentry hook: decode log line")
	}
	level, err := zapcore.ParseLevel(line.Level)
	if err != nil {
		return nil, errors.Wrap(err, "sentry hook: parse level")
	}
	if level < zapcore.ErrorLevel || line.Message == "" {
		return nil, nil
	}

	event := sentry.NewEvent()
	event.Level = sentry.LevelError
	if level >= zapcore.DPanicLevel {
		event.Level = sentry.LevelFatal
	}
	event.Environment = h.appEnv
	event.Message = line.Message
	event.Extra["app_name"] = h.appName
	event.Extra["error"] = line.Error
	event.Extra["caller_file"] = line.CallerFile
	event.Extra["caller_line"] = line.CallerLine
	event.Extra["caller_func"] = line.CallerFunc
	event.Extra["stack"] = line.Stack
	event.Exception = append(event.Exception, sentry.Exception{
		Type:  line.Message,
		Value: line.Error,
	})
	return event, nil
}
