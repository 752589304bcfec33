// Package logger builds the service's zerolog logger and carries
// per-request fields on the context.
package logger

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"io"
	"math"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

type Config struct {
	Level     string
	Console   bool
	SampleN   int
	Service   string
	Component string
}

type ctxKey string

const (
	ctxReqIDKey  ctxKey = "request_id"
	ctxJobID     ctxKey = "job_id"
	ctxComponent ctxKey = "component"
	ctxPanel     ctxKey = "panel"
)

// stamped onto every record in this order
var stringFields = []ctxKey{ctxReqIDKey, ctxJobID, ctxComponent}

func WithRequestID(ctx context.Context, reqID string) context.Context {
	if reqID == "" {
		reqID = NewID()
	}
	return context.WithValue(ctx, ctxReqIDKey, reqID)
}

func WithJobID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxJobID, id)
}

// WithPanel records the 1-based panel number being served.
func WithPanel(ctx context.Context, n int) context.Context {
	if n <= 0 {
		return ctx
	}
	return context.WithValue(ctx, ctxPanel, n)
}

func WithComponent(ctx context.Context, component string) context.Context {
	if component == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxComponent, component)
}

// RequestID returns the request id on ctx, or "".
func RequestID(ctx context.Context) string {
	s, _ := ctx.Value(ctxReqIDKey).(string)
	return s
}

// NewID returns 16 hex characters of randomness.
func NewID() string {
	var b [8]byte
	_, _ = rand.Read(b[:])
	return hex.EncodeToString(b[:])
}

func parseLevel(s string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	default:
		return zerolog.InfoLevel
	}
}

// Build configures zerolog globally and returns the root logger. A
// positive SampleN keeps one record in N.
func Build(cfg Config, out io.Writer) zerolog.Logger {
	if out == nil {
		out = os.Stdout
	}

	zerolog.TimeFieldFormat = time.RFC3339Nano
	zerolog.TimestampFieldName = "timestamp"
	zerolog.LevelFieldName = "level"
	zerolog.MessageFieldName = "msg"
	zerolog.DurationFieldUnit = time.Millisecond
	zerolog.SetGlobalLevel(parseLevel(cfg.Level))

	if cfg.Console {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	base := zerolog.New(out)
	if cfg.SampleN > 1 {
		n := uint32(min(int64(cfg.SampleN), math.MaxUint32))
		base = base.Sample(&zerolog.BasicSampler{N: n})
	}

	zctx := base.With().Timestamp()
	if cfg.Service != "" {
		zctx = zctx.Str("service", cfg.Service)
	}
	if cfg.Component != "" {
		zctx = zctx.Str("component", cfg.Component)
	}
	return zctx.Logger()
}

// FromContext returns a child of parent carrying the request fields found
// on ctx. A nil parent discards output.
func FromContext(ctx context.Context, parent *zerolog.Logger) *zerolog.Logger {
	base := zerolog.Nop()
	if parent != nil {
		base = *parent
	}
	w := base.With()
	for _, k := range stringFields {
		if s, ok := ctx.Value(k).(string); ok && s != "" {
			w = w.Str(string(k), s)
		}
	}
	if n, ok := ctx.Value(ctxPanel).(int); ok && n > 0 {
		w = w.Int(string(ctxPanel), n)
	}
	l := w.Logger()
	return &l
}
