package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/getsentry/sentry-go"
	slogmulti "github.com/samber/slog-multi"
	slogsentry "github.com/samber/slog-sentry/v2"
)

// Options configures New.
type Options struct {
	Env       string // "production" selects JSON output
	Level     string // debug, info, warn, error
	SentryDSN string // optional; error records are forwarded when set
	Output    io.Writer
}

// New builds the process logger. The returned flush func drains any
// buffered Sentry events and must be called before exit.
func New(opts Options) (*slog.Logger, func()) {
	if opts.Output == nil {
		opts.Output = os.Stdout
	}
	handlerOpts := &slog.HandlerOptions{Level: ParseLevel(opts.Level)}

	var base slog.Handler
	if opts.Env == "production" {
		base = slog.NewJSONHandler(opts.Output, handlerOpts)
	} else {
		base = slog.NewTextHandler(opts.Output, handlerOpts)
	}

	flush := func() {}
	if opts.SentryDSN == "" {
		return slog.New(base), flush
	}

	err := sentry.Init(sentry.ClientOptions{
		Dsn:         opts.SentryDSN,
		Environment: opts.Env,
	})
	if err != nil {
		l := slog.New(base)
		l.Warn("sentry disabled", slog.Any("error", err))
		return l, flush
	}

	handler := slogmulti.Fanout(
		base,
		slogsentry.Option{Level: slog.LevelError}.NewSentryHandler(),
	)
	flush = func() { sentry.Flush(2 * time.Second) }
	return slog.New(handler), flush
}

func ParseLevel(s string) slog.Level {
	switch strings.ToLower(s) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
