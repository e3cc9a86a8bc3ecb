// Package logging wraps log/slog to honor the daemon's log_mask and
// log_path configuration keys (§6): a 4-bit mask independently toggles
// debug/info/error/fatal output, and the log sink is a file or stderr.
package logging

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
)

// Mask bits, per §6's configuration table.
const (
	MaskDebug uint8 = 1 << 0
	MaskInfo  uint8 = 1 << 1
	MaskError uint8 = 1 << 2
	MaskFatal uint8 = 1 << 3
)

// LevelFatal sits above slog.LevelError so fatal records sort last and can
// be gated independently of MaskError.
const LevelFatal slog.Level = 12

// Config mirrors the two logging keys of the external configuration
// interface (§6).
type Config struct {
	Mask uint8
	Path string // empty means stderr
}

// Configure builds a logger honoring cfg, and returns an io.Closer for the
// underlying file sink (a no-op closer when logging to stderr). The
// returned logger is also installed as slog.Default().
func Configure(cfg Config) (*slog.Logger, io.Closer, error) {
	var out io.Writer = os.Stderr
	var closer io.Closer = nopCloser{}

	if cfg.Path != "" {
		f, err := os.OpenFile(cfg.Path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("logging: open %q: %w", cfg.Path, err)
		}
		out = f
		closer = f
	}

	handler := &maskHandler{mask: cfg.Mask, inner: slog.NewTextHandler(out, &slog.HandlerOptions{
		Level: slog.LevelDebug,
		ReplaceAttr: func(groups []string, a slog.Attr) slog.Attr {
			if a.Key == slog.LevelKey {
				if lvl, ok := a.Value.Any().(slog.Level); ok && lvl == LevelFatal {
					a.Value = slog.StringValue("FATAL")
				}
			}
			return a
		},
	})}
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger, closer, nil
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// maskHandler gates records by log_mask instead of slog's usual monotone
// level ordering: each of debug/info/error/fatal is toggled independently.
type maskHandler struct {
	mask  uint8
	inner slog.Handler
}

func (h *maskHandler) Enabled(ctx context.Context, level slog.Level) bool {
	switch {
	case level == LevelFatal:
		return h.mask&MaskFatal != 0
	case level >= slog.LevelError:
		return h.mask&MaskError != 0
	case level >= slog.LevelInfo:
		return h.mask&MaskInfo != 0
	default:
		return h.mask&MaskDebug != 0
	}
}

func (h *maskHandler) Handle(ctx context.Context, r slog.Record) error {
	return h.inner.Handle(ctx, r)
}

func (h *maskHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return &maskHandler{mask: h.mask, inner: h.inner.WithAttrs(attrs)}
}

func (h *maskHandler) WithGroup(name string) slog.Handler {
	return &maskHandler{mask: h.mask, inner: h.inner.WithGroup(name)}
}

// Fatal logs msg at LevelFatal with the given attrs. Callers are
// responsible for terminating the process afterward (§6: fatal init
// failures exit non-zero) — Fatal itself never calls os.Exit so that
// defers (e.g. flushing the log file) still run at the call site.
func Fatal(logger *slog.Logger, msg string, args ...any) {
	logger.Log(context.Background(), LevelFatal, msg, args...)
}
