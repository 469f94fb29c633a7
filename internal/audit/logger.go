package audit

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/assetdesk/assetdesk/internal/platform/effects"
)

// Writer is the subset of Repository needed to append entries.
type Writer interface {
	Insert(ctx context.Context, entry Entry) error
}

// Logger records audit entries as best-effort side effects. It must only be
// called after the protected operation has committed; failures are logged
// and never reach the caller.
type Logger struct {
	writer Writer
	runner *effects.Runner
	logger *slog.Logger
	now    func() time.Time
}

// NewLogger constructs a Logger.
func NewLogger(writer Writer, runner *effects.Runner, logger *slog.Logger) *Logger {
	if logger == nil {
		logger = slog.Default()
	}
	return &Logger{writer: writer, runner: runner, logger: logger, now: time.Now}
}

// Record dispatches the entry without waiting for the write.
func (l *Logger) Record(ctx context.Context, entry Entry) {
	if l == nil || l.writer == nil {
		return
	}
	entry.Action = strings.TrimSpace(entry.Action)
	entry.Module = strings.TrimSpace(entry.Module)
	if entry.Action == "" || entry.Module == "" {
		l.logger.Warn("audit entry dropped: action and module required", slog.Int64("actor_id", entry.ActorID))
		return
	}
	if entry.At.IsZero() {
		entry.At = l.now().UTC()
	}
	if l.runner == nil {
		if err := l.writer.Insert(ctx, entry); err != nil {
			l.logger.Warn("audit write failed", slog.String("action", entry.Action), slog.Any("error", err))
		}
		return
	}
	l.runner.Go(ctx, "audit:"+entry.Module+"."+entry.Action, func(taskCtx context.Context) error {
		return l.writer.Insert(taskCtx, entry)
	})
}
