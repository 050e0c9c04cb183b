package eventstore

import (
	"context"
	"log/slog"
	"time"

	"git.home.luguber.info/inful/sitebuilder/internal/logfields"
)

// History records build events into an optional store. A nil History or a
// History without a store discards events. Persistence failures are logged and
// never reach the build.
type History struct {
	store  Store
	logger *slog.Logger
	now    func() time.Time
}

// NewHistory wraps store. logger may be nil.
func NewHistory(store Store, logger *slog.Logger) *History {
	if logger == nil {
		logger = slog.Default()
	}
	return &History{store: store, logger: logger, now: time.Now}
}

// Record appends one event.
func (h *History) Record(ctx context.Context, buildID string, typ Type, payload any) {
	if h == nil || h.store == nil {
		return
	}
	ev, err := New(buildID, typ, payload, h.now())
	if err == nil {
		err = h.store.Append(ctx, ev)
	}
	if err != nil {
		h.logger.Warn("Failed to record build event",
			logfields.BuildID(buildID),
			slog.String("type", string(typ)),
			logfields.Error(err))
	}
}

// Close closes the underlying store.
func (h *History) Close() error {
	if h == nil || h.store == nil {
		return nil
	}
	return h.store.Close()
}
