package logfields

import (
	"log/slog"
	"time"
)

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID    = "build_id"
	KeyMode       = "mode"
	KeyBatch      = "batch"
	KeyPage       = "page"
	KeySource     = "src"
	KeyFile       = "file"
	KeyTarget     = "target"
	KeyFragment   = "fragment"
	KeyOutput     = "output"
	KeyScope      = "scope"
	KeyCount      = "count"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr  { return slog.String(KeyBuildID, id) }
func Mode(m string) slog.Attr      { return slog.String(KeyMode, m) }
func Batch(b string) slog.Attr     { return slog.String(KeyBatch, b) }
func Page(p string) slog.Attr      { return slog.String(KeyPage, p) }
func Source(s string) slog.Attr    { return slog.String(KeySource, s) }
func File(f string) slog.Attr      { return slog.String(KeyFile, f) }
func Target(t string) slog.Attr    { return slog.String(KeyTarget, t) }
func Fragment(f string) slog.Attr  { return slog.String(KeyFragment, f) }
func Output(o string) slog.Attr    { return slog.String(KeyOutput, o) }
func Scope(s string) slog.Attr     { return slog.String(KeyScope, s) }
func Count(n int) slog.Attr        { return slog.Int(KeyCount, n) }
func Duration(d time.Duration) slog.Attr {
	return slog.Float64(KeyDurationMS, float64(d.Microseconds())/1000)
}
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
