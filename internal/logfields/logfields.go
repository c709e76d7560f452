package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyBuildID     = "build_id"
	KeyUnit        = "unit"
	KeyFingerprint = "fingerprint"
	KeyState       = "state"
	KeyAttempt     = "attempt"
	KeyMaxAttempts = "max_attempts"
	KeyBackend     = "backend"
	KeyStage       = "stage"
	KeyDurationMS  = "duration_ms"
	KeyPath        = "path"
	KeyFile        = "file"
	KeyWorker      = "worker"
	KeyCount       = "count"
	KeyScheduleID  = "schedule_id"
	KeyReason      = "reason"
	KeyError       = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func BuildID(id string) slog.Attr     { return slog.String(KeyBuildID, id) }
func Unit(id string) slog.Attr        { return slog.String(KeyUnit, id) }
func Fingerprint(fp string) slog.Attr { return slog.String(KeyFingerprint, short(fp)) }
func State(s string) slog.Attr        { return slog.String(KeyState, s) }
func Attempt(n int) slog.Attr         { return slog.Int(KeyAttempt, n) }
func MaxAttempts(n int) slog.Attr     { return slog.Int(KeyMaxAttempts, n) }
func Backend(name string) slog.Attr   { return slog.String(KeyBackend, name) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func File(f string) slog.Attr         { return slog.String(KeyFile, f) }
func Worker(w string) slog.Attr       { return slog.String(KeyWorker, w) }
func Count(n int) slog.Attr           { return slog.Int(KeyCount, n) }
func ScheduleID(id string) slog.Attr  { return slog.String(KeyScheduleID, id) }
func Reason(r string) slog.Attr       { return slog.String(KeyReason, r) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}

// short trims fingerprints to 12 characters; full values are in the cache.
func short(fp string) string {
	if len(fp) > 12 {
		return fp[:12]
	}
	return fp
}
