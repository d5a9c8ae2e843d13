package logfields

import "log/slog"

// Canonical log field name constants to avoid drift across packages.
const (
	KeyPublishID  = "publish_id"
	KeyDescriptor = "descriptor"
	KeyRepo       = "repository"
	KeyLocation   = "location"
	KeyLayout     = "layout"
	KeyStage      = "stage"
	KeyState      = "state"
	KeyArtifact   = "artifact"
	KeyPath       = "path"
	KeyBytes      = "bytes"
	KeyDurationMS = "duration_ms"
	KeyError      = "error"
)

// Simple helpers returning slog.Attr. Keeping each granular means callers can compose.
func PublishID(id string) slog.Attr   { return slog.String(KeyPublishID, id) }
func Descriptor(p string) slog.Attr   { return slog.String(KeyDescriptor, p) }
func Repository(r string) slog.Attr   { return slog.String(KeyRepo, r) }
func Location(l string) slog.Attr     { return slog.String(KeyLocation, l) }
func Layout(name string) slog.Attr    { return slog.String(KeyLayout, name) }
func Stage(name string) slog.Attr     { return slog.String(KeyStage, name) }
func State(s string) slog.Attr        { return slog.String(KeyState, s) }
func Artifact(a string) slog.Attr     { return slog.String(KeyArtifact, a) }
func Path(p string) slog.Attr         { return slog.String(KeyPath, p) }
func Bytes(n int64) slog.Attr         { return slog.Int64(KeyBytes, n) }
func DurationMS(ms float64) slog.Attr { return slog.Float64(KeyDurationMS, ms) }
func Error(err error) slog.Attr {
	if err == nil {
		return slog.String(KeyError, "")
	}
	return slog.String(KeyError, err.Error())
}
