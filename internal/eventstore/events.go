package eventstore

import (
	"encoding/json"
	"time"

	perrors "git.home.luguber.info/inful/localpublish/internal/errors"
)

// Event type names.
const (
	TypePublishStarted    = "PublishStarted"
	TypeLayoutResolved    = "LayoutResolved"
	TypeArtifactInstalled = "ArtifactInstalled"
	TypePublishCompleted  = "PublishCompleted"
	TypePublishFailed     = "PublishFailed"
)

func newBase(publishID, eventType string, payload any) (BaseEvent, error) {
	data, err := json.Marshal(payload)
	if err != nil {
		return BaseEvent{}, perrors.HistoryError("marshal "+eventType+" payload", err).
			WithContext("publish_id", publishID)
	}
	return BaseEvent{
		EventPublishID: publishID,
		EventType:      eventType,
		EventTimestamp: time.Now(),
		EventPayload:   data,
	}, nil
}

// PublishStartedMeta describes the request that began a publish.
type PublishStartedMeta struct {
	Descriptor    string `json:"descriptor"`
	Repository    string `json:"repository,omitempty"`
	Location      string `json:"location"`
	Layout        string `json:"layout"`
	ArtifactCount int    `json:"artifact_count"`
}

// PublishStarted is emitted before any resource is acquired.
type PublishStarted struct {
	BaseEvent
	Meta PublishStartedMeta
}

// NewPublishStarted creates a PublishStarted event.
func NewPublishStarted(publishID string, meta PublishStartedMeta) (*PublishStarted, error) {
	base, err := newBase(publishID, TypePublishStarted, meta)
	if err != nil {
		return nil, err
	}
	return &PublishStarted{BaseEvent: base, Meta: meta}, nil
}

// LayoutResolved is emitted once the repository handle exists.
type LayoutResolved struct {
	BaseEvent
	Layout   string `json:"layout"`
	Location string `json:"location"`
}

// NewLayoutResolved creates a LayoutResolved event.
func NewLayoutResolved(publishID, layoutName, location string) (*LayoutResolved, error) {
	base, err := newBase(publishID, TypeLayoutResolved, map[string]any{
		"layout":   layoutName,
		"location": location,
	})
	if err != nil {
		return nil, err
	}
	return &LayoutResolved{BaseEvent: base, Layout: layoutName, Location: location}, nil
}

// ArtifactInstalled is emitted for every file written to the repository.
type ArtifactInstalled struct {
	BaseEvent
	Source      string `json:"source"`
	Destination string `json:"destination"`
	SHA256      string `json:"sha256"`
	Size        int64  `json:"size"`
}

// NewArtifactInstalled creates an ArtifactInstalled event.
func NewArtifactInstalled(publishID, source, destination, sha256 string, size int64) (*ArtifactInstalled, error) {
	base, err := newBase(publishID, TypeArtifactInstalled, map[string]any{
		"source":      source,
		"destination": destination,
		"sha256":      sha256,
		"size":        size,
	})
	if err != nil {
		return nil, err
	}
	return &ArtifactInstalled{
		BaseEvent:   base,
		Source:      source,
		Destination: destination,
		SHA256:      sha256,
		Size:        size,
	}, nil
}

// PublishCompleted is emitted after a successful publish.
type PublishCompleted struct {
	BaseEvent
	FileCount int           `json:"file_count"`
	Bytes     int64         `json:"bytes"`
	Duration  time.Duration `json:"duration_ms"`
}

// NewPublishCompleted creates a PublishCompleted event.
func NewPublishCompleted(publishID string, fileCount int, bytes int64, duration time.Duration) (*PublishCompleted, error) {
	base, err := newBase(publishID, TypePublishCompleted, map[string]any{
		"file_count":  fileCount,
		"bytes":       bytes,
		"duration_ms": duration.Milliseconds(),
	})
	if err != nil {
		return nil, err
	}
	return &PublishCompleted{BaseEvent: base, FileCount: fileCount, Bytes: bytes, Duration: duration}, nil
}

// PublishFailed is emitted when a publish ends with an error.
type PublishFailed struct {
	BaseEvent
	Category string `json:"category"`
	Error    string `json:"error"`
}

// NewPublishFailed creates a PublishFailed event.
func NewPublishFailed(publishID, category, errMsg string) (*PublishFailed, error) {
	base, err := newBase(publishID, TypePublishFailed, map[string]any{
		"category": category,
		"error":    errMsg,
	})
	if err != nil {
		return nil, err
	}
	return &PublishFailed{BaseEvent: base, Category: category, Error: errMsg}, nil
}
