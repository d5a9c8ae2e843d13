// Package eventstore records publish history as an append-only event log
// and projects it into per-publish summaries.
package eventstore

import (
	"context"
	"encoding/json"
	"sort"
	"sync"
	"time"
)

const (
	StatusRunning   = "running"
	StatusSucceeded = "succeeded"
	StatusFailed    = "failed"
)

// PublishSummary is the read model for one publish.
type PublishSummary struct {
	PublishID     string        `json:"publish_id"`
	Status        string        `json:"status"`
	Descriptor    string        `json:"descriptor"`
	Repository    string        `json:"repository,omitempty"`
	Location      string        `json:"location"`
	Layout        string        `json:"layout"`
	StartedAt     time.Time     `json:"started_at"`
	CompletedAt   *time.Time    `json:"completed_at,omitempty"`
	Duration      time.Duration `json:"duration,omitempty"`
	FileCount     int           `json:"file_count"`
	Bytes         int64         `json:"bytes"`
	ErrorCategory string        `json:"error_category,omitempty"`
	ErrorMessage  string        `json:"error_message,omitempty"`
}

// PublishHistoryProjection maintains an in-memory view of publish history,
// reconstructed from the event store.
type PublishHistoryProjection struct {
	mu       sync.RWMutex
	store    Store
	publish  map[string]*PublishSummary
	history  []*PublishSummary // finished publishes, newest first
	maxSize  int
	lastSync time.Time
}

// NewPublishHistoryProjection creates a projection backed by store.
func NewPublishHistoryProjection(store Store, maxHistorySize int) *PublishHistoryProjection {
	if maxHistorySize <= 0 {
		maxHistorySize = 100
	}
	return &PublishHistoryProjection{
		store:   store,
		publish: make(map[string]*PublishSummary),
		history: make([]*PublishSummary, 0, maxHistorySize),
		maxSize: maxHistorySize,
	}
}

// Rebuild reconstructs the projection from all events in the store.
func (p *PublishHistoryProjection) Rebuild(ctx context.Context) error {
	events, err := p.store.GetRange(ctx, time.Time{}, time.Now().Add(time.Hour))
	if err != nil {
		return err
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	p.publish = make(map[string]*PublishSummary)
	p.history = make([]*PublishSummary, 0, p.maxSize)
	for _, event := range events {
		p.applyEventLocked(event)
	}

	sort.SliceStable(p.history, func(i, j int) bool {
		return p.history[i].StartedAt.After(p.history[j].StartedAt)
	})
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneLocked()

	p.lastSync = time.Now()
	return nil
}

// Apply processes a single event and updates the projection.
func (p *PublishHistoryProjection) Apply(event Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.applyEventLocked(event)
}

func (p *PublishHistoryProjection) applyEventLocked(event Event) {
	id := event.PublishID()
	if id == "" {
		return
	}

	summary, exists := p.publish[id]
	if !exists {
		summary = &PublishSummary{
			PublishID: id,
			Status:    StatusRunning,
			StartedAt: event.Timestamp(),
		}
		p.publish[id] = summary
	}

	switch event.Type() {
	case TypePublishStarted:
		summary.StartedAt = event.Timestamp()
		summary.Status = StatusRunning
		var meta PublishStartedMeta
		if err := json.Unmarshal(event.Payload(), &meta); err == nil {
			summary.Descriptor = meta.Descriptor
			summary.Repository = meta.Repository
			summary.Location = meta.Location
			summary.Layout = meta.Layout
		}

	case TypeLayoutResolved:
		var payload struct {
			Layout string `json:"layout"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil && payload.Layout != "" {
			summary.Layout = payload.Layout
		}

	case TypeArtifactInstalled:
		var payload struct {
			Size int64 `json:"size"`
		}
		summary.FileCount++
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.Bytes += payload.Size
		}

	case TypePublishCompleted:
		p.finishLocked(summary, event.Timestamp(), StatusSucceeded)

	case TypePublishFailed:
		var payload struct {
			Category string `json:"category"`
			Error    string `json:"error"`
		}
		if err := json.Unmarshal(event.Payload(), &payload); err == nil {
			summary.ErrorCategory = payload.Category
			summary.ErrorMessage = payload.Error
		}
		p.finishLocked(summary, event.Timestamp(), StatusFailed)
	}
}

func (p *PublishHistoryProjection) finishLocked(summary *PublishSummary, at time.Time, status string) {
	summary.CompletedAt = &at
	summary.Duration = at.Sub(summary.StartedAt)
	summary.Status = status

	for _, h := range p.history {
		if h.PublishID == summary.PublishID {
			return
		}
	}
	p.history = append([]*PublishSummary{summary}, p.history...)
	if len(p.history) > p.maxSize {
		p.history = p.history[:p.maxSize]
	}
	p.pruneLocked()
}

// pruneLocked drops finished publishes that fell out of the bounded history.
func (p *PublishHistoryProjection) pruneLocked() {
	keep := make(map[string]struct{}, len(p.history))
	for _, h := range p.history {
		keep[h.PublishID] = struct{}{}
	}
	for id, summary := range p.publish {
		if summary.Status == StatusRunning {
			continue
		}
		if _, ok := keep[id]; !ok {
			delete(p.publish, id)
		}
	}
}

// GetHistory returns finished publishes, newest first.
func (p *PublishHistoryProjection) GetHistory() []PublishSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	out := make([]PublishSummary, len(p.history))
	for i, h := range p.history {
		out[i] = *h
	}
	return out
}

// GetPublish returns the summary for a specific publish.
func (p *PublishHistoryProjection) GetPublish(publishID string) (PublishSummary, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	summary, ok := p.publish[publishID]
	if !ok {
		return PublishSummary{}, false
	}
	return *summary, true
}

// LastSyncTime returns when the projection was last rebuilt.
func (p *PublishHistoryProjection) LastSyncTime() time.Time {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.lastSync
}
