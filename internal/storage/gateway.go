// Package storage persists autosave snapshots, submission markers and the
// cookie-consent flag on top of a pluggable key/value Backend.
package storage

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"time"

	"landform/internal/form"
	"landform/internal/logging"
)

const (
	autosavePrefix   = "lf-autosave-"
	submittedPrefix  = "lf-submitted-"
	cookieConsentKey = "lf-cookie-consent"

	// MaxSnapshotAge is how long an autosave snapshot stays loadable.
	MaxSnapshotAge = 7 * 24 * time.Hour
)

// Backend is a string key/value store. Get reports absence with ok=false.
type Backend interface {
	Get(key string) (value string, ok bool, err error)
	Set(key, value string) error
	Delete(key string) error
}

// Snapshot is the persisted autosave record. Timestamp is unix milliseconds.
type Snapshot struct {
	Answers      form.Answers `json:"answers"`
	CurrentIndex int          `json:"currentIndex"`
	ResponseID   string       `json:"responseId,omitempty"`
	Timestamp    int64        `json:"timestamp"`
}

// Gateway never returns errors: backend failures are logged and replaced by
// safe defaults. A Gateway without a backend is a no-op.
type Gateway struct {
	backend Backend
	logger  *slog.Logger
	now     func() time.Time
}

type Option func(*Gateway)

func WithClock(now func() time.Time) Option {
	return func(g *Gateway) {
		if now != nil {
			g.now = now
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		if logger != nil {
			g.logger = logger
		}
	}
}

func NewGateway(backend Backend, opts ...Option) *Gateway {
	g := &Gateway{backend: backend, logger: logging.Discard(), now: time.Now}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Available reports whether a durable backend is attached.
func (g *Gateway) Available() bool {
	return g != nil && g.backend != nil
}

func (g *Gateway) SaveProgress(projectID string, answers form.Answers, currentIndex int, responseID string) {
	if !g.Available() {
		return
	}
	if answers == nil {
		answers = form.Answers{}
	}
	raw, err := json.Marshal(Snapshot{
		Answers:      answers,
		CurrentIndex: currentIndex,
		ResponseID:   responseID,
		Timestamp:    g.now().UnixMilli(),
	})
	if err != nil {
		g.logger.Error("error saving form progress", "project_id", projectID, "err", err)
		return
	}
	if err := g.backend.Set(autosavePrefix+projectID, string(raw)); err != nil {
		g.logger.Error("error saving form progress", "project_id", projectID, "err", err)
	}
}

// LoadProgress returns nil when nothing is stored or the snapshot is older
// than MaxSnapshotAge; an expired snapshot is also removed.
func (g *Gateway) LoadProgress(projectID string) *Snapshot {
	if !g.Available() {
		return nil
	}
	raw, ok, err := g.backend.Get(autosavePrefix + projectID)
	if err != nil {
		g.logger.Error("error loading form progress", "project_id", projectID, "err", err)
		return nil
	}
	if !ok || raw == "" {
		return nil
	}
	var snap Snapshot
	if err := json.Unmarshal([]byte(raw), &snap); err != nil {
		g.logger.Error("error loading form progress", "project_id", projectID, "err", err)
		return nil
	}
	if g.now().UnixMilli()-snap.Timestamp > MaxSnapshotAge.Milliseconds() {
		g.ClearProgress(projectID)
		return nil
	}
	if snap.Answers == nil {
		snap.Answers = form.Answers{}
	}
	return &snap
}

func (g *Gateway) ClearProgress(projectID string) {
	if !g.Available() {
		return
	}
	if err := g.backend.Delete(autosavePrefix + projectID); err != nil {
		g.logger.Error("error clearing form progress", "project_id", projectID, "err", err)
	}
}

func (g *Gateway) MarkAsSubmitted(projectID string) {
	if !g.Available() {
		return
	}
	value := strconv.FormatInt(g.now().UnixMilli(), 10)
	if err := g.backend.Set(submittedPrefix+projectID, value); err != nil {
		g.logger.Error("error marking form as submitted", "project_id", projectID, "err", err)
	}
}

func (g *Gateway) HasSubmitted(projectID string) bool {
	if !g.Available() {
		return false
	}
	_, ok, err := g.backend.Get(submittedPrefix + projectID)
	if err != nil {
		g.logger.Error("error checking submission status", "project_id", projectID, "err", err)
		return false
	}
	return ok
}

func (g *Gateway) HasCookieConsent() bool {
	if !g.Available() {
		return false
	}
	value, ok, err := g.backend.Get(cookieConsentKey)
	if err != nil {
		g.logger.Error("error checking cookie consent", "err", err)
		return false
	}
	return ok && value == "true"
}

func (g *Gateway) SetCookieConsent(consented bool) {
	if !g.Available() {
		return
	}
	var err error
	if consented {
		err = g.backend.Set(cookieConsentKey, "true")
	} else {
		err = g.backend.Delete(cookieConsentKey)
	}
	if err != nil {
		g.logger.Error("error setting cookie consent", "err", err)
	}
}
