// Package store is the local persistence layer: compact timeline sets,
// per-video sync metadata, global sync preferences and agent configuration.
package store

import (
	"context"
	"time"

	"github.com/pitchmark/pitchmark-agent/internal/timeline"
)

// SyncMetadata tracks the sync lifecycle of one video. Created on first
// local modification or first sync attempt, updated after every successful
// sync, never deleted by this layer.
type SyncMetadata struct {
	VideoID               string    `json:"video_id"`
	LastSync              time.Time `json:"last_sync"`
	LastLocalModification time.Time `json:"last_local_modification"`
	SyncVersion           int       `json:"sync_version"`
	ContentHash           string    `json:"content_hash,omitempty"`
	Strategy              string    `json:"strategy,omitempty"`
}

// Prefs are the global synchronization preferences, persisted across restarts.
type Prefs struct {
	AutoSync   bool          `json:"auto_sync"`
	Interval   time.Duration `json:"interval"`
	Strategy   string        `json:"strategy"`
	RetryCount int           `json:"retry_count"`
}

// DefaultPrefs returns the preferences used before the user configures sync.
func DefaultPrefs() Prefs {
	return Prefs{
		AutoSync:   false,
		Interval:   5 * time.Minute,
		Strategy:   "ask_user",
		RetryCount: 3,
	}
}

// Store is the persistence contract consumed by the orchestrator and the API.
type Store interface {
	// GetTimelines returns nil (not an empty slice) when the video has no
	// local timeline data at all.
	GetTimelines(ctx context.Context, videoID string) ([]timeline.TimelineLine, error)
	UpdateTimelines(ctx context.Context, videoID string, lines []timeline.TimelineLine) error
	DeleteTimelines(ctx context.Context, videoID string) error
	GetAllVideoIDs(ctx context.Context) ([]string, error)

	GetCurrentVideoID(ctx context.Context) (string, error)
	SetCurrentVideoID(ctx context.Context, videoID string) error

	GetSyncMetadata(ctx context.Context, videoID string) (*SyncMetadata, error)
	PutSyncMetadata(ctx context.Context, meta *SyncMetadata) error

	GetPrefs(ctx context.Context) (Prefs, error)
	PutPrefs(ctx context.Context, prefs Prefs) error

	GetConfig(ctx context.Context, key string) (string, error)
	SetConfig(ctx context.Context, key, value string) error
}
