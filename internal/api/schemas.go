package api

import (
	"github.com/pitchmark/pitchmark-agent/internal/timeline"
)

type HealthResponse struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	UptimeS  int64  `json:"uptime_s"`
	DeviceID string `json:"device_id"`
}

type StatusResponse struct {
	Syncing        bool     `json:"syncing"`
	Message        string   `json:"message"`
	Progress       float64  `json:"progress"`
	ConflictVideos []string `json:"conflict_videos,omitempty"`
	RecentErrors   []string `json:"recent_errors,omitempty"`
	DroppedErrors  int      `json:"dropped_errors"`
	AutoSync       bool     `json:"auto_sync"`
	CurrentVideoID string   `json:"current_video_id,omitempty"`
}

type TimelinesResponse struct {
	VideoID string                  `json:"video_id"`
	Lines   []timeline.TimelineLine `json:"lines"`
}

type UpdateTimelinesRequest struct {
	Lines []timeline.TimelineLine `json:"lines"`
}

type ResolveRequest struct {
	Resolution string `json:"resolution"`
}

// ConflictResponse carries both divergent sets so the caller can present a
// resolution choice.
type ConflictResponse struct {
	Error  string                  `json:"error"`
	Code   string                  `json:"code"`
	Local  []timeline.TimelineLine `json:"local"`
	Remote []timeline.TimelineLine `json:"remote"`
}

type SettingsRequest struct {
	AutoSync        bool   `json:"auto_sync"`
	IntervalSeconds int    `json:"interval_seconds"`
	Strategy        string `json:"strategy"`
	RetryCount      int    `json:"retry_count"`
}

type SettingsResponse struct {
	AutoSync        bool   `json:"auto_sync"`
	IntervalSeconds int    `json:"interval_seconds"`
	Strategy        string `json:"strategy"`
	RetryCount      int    `json:"retry_count"`
}

type TagsResponse struct {
	Collection string         `json:"collection"`
	Tags       []timeline.Tag `json:"tags"`
}

type LabelsResponse struct {
	Labels []timeline.Label `json:"labels"`
}

type TimeEventsResponse struct {
	TimeEvents []timeline.TimeEvent `json:"time_events"`
}

type GroupsResponse struct {
	TagGroups   []timeline.TagGroup   `json:"tag_groups"`
	LabelGroups []timeline.LabelGroup `json:"label_groups"`
}

type ExportRequest struct {
	OutputDir string `json:"output_dir"`
}

type ExportResponse struct {
	Status     string `json:"status"`
	OutputPath string `json:"output_path"`
	RowCount   int    `json:"row_count"`
}

type EventRequest struct {
	VideoID string `json:"video_id,omitempty"`
}

type ErrorResponse struct {
	Error string `json:"error"`
	Code  string `json:"code,omitempty"`
}
