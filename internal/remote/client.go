package remote

import (
	"context"
	"log/slog"

	"github.com/pitchmark/pitchmark-agent/internal/timeline"
)

// Client is the marker-service transport. Operations for different video IDs
// may run concurrently; the transport does not serialize operations for the
// same video, that is the orchestrator's job.
type Client interface {
	Upload(ctx context.Context, videoID string, lines []timeline.FullTimelineLine) error
	Fetch(ctx context.Context, videoID string) ([]timeline.FullTimelineLine, error)
	Delete(ctx context.Context, videoID string) error
}

// StubClient is the offline no-op client used when no remote is configured.
type StubClient struct {
	logger *slog.Logger
}

func NewStubClient(logger *slog.Logger) *StubClient {
	return &StubClient{logger: logger}
}

func (c *StubClient) Upload(ctx context.Context, videoID string, lines []timeline.FullTimelineLine) error {
	c.logger.Info("remote stub: upload requested", "video_id", videoID, "line_count", len(lines))
	return nil
}

func (c *StubClient) Fetch(ctx context.Context, videoID string) ([]timeline.FullTimelineLine, error) {
	c.logger.Info("remote stub: fetch requested", "video_id", videoID)
	return nil, nil
}

func (c *StubClient) Delete(ctx context.Context, videoID string) error {
	c.logger.Info("remote stub: delete requested", "video_id", videoID)
	return nil
}
