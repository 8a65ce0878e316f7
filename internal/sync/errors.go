// Package sync coordinates bidirectional timeline synchronization: fetch,
// conflict detection, resolution per configured strategy, and upload.
package sync

import (
	"errors"
	"fmt"

	"github.com/pitchmark/pitchmark-agent/internal/remote"
	"github.com/pitchmark/pitchmark-agent/internal/timeline"
)

// Kind classifies orchestrator-level sync failures.
type Kind string

const (
	KindNetwork        Kind = "network"
	KindConflict       Kind = "conflict"
	KindServer         Kind = "server"
	KindDecoding       Kind = "decoding"
	KindInvalidData    Kind = "invalid_data"
	KindUnauthorized   Kind = "unauthorized"
	KindMergeConflict  Kind = "merge_conflict"
	KindUploadFailed   Kind = "upload_failed"
	KindNoLocalData    Kind = "no_local_data"
	KindNoRemoteData   Kind = "no_remote_data"
	KindAlreadyRunning Kind = "already_running"
)

// SyncError is the orchestrator's error type. Local and Remote carry the two
// divergent sets for merge-conflict errors so the caller can drive manual
// resolution.
type SyncError struct {
	Kind       Kind
	VideoID    string
	StatusCode int
	Message    string
	Local      []timeline.TimelineLine
	Remote     []timeline.TimelineLine
	Err        error
}

func (e *SyncError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("sync %s (video %s): HTTP %d: %s", e.Kind, e.VideoID, e.StatusCode, e.Message)
	case e.Err != nil:
		return fmt.Sprintf("sync %s (video %s): %v", e.Kind, e.VideoID, e.Err)
	case e.Message != "":
		return fmt.Sprintf("sync %s (video %s): %s", e.Kind, e.VideoID, e.Message)
	}
	return fmt.Sprintf("sync %s (video %s)", e.Kind, e.VideoID)
}

func (e *SyncError) Unwrap() error {
	return e.Err
}

// mapFetchError translates a transport error from the fetch path. Token
// failures count as network failures here: the request never went out, and
// the SyncError taxonomy has no finer slot for them.
func mapFetchError(videoID string, err error) *SyncError {
	var terr *remote.TransportError
	if !errors.As(err, &terr) {
		return &SyncError{Kind: KindNetwork, VideoID: videoID, Err: err}
	}
	switch terr.Kind {
	case remote.KindUnauthorized:
		return &SyncError{Kind: KindUnauthorized, VideoID: videoID, StatusCode: terr.StatusCode, Message: terr.Message}
	case remote.KindServer:
		return &SyncError{Kind: KindServer, VideoID: videoID, StatusCode: terr.StatusCode, Message: terr.Message}
	case remote.KindDecoding:
		return &SyncError{Kind: KindDecoding, VideoID: videoID, Err: terr}
	case remote.KindNoData:
		return &SyncError{Kind: KindNoRemoteData, VideoID: videoID}
	default:
		return &SyncError{Kind: KindNetwork, VideoID: videoID, Err: terr}
	}
}

// mapUploadError collapses most transport errors to upload-failed; only the
// unauthorized case stays distinguishable, so callers can prompt re-auth.
func mapUploadError(videoID string, err error) *SyncError {
	var terr *remote.TransportError
	if errors.As(err, &terr) && terr.Kind == remote.KindUnauthorized {
		return &SyncError{Kind: KindUnauthorized, VideoID: videoID, StatusCode: terr.StatusCode, Message: terr.Message}
	}
	return &SyncError{Kind: KindUploadFailed, VideoID: videoID, Err: err}
}
