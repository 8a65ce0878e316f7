package api

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/pitchmark/pitchmark-agent/internal/remote"
	"github.com/pitchmark/pitchmark-agent/internal/sync"
)

func syncHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := chi.URLParam(r, "videoID")

		if err := cfg.Orchestrator.Synchronize(r.Context(), videoID); err != nil {
			writeSyncError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func forceUploadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := chi.URLParam(r, "videoID")

		if err := cfg.Orchestrator.ForceUploadLocalChanges(r.Context(), videoID); err != nil {
			writeSyncError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func forceDownloadHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := chi.URLParam(r, "videoID")

		if err := cfg.Orchestrator.ForceDownloadRemoteChanges(r.Context(), videoID); err != nil {
			writeSyncError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func resolveHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := chi.URLParam(r, "videoID")

		var req ResolveRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		var resolution sync.Resolution
		switch sync.Resolution(req.Resolution) {
		case sync.ResolutionUseLocal, sync.ResolutionUseRemote, sync.ResolutionMerge:
			resolution = sync.Resolution(req.Resolution)
		default:
			WriteError(w, http.StatusBadRequest, "resolution must be use_local, use_remote or merge", "BAD_REQUEST")
			return
		}

		if err := cfg.Orchestrator.ResolveConflict(r.Context(), videoID, resolution); err != nil {
			writeSyncError(w, err)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func getSettingsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		prefs := cfg.Orchestrator.Prefs()
		WriteJSON(w, http.StatusOK, SettingsResponse{
			AutoSync:        prefs.AutoSync,
			IntervalSeconds: int(prefs.Interval.Seconds()),
			Strategy:        prefs.Strategy,
			RetryCount:      prefs.RetryCount,
		})
	}
}

func putSettingsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req SettingsRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		strategy, err := sync.ParseStrategy(req.Strategy)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		interval := time.Duration(req.IntervalSeconds) * time.Second
		if err := cfg.Orchestrator.Configure(r.Context(), req.AutoSync, interval, strategy, req.RetryCount); err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to store settings", "INTERNAL_ERROR")
			return
		}

		prefs := cfg.Orchestrator.Prefs()
		WriteJSON(w, http.StatusOK, SettingsResponse{
			AutoSync:        prefs.AutoSync,
			IntervalSeconds: int(prefs.Interval.Seconds()),
			Strategy:        prefs.Strategy,
			RetryCount:      prefs.RetryCount,
		})
	}
}

func localChangeHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req EventRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		videoID := req.VideoID
		if videoID == "" {
			videoID, _ = cfg.Store.GetCurrentVideoID(r.Context())
		}
		if videoID == "" {
			WriteError(w, http.StatusBadRequest, "video_id is required", "BAD_REQUEST")
			return
		}

		cfg.Orchestrator.NotifyLocalDataChanged(r.Context(), videoID)
		w.WriteHeader(http.StatusAccepted)
	}
}

func networkUpHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Orchestrator.NotifyNetworkAvailable(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}
}

func appActiveHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Orchestrator.NotifyAppBecameActive(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}
}

func appResignHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		cfg.Orchestrator.NotifyAppResignedActive(r.Context())
		w.WriteHeader(http.StatusAccepted)
	}
}

func remoteDeleteHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := chi.URLParam(r, "videoID")

		if err := cfg.Remote.Delete(r.Context(), videoID); err != nil {
			var terr *remote.TransportError
			if errors.As(err, &terr) && terr.Kind == remote.KindUnauthorized {
				WriteError(w, http.StatusBadGateway, "remote rejected attestation token", "REMOTE_UNAUTHORIZED")
				return
			}
			WriteError(w, http.StatusBadGateway, "remote delete failed", "REMOTE_ERROR")
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// writeSyncError maps the orchestrator's error taxonomy onto HTTP. A pending
// merge conflict answers 409 with both divergent sets.
func writeSyncError(w http.ResponseWriter, err error) {
	var serr *sync.SyncError
	if !errors.As(err, &serr) {
		WriteError(w, http.StatusInternalServerError, err.Error(), "INTERNAL_ERROR")
		return
	}

	switch serr.Kind {
	case sync.KindMergeConflict:
		WriteJSON(w, http.StatusConflict, ConflictResponse{
			Error:  serr.Error(),
			Code:   "MERGE_CONFLICT",
			Local:  serr.Local,
			Remote: serr.Remote,
		})
	case sync.KindAlreadyRunning:
		WriteError(w, http.StatusConflict, serr.Error(), "SYNC_IN_PROGRESS")
	case sync.KindNoLocalData, sync.KindNoRemoteData:
		WriteError(w, http.StatusNotFound, serr.Error(), "NOT_FOUND")
	case sync.KindUnauthorized:
		WriteError(w, http.StatusBadGateway, serr.Error(), "REMOTE_UNAUTHORIZED")
	case sync.KindNetwork, sync.KindServer, sync.KindDecoding, sync.KindUploadFailed:
		WriteError(w, http.StatusBadGateway, serr.Error(), "REMOTE_ERROR")
	default:
		WriteError(w, http.StatusInternalServerError, serr.Error(), "INTERNAL_ERROR")
	}
}
