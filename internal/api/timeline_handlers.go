package api

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
)

func getTimelinesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := chi.URLParam(r, "videoID")

		lines, err := cfg.Store.GetTimelines(r.Context(), videoID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to load timelines", "INTERNAL_ERROR")
			return
		}
		if lines == nil {
			WriteError(w, http.StatusNotFound, "no timelines for video", "NOT_FOUND")
			return
		}

		WriteJSON(w, http.StatusOK, TimelinesResponse{VideoID: videoID, Lines: lines})
	}
}

func putTimelinesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := chi.URLParam(r, "videoID")

		var req UpdateTimelinesRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}
		if req.Lines == nil {
			WriteError(w, http.StatusBadRequest, "lines is required", "BAD_REQUEST")
			return
		}

		if err := cfg.Store.UpdateTimelines(r.Context(), videoID, req.Lines); err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to store timelines", "INTERNAL_ERROR")
			return
		}
		if err := cfg.Store.SetCurrentVideoID(r.Context(), videoID); err != nil {
			cfg.Logger.Error("failed to record current video", "error", err, "video_id", videoID)
		}

		// Marks the modification time and schedules a debounced sync.
		cfg.Orchestrator.NotifyLocalDataChanged(r.Context(), videoID)

		WriteJSON(w, http.StatusOK, TimelinesResponse{VideoID: videoID, Lines: req.Lines})
	}
}

func deleteTimelinesHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := chi.URLParam(r, "videoID")

		if err := cfg.Store.DeleteTimelines(r.Context(), videoID); err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to delete timelines", "INTERNAL_ERROR")
			return
		}

		w.WriteHeader(http.StatusNoContent)
	}
}

func libraryTagsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, TagsResponse{
			Collection: cfg.Library.CollectionName(),
			Tags:       cfg.Library.Tags(),
		})
	}
}

func libraryLabelsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, LabelsResponse{Labels: cfg.Library.Labels()})
	}
}

func libraryTimeEventsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, TimeEventsResponse{TimeEvents: cfg.Library.TimeEvents()})
	}
}

func libraryGroupsHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		WriteJSON(w, http.StatusOK, GroupsResponse{
			TagGroups:   cfg.Library.TagGroups(),
			LabelGroups: cfg.Library.LabelGroups(),
		})
	}
}
