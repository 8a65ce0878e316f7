package api

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/pitchmark/pitchmark-agent/internal/export"
)

func exportReportHandler(cfg ServerConfig) http.HandlerFunc {
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

		report, err := export.GenerateCSV(lines, cfg.Library)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to render report", "INTERNAL_ERROR")
			return
		}

		w.Header().Set("Content-Type", "text/csv")
		w.Header().Set("Content-Disposition",
			fmt.Sprintf("attachment; filename=%q", export.ReportFilename(videoID)))
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(report))
	}
}

func exportWriteHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		videoID := chi.URLParam(r, "videoID")

		var req ExportRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			WriteError(w, http.StatusBadRequest, "invalid request body", "BAD_REQUEST")
			return
		}

		lines, err := cfg.Store.GetTimelines(r.Context(), videoID)
		if err != nil {
			WriteError(w, http.StatusInternalServerError, "failed to load timelines", "INTERNAL_ERROR")
			return
		}
		if lines == nil {
			WriteError(w, http.StatusNotFound, "no timelines for video", "NOT_FOUND")
			return
		}

		path, err := export.WriteReport(req.OutputDir, videoID, lines, cfg.Library)
		if err != nil {
			WriteError(w, http.StatusBadRequest, err.Error(), "BAD_REQUEST")
			return
		}

		WriteJSON(w, http.StatusOK, ExportResponse{
			Status:     "ok",
			OutputPath: path,
			RowCount:   export.RowCount(lines),
		})
	}
}
