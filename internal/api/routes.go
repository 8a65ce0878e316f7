package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
)

func NewRouter(cfg ServerConfig) *chi.Mux {
	r := chi.NewRouter()

	r.Use(RequestIDMiddleware())
	r.Use(RecoveryMiddleware(cfg.Logger))
	r.Use(LoggingMiddleware(cfg.Logger))

	r.Get("/health", healthHandler(cfg))

	r.Group(func(r chi.Router) {
		r.Use(AuthMiddleware(cfg.Store, cfg.Logger))

		r.Get("/status", statusHandler(cfg))

		r.Get("/timelines/{videoID}", getTimelinesHandler(cfg))
		r.Put("/timelines/{videoID}", putTimelinesHandler(cfg))
		r.Delete("/timelines/{videoID}", deleteTimelinesHandler(cfg))

		r.Post("/sync/{videoID}", syncHandler(cfg))
		r.Post("/sync/{videoID}/force-upload", forceUploadHandler(cfg))
		r.Post("/sync/{videoID}/force-download", forceDownloadHandler(cfg))
		r.Post("/sync/{videoID}/resolve", resolveHandler(cfg))

		r.Get("/settings", getSettingsHandler(cfg))
		r.Put("/settings", putSettingsHandler(cfg))

		r.Get("/library/tags", libraryTagsHandler(cfg))
		r.Get("/library/labels", libraryLabelsHandler(cfg))
		r.Get("/library/time-events", libraryTimeEventsHandler(cfg))
		r.Get("/library/groups", libraryGroupsHandler(cfg))

		r.Post("/events/local-change", localChangeHandler(cfg))
		r.Post("/events/network-up", networkUpHandler(cfg))
		r.Post("/events/app-active", appActiveHandler(cfg))
		r.Post("/events/app-resign", appResignHandler(cfg))

		r.Get("/export/{videoID}.csv", exportReportHandler(cfg))
		r.Post("/export/{videoID}", exportWriteHandler(cfg))

		r.Delete("/remote/{videoID}", remoteDeleteHandler(cfg))
	})

	return r
}

func healthHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		uptime := int64(time.Since(cfg.StartTime).Seconds())
		WriteJSON(w, http.StatusOK, HealthResponse{
			Status:   "ok",
			Version:  cfg.Version,
			UptimeS:  uptime,
			DeviceID: cfg.DeviceID,
		})
	}
}

func statusHandler(cfg ServerConfig) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		status := cfg.Orchestrator.Status()
		prefs := cfg.Orchestrator.Prefs()
		currentVideo, _ := cfg.Store.GetCurrentVideoID(r.Context())

		WriteJSON(w, http.StatusOK, StatusResponse{
			Syncing:        status.Syncing,
			Message:        status.Message,
			Progress:       status.Progress,
			ConflictVideos: status.ConflictVideos,
			RecentErrors:   status.RecentErrors,
			DroppedErrors:  status.DroppedErrors,
			AutoSync:       prefs.AutoSync,
			CurrentVideoID: currentVideo,
		})
	}
}
