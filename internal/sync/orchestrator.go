package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	stdsync "sync"
	"sync/atomic"
	"time"

	"github.com/pitchmark/pitchmark-agent/internal/logging"
	"github.com/pitchmark/pitchmark-agent/internal/remote"
	"github.com/pitchmark/pitchmark-agent/internal/store"
	"github.com/pitchmark/pitchmark-agent/internal/timeline"
)

// Strategy selects how a detected conflict is resolved.
type Strategy string

const (
	StrategyUseLocal  Strategy = "use_local"
	StrategyUseRemote Strategy = "use_remote"
	StrategyMerge     Strategy = "merge"
	StrategyAskUser   Strategy = "ask_user"
)

// ParseStrategy validates a strategy label from config or the API.
func ParseStrategy(s string) (Strategy, error) {
	switch Strategy(s) {
	case StrategyUseLocal, StrategyUseRemote, StrategyMerge, StrategyAskUser:
		return Strategy(s), nil
	}
	return "", fmt.Errorf("unknown conflict strategy %q", s)
}

// Resolution is the manual answer to an ask-user conflict.
type Resolution string

const (
	ResolutionUseLocal  Resolution = "use_local"
	ResolutionUseRemote Resolution = "use_remote"
	ResolutionMerge     Resolution = "merge"
)

// State is the per-video sync state.
type State string

const (
	StateIdle            State = "idle"
	StateSyncing         State = "syncing"
	StateConflictPending State = "conflict_pending"
)

const maxVisibleErrors = 5

// Status is an observable snapshot of the orchestrator.
type Status struct {
	Syncing        bool     `json:"syncing"`
	Message        string   `json:"message"`
	Progress       float64  `json:"progress"`
	ConflictVideos []string `json:"conflict_videos,omitempty"`
	RecentErrors   []string `json:"recent_errors,omitempty"`
	DroppedErrors  int      `json:"dropped_errors"`
}

// Orchestrator sequences fetch, detection, resolution and upload for one
// video at a time. A single process-wide in-flight flag rejects concurrent
// syncs: in a single-user desktop context, fail-fast beats queueing.
type Orchestrator struct {
	store   store.Store
	client  remote.Client
	library *timeline.Library
	logger  *slog.Logger

	isSyncing atomic.Bool

	mu            stdsync.Mutex
	prefs         store.Prefs
	states        map[string]State
	snapshots     map[string][]timeline.FullTimelineLine
	pendingAuto   map[string]bool
	recentErrors  []string
	droppedErrors int
	message       string
	progress      float64
	debounce      *time.Timer

	debounceDelay time.Duration
	queue         chan string
}

func NewOrchestrator(st store.Store, client remote.Client, library *timeline.Library, logger *slog.Logger) *Orchestrator {
	o := &Orchestrator{
		store:         st,
		client:        client,
		library:       library,
		logger:        logger,
		states:        make(map[string]State),
		snapshots:     make(map[string][]timeline.FullTimelineLine),
		pendingAuto:   make(map[string]bool),
		prefs:         store.DefaultPrefs(),
		message:       "idle",
		debounceDelay: 10 * time.Second,
		queue:         make(chan string, 64),
	}
	return o
}

// LoadPrefs pulls the persisted sync preferences into memory. Called once at
// startup before Start.
func (o *Orchestrator) LoadPrefs(ctx context.Context) error {
	prefs, err := o.store.GetPrefs(ctx)
	if err != nil {
		return fmt.Errorf("load sync prefs: %w", err)
	}
	o.mu.Lock()
	o.prefs = prefs
	o.mu.Unlock()
	return nil
}

// Synchronize runs one full sync cycle for a video. It fails fast with an
// already-running error while any sync is in flight, for any video.
func (o *Orchestrator) Synchronize(ctx context.Context, videoID string) error {
	if !o.isSyncing.CompareAndSwap(false, true) {
		return &SyncError{Kind: KindAlreadyRunning, VideoID: videoID, Message: "a sync is already running"}
	}
	defer o.isSyncing.Store(false)

	err := o.runSync(ctx, videoID)
	if err != nil {
		o.recordError(err)
	}
	return err
}

func (o *Orchestrator) runSync(ctx context.Context, videoID string) error {
	o.setState(videoID, StateSyncing)
	o.setStatus("loading local timelines", 0.1)

	local, err := o.store.GetTimelines(ctx, videoID)
	if err != nil {
		o.setState(videoID, StateIdle)
		return &SyncError{Kind: KindInvalidData, VideoID: videoID, Err: err}
	}
	if local == nil {
		o.setState(videoID, StateIdle)
		o.setStatus("no local data", 0)
		return &SyncError{Kind: KindNoLocalData, VideoID: videoID}
	}

	o.setStatus("fetching remote state", 0.3)
	remoteFull, err := o.client.Fetch(ctx, videoID)
	if err != nil {
		var terr *remote.TransportError
		if errors.As(err, &terr) && terr.Kind == remote.KindNoData {
			// Nothing stored remotely yet; same as an empty fetch.
			remoteFull = nil
		} else {
			o.setState(videoID, StateIdle)
			o.setStatus("sync failed", 0)
			return mapFetchError(videoID, err)
		}
	}

	// First sync for this video on the remote side: upload local as-is,
	// no conflict detection.
	if len(remoteFull) == 0 {
		logging.WithVideoID(o.logger, videoID).Info("remote empty, uploading local timelines")
		return o.finishUpload(ctx, videoID, local, 0.6)
	}

	remoteCompact := timeline.FromFull(remoteFull)
	o.cacheSnapshot(videoID, remoteFull)

	o.setStatus("detecting conflicts", 0.5)
	if !timeline.HasConflict(local, remoteCompact) {
		meta := o.loadMeta(ctx, videoID)
		// No structural conflict: last writer wins by wall clock.
		if meta.LastLocalModification.After(meta.LastSync) {
			return o.finishUpload(ctx, videoID, local, 0.7)
		}
		return o.applyRemote(ctx, videoID, remoteCompact)
	}

	strategy := o.strategyFor(ctx, videoID)
	logging.WithVideoID(o.logger, videoID).Info("conflict detected", "strategy", string(strategy))

	switch strategy {
	case StrategyUseLocal:
		return o.finishUpload(ctx, videoID, local, 0.7)
	case StrategyUseRemote:
		return o.applyRemote(ctx, videoID, remoteCompact)
	case StrategyMerge:
		merged := timeline.Merge(local, remoteCompact)
		if err := o.store.UpdateTimelines(ctx, videoID, merged); err != nil {
			o.setState(videoID, StateIdle)
			return &SyncError{Kind: KindInvalidData, VideoID: videoID, Err: err}
		}
		return o.finishUpload(ctx, videoID, merged, 0.8)
	default: // ask the user
		o.setState(videoID, StateConflictPending)
		o.setStatus("conflict pending manual resolution", 0)
		return &SyncError{
			Kind:    KindMergeConflict,
			VideoID: videoID,
			Message: "local and remote timelines diverge",
			Local:   local,
			Remote:  remoteCompact,
		}
	}
}

// finishUpload pushes the given set, bumps the sync version and stamps the
// sync time. Retries per configured retry count on retryable transport
// failures.
func (o *Orchestrator) finishUpload(ctx context.Context, videoID string, lines []timeline.TimelineLine, progress float64) error {
	o.setStatus("uploading timelines", progress)
	logger := logging.WithVideoID(o.logger, videoID)

	full := timeline.ToFull(lines, o.library)

	retries := o.retryCount()
	var err error
	for attempt := 0; attempt <= retries; attempt++ {
		if attempt > 0 {
			logger.Warn("retrying upload", "attempt", attempt)
		}
		err = o.client.Upload(ctx, videoID, full)
		if err == nil {
			break
		}
		var terr *remote.TransportError
		if !errors.As(err, &terr) || !terr.Retryable() {
			break
		}
	}
	if err != nil {
		o.setState(videoID, StateIdle)
		o.setStatus("upload failed", 0)
		return mapUploadError(videoID, err)
	}

	meta := o.loadMeta(ctx, videoID)
	meta.SyncVersion++
	meta.LastSync = time.Now()
	if perr := o.store.PutSyncMetadata(ctx, meta); perr != nil {
		logger.Error("failed to persist sync metadata", "error", perr)
	}

	o.clearSnapshot(videoID)
	o.setState(videoID, StateIdle)
	o.setStatus("sync complete", 1)
	logger.Info("upload complete", "sync_version", meta.SyncVersion)
	return nil
}

// applyRemote overwrites the local set with the remote one. The sync version
// does not change: nothing was uploaded.
func (o *Orchestrator) applyRemote(ctx context.Context, videoID string, lines []timeline.TimelineLine) error {
	o.setStatus("applying remote timelines", 0.7)
	logger := logging.WithVideoID(o.logger, videoID)

	if err := o.store.UpdateTimelines(ctx, videoID, lines); err != nil {
		o.setState(videoID, StateIdle)
		return &SyncError{Kind: KindInvalidData, VideoID: videoID, Err: err}
	}

	meta := o.loadMeta(ctx, videoID)
	meta.LastSync = time.Now()
	if err := o.store.PutSyncMetadata(ctx, meta); err != nil {
		logger.Error("failed to persist sync metadata", "error", err)
	}

	o.clearSnapshot(videoID)
	o.setState(videoID, StateIdle)
	o.setStatus("sync complete", 1)
	logger.Info("remote timelines applied")
	return nil
}

// ForceUploadLocalChanges pushes the local set unconditionally, bypassing
// conflict detection.
func (o *Orchestrator) ForceUploadLocalChanges(ctx context.Context, videoID string) error {
	if !o.isSyncing.CompareAndSwap(false, true) {
		return &SyncError{Kind: KindAlreadyRunning, VideoID: videoID, Message: "a sync is already running"}
	}
	defer o.isSyncing.Store(false)

	local, err := o.store.GetTimelines(ctx, videoID)
	if err != nil {
		serr := &SyncError{Kind: KindInvalidData, VideoID: videoID, Err: err}
		o.recordError(serr)
		return serr
	}
	if local == nil {
		serr := &SyncError{Kind: KindNoLocalData, VideoID: videoID}
		o.recordError(serr)
		return serr
	}

	o.setState(videoID, StateSyncing)
	if err := o.finishUpload(ctx, videoID, local, 0.5); err != nil {
		o.recordError(err)
		return err
	}
	return nil
}

// ForceDownloadRemoteChanges overwrites local with remote unconditionally,
// bypassing conflict detection. No version bump: nothing was uploaded.
func (o *Orchestrator) ForceDownloadRemoteChanges(ctx context.Context, videoID string) error {
	if !o.isSyncing.CompareAndSwap(false, true) {
		return &SyncError{Kind: KindAlreadyRunning, VideoID: videoID, Message: "a sync is already running"}
	}
	defer o.isSyncing.Store(false)

	o.setState(videoID, StateSyncing)
	o.setStatus("fetching remote state", 0.3)

	remoteFull, err := o.client.Fetch(ctx, videoID)
	if err != nil {
		o.setState(videoID, StateIdle)
		serr := mapFetchError(videoID, err)
		o.recordError(serr)
		return serr
	}
	if len(remoteFull) == 0 {
		o.setState(videoID, StateIdle)
		serr := &SyncError{Kind: KindNoRemoteData, VideoID: videoID}
		o.recordError(serr)
		return serr
	}

	if err := o.applyRemote(ctx, videoID, timeline.FromFull(remoteFull)); err != nil {
		o.recordError(err)
		return err
	}
	return nil
}

// ResolveConflict completes a sync stalled in conflict-pending. Calling it
// without a pending conflict (or a cached remote snapshot) is a no-op
// success, so UI that double-fires cannot crash the flow.
func (o *Orchestrator) ResolveConflict(ctx context.Context, videoID string, resolution Resolution) error {
	o.mu.Lock()
	snapshot, haveSnapshot := o.snapshots[videoID]
	pending := o.states[videoID] == StateConflictPending
	o.mu.Unlock()

	if !pending || !haveSnapshot {
		return nil
	}

	if !o.isSyncing.CompareAndSwap(false, true) {
		return &SyncError{Kind: KindAlreadyRunning, VideoID: videoID, Message: "a sync is already running"}
	}
	defer o.isSyncing.Store(false)

	o.setState(videoID, StateSyncing)
	remoteCompact := timeline.FromFull(snapshot)

	local, err := o.store.GetTimelines(ctx, videoID)
	if err != nil {
		o.setState(videoID, StateIdle)
		serr := &SyncError{Kind: KindInvalidData, VideoID: videoID, Err: err}
		o.recordError(serr)
		return serr
	}

	var serr error
	switch resolution {
	case ResolutionUseLocal:
		serr = o.finishUpload(ctx, videoID, local, 0.5)
	case ResolutionUseRemote:
		serr = o.applyRemote(ctx, videoID, remoteCompact)
	case ResolutionMerge:
		merged := timeline.Merge(local, remoteCompact)
		if err := o.store.UpdateTimelines(ctx, videoID, merged); err != nil {
			o.setState(videoID, StateIdle)
			serr = &SyncError{Kind: KindInvalidData, VideoID: videoID, Err: err}
			break
		}
		serr = o.finishUpload(ctx, videoID, merged, 0.7)
	default:
		o.setState(videoID, StateConflictPending)
		serr = &SyncError{Kind: KindConflict, VideoID: videoID, Message: fmt.Sprintf("unknown resolution %q", resolution)}
	}
	if serr != nil {
		o.recordError(serr)
	}
	return serr
}

// Configure updates and persists the sync preferences. The auto-sync loop
// picks up interval and enablement changes on its next tick.
func (o *Orchestrator) Configure(ctx context.Context, autoSync bool, interval time.Duration, strategy Strategy, retryCount int) error {
	if interval <= 0 {
		interval = store.DefaultPrefs().Interval
	}
	if retryCount < 0 {
		retryCount = 0
	}
	prefs := store.Prefs{
		AutoSync:   autoSync,
		Interval:   interval,
		Strategy:   string(strategy),
		RetryCount: retryCount,
	}
	if err := o.store.PutPrefs(ctx, prefs); err != nil {
		return fmt.Errorf("persist sync prefs: %w", err)
	}
	o.mu.Lock()
	o.prefs = prefs
	o.mu.Unlock()
	o.logger.Info("sync configuration updated",
		"auto_sync", autoSync, "interval", interval.String(),
		"strategy", string(strategy), "retry_count", retryCount)
	return nil
}

// Prefs returns the current in-memory sync preferences.
func (o *Orchestrator) Prefs() store.Prefs {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.prefs
}

// TouchLocalModification records a local edit in the video's sync metadata.
// Called by the persistence surface whenever timelines change locally.
func (o *Orchestrator) TouchLocalModification(ctx context.Context, videoID string) error {
	meta := o.loadMeta(ctx, videoID)
	meta.LastLocalModification = time.Now()
	return o.store.PutSyncMetadata(ctx, meta)
}

// Status returns an observable snapshot for UI and the status endpoint.
func (o *Orchestrator) Status() Status {
	o.mu.Lock()
	defer o.mu.Unlock()

	var conflicts []string
	for id, st := range o.states {
		if st == StateConflictPending {
			conflicts = append(conflicts, id)
		}
	}
	return Status{
		Syncing:        o.isSyncing.Load(),
		Message:        o.message,
		Progress:       o.progress,
		ConflictVideos: conflicts,
		RecentErrors:   append([]string(nil), o.recentErrors...),
		DroppedErrors:  o.droppedErrors,
	}
}

// ConflictPending reports whether a video is stalled on manual resolution.
func (o *Orchestrator) ConflictPending(videoID string) bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.states[videoID] == StateConflictPending
}

// ClearErrors empties the visible error log.
func (o *Orchestrator) ClearErrors() {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.recentErrors = nil
	o.droppedErrors = 0
}

func (o *Orchestrator) loadMeta(ctx context.Context, videoID string) *store.SyncMetadata {
	meta, err := o.store.GetSyncMetadata(ctx, videoID)
	if err != nil {
		o.logger.Error("failed to load sync metadata", "video_id", videoID, "error", err)
	}
	if meta == nil {
		meta = &store.SyncMetadata{VideoID: videoID}
	}
	return meta
}

// strategyFor prefers a per-video strategy stored in metadata over the
// global preference.
func (o *Orchestrator) strategyFor(ctx context.Context, videoID string) Strategy {
	meta := o.loadMeta(ctx, videoID)
	if meta.Strategy != "" {
		if s, err := ParseStrategy(meta.Strategy); err == nil {
			return s
		}
	}
	o.mu.Lock()
	defer o.mu.Unlock()
	if s, err := ParseStrategy(o.prefs.Strategy); err == nil {
		return s
	}
	return StrategyAskUser
}

func (o *Orchestrator) retryCount() int {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.prefs.RetryCount
}

func (o *Orchestrator) cacheSnapshot(videoID string, full []timeline.FullTimelineLine) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.snapshots[videoID] = full
}

func (o *Orchestrator) clearSnapshot(videoID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.snapshots, videoID)
}

func (o *Orchestrator) setState(videoID string, st State) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.states[videoID] = st
}

func (o *Orchestrator) setStatus(message string, progress float64) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.message = message
	o.progress = progress
}

// recordError keeps the most recent few errors and counts the rest. No sync
// failure is fatal; everything is retryable on the next trigger.
func (o *Orchestrator) recordError(err error) {
	o.logger.Error("sync error", "error", err)
	o.mu.Lock()
	defer o.mu.Unlock()
	o.recentErrors = append(o.recentErrors, err.Error())
	if len(o.recentErrors) > maxVisibleErrors {
		o.recentErrors = o.recentErrors[len(o.recentErrors)-maxVisibleErrors:]
		o.droppedErrors++
	}
}
