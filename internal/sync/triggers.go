package sync

import (
	"context"
	"errors"
	"time"
)

// Start launches the background worker and the auto-sync ticker. It returns
// immediately; both loops stop when ctx is cancelled.
func (o *Orchestrator) Start(ctx context.Context) {
	go o.worker(ctx)
	go o.autoSyncLoop(ctx)
}

// worker drains the queue one video at a time. Synchronize already rejects
// overlap, so a queued entry that races a manual sync simply logs and moves
// on; the auto loop will re-flag it.
func (o *Orchestrator) worker(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case videoID := <-o.queue:
			if err := o.Synchronize(ctx, videoID); err != nil {
				var serr *SyncError
				if errors.As(err, &serr) && serr.Kind == KindAlreadyRunning {
					o.markPending(videoID)
					continue
				}
				o.logger.Warn("background sync failed", "video_id", videoID, "error", err)
			}
		}
	}
}

// autoSyncLoop flags every known video on each interval and enqueues the
// pending set. The interval is re-read each pass so Configure takes effect
// on the next tick without restarting the loop.
func (o *Orchestrator) autoSyncLoop(ctx context.Context) {
	for {
		interval := o.autoSyncInterval()
		select {
		case <-ctx.Done():
			return
		case <-time.After(interval):
		}

		if !o.autoSyncEnabled() {
			continue
		}

		ids, err := o.store.GetAllVideoIDs(ctx)
		if err != nil {
			o.logger.Error("auto-sync: listing videos failed", "error", err)
			continue
		}
		for _, id := range ids {
			o.markPending(id)
		}
		o.flushPending()
	}
}

// NotifyLocalDataChanged schedules a debounced sync of the current video.
// Rapid edits reset the timer; only the trailing edge fires.
func (o *Orchestrator) NotifyLocalDataChanged(ctx context.Context, videoID string) {
	if err := o.TouchLocalModification(ctx, videoID); err != nil {
		o.logger.Error("failed to record local modification", "video_id", videoID, "error", err)
	}
	if !o.autoSyncEnabled() {
		return
	}

	o.mu.Lock()
	defer o.mu.Unlock()
	o.pendingAuto[videoID] = true
	if o.debounce != nil {
		o.debounce.Stop()
	}
	o.debounce = time.AfterFunc(o.debounceDelay, o.flushPending)
}

// NotifyNetworkAvailable syncs everything that accumulated while offline.
func (o *Orchestrator) NotifyNetworkAvailable(ctx context.Context) {
	if !o.autoSyncEnabled() {
		return
	}
	ids, err := o.store.GetAllVideoIDs(ctx)
	if err != nil {
		o.logger.Error("network trigger: listing videos failed", "error", err)
		return
	}
	for _, id := range ids {
		o.markPending(id)
	}
	o.flushPending()
}

// NotifyAppBecameActive syncs the current video when the app regains focus.
func (o *Orchestrator) NotifyAppBecameActive(ctx context.Context) {
	if !o.autoSyncEnabled() {
		return
	}
	videoID, err := o.store.GetCurrentVideoID(ctx)
	if err != nil {
		o.logger.Error("activation trigger: reading current video failed", "error", err)
		return
	}
	if videoID == "" {
		return
	}
	o.markPending(videoID)
	o.flushPending()
}

// NotifyAppResignedActive checkpoints state before the app goes to the
// background: any debounced edit flushes immediately and the current video
// syncs.
func (o *Orchestrator) NotifyAppResignedActive(ctx context.Context) {
	o.mu.Lock()
	if o.debounce != nil {
		o.debounce.Stop()
		o.debounce = nil
	}
	o.mu.Unlock()

	if o.autoSyncEnabled() {
		if videoID, err := o.store.GetCurrentVideoID(ctx); err == nil && videoID != "" {
			o.markPending(videoID)
		}
	}
	o.flushPending()
}

func (o *Orchestrator) markPending(videoID string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.pendingAuto[videoID] = true
}

// flushPending moves the pending set onto the worker queue. A full queue
// drops the entry; the flag stays cleared and the next tick re-adds it.
func (o *Orchestrator) flushPending() {
	o.mu.Lock()
	ids := make([]string, 0, len(o.pendingAuto))
	for id := range o.pendingAuto {
		ids = append(ids, id)
	}
	o.pendingAuto = make(map[string]bool)
	o.mu.Unlock()

	for _, id := range ids {
		select {
		case o.queue <- id:
		default:
			o.logger.Warn("sync queue full, dropping trigger", "video_id", id)
		}
	}
}

func (o *Orchestrator) autoSyncEnabled() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.prefs.AutoSync
}

func (o *Orchestrator) autoSyncInterval() time.Duration {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.prefs.Interval <= 0 {
		return time.Minute
	}
	return o.prefs.Interval
}
