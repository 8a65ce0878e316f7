package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/pitchmark/pitchmark-agent/internal/db"
	"github.com/pitchmark/pitchmark-agent/internal/store"
	"github.com/pitchmark/pitchmark-agent/internal/sync"
	"github.com/pitchmark/pitchmark-agent/internal/timeline"
)

const testToken = "test-token-1234567890"

type fakeRemote struct {
	fetchLines []timeline.FullTimelineLine
	fetchErr   error
	deleted    []string
}

func (c *fakeRemote) Upload(ctx context.Context, videoID string, lines []timeline.FullTimelineLine) error {
	return nil
}

func (c *fakeRemote) Fetch(ctx context.Context, videoID string) ([]timeline.FullTimelineLine, error) {
	return c.fetchLines, c.fetchErr
}

func (c *fakeRemote) Delete(ctx context.Context, videoID string) error {
	c.deleted = append(c.deleted, videoID)
	return nil
}

type testEnv struct {
	server  *httptest.Server
	store   store.Store
	remote  *fakeRemote
	orch    *sync.Orchestrator
	library *timeline.Library
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()

	database, err := db.New(filepath.Join(t.TempDir(), "test.db"), nil)
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	st := store.NewSQLiteStore(database.Conn())
	if err := st.SetConfig(context.Background(), "auth_token", testToken); err != nil {
		t.Fatal(err)
	}

	collection, err := timeline.DefaultCollection()
	if err != nil {
		t.Fatal(err)
	}
	library := timeline.NewLibrary(collection)

	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	client := &fakeRemote{}
	orch := sync.NewOrchestrator(st, client, library, logger)

	router := NewRouter(ServerConfig{
		Port:         0,
		Store:        st,
		Orchestrator: orch,
		Library:      library,
		Remote:       client,
		Logger:       logger,
		StartTime:    time.Now(),
		DeviceID:     "device-test",
		Version:      "0.1.0",
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)

	return &testEnv{server: srv, store: st, remote: client, orch: orch, library: library}
}

func (e *testEnv) request(t *testing.T, method, path string, body interface{}) *http.Response {
	t.Helper()

	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatal(err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequest(method, e.server.URL+path, reader)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Authorization", "Bearer "+testToken)

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decodeBody(t *testing.T, resp *http.Response, out interface{}) {
	t.Helper()
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func TestHealth_NoAuthRequired(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/health")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var health HealthResponse
	decodeBody(t, resp, &health)
	if health.Status != "ok" || health.DeviceID != "device-test" {
		t.Errorf("health = %+v", health)
	}
}

func TestStatus_RequiresAuth(t *testing.T) {
	env := newTestEnv(t)

	resp, err := http.Get(env.server.URL + "/status")
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Errorf("status without token = %d, want 401", resp.StatusCode)
	}

	resp2 := env.request(t, http.MethodGet, "/status", nil)
	if resp2.StatusCode != http.StatusOK {
		t.Errorf("status with token = %d, want 200", resp2.StatusCode)
	}
}

func TestTimelines_PutThenGet(t *testing.T) {
	env := newTestEnv(t)

	lines := []timeline.TimelineLine{
		{ID: "l1", Name: "Camera 1", Stamps: []timeline.TimelineStamp{
			{ID: "s1", IDTag: "tag-goal", TimeStart: "00:01:00", TimeFinish: "00:01:10", Label: "Goal"},
		}},
	}

	resp := env.request(t, http.MethodPut, "/timelines/vid1", UpdateTimelinesRequest{Lines: lines})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put status = %d, want 200", resp.StatusCode)
	}

	resp = env.request(t, http.MethodGet, "/timelines/vid1", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("get status = %d, want 200", resp.StatusCode)
	}
	var got TimelinesResponse
	decodeBody(t, resp, &got)
	if got.VideoID != "vid1" || len(got.Lines) != 1 || got.Lines[0].ID != "l1" {
		t.Errorf("timelines = %+v", got)
	}

	// The write must count as a local modification for sync ordering.
	meta, err := env.store.GetSyncMetadata(context.Background(), "vid1")
	if err != nil || meta == nil {
		t.Fatalf("metadata missing after put: %v", err)
	}
	if meta.LastLocalModification.IsZero() {
		t.Error("expected local modification timestamp")
	}
}

func TestTimelines_GetMissingIs404(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodGet, "/timelines/absent", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestTimelines_Delete(t *testing.T) {
	env := newTestEnv(t)

	lines := []timeline.TimelineLine{{ID: "l1", Name: "A", Stamps: []timeline.TimelineStamp{}}}
	env.request(t, http.MethodPut, "/timelines/vid1", UpdateTimelinesRequest{Lines: lines})

	resp := env.request(t, http.MethodDelete, "/timelines/vid1", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("delete status = %d, want 204", resp.StatusCode)
	}

	resp = env.request(t, http.MethodGet, "/timelines/vid1", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("get after delete = %d, want 404", resp.StatusCode)
	}
}

func TestSync_MissingVideoIs404(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, "/sync/absent", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestSync_ConflictAnswers409WithBothSets(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	local := []timeline.TimelineLine{
		{ID: "l1", Name: "A", Stamps: []timeline.TimelineStamp{
			{ID: "s1", IDTag: "tag-goal", TimeStart: "00:01:00", TimeFinish: "00:01:10", Label: "Goal"},
		}},
	}
	if err := env.store.UpdateTimelines(ctx, "vid1", local); err != nil {
		t.Fatal(err)
	}
	remoteSet := []timeline.TimelineLine{
		{ID: "l1", Name: "A", Stamps: []timeline.TimelineStamp{
			{ID: "s2", IDTag: "tag-goal", TimeStart: "00:02:00", TimeFinish: "00:02:10", Label: "Goal"},
		}},
	}
	env.remote.fetchLines = timeline.ToFull(remoteSet, env.library)

	resp := env.request(t, http.MethodPost, "/sync/vid1", nil)
	if resp.StatusCode != http.StatusConflict {
		t.Fatalf("status = %d, want 409", resp.StatusCode)
	}
	var conflict ConflictResponse
	decodeBody(t, resp, &conflict)
	if conflict.Code != "MERGE_CONFLICT" {
		t.Errorf("code = %q", conflict.Code)
	}
	if len(conflict.Local) == 0 || len(conflict.Remote) == 0 {
		t.Error("conflict response must carry both sets")
	}

	// Manual resolution completes the stalled sync.
	resp = env.request(t, http.MethodPost, "/sync/vid1/resolve", ResolveRequest{Resolution: "merge"})
	if resp.StatusCode != http.StatusNoContent {
		t.Errorf("resolve status = %d, want 204", resp.StatusCode)
	}
}

func TestResolve_InvalidResolutionIs400(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, "/sync/vid1/resolve", ResolveRequest{Resolution: "flip-a-coin"})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestSettings_PutThenGet(t *testing.T) {
	env := newTestEnv(t)

	put := SettingsRequest{AutoSync: true, IntervalSeconds: 120, Strategy: "merge", RetryCount: 2}
	resp := env.request(t, http.MethodPut, "/settings", put)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("put status = %d, want 200", resp.StatusCode)
	}

	resp = env.request(t, http.MethodGet, "/settings", nil)
	var got SettingsResponse
	decodeBody(t, resp, &got)
	if !got.AutoSync || got.IntervalSeconds != 120 || got.Strategy != "merge" || got.RetryCount != 2 {
		t.Errorf("settings = %+v", got)
	}
}

func TestSettings_UnknownStrategyIs400(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPut, "/settings",
		SettingsRequest{Strategy: "majority-vote", IntervalSeconds: 60})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestLibrary_Tags(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodGet, "/library/tags", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var got TagsResponse
	decodeBody(t, resp, &got)
	if got.Collection == "" || len(got.Tags) == 0 {
		t.Errorf("tags = %+v", got)
	}
}

func TestExport_CSV(t *testing.T) {
	env := newTestEnv(t)

	lines := []timeline.TimelineLine{
		{ID: "l1", Name: "Camera 1", Stamps: []timeline.TimelineStamp{
			{ID: "s1", IDTag: "tag-goal", TimeStart: "00:01:00", TimeFinish: "00:01:10", Label: "Goal"},
		}},
	}
	if err := env.store.UpdateTimelines(context.Background(), "vid1", lines); err != nil {
		t.Fatal(err)
	}

	resp := env.request(t, http.MethodGet, "/export/vid1.csv", nil)
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/csv" {
		t.Errorf("content type = %q", ct)
	}
	body, _ := io.ReadAll(resp.Body)
	if !bytes.Contains(body, []byte("Camera 1")) {
		t.Errorf("report missing line name: %s", body)
	}
}

func TestExport_WriteToDisk(t *testing.T) {
	env := newTestEnv(t)

	lines := []timeline.TimelineLine{
		{ID: "l1", Name: "Camera 1", Stamps: []timeline.TimelineStamp{
			{ID: "s1", IDTag: "tag-goal", TimeStart: "00:01:00", TimeFinish: "00:01:10", Label: "Goal"},
		}},
	}
	if err := env.store.UpdateTimelines(context.Background(), "vid1", lines); err != nil {
		t.Fatal(err)
	}

	dir := t.TempDir()
	resp := env.request(t, http.MethodPost, "/export/vid1", ExportRequest{OutputDir: dir})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	var result ExportResponse
	decodeBody(t, resp, &result)
	if result.Status != "ok" || result.RowCount != 1 {
		t.Errorf("export result = %+v", result)
	}

	data, err := os.ReadFile(result.OutputPath)
	if err != nil {
		t.Fatalf("report not written: %v", err)
	}
	if !bytes.Contains(data, []byte("Camera 1")) {
		t.Errorf("report missing line name: %s", data)
	}
}

func TestExport_WriteToBadDirIs400(t *testing.T) {
	env := newTestEnv(t)

	lines := []timeline.TimelineLine{{ID: "l1", Name: "A", Stamps: []timeline.TimelineStamp{}}}
	if err := env.store.UpdateTimelines(context.Background(), "vid1", lines); err != nil {
		t.Fatal(err)
	}

	resp := env.request(t, http.MethodPost, "/export/vid1",
		ExportRequest{OutputDir: filepath.Join(t.TempDir(), "missing")})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestEvents_LocalChange(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, "/events/local-change", EventRequest{VideoID: "vid1"})
	if resp.StatusCode != http.StatusAccepted {
		t.Fatalf("status = %d, want 202", resp.StatusCode)
	}

	meta, err := env.store.GetSyncMetadata(context.Background(), "vid1")
	if err != nil || meta == nil || meta.LastLocalModification.IsZero() {
		t.Errorf("expected modification timestamp, got %+v, %v", meta, err)
	}
}

func TestEvents_LocalChangeWithoutVideoIs400(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodPost, "/events/local-change", EventRequest{})
	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestRemoteDelete_PassThrough(t *testing.T) {
	env := newTestEnv(t)

	resp := env.request(t, http.MethodDelete, "/remote/vid1", nil)
	if resp.StatusCode != http.StatusNoContent {
		t.Fatalf("status = %d, want 204", resp.StatusCode)
	}
	if len(env.remote.deleted) != 1 || env.remote.deleted[0] != "vid1" {
		t.Errorf("deletes = %v", env.remote.deleted)
	}
}
