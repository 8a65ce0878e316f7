package remote

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"github.com/pitchmark/pitchmark-agent/internal/timeline"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}

func testLines() []timeline.FullTimelineLine {
	return []timeline.FullTimelineLine{
		{
			ID:   "line-1",
			Name: "Main",
			Stamps: []timeline.FullTimelineStamp{
				{
					ID:         "stamp-1",
					TimeStart:  "00:10:00",
					TimeFinish: "00:10:15",
					Tag: timeline.FullTag{
						Tag: timeline.Tag{ID: "tag-goal", Name: "Goal", Color: "#E53935"},
					},
					Labels:     []timeline.FullLabel{{Label: timeline.Label{ID: "label-header", Name: "Header"}}},
					TimeEvents: []timeline.TimeEvent{{ID: "te-first-half", Name: "1st half"}},
				},
			},
		},
	}
}

func TestHTTPClient_Upload_Success(t *testing.T) {
	var gotPath, gotMethod, gotToken, gotRequestID string
	var gotBody []timeline.FullTimelineLine

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotMethod = r.Method
		gotToken = r.Header.Get("X-Firebase-AppCheck")
		gotRequestID = r.Header.Get("X-Pitchmark-Request-Id")
		body, _ := io.ReadAll(r.Body)
		json.Unmarshal(body, &gotBody)
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, NewStaticTokenSource("att-token"), testLogger())

	if err := client.Upload(context.Background(), "vid123", testLines()); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if gotPath != "/api/markers/vid123" {
		t.Errorf("path = %q, want /api/markers/vid123", gotPath)
	}
	if gotMethod != http.MethodPost {
		t.Errorf("method = %q, want POST", gotMethod)
	}
	if gotToken != "att-token" {
		t.Errorf("app check token = %q, want att-token", gotToken)
	}
	if gotRequestID == "" {
		t.Error("expected a correlation request ID header")
	}
	if len(gotBody) != 1 || gotBody[0].ID != "line-1" || len(gotBody[0].Stamps) != 1 {
		t.Errorf("unexpected upload body: %+v", gotBody)
	}
}

func TestHTTPClient_Fetch_RawArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(testLines())
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, NewStaticTokenSource("t"), testLogger())
	lines, err := client.Fetch(context.Background(), "vid123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 1 || lines[0].ID != "line-1" {
		t.Fatalf("lines = %+v", lines)
	}
	if lines[0].Stamps[0].Tag.Name != "Goal" {
		t.Errorf("tag = %+v", lines[0].Stamps[0].Tag)
	}
}

func TestHTTPClient_Fetch_EnvelopeOfLines(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": testLines()})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, NewStaticTokenSource("t"), testLogger())
	lines, err := client.Fetch(context.Background(), "vid123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 1 || lines[0].Name != "Main" {
		t.Fatalf("lines = %+v", lines)
	}
}

func TestHTTPClient_Fetch_EnvelopeOfStamps(t *testing.T) {
	stamps := testLines()[0].Stamps
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"data": stamps})
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, NewStaticTokenSource("t"), testLogger())
	lines, err := client.Fetch(context.Background(), "vid123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 1 {
		t.Fatalf("expected stamps wrapped into one line, got %+v", lines)
	}
	if len(lines[0].Stamps) != 1 || lines[0].Stamps[0].ID != "stamp-1" {
		t.Errorf("stamps = %+v", lines[0].Stamps)
	}
}

func TestHTTPClient_Fetch_EmptyArray(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("[]"))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, NewStaticTokenSource("t"), testLogger())
	lines, err := client.Fetch(context.Background(), "vid123")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(lines) != 0 {
		t.Fatalf("lines = %+v, want empty", lines)
	}
}

func TestHTTPClient_Fetch_Unauthorized(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		w.Write([]byte(`{"detail":"invalid app check token"}`))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, NewStaticTokenSource("bad"), testLogger())
	_, err := client.Fetch(context.Background(), "vid123")
	if err == nil {
		t.Fatal("expected error for 401 response")
	}

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %T", err)
	}
	if terr.Kind != KindUnauthorized || terr.StatusCode != http.StatusUnauthorized {
		t.Errorf("error = %+v, want unauthorized 401", terr)
	}
	if terr.Message != "invalid app check token" {
		t.Errorf("message = %q", terr.Message)
	}
}

func TestHTTPClient_Upload_ServerError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		w.Write([]byte("backend exploded"))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, NewStaticTokenSource("t"), testLogger())
	err := client.Upload(context.Background(), "vid1", testLines())

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if terr.Kind != KindServer || terr.StatusCode != 500 || terr.Message != "backend exploded" {
		t.Errorf("error = %+v", terr)
	}
	if !terr.Retryable() {
		t.Error("5xx server error must be retryable")
	}
}

func TestHTTPClient_TokenFailureIsDistinct(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Error("request must not reach the server when token fetch fails")
	}))
	defer server.Close()

	failingTokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
	}))
	defer failingTokens.Close()

	client := NewHTTPClient(server.URL, NewHTTPTokenSource(failingTokens.URL), testLogger())
	err := client.Upload(context.Background(), "vid1", nil)

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if terr.Kind != KindToken {
		t.Errorf("kind = %v, want token", terr.Kind)
	}
}

func TestHTTPClient_NetworkError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	server.Close() // connection refused

	client := NewHTTPClient(server.URL, NewStaticTokenSource("t"), testLogger())
	_, err := client.Fetch(context.Background(), "vid1")

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if terr.Kind != KindNetwork {
		t.Errorf("kind = %v, want network", terr.Kind)
	}
	if !terr.Retryable() {
		t.Error("network error must be retryable")
	}
}

func TestHTTPClient_Fetch_DecodingError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("this is not json"))
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, NewStaticTokenSource("t"), testLogger())
	_, err := client.Fetch(context.Background(), "vid1")

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if terr.Kind != KindDecoding {
		t.Errorf("kind = %v, want decoding", terr.Kind)
	}
}

func TestHTTPClient_Fetch_EmptyBody(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, NewStaticTokenSource("t"), testLogger())
	_, err := client.Fetch(context.Background(), "vid1")

	var terr *TransportError
	if !errors.As(err, &terr) {
		t.Fatalf("expected TransportError, got %v", err)
	}
	if terr.Kind != KindNoData {
		t.Errorf("kind = %v, want no_data", terr.Kind)
	}
}

func TestHTTPClient_Delete(t *testing.T) {
	var gotMethod, gotPath string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		gotPath = r.URL.Path
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	client := NewHTTPClient(server.URL, NewStaticTokenSource("t"), testLogger())
	if err := client.Delete(context.Background(), "vid9"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if gotMethod != http.MethodDelete || gotPath != "/api/markers/vid9" {
		t.Errorf("got %s %s", gotMethod, gotPath)
	}
}

func TestHTTPTokenSource(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token": "fresh-token"})
	}))
	defer server.Close()

	src := NewHTTPTokenSource(server.URL)
	token, err := src.Token(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if token != "fresh-token" {
		t.Errorf("token = %q", token)
	}
}

func TestHTTPTokenSource_EmptyToken(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"token": ""})
	}))
	defer server.Close()

	if _, err := NewHTTPTokenSource(server.URL).Token(context.Background()); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestStubClient_ImplementsClientInterface(t *testing.T) {
	var _ Client = (*StubClient)(nil)
}

func TestHTTPClient_ImplementsClientInterface(t *testing.T) {
	var _ Client = (*HTTPClient)(nil)
}
