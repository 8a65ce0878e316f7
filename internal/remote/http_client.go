package remote

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"time"

	"github.com/pitchmark/pitchmark-agent/internal/timeline"
)

const (
	appCheckHeader  = "X-Firebase-AppCheck"
	requestIDHeader = "X-Pitchmark-Request-Id"

	maxErrorBody = 4096
	maxFetchBody = 8 << 20
)

// HTTPClient talks to the marker service over HTTPS. Every request carries a
// freshly fetched attestation token and a correlation request ID.
type HTTPClient struct {
	baseURL    string
	tokens     TokenSource
	deviceID   string
	httpClient *http.Client
	logger     *slog.Logger
}

func NewHTTPClient(baseURL string, tokens TokenSource, logger *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL: baseURL,
		tokens:  tokens,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
		logger: logger,
	}
}

func (c *HTTPClient) SetDeviceID(id string) {
	c.deviceID = id
}

func (c *HTTPClient) Upload(ctx context.Context, videoID string, lines []timeline.FullTimelineLine) error {
	body, err := json.Marshal(lines)
	if err != nil {
		return &TransportError{Kind: KindUnknown, Err: fmt.Errorf("marshal timeline payload: %w", err)}
	}

	req, terr := c.newRequest(ctx, http.MethodPost, videoID, bytes.NewReader(body))
	if terr != nil {
		return terr
	}
	req.Header.Set("Content-Type", "application/json")

	c.logger.Info("uploading timelines",
		"video_id", videoID,
		"line_count", len(lines),
		"body_bytes", len(body),
	)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return networkError(err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if terr := statusError(resp.StatusCode, respBody); terr != nil {
		return terr
	}

	c.logger.Info("timeline upload succeeded", "video_id", videoID)
	return nil
}

func (c *HTTPClient) Fetch(ctx context.Context, videoID string) ([]timeline.FullTimelineLine, error) {
	req, terr := c.newRequest(ctx, http.MethodGet, videoID, nil)
	if terr != nil {
		return nil, terr
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, networkError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(io.LimitReader(resp.Body, maxFetchBody))
	if err != nil {
		return nil, networkError(err)
	}
	if terr := statusError(resp.StatusCode, respBody); terr != nil {
		return nil, terr
	}
	if len(bytes.TrimSpace(respBody)) == 0 {
		return nil, &TransportError{Kind: KindNoData, Message: "empty response body"}
	}

	lines, terr := decodeFetchBody(respBody)
	if terr != nil {
		return nil, terr
	}

	c.logger.Info("timeline fetch succeeded", "video_id", videoID, "line_count", len(lines))
	return lines, nil
}

func (c *HTTPClient) Delete(ctx context.Context, videoID string) error {
	req, terr := c.newRequest(ctx, http.MethodDelete, videoID, nil)
	if terr != nil {
		return terr
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return networkError(err)
	}
	defer resp.Body.Close()

	respBody, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	if terr := statusError(resp.StatusCode, respBody); terr != nil {
		return terr
	}

	c.logger.Info("remote timelines deleted", "video_id", videoID)
	return nil
}

func (c *HTTPClient) newRequest(ctx context.Context, method, videoID string, body io.Reader) (*http.Request, *TransportError) {
	u, err := url.JoinPath(c.baseURL, "api", "markers", videoID)
	if err != nil {
		return nil, &TransportError{Kind: KindInvalidURL, Err: err}
	}

	token, err := c.tokens.Token(ctx)
	if err != nil {
		return nil, tokenError(err)
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return nil, &TransportError{Kind: KindInvalidURL, Err: err}
	}

	req.Header.Set(appCheckHeader, token)
	req.Header.Set(requestIDHeader, newRequestID())
	if c.deviceID != "" {
		req.Header.Set("X-Pitchmark-Device-Id", c.deviceID)
	}
	return req, nil
}

// statusError maps a non-2xx response to a TransportError. 401 gets its own
// kind so callers can prompt re-auth.
func statusError(status int, body []byte) *TransportError {
	if status >= 200 && status < 300 {
		return nil
	}
	msg := serverMessage(body)
	if status == http.StatusUnauthorized {
		return &TransportError{Kind: KindUnauthorized, StatusCode: status, Message: msg}
	}
	return &TransportError{Kind: KindServer, StatusCode: status, Message: msg}
}

// serverMessage extracts an error message from a response body, preferring a
// JSON detail field over the raw text.
func serverMessage(body []byte) string {
	var detail struct {
		Detail string `json:"detail"`
		Error  string `json:"error"`
	}
	if err := json.Unmarshal(body, &detail); err == nil {
		if detail.Detail != "" {
			return detail.Detail
		}
		if detail.Error != "" {
			return detail.Error
		}
	}
	return string(bytes.TrimSpace(body))
}

// decodeFetchBody tolerates the two response shapes the service is known to
// return: a raw array of full timeline lines, or an envelope whose data array
// holds either lines or bare full stamps. Envelope parsing is attempted first.
func decodeFetchBody(body []byte) ([]timeline.FullTimelineLine, *TransportError) {
	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(body, &envelope); err == nil && len(envelope.Data) > 0 {
		if elementsAreLines(envelope.Data) {
			var lines []timeline.FullTimelineLine
			if err := json.Unmarshal(envelope.Data, &lines); err != nil {
				return nil, decodingError(err)
			}
			return lines, nil
		}
		var stamps []timeline.FullTimelineStamp
		if err := json.Unmarshal(envelope.Data, &stamps); err != nil {
			return nil, decodingError(err)
		}
		// Bare stamps carry no line grouping; wrap them in one synthetic line.
		return []timeline.FullTimelineLine{{
			ID:     timeline.NewID(),
			Name:   "Imported",
			Stamps: stamps,
		}}, nil
	}

	var lines []timeline.FullTimelineLine
	if err := json.Unmarshal(body, &lines); err != nil {
		return nil, decodingError(err)
	}
	return lines, nil
}

// elementsAreLines probes the first array element: a line object carries a
// "stamps" key, a bare full stamp carries a "tag" key instead.
func elementsAreLines(data json.RawMessage) bool {
	var probe []map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil || len(probe) == 0 {
		return true
	}
	if _, ok := probe[0]["stamps"]; ok {
		return true
	}
	if _, ok := probe[0]["tag"]; ok {
		return false
	}
	return true
}

func newRequestID() string {
	b := make([]byte, 16)
	_, _ = rand.Read(b)
	return fmt.Sprintf("%x-%x-%x-%x-%x", b[0:4], b[4:6], b[6:8], b[8:10], b[10:])
}
