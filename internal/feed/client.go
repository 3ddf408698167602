// Package feed polls the upstream detection service and keeps the current
// detection set fresh, substituting simulated detections when the service
// cannot provide any.
package feed

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	jsoniter "github.com/json-iterator/go"

	"github.com/herdwatch/live-overlay/internal/detection"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// LiveFeedPath is the detection service endpoint polled by Client.
const LiveFeedPath = "/api/live-feed"

var (
	// ErrFeedUnavailable covers transport errors, non-2xx answers, bodies
	// that fail to decode and responses reporting success=false.
	ErrFeedUnavailable = errors.New("detection feed unavailable")
	// ErrEmptyFeed means the service answered but carried no detections.
	ErrEmptyFeed = errors.New("detection feed empty")
)

// maxBodyBytes bounds how much of an upstream answer is read.
const maxBodyBytes = 1 << 20

// Response is the wire shape of GET /api/live-feed.
type Response struct {
	Success bool          `json:"success"`
	Data    *ResponseData `json:"data,omitempty"`
}

// ResponseData carries the detections of a live-feed response.
type ResponseData struct {
	Detections detection.Set `json:"detections"`
}

// Fetcher returns the latest detection set from somewhere.
type Fetcher interface {
	Fetch(ctx context.Context) (detection.Set, error)
}

// FetcherFunc adapts a function to Fetcher.
type FetcherFunc func(ctx context.Context) (detection.Set, error)

// Fetch calls f.
func (f FetcherFunc) Fetch(ctx context.Context) (detection.Set, error) {
	return f(ctx)
}

// Client fetches detection sets from a remote detection service.
type Client struct {
	url  string
	http *http.Client
}

// NewClient returns a client for the service at baseURL. A zero timeout
// leaves request deadlines to the caller's context.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{
		url:  strings.TrimRight(baseURL, "/") + LiveFeedPath,
		http: &http.Client{Timeout: timeout},
	}
}

// Fetch issues one request. Errors wrap ErrFeedUnavailable or ErrEmptyFeed.
func (c *Client) Fetch(ctx context.Context) (detection.Set, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.url, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrFeedUnavailable, err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFeedUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, maxBodyBytes))
		return nil, fmt.Errorf("%w: status %d", ErrFeedUnavailable, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read body: %v", ErrFeedUnavailable, err)
	}
	return DecodeResponse(body)
}

// DecodeResponse interprets a live-feed payload.
func DecodeResponse(body []byte) (detection.Set, error) {
	var payload Response
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: decode: %v", ErrFeedUnavailable, err)
	}
	if !payload.Success {
		return nil, fmt.Errorf("%w: service reported failure", ErrFeedUnavailable)
	}
	if payload.Data == nil || len(payload.Data.Detections) == 0 {
		return nil, ErrEmptyFeed
	}
	return payload.Data.Detections, nil
}

// NewResponse wraps a set in the live-feed wire shape.
func NewResponse(set detection.Set) Response {
	if set == nil {
		set = detection.Set{}
	}
	return Response{Success: true, Data: &ResponseData{Detections: set}}
}
