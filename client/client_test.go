package client

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel/codes"
	sdktrace "go.opentelemetry.io/otel/sdk/trace"
	"go.opentelemetry.io/otel/sdk/trace/tracetest"

	"github.com/unkn0wn-root/snapcache"
	"github.com/unkn0wn-root/snapcache/fault"
)

const testImage = "data:image/jpeg;base64,/9j/4AAQSkZJRgABAQAAAQABAAD"

func noSleep(context.Context, time.Duration) error { return nil }

type recLogger struct {
	snapcache.NopLogger
	mu     sync.Mutex
	errors []snapcache.Fields
}

func (l *recLogger) Error(_ string, f snapcache.Fields) {
	l.mu.Lock()
	l.errors = append(l.errors, f)
	l.mu.Unlock()
}

type recObserver struct {
	mu   sync.Mutex
	ops  []string
	errs []error
}

func (o *recObserver) ObserveCall(op string, _ time.Duration, err error) {
	o.mu.Lock()
	o.ops = append(o.ops, op)
	o.errs = append(o.errs, err)
	o.mu.Unlock()
}

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) { return f(r) }

func newTestClient(t *testing.T, h http.HandlerFunc, mutate func(*Options)) (*Client, *atomic.Int32) {
	t.Helper()
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		h(w, r)
	}))
	t.Cleanup(srv.Close)

	opts := Options{BaseURL: srv.URL, HTTPClient: srv.Client(), RetrySleep: noSleep}
	if mutate != nil {
		mutate(&opts)
	}
	return New(opts), &hits
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func visionBody() map[string]any {
	return map[string]any{
		"product":   map[string]any{"type": "Sneakers", "brand": "Nike"},
		"condition": map[string]any{"notes": "light wear"},
	}
}

func listingBody() map[string]any {
	return map[string]any{
		"vinted": map[string]any{
			"title":       "Nike Air Max 90 taglia 42",
			"description": "Scarpe usate poche volte, ottime condizioni generali",
		},
	}
}

func TestAnalyzeImagesSuccess(t *testing.T) {
	var gotReqID string
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/vision" {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("Content-Type = %q", ct)
		}
		gotReqID = r.Header.Get("X-Request-ID")

		var body struct {
			Images []string `json:"images"`
		}
		b, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(b, &body); err != nil || len(body.Images) != 1 || body.Images[0] != testImage {
			t.Errorf("unexpected body %s", b)
		}
		writeJSON(w, http.StatusOK, visionBody())
	}, nil)

	got, err := c.AnalyzeImages(context.Background(), []string{testImage})
	if err != nil {
		t.Fatalf("AnalyzeImages: %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("hits = %d", hits.Load())
	}
	cond := got["condition"].(map[string]any)
	if cond["level"] != "Buone" {
		t.Fatalf("missing condition.level must be defaulted, got %v", cond["level"])
	}
	id, err := uuid.Parse(gotReqID)
	if err != nil || id.Version() != 7 {
		t.Fatalf("X-Request-ID %q is not a uuid v7", gotReqID)
	}
}

func TestAnalyzeImagesRejectsBadInputWithoutRequest(t *testing.T) {
	log := &recLogger{}
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, visionBody())
	}, func(o *Options) { o.Logger = log })

	cases := [][]string{
		nil,
		{testImage, testImage, testImage, testImage, testImage},
		{"http://example.com/a.jpg"},
	}
	for _, images := range cases {
		_, err := c.AnalyzeImages(context.Background(), images)
		if fault.Classify(err) != fault.Validation {
			t.Fatalf("images %v: expected validation error, got %v", images, err)
		}
	}
	if hits.Load() != 0 {
		t.Fatalf("invalid input must not reach the API, hits=%d", hits.Load())
	}
	if len(log.errors) != 3 || log.errors[1]["image_count"] != 5 || log.errors[1]["function"] != "AnalyzeImages" {
		t.Fatalf("failures must be logged with function and image count: %v", log.errors)
	}
}

func TestAnalyzeImagesInvalidResponse(t *testing.T) {
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"product": map[string]any{"type": "Bag"}})
	}, nil)

	_, err := c.AnalyzeImages(context.Background(), []string{testImage})
	fe, ok := fault.As(err)
	if !ok || fe.Kind != fault.Validation || !strings.Contains(fe.Message, "condition") {
		t.Fatalf("expected validation error about condition, got %v", err)
	}
	if hits.Load() != 1 {
		t.Fatalf("validation failures are not retried, hits=%d", hits.Load())
	}
}

func TestNonObjectResponseIsValidationError(t *testing.T) {
	tests := []struct {
		name     string
		body     string
		wantKind fault.Kind
	}{
		{"null", `null`, fault.Validation},
		{"array", `[]`, fault.Validation},
		{"string", `"ok"`, fault.Validation},
		{"number", `42`, fault.Validation},
		{"not json", `<html>oops</html>`, fault.API},
	}
	for _, tt := range tests {
		c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			_, _ = io.WriteString(w, tt.body)
		}, nil)

		_, err := c.AnalyzeImages(context.Background(), []string{testImage})
		fe, ok := fault.As(err)
		if !ok || fe.Kind != tt.wantKind {
			t.Fatalf("%s: vision kind = %v (%v), want %v", tt.name, fault.Classify(err), err, tt.wantKind)
		}
		if tt.wantKind == fault.Validation && !strings.Contains(fe.Message, "Data is not an object") {
			t.Fatalf("%s: message = %q", tt.name, fe.Message)
		}

		_, err = c.GenerateListings(context.Background(), VisionResult(visionBody()))
		if got := fault.Classify(err); got != tt.wantKind {
			t.Fatalf("%s: listing kind = %v (%v), want %v", tt.name, got, err, tt.wantKind)
		}
		if hits.Load() != 2 {
			t.Fatalf("%s: hits = %d, neither kind is retried", tt.name, hits.Load())
		}
	}
}

func TestHTTPErrorsByStatus(t *testing.T) {
	tests := []struct {
		status   int
		body     any
		wantKind fault.Kind
		wantHits int32
	}{
		{http.StatusInternalServerError, map[string]any{"error": "Gemini overloaded"}, fault.API, 1},
		{http.StatusUnauthorized, map[string]any{"error": "token expired"}, fault.Auth, 1},
		{http.StatusForbidden, nil, fault.Auth, 1},
		{http.StatusTooManyRequests, map[string]any{"error": map[string]any{"message": "quota"}}, fault.RateLimit, 1},
		// upstream timeout token in the body decides the kind: retried once
		{http.StatusGatewayTimeout, map[string]any{"error": "TIMEOUT"}, fault.Timeout, 2},
	}
	for _, tt := range tests {
		c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
			writeJSON(w, tt.status, tt.body)
		}, nil)

		_, err := c.AnalyzeImages(context.Background(), []string{testImage})
		fe, ok := fault.As(err)
		if !ok {
			t.Fatalf("status %d: expected *fault.Error, got %T %v", tt.status, err, err)
		}
		if fe.Kind != tt.wantKind || fe.Status != tt.status {
			t.Fatalf("status %d: kind=%v status=%d", tt.status, fe.Kind, fe.Status)
		}
		if hits.Load() != tt.wantHits {
			t.Fatalf("status %d: hits=%d want %d", tt.status, hits.Load(), tt.wantHits)
		}
	}
}

func TestHTTPErrorCarriesAPIMessage(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "Unsupported image"})
	}, nil)

	_, err := c.AnalyzeImages(context.Background(), []string{testImage})
	fe, _ := fault.As(err)
	if fe == nil || fe.Message != "HTTP_ERROR_400: Unsupported image" {
		t.Fatalf("message = %v", err)
	}
	if fe.Details["error"] != "Unsupported image" || fe.Details["request_id"] == "" {
		t.Fatalf("details = %v", fe.Details)
	}
}

func TestTimeoutCancelsRequestAndRetriesOnce(t *testing.T) {
	var canceled atomic.Int32
	c, hits := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		// the server only notices a client disconnect once the body is consumed
		_, _ = io.ReadAll(r.Body)
		select {
		case <-r.Context().Done():
			canceled.Add(1)
		case <-time.After(5 * time.Second):
			writeJSON(w, http.StatusOK, visionBody())
		}
	}, func(o *Options) { o.VisionTimeout = 50 * time.Millisecond })

	start := time.Now()
	_, err := c.AnalyzeImages(context.Background(), []string{testImage})
	if fault.Classify(err) != fault.Timeout {
		t.Fatalf("expected timeout, got %v", err)
	}
	if time.Since(start) > 3*time.Second {
		t.Fatalf("timeout did not bound the call")
	}
	if hits.Load() != 2 {
		t.Fatalf("timeout is retried once, hits=%d", hits.Load())
	}

	deadline := time.Now().Add(2 * time.Second)
	for canceled.Load() < 2 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if canceled.Load() != 2 {
		t.Fatalf("server must observe the aborted requests, canceled=%d", canceled.Load())
	}
}

func TestNetworkErrorsRetried(t *testing.T) {
	var calls atomic.Int32
	rt := roundTripFunc(func(*http.Request) (*http.Response, error) {
		calls.Add(1)
		return nil, errors.New("dial tcp: connection refused")
	})
	c := New(Options{BaseURL: "http://api.invalid", HTTPClient: &http.Client{Transport: rt}, RetrySleep: noSleep})

	_, err := c.AnalyzeImages(context.Background(), []string{testImage})
	if fault.Classify(err) != fault.Network {
		t.Fatalf("expected network error, got %v", err)
	}
	if calls.Load() != 3 {
		t.Fatalf("network errors get two retries, calls=%d", calls.Load())
	}
}

func TestCanceledContextStops(t *testing.T) {
	var calls atomic.Int32
	rt := roundTripFunc(func(r *http.Request) (*http.Response, error) {
		calls.Add(1)
		return nil, r.Context().Err()
	})
	c := New(Options{HTTPClient: &http.Client{Transport: rt}, RetrySleep: noSleep})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := c.AnalyzeImages(ctx, []string{testImage}); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
	if calls.Load() > 1 {
		t.Fatalf("canceled call must not retry, calls=%d", calls.Load())
	}
}

func TestGenerateListings(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/listing" {
			t.Errorf("path = %s", r.URL.Path)
		}
		var body map[string]map[string]any
		_ = json.NewDecoder(r.Body).Decode(&body)
		if _, ok := body["visionData"]["product"]; !ok {
			t.Errorf("visionData not sent: %v", body)
		}
		writeJSON(w, http.StatusOK, listingBody())
	}, nil)

	got, err := c.GenerateListings(context.Background(), VisionResult(visionBody()))
	if err != nil {
		t.Fatalf("GenerateListings: %v", err)
	}
	if _, ok := got["vinted"]; !ok {
		t.Fatalf("listings = %v", got)
	}

	if _, err := c.GenerateListings(context.Background(), nil); fault.Classify(err) != fault.Validation {
		t.Fatalf("empty vision must be rejected, got %v", err)
	}
}

func TestGenerateListingsRequiresMarketplace(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"etsy": map[string]any{"title": "x"}})
	}, nil)

	_, err := c.GenerateListings(context.Background(), VisionResult(visionBody()))
	fe, ok := fault.As(err)
	if !ok || fe.Kind != fault.Validation || !strings.Contains(fe.Message, "No marketplace") {
		t.Fatalf("expected marketplace validation error, got %v", err)
	}
}

func TestSpansAndObserver(t *testing.T) {
	sr := tracetest.NewSpanRecorder()
	tp := sdktrace.NewTracerProvider(sdktrace.WithSpanProcessor(sr))
	obs := &recObserver{}

	var n atomic.Int32
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if n.Add(1) == 1 {
			writeJSON(w, http.StatusOK, visionBody())
			return
		}
		writeJSON(w, http.StatusTooManyRequests, nil)
	}, func(o *Options) {
		o.Tracer = tp.Tracer("test")
		o.Observer = obs
	})

	_, _ = c.AnalyzeImages(context.Background(), []string{testImage})
	_, _ = c.AnalyzeImages(context.Background(), []string{testImage})

	spans := sr.Ended()
	if len(spans) != 2 {
		t.Fatalf("spans = %d", len(spans))
	}
	if spans[0].Name() != "snapcache.client.vision" || spans[0].Status().Code == codes.Error {
		t.Fatalf("first span = %s %v", spans[0].Name(), spans[0].Status())
	}
	if spans[1].Status().Code != codes.Error || spans[1].Status().Description != "RATE_LIMIT" {
		t.Fatalf("second span status = %v", spans[1].Status())
	}

	if len(obs.ops) != 2 || obs.errs[0] != nil || fault.Classify(obs.errs[1]) != fault.RateLimit {
		t.Fatalf("observer = %v %v", obs.ops, obs.errs)
	}
}

func TestResponseTooLarge(t *testing.T) {
	c, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{"product": strings.Repeat("x", 2048)})
	}, func(o *Options) { o.MaxResponseBytes = 1024 })

	_, err := c.AnalyzeImages(context.Background(), []string{testImage})
	if fault.Classify(err) != fault.API {
		t.Fatalf("expected API error, got %v", err)
	}
}
