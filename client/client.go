// Package client calls the remote vision and listing endpoints. Every call
// validates its input, runs under a per-attempt timeout that cancels the
// request, retries transient failures per package fault's policy table and
// validates the response before returning it.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/dnscache"
	"github.com/tidwall/gjson"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/unkn0wn-root/snapcache"
	"github.com/unkn0wn-root/snapcache/fault"
	"github.com/unkn0wn-root/snapcache/retry"
	"github.com/unkn0wn-root/snapcache/validate"
)

const (
	DefaultBaseURL        = "http://localhost:3000/api/gemini"
	DefaultVisionTimeout  = 20 * time.Second
	DefaultListingTimeout = 15 * time.Second

	defaultMaxResponse = 4 << 20
	tracerName         = "github.com/unkn0wn-root/snapcache/client"
)

// VisionResult is the record returned by POST /vision: at least "product"
// and "condition".
type VisionResult map[string]any

// Listings is the record returned by POST /listing, keyed by marketplace.
type Listings map[string]any

// Observer receives one call per API operation, retries included.
type Observer interface {
	ObserveCall(op string, d time.Duration, err error)
}

type Options struct {
	BaseURL    string       // "" => DefaultBaseURL
	HTTPClient *http.Client // nil => pooled client built with NewTransport(Resolver)
	Resolver   *dnscache.Resolver

	VisionTimeout  time.Duration // per attempt; 0 => 20s
	ListingTimeout time.Duration // per attempt; 0 => 15s

	Policies fault.Policies // nil => fault defaults
	// RetrySleep replaces the wait between attempts (tests pass a no-op).
	RetrySleep func(context.Context, time.Duration) error

	MaxResponseBytes int64 // 0 => 4 MiB

	Logger   snapcache.Logger
	Tracer   trace.Tracer // nil => otel global tracer
	Observer Observer
}

type Client struct {
	baseURL string
	http    *http.Client

	visionTimeout  time.Duration
	listingTimeout time.Duration
	policies       fault.Policies
	sleep          func(context.Context, time.Duration) error
	maxBody        int64

	log      snapcache.Logger
	tracer   trace.Tracer
	observer Observer
}

func New(opts Options) *Client {
	c := &Client{
		baseURL:        strings.TrimRight(opts.BaseURL, "/"),
		http:           opts.HTTPClient,
		visionTimeout:  opts.VisionTimeout,
		listingTimeout: opts.ListingTimeout,
		policies:       opts.Policies,
		sleep:          opts.RetrySleep,
		maxBody:        opts.MaxResponseBytes,
		log:            opts.Logger,
		tracer:         opts.Tracer,
		observer:       opts.Observer,
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}
	if c.http == nil {
		c.http = &http.Client{Transport: NewTransport(opts.Resolver)}
	}
	if c.visionTimeout <= 0 {
		c.visionTimeout = DefaultVisionTimeout
	}
	if c.listingTimeout <= 0 {
		c.listingTimeout = DefaultListingTimeout
	}
	if c.maxBody <= 0 {
		c.maxBody = defaultMaxResponse
	}
	if c.log == nil {
		c.log = snapcache.NopLogger{}
	}
	if c.tracer == nil {
		c.tracer = otel.Tracer(tracerName)
	}
	return c
}

// AnalyzeImages sends up to four data-URI images to POST /vision.
func (c *Client) AnalyzeImages(ctx context.Context, images []string) (VisionResult, error) {
	fields := snapcache.Fields{"function": "AnalyzeImages", "image_count": len(images)}

	if r := validate.Images(images); !r.Valid {
		return nil, c.reject(fields, r.Err())
	}

	out, err := c.call(ctx, "vision", "/vision", map[string]any{"images": images}, c.visionTimeout, fields)
	if err != nil {
		return nil, err
	}

	r := validate.VisionResult(out)
	if !r.Valid {
		return nil, c.reject(fields, fault.NewValidation(r.Reason, map[string]any{"op": "vision"}))
	}
	if r.Warning != "" {
		c.log.Warn(r.Warning, fields)
	}
	return VisionResult(out), nil
}

// GenerateListings sends a vision record to POST /listing.
func (c *Client) GenerateListings(ctx context.Context, vision VisionResult) (Listings, error) {
	fields := snapcache.Fields{"function": "GenerateListings"}
	if t, ok := vision["product"].(map[string]any); ok {
		if pt, ok := t["type"].(string); ok {
			fields["product_type"] = pt
		}
	}

	if len(vision) == 0 {
		return nil, c.reject(fields, fault.NewValidation("No vision data provided", nil))
	}

	out, err := c.call(ctx, "listing", "/listing", map[string]any{"visionData": vision}, c.listingTimeout, fields)
	if err != nil {
		return nil, err
	}

	if r := validate.ListingResult(out); !r.Valid {
		return nil, c.reject(fields, fault.NewValidation(r.Reason, map[string]any{"op": "listing"}))
	}
	return Listings(out), nil
}

// reject logs a failure that never reached the retry loop.
func (c *Client) reject(fields snapcache.Fields, err error) error {
	f := make(snapcache.Fields, len(fields)+1)
	for k, v := range fields {
		f[k] = v
	}
	f["err"] = err
	c.log.Error("request rejected", f)
	return err
}

// call runs the POST under retry and tracing and returns the decoded body.
func (c *Client) call(ctx context.Context, op, path string, payload any, timeout time.Duration, fields snapcache.Fields) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("client: %s: marshal request: %w", op, err)
	}

	ctx, span := c.tracer.Start(ctx, "snapcache.client."+op,
		trace.WithSpanKind(trace.SpanKindClient),
		trace.WithAttributes(
			attribute.String("http.request.method", http.MethodPost),
			attribute.String("url.path", path),
			attribute.Int("http.request.body.size", len(body)),
		),
	)
	defer span.End()

	start := time.Now()
	out, err := retry.Do(ctx, op, func(ctx context.Context) (map[string]any, error) {
		return c.attempt(ctx, op, path, body, timeout)
	},
		retry.WithPolicies(c.policies),
		retry.WithLogger(c.log),
		retry.WithSleep(c.sleep),
		retry.WithFields(fields),
		retry.OnRetry(func(n int, fe *fault.Error) {
			span.AddEvent("retry", trace.WithAttributes(
				attribute.Int("attempt", n),
				attribute.String("fault.kind", fe.Kind.String()),
			))
		}),
	)
	if c.observer != nil {
		c.observer.ObserveCall(op, time.Since(start), err)
	}
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, fault.Classify(err).String())
		return nil, err
	}
	return out, nil
}

// attempt performs one request bounded by timeout. The deadline is on the
// request context, so hitting it aborts the transfer.
func (c *Client) attempt(ctx context.Context, op, path string, body []byte, timeout time.Duration) (map[string]any, error) {
	actx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(actx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fault.New(fault.Validation, "VALIDATION_ERROR: bad request url: "+err.Error(), nil)
	}
	reqID := uuid.Must(uuid.NewV7()).String()
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", reqID)
	otel.GetTextMapPropagator().Inject(actx, propagation.HeaderCarrier(req.Header))

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, c.transportErr(ctx, actx, op, timeout, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, c.maxBody+1))
	if err != nil {
		return nil, c.transportErr(ctx, actx, op, timeout, err)
	}
	if int64(len(raw)) > c.maxBody {
		return nil, fault.New(fault.API, "API_ERROR: response too large", map[string]any{"op": op, "limit": c.maxBody})
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := errorMessage(raw)
		details := map[string]any{"op": op, "request_id": reqID}
		if msg != "" {
			details["error"] = msg
		}
		return nil, fault.HTTP(resp.StatusCode, msg, details)
	}

	var decoded any
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fault.New(fault.API, "API_ERROR: invalid JSON response", map[string]any{"op": op, "request_id": reqID})
	}
	// valid JSON that is not an object comes back nil and fails validation
	out, _ := decoded.(map[string]any)
	return out, nil
}

// transportErr classifies a failed round trip. The per-attempt deadline is a
// Timeout; the caller's own cancellation passes through unchanged.
func (c *Client) transportErr(parent, actx context.Context, op string, timeout time.Duration, err error) error {
	if parent.Err() != nil {
		return err
	}
	if errors.Is(actx.Err(), context.DeadlineExceeded) {
		return fault.NewTimeout(op, timeout, err)
	}
	return fault.NewNetwork(err.Error(), err)
}

// errorMessage pulls the API's "error" field, a string or {message}.
func errorMessage(raw []byte) string {
	if !gjson.ValidBytes(raw) {
		return ""
	}
	e := gjson.GetBytes(raw, "error")
	if e.IsObject() {
		return e.Get("message").String()
	}
	return e.String()
}
