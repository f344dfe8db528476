package hxnav

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"runtime/debug"
	"strconv"
	"time"

	"github.com/pthm/hxnav/lib/payload"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// PayloadHeader marks a response as a content payload. Its value is the
// compatibility key the payload was framed with.
const PayloadHeader = "X-Hxnav-Payload"

const tracerName = "github.com/pthm/hxnav"

// Option configures a Dispatcher.
type Option func(*Dispatcher)

// WithShell sets the HTML document template. It should contain
// HeadPlaceholder and BodyPlaceholder.
func WithShell(shell string) Option {
	return func(d *Dispatcher) {
		d.shell = shell
	}
}

// WithDev enables development error pages that include the error message
// and stack trace.
func WithDev(dev bool) Option {
	return func(d *Dispatcher) {
		d.dev = dev
	}
}

// WithLogger sets the logger used for render failures.
func WithLogger(l *slog.Logger) Option {
	return func(d *Dispatcher) {
		d.logger = l
	}
}

// WithTracer sets the tracer used for render spans. Defaults to the global
// OpenTelemetry tracer provider.
func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) {
		d.tracer = t
	}
}

// WithCompatibilityKey sets the key used to frame payloads built with Page.
// Defaults to payload.CompatibilityKey.
func WithCompatibilityKey(key uint32) Option {
	return func(d *Dispatcher) {
		d.key = key
	}
}

// Dispatcher invokes the renderer for a canonical request and maps its
// result to a runtime-agnostic Response.
//
// It is the only place where renderer failures are caught: errors and panics
// become a 500 HTML page and never reach the runtime adapter. A Dispatcher
// holds no per-request state and is safe for concurrent use.
type Dispatcher struct {
	renderer Renderer
	shell    string
	dev      bool
	key      uint32
	logger   *slog.Logger
	tracer   trace.Tracer
}

// New creates a dispatcher for renderer.
func New(renderer Renderer, opts ...Option) *Dispatcher {
	d := &Dispatcher{
		renderer: renderer,
		shell:    DefaultShell,
		key:      payload.CompatibilityKey,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = slog.Default()
	}
	if d.tracer == nil {
		d.tracer = otel.Tracer(tracerName)
	}
	return d
}

// CompatibilityKey returns the key payloads are framed with.
func (d *Dispatcher) CompatibilityKey() uint32 {
	return d.key
}

// Dispatch renders req. It always returns a response.
func (d *Dispatcher) Dispatch(ctx context.Context, req *CanonicalRequest) *Response {
	start := time.Now()
	ctx, span := d.tracer.Start(ctx, "hxnav.render", trace.WithAttributes(
		attribute.String("http.request.method", req.Method()),
		attribute.String("url.full", req.RawURL()),
		attribute.String("hxnav.request_id", req.ID()),
		attribute.Bool("hxnav.content_payload", req.IsContentPayload()),
	))
	defer span.End()

	result, stack, err := d.invoke(ctx, req)

	var resp *Response
	kind := "error"
	if err == nil {
		resp, err = d.toResponse(req, result)
		kind = result.GetKind().String()
	}
	if err != nil {
		if stack == nil && IsNotFound(err) {
			kind = KindHTML.String()
			resp = d.errorResponse(ctx, http.StatusNotFound, err, nil)
		} else {
			kind = "error"
			resp = d.failure(ctx, req, err, stack)
			span.RecordError(err)
			span.SetStatus(codes.Error, "render failed")
		}
	}

	if req.Method() == http.MethodHead {
		resp.Body = nil
	}

	span.SetAttributes(
		attribute.String("hxnav.kind", kind),
		attribute.Int("http.response.status_code", resp.StatusCode),
	)
	observeRender(kind, resp.StatusCode, time.Since(start).Seconds())
	return resp
}

// invoke calls the renderer, converting a panic into an error with the
// goroutine's stack.
func (d *Dispatcher) invoke(ctx context.Context, req *CanonicalRequest) (result RenderResult, stack []byte, err error) {
	defer func() {
		if p := recover(); p != nil {
			stack = debug.Stack()
			err = fmt.Errorf("%w: panic: %v", ErrRenderFailure, p)
		}
	}()

	result, err = d.renderer.Render(ctx, req)
	if err == nil && result.GetKind() == 0 {
		err = fmt.Errorf("%w: renderer returned an empty result", ErrRenderFailure)
	}
	return result, nil, err
}

func (d *Dispatcher) toResponse(req *CanonicalRequest, result RenderResult) (*Response, error) {
	status := result.GetStatus()
	if status == 0 {
		status = http.StatusOK
	}
	if result.Is404() {
		status = http.StatusNotFound
	}
	header := result.GetHeaders()

	switch result.GetKind() {
	case KindBytes:
		if !req.IsContentPayload() {
			return nil, fmt.Errorf("%w: %s", ErrUnexpectedPayload, req.Path())
		}
		b, err := result.EncodePayload(d.key)
		if err != nil {
			return nil, fmt.Errorf("%w: %w", ErrRenderFailure, err)
		}
		header.Set("Content-Type", payload.ContentType)
		header.Set(PayloadHeader, strconv.FormatUint(uint64(d.key), 10))
		return &Response{StatusCode: status, Header: header, Body: b}, nil

	case KindAPI:
		return &Response{
			StatusCode:      status,
			Header:          header,
			Body:            []byte(result.GetAPIBody()),
			IsBase64Encoded: result.IsBase64Encoded(),
		}, nil

	case KindHTML:
		header.Set("Content-Type", "text/html; charset=utf-8")
		doc := assembleShell(d.shell, result.GetHead(), result.GetBody())
		return &Response{StatusCode: status, Header: header, Body: []byte(doc)}, nil
	}

	return nil, fmt.Errorf("%w: unknown result kind %d", ErrRenderFailure, result.GetKind())
}

// failure logs a render failure and builds the 500 page.
func (d *Dispatcher) failure(ctx context.Context, req *CanonicalRequest, err error, stack []byte) *Response {
	metricRenderFailures.Inc()
	attrs := []any{
		"request_id", req.ID(),
		"method", req.Method(),
		"url", req.RawURL(),
		"error", err,
	}
	if stack != nil {
		attrs = append(attrs, "panic", true)
	}
	d.logger.ErrorContext(ctx, "render failed", attrs...)
	if !errors.Is(err, ErrRenderFailure) {
		err = fmt.Errorf("%w: %w", ErrRenderFailure, err)
	}
	return d.errorResponse(ctx, http.StatusInternalServerError, err, stack)
}

func (d *Dispatcher) errorResponse(ctx context.Context, status int, err error, stack []byte) *Response {
	var head, body bytes.Buffer
	if e := errorHead(status).Render(ctx, &head); e != nil {
		head.Reset()
	}
	if e := errorPage(status, err, stack, d.dev).Render(ctx, &body); e != nil {
		body.Reset()
		body.WriteString(http.StatusText(status))
	}
	header := http.Header{}
	header.Set("Content-Type", "text/html; charset=utf-8")
	header.Set("Cache-Control", "no-store")
	return &Response{
		StatusCode: status,
		Header:     header,
		Body:       []byte(assembleShell(d.shell, head.String(), body.String())),
	}
}
