package respond

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"respondkit/internal/envelope"
	apierrors "respondkit/internal/errors"
	"respondkit/internal/infrastructure"
)

// Dispatcher runs handler bodies and settles their single response. It is
// immutable after New and safe for concurrent use.
type Dispatcher struct {
	serializer    envelope.Serializer
	logger        *slog.Logger
	clock         func() time.Time
	successStatus int
	metrics       *infrastructure.DispatchMetrics
	tracer        trace.Tracer
}

// Option configures a Dispatcher
type Option func(*Dispatcher)

// WithSerializer sets the envelope serializer
func WithSerializer(s envelope.Serializer) Option {
	return func(d *Dispatcher) {
		if s != nil {
			d.serializer = s
		}
	}
}

// WithLogger sets the logger used for converted errors and faults
func WithLogger(logger *slog.Logger) Option {
	return func(d *Dispatcher) {
		if logger != nil {
			d.logger = logger
		}
	}
}

// WithClock sets the source of acceptedAt
func WithClock(clock func() time.Time) Option {
	return func(d *Dispatcher) {
		if clock != nil {
			d.clock = clock
		}
	}
}

// WithSuccessStatus sets the status written by Finish. Values outside
// 200-299 are ignored.
func WithSuccessStatus(status int) Option {
	return func(d *Dispatcher) {
		if status >= 200 && status <= 299 {
			d.successStatus = status
		}
	}
}

// WithMetrics records envelope metrics on m
func WithMetrics(m *infrastructure.DispatchMetrics) Option {
	return func(d *Dispatcher) { d.metrics = m }
}

// WithTracer sets the tracer for dispatch spans
func WithTracer(t trace.Tracer) Option {
	return func(d *Dispatcher) {
		if t != nil {
			d.tracer = t
		}
	}
}

// New creates a Dispatcher. Without options it writes compact JSON with
// RFC 3339 UTC timestamps and logs through slog.Default.
func New(opts ...Option) *Dispatcher {
	d := &Dispatcher{
		serializer:    envelope.NewJSONSerializer(),
		logger:        slog.Default(),
		clock:         time.Now,
		successStatus: http.StatusOK,
		tracer:        otel.Tracer(infrastructure.InstrumentationName),
	}
	for _, opt := range opts {
		opt(d)
	}
	d.logger = infrastructure.WithComponent(d.logger, "respond")
	return d
}

// Serializer returns the serializer shared by every response
func (d *Dispatcher) Serializer() envelope.Serializer {
	return d.serializer
}

// Dispatch runs body for one request and guarantees exactly one response
// on w. It returns nil when the outcome was fully expressed to the client,
// and otherwise the error that could not be: an error raised after the
// response was committed, a double response, or a failed write. Those have
// already been logged and counted.
func (d *Dispatcher) Dispatch(w http.ResponseWriter, r *http.Request, body HandlerFunc) error {
	ctx, span := d.tracer.Start(r.Context(), "respond.dispatch",
		trace.WithSpanKind(trace.SpanKindInternal),
		trace.WithAttributes(
			attribute.String("http.method", r.Method),
			attribute.String("url.path", r.URL.Path),
		))
	defer span.End()

	r = r.WithContext(ctx)
	c := d.newContext(ctx, r, sinkWriter{w: w, serializer: d.serializer})

	err := d.run(c, body)
	d.metrics.RecordDispatch(ctx, d.clock().Sub(c.acceptedAt), err != nil)
	return err
}

// Handler adapts body to an http.HandlerFunc
func (d *Dispatcher) Handler(body HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_ = d.Dispatch(w, r, body)
	}
}

// WriteError responds to r with the classified envelope for err
func (d *Dispatcher) WriteError(w http.ResponseWriter, r *http.Request, err error) {
	_ = d.Dispatch(w, r, func(c *Context) error {
		return c.RespondError(err)
	})
}

// Outcome is the result of Evaluate
type Outcome struct {
	Status      int
	Envelope    envelope.Envelope
	Body        []byte
	ContentType string
	Err         error
}

// Evaluate runs body without a transport and returns what would have been
// written. Context.Request is nil inside body.
func (d *Dispatcher) Evaluate(ctx context.Context, body HandlerFunc) Outcome {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx = infrastructure.EnsureTraceID(ctx)
	ctx, span := d.tracer.Start(ctx, "respond.evaluate", trace.WithSpanKind(trace.SpanKindInternal))
	defer span.End()

	out := &capture{serializer: d.serializer}
	c := d.newContext(ctx, nil, out)

	err := d.run(c, body)
	d.metrics.RecordDispatch(ctx, d.clock().Sub(c.acceptedAt), err != nil)

	o := Outcome{Status: out.status, Envelope: out.env, Body: out.body, Err: err}
	if out.body != nil {
		o.ContentType = d.serializer.ContentType()
	}
	return o
}

func (d *Dispatcher) newContext(ctx context.Context, r *http.Request, out committer) *Context {
	return &Context{
		ctx:           ctx,
		req:           r,
		acceptedAt:    d.clock(),
		successStatus: d.successStatus,
		out:           out,
		d:             d,
	}
}

func (d *Dispatcher) run(c *Context, body HandlerFunc) error {
	err := d.invoke(c, body)
	if werr := c.Wait(); err == nil {
		err = werr
	}
	err = apierrors.Sanitize(err)

	var reported *reportedError
	switch {
	case err == nil && c.finished:
		return nil
	case err == nil:
		if ferr := c.Finish(); ferr != nil {
			if !c.finished {
				d.abort(c, ferr)
			}
			return ferr
		}
		return nil
	case errors.As(err, &reported):
		return err
	case c.finished:
		reason := infrastructure.FaultErrorAfterRespond
		var pe *PanicError
		if errors.As(err, &pe) {
			reason = infrastructure.FaultPanic
		}
		d.fault(c, reason, err)
		return err
	}

	if rerr := c.RespondError(err); rerr != nil {
		if !c.finished {
			d.abort(c, rerr)
			return errors.Join(err, rerr)
		}
		return rerr
	}
	return nil
}

func (d *Dispatcher) invoke(c *Context, body HandlerFunc) (err error) {
	defer func() {
		v := recover()
		if v == nil {
			return
		}
		if v == http.ErrAbortHandler {
			_ = c.Wait()
			panic(v)
		}
		err = NewPanicError(v)
	}()
	return body(c)
}

// abort ends a request whose envelope could not be serialized
func (d *Dispatcher) abort(c *Context, err error) {
	c.out.abort()
	c.finished, c.status = true, http.StatusInternalServerError
	d.fault(c, infrastructure.FaultSerialize, err)
}

func (d *Dispatcher) committed(c *Context) {
	d.metrics.RecordResponse(c.ctx, string(c.kind), c.status)
	infrastructure.AddSpanEvent(c.ctx, "envelope.committed",
		attribute.String("envelope.kind", string(c.kind)),
		attribute.Int("http.status_code", c.status))
}

func (d *Dispatcher) converted(c *Context, cl apierrors.Classified, err error) {
	level := slog.LevelWarn
	if c.status >= http.StatusInternalServerError {
		level = slog.LevelError
		infrastructure.RecordError(c.ctx, err)
	}

	attrs := append(d.requestAttrs(c),
		slog.Int("status", c.status),
		slog.String("code", cl.Body.Code),
		slog.Bool("business", cl.Business),
	)
	attrs = append(attrs, errorAttrs(err)...)

	d.logger.Log(c.ctx, level, "request failed", attrs...)
	d.metrics.RecordConverted(c.ctx, c.status, cl.Business)
}

func (d *Dispatcher) fault(c *Context, reason string, err error) {
	attrs := append(d.requestAttrs(c), slog.String("reason", reason))
	if c.finished {
		attrs = append(attrs, slog.Int("status", c.status))
	}
	attrs = append(attrs, errorAttrs(err)...)

	d.logger.ErrorContext(c.ctx, "response fault", attrs...)
	d.metrics.RecordFault(c.ctx, reason)
	infrastructure.RecordError(c.ctx, err, trace.WithAttributes(attribute.String("fault.reason", reason)))
}

func (d *Dispatcher) requestAttrs(c *Context) []any {
	attrs := []any{slog.String("accepted_at", c.acceptedAt.Format(time.RFC3339Nano))}
	if id := requestID(c.ctx); id != "" {
		attrs = append(attrs, slog.String("request_id", id))
	}
	if c.req != nil {
		attrs = append(attrs,
			slog.String("method", c.req.Method),
			slog.String("path", c.req.URL.Path),
		)
	}
	return attrs
}

func requestID(ctx context.Context) string {
	if id := infrastructure.GetTraceID(ctx); id != "" {
		return id
	}
	return middleware.GetReqID(ctx)
}

func errorAttrs(err error) []any {
	if err == nil {
		return nil
	}
	attrs := []any{slog.String("error", err.Error())}
	var pe *PanicError
	if errors.As(err, &pe) {
		attrs = append(attrs, slog.String("stack", string(pe.Stack)))
	}
	return attrs
}
