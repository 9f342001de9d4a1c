// Package anchor computes simple hash anchors: a SHA-256 digest over the
// canonical encoding of every event in a time window, in ledger order.
//
// The computation is all-or-nothing. The first event that fails validation or
// canonicalization, or any error from the event source, aborts the run and no
// digest is returned. Callers decide when to re-run the full window.
package anchor

import (
	"context"
	"errors"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
)

const tracerName = "simplehash/anchor"

// Result is the outcome of a successful anchor computation.
type Result struct {
	Digest        Digest
	EventCount    int
	Window        Window
	SchemaVersion string
}

// Anchorer runs anchor computations. It holds no per-computation state and may
// be used by several goroutines at once; each call owns its own accumulator.
type Anchorer struct {
	schema Schema
	logger *zap.SugaredLogger
	tracer trace.Tracer
}

// Option configures an Anchorer.
type Option func(*Anchorer)

// WithSchema selects the canonicalization schema. The default is V1.
func WithSchema(s Schema) Option {
	return func(a *Anchorer) { a.schema = s }
}

// WithLogger sets the logger used for progress and failure messages.
func WithLogger(l *zap.SugaredLogger) Option {
	return func(a *Anchorer) {
		if l != nil {
			a.logger = l
		}
	}
}

// WithTracer sets the tracer used for the computation span.
func WithTracer(t trace.Tracer) Option {
	return func(a *Anchorer) {
		if t != nil {
			a.tracer = t
		}
	}
}

// NewAnchorer returns an Anchorer using the V1 schema unless configured otherwise.
func NewAnchorer(opts ...Option) *Anchorer {
	a := &Anchorer{
		schema: SchemaV1(),
		logger: zap.NewNop().Sugar(),
		tracer: otel.Tracer(tracerName),
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Schema returns the schema the Anchorer canonicalizes with.
func (a *Anchorer) Schema() Schema { return a.schema }

// ComputeAnchor hashes every event in [start, end) from lister.
func (a *Anchorer) ComputeAnchor(ctx context.Context, start, end time.Time, lister EventLister) (Result, error) {
	window := Window{Start: start, End: end}
	ctx, span := a.tracer.Start(ctx, "anchor.ComputeAnchor", trace.WithAttributes(
		attribute.String("anchor.window_start", start.Format(time.RFC3339Nano)),
		attribute.String("anchor.window_end", end.Format(time.RFC3339Nano)),
		attribute.String("anchor.schema_version", a.schema.Version()),
	))
	defer span.End()

	result, err := a.compute(ctx, window, lister)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		a.logger.Warnf("Anchor computation for window %s - %s aborted: %v",
			start.Format(time.RFC3339Nano), end.Format(time.RFC3339Nano), err)
		return Result{}, err
	}

	span.SetAttributes(
		attribute.Int("anchor.event_count", result.EventCount),
		attribute.String("anchor.digest", result.Digest.String()),
	)
	a.logger.Infof("Anchor computed for window %s - %s: events=%d digest=%s",
		start.Format(time.RFC3339Nano), end.Format(time.RFC3339Nano), result.EventCount, result.Digest)
	return result, nil
}

func (a *Anchorer) compute(ctx context.Context, window Window, lister EventLister) (Result, error) {
	if err := window.Validate(); err != nil {
		return Result{}, err
	}

	// 1. Open the ordered event stream for the window
	events := lister.ListEvents(window.Start, window.End)

	// 2. Fresh accumulator, owned by this call only
	acc := NewAccumulator()

	// 3. Validate, canonicalize and fold each event in source order
	for {
		raw, err := events.Next(ctx)
		if errors.Is(err, Done) {
			break
		}
		if err != nil {
			var srcErr *SourceError
			if errors.As(err, &srcErr) {
				return Result{}, err
			}
			return Result{}, &SourceError{Err: err}
		}

		admitted, err := a.schema.Admit(raw)
		if err != nil {
			return Result{}, err
		}
		canonical, err := Canonicalize(admitted)
		if err != nil {
			return Result{}, err
		}
		if err := acc.Update(canonical); err != nil {
			return Result{}, err
		}
	}

	// 4. Source exhausted, finalize
	digest, err := acc.Finalize()
	if err != nil {
		return Result{}, err
	}
	return Result{
		Digest:        digest,
		EventCount:    acc.Count(),
		Window:        window,
		SchemaVersion: a.schema.Version(),
	}, nil
}

var defaultAnchorer = NewAnchorer()

// ComputeAnchor hashes every event in [start, end) from lister with the V1 schema.
func ComputeAnchor(ctx context.Context, start, end time.Time, lister EventLister) (Digest, error) {
	result, err := defaultAnchorer.ComputeAnchor(ctx, start, end, lister)
	if err != nil {
		return Digest{}, err
	}
	return result.Digest, nil
}
