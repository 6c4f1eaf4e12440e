// Package tracer provides a small tracing abstraction for the bid ledger so
// the service can emit spans without depending on OpenTelemetry directly.
package tracer

import "context"

// Span represents an active trace span.
type Span interface {
	// End completes the span, recording any error that occurred.
	End(err error)

	// SetAttributes adds key-value pairs to the span.
	SetAttributes(attrs ...Attribute)

	// AddEvent records a timestamped event within the span.
	AddEvent(name string, attrs ...Attribute)
}

// Tracer creates spans. Implementations must be safe for concurrent use.
type Tracer interface {
	Start(ctx context.Context, name string, attrs ...Attribute) (context.Context, Span)
}

// Attribute is a key-value pair attached to spans.
type Attribute struct {
	Key   string
	Value any
}

func String(key, value string) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int64(key string, value int64) Attribute {
	return Attribute{Key: key, Value: value}
}

func Int(key string, value int) Attribute {
	return Attribute{Key: key, Value: int64(value)}
}

// Span and attribute names used by the bid ledger.
const (
	SpanPlaceBid = "bids.place"

	AttrAuctionID  = "auction.id"
	AttrBidAmount  = "bid.amount"
	AttrCASRetries = "bid.cas_retries"
	AttrFinalPrice = "auction.final_price"

	EventBidAccepted = "bid.accepted"
	EventBidRejected = "bid.rejected"
)

// NoopTracer discards all spans; used when tracing is not configured and in
// tests.
type NoopTracer struct{}

func NewNoop() *NoopTracer { return &NoopTracer{} }

func (t *NoopTracer) Start(ctx context.Context, _ string, _ ...Attribute) (context.Context, Span) {
	return ctx, noopSpan{}
}

type noopSpan struct{}

func (noopSpan) End(error)                     {}
func (noopSpan) SetAttributes(...Attribute)    {}
func (noopSpan) AddEvent(string, ...Attribute) {}

var (
	_ Tracer = (*NoopTracer)(nil)
	_ Span   = noopSpan{}
)
