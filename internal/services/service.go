package service

import (
	"context"
	"encoding/hex"
	"math/rand"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "ledger-service"

// Code prefixes of externally visible identifiers.
const (
	TrackingPrefix = "TC-"
	LicensePrefix  = "LIC-"
	DiscountPrefix = "DISC-"
)

func startSpan(ctx context.Context, name string, attrs ...attribute.KeyValue) (context.Context, trace.Span) {
	return otel.Tracer(tracerName).Start(ctx, name, trace.WithAttributes(attrs...))
}

func failSpan(span trace.Span, err error, msg string) {
	span.RecordError(err)
	span.SetStatus(codes.Error, msg)
}

// randomCode returns prefix followed by n upper-case hex digits.
func randomCode(prefix string, n int) string {
	var b strings.Builder
	for b.Len() < n {
		id := uuid.New()
		b.WriteString(hex.EncodeToString(id[:]))
	}
	return prefix + strings.ToUpper(b.String()[:n])
}

// Intner is the random source of the leaderboard and the spin wheel.
type Intner interface {
	Intn(n int) int
}

// LockedRand is a *rand.Rand safe for use by several goroutines. One
// instance may be shared between services.
type LockedRand struct {
	mu  sync.Mutex
	rng *rand.Rand
}

func NewLockedRand(seed int64) *LockedRand {
	return &LockedRand{rng: rand.New(rand.NewSource(seed))}
}

func (r *LockedRand) Intn(n int) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.rng.Intn(n)
}
