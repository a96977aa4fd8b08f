package server

import (
	"context"
	"crypto/rand"
	"sync"
	"time"

	"github.com/oklog/ulid/v2"
)

const HeaderRequestID = "X-Request-ID"

type ctxKey int

const (
	ctxKeyRequestID ctxKey = iota
	ctxKeyUsername
)

// requestIDs generates monotonic ULIDs; the entropy source is not safe for
// concurrent use.
var requestIDs = struct {
	mu      sync.Mutex
	entropy *ulid.MonotonicEntropy
}{entropy: ulid.Monotonic(rand.Reader, 0)}

func newRequestID() string {
	requestIDs.mu.Lock()
	defer requestIDs.mu.Unlock()
	return ulid.MustNew(ulid.Timestamp(time.Now().UTC()), requestIDs.entropy).String()
}

func withRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKeyRequestID, id)
}

func requestIDFrom(ctx context.Context) string {
	id, _ := ctx.Value(ctxKeyRequestID).(string)
	return id
}

// UsernameFrom returns the operator username put in the context by the
// bearer token validator.
func UsernameFrom(ctx context.Context) (string, bool) {
	username, ok := ctx.Value(ctxKeyUsername).(string)
	return username, ok && username != ""
}
