package ids

import (
	mathrand "math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/oklog/ulid/v2"
)

var (
	entropyMu sync.Mutex
	entropy   = ulid.Monotonic(mathrand.New(mathrand.NewSource(time.Now().UnixNano())), 0)
)

// NewAt returns a lexicographically sortable identifier stamped with t. IDs
// generated within the same millisecond stay ordered.
func NewAt(t time.Time) string {
	entropyMu.Lock()
	defer entropyMu.Unlock()
	return ulid.MustNew(ulid.Timestamp(t), entropy).String()
}

func New() string {
	return NewAt(time.Now())
}

// NewUUID returns a random identifier for user-facing records.
func NewUUID() string {
	return uuid.NewString()
}
