package syncer

import (
	"encoding/json"
	"errors"
	"strconv"
	"time"
)

type Kind string

const (
	KindActivity Kind = "activity"
	KindPhoto    Kind = "photo"
)

type Op string

const (
	OpCreate Op = "create"
	OpUpdate Op = "update"
	OpDelete Op = "delete"
)

// Item is one queued remote mutation. RetryCount and LastAttempt advance
// only on failed delivery attempts.
type Item struct {
	ID          string          `json:"id"`
	Kind        Kind            `json:"kind"`
	Op          Op              `json:"op"`
	EntityID    string          `json:"entity_id"`
	Payload     json.RawMessage `json:"payload,omitempty"`
	RetryCount  int             `json:"retry_count"`
	LastAttempt time.Time       `json:"last_attempt"`
	CreatedAt   time.Time       `json:"created_at"`
}

func newItemID(entityID string, createdAt time.Time) string {
	return entityID + "-" + strconv.FormatInt(createdAt.UnixMilli(), 10)
}

// Status is the snapshot pushed to listeners after every state-affecting
// operation.
type Status struct {
	Online   bool      `json:"online"`
	Syncing  bool      `json:"syncing"`
	Pending  int       `json:"pending"`
	Failed   int       `json:"failed"`
	LastSync time.Time `json:"last_sync"`
}

type Listener func(Status)

type Config struct {
	MaxRetries    int
	BaseDelay     time.Duration
	FlushInterval time.Duration
}

func DefaultConfig() Config {
	return Config{
		MaxRetries:    3,
		BaseDelay:     time.Second,
		FlushInterval: 5 * time.Minute,
	}
}

var (
	ErrSyncInFlight    = errors.New("sync already in flight")
	ErrAuthUnavailable = errors.New("auth token unavailable")
	ErrNoAuth          = errors.New("sync queue has no token source configured")
	ErrUnsupportedOp   = errors.New("unsupported operation for entity kind")
)
