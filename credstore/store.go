package credstore

import (
	"context"
	"errors"
)

// ErrUnavailable is returned when the backing store cannot be reached or the
// write cannot be made durable.
var ErrUnavailable = errors.New("credential store unavailable")

// Store is durable, confidential key-value storage for credentials and
// security preferences. Implementations must make writes durable before Save
// returns and must implement Delete as an idempotent operation.
type Store interface {
	Save(ctx context.Context, key, value string) error
	// Load returns the stored value and whether the key exists. A missing key
	// is (_, false, nil), not an error.
	Load(ctx context.Context, key string) (string, bool, error)
	Delete(ctx context.Context, key string) error
}
