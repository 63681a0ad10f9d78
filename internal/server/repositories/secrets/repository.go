package secrets

import "context"

type Repository interface {
	// GetOrCreate stores candidate under key unless a value already exists
	// and returns the stored value. Concurrent callers converge on the
	// first committed value.
	GetOrCreate(ctx context.Context, key, candidate string) (string, error)
	Get(ctx context.Context, key string) (string, error)
}
