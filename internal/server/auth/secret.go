package auth

import (
	"context"
	"fmt"
	"sync"

	"github.com/dmitrijs2005/clusterdeck/internal/common"
)

// SecretStore is the persistence the provider needs; secrets.Repository
// satisfies it.
type SecretStore interface {
	GetOrCreate(ctx context.Context, key, candidate string) (string, error)
}

// SecretProvider loads the session signing key from the store once and
// caches it. On first use a random 32-byte hex key is offered to the
// store; whichever value the store ends up holding is used.
type SecretProvider struct {
	store    SecretStore
	generate func() (string, error)

	mu  sync.Mutex
	key []byte
}

func NewSecretProvider(store SecretStore) *SecretProvider {
	return &SecretProvider{
		store:    store,
		generate: func() (string, error) { return common.MakeRandHexString(32) },
	}
}

func (p *SecretProvider) Key(ctx context.Context) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.key != nil {
		return p.key, nil
	}

	candidate, err := p.generate()
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrSecretUnavailable, err)
	}

	value, err := p.store.GetOrCreate(ctx, common.AuthSecretKey, candidate)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", common.ErrSecretUnavailable, err)
	}
	if value == "" {
		return nil, common.ErrSecretUnavailable
	}

	p.key = []byte(value)
	return p.key, nil
}

// Provision makes sure the secret exists, typically at startup.
func (p *SecretProvider) Provision(ctx context.Context) error {
	_, err := p.Key(ctx)
	return err
}
