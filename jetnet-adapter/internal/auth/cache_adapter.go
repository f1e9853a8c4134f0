package auth

import (
	"context"
	"errors"
	"time"

	"github.com/aviation-connect/adapters/internal/store"
)

const sessionKeyPrefix = "jetnet:session:"

// StoreAdapter bridges the shared Redis store to TokenStore so that several
// adapter replicas share one JetNet session per account.
type StoreAdapter struct {
	st  store.Store
	now func() time.Time
}

func NewStoreAdapter(st store.Store) *StoreAdapter {
	return &StoreAdapter{st: st, now: time.Now}
}

func (a *StoreAdapter) Get(ctx context.Context, key string) (TokenPair, bool, error) {
	var pair TokenPair
	err := a.st.GetJSON(ctx, sessionKeyPrefix+key, &pair)
	if errors.Is(err, store.ErrNotFound) {
		return TokenPair{}, false, nil
	}
	if err != nil {
		return TokenPair{}, false, err
	}
	return pair, true, nil
}

// Put stores pair until its expiry; Redis drops it afterwards.
func (a *StoreAdapter) Put(ctx context.Context, key string, pair TokenPair) error {
	ttl := pair.ExpiresAt.Sub(a.now())
	if ttl <= 0 {
		ttl = time.Second
	}
	return a.st.SetJSON(ctx, sessionKeyPrefix+key, pair, ttl)
}

func (a *StoreAdapter) Delete(ctx context.Context, key string) error {
	return a.st.Delete(ctx, sessionKeyPrefix+key)
}
