package secrets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	pkgsecrets "github.com/aviation-connect/adapters/pkg/secrets"
)

// AWSResolver resolves per-account configuration from a secrets Provider,
// caching parsed results locally to reduce API calls. It is generic over the
// parsed type T so every venue can reuse it.
//
// Secret naming convention: {env}/{account}/{venue}
type AWSResolver[T any] struct {
	logger   *zap.Logger
	env      string
	venue    string
	provider pkgsecrets.Provider
	cache    *pkgsecrets.Cache[T]
}

// NewAWSResolver constructs a generic multi-account config resolver.
func NewAWSResolver[T any](
	logger *zap.Logger,
	env string,
	venue string,
	provider pkgsecrets.Provider,
	cache *pkgsecrets.Cache[T],
) *AWSResolver[T] {
	return &AWSResolver[T]{
		logger:   logger,
		env:      env,
		venue:    venue,
		provider: provider,
		cache:    cache,
	}
}

func (r *AWSResolver[T]) cacheKey(account string) string {
	return strings.ToLower(fmt.Sprintf("%s|%s", account, r.venue))
}

// SecretName builds the secret key for an account: {env}/{account}/{venue}.
func (r *AWSResolver[T]) SecretName(account string) string {
	return strings.ToLower(fmt.Sprintf("%s/%s/%s", r.env, account, r.venue))
}

// Resolve fetches or returns the cached config for account.
// parse extracts T from the raw secret map and validates required fields.
func (r *AWSResolver[T]) Resolve(ctx context.Context, account string, parse func(map[string]string) (T, error)) (T, error) {
	var zero T
	if strings.TrimSpace(account) == "" {
		return zero, fmt.Errorf("resolve config: account is required")
	}
	key := r.cacheKey(account)

	if cfg, ok := r.cache.Get(key); ok {
		return cfg, nil
	}

	secretName := r.SecretName(account)
	secretMap, err := r.provider.GetSecret(ctx, secretName)
	if err != nil {
		r.logger.Warn("secrets.fetch_failed",
			zap.String("key", secretName),
			zap.Error(err))
		return zero, fmt.Errorf("resolve config for %q: %w", account, err)
	}

	cfg, err := parse(secretMap)
	if err != nil {
		return zero, fmt.Errorf("parse secret %q: %w", secretName, err)
	}

	r.cache.Put(key, cfg)

	r.logger.Info("secrets.config_resolved",
		zap.String("account", account),
		zap.String("venue", r.venue),
	)
	return cfg, nil
}

// Forget drops the cached config for account so the next Resolve refetches it.
func (r *AWSResolver[T]) Forget(account string) {
	r.cache.Bust(r.cacheKey(account))
}

// DiscoverAccounts lists the accounts that have a secret for this venue,
// i.e. names matching "{env}/{account}/{venue}".
func (r *AWSResolver[T]) DiscoverAccounts(ctx context.Context) ([]string, error) {
	prefix := strings.ToLower(r.env + "/")
	suffix := "/" + strings.ToLower(r.venue)

	names, err := r.provider.ListSecrets(ctx, prefix)
	if err != nil {
		return nil, fmt.Errorf("discover accounts: %w", err)
	}

	var accounts []string
	for _, name := range names {
		lower := strings.ToLower(name)
		if !strings.HasPrefix(lower, prefix) || !strings.HasSuffix(lower, suffix) {
			continue
		}
		trimmed := strings.TrimSuffix(strings.TrimPrefix(lower, prefix), suffix)
		if trimmed != "" && !strings.Contains(trimmed, "/") {
			accounts = append(accounts, trimmed)
		}
	}

	r.logger.Info("secrets.accounts_discovered",
		zap.String("venue", r.venue),
		zap.Int("count", len(accounts)),
	)
	return accounts, nil
}
