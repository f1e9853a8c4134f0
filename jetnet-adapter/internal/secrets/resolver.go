package secrets

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	intsecrets "github.com/aviation-connect/adapters/internal/secrets"
	"github.com/aviation-connect/adapters/jetnet-adapter/internal/auth"
	pkgsecrets "github.com/aviation-connect/adapters/pkg/secrets"
)

// venue is the last segment of every JetNet secret name.
const venue = "jetnet"

// AWSResolver resolves per-account JetNet logins from AWS Secrets Manager.
// It is a thin wrapper over the generic intsecrets.AWSResolver[auth.Credentials].
//
// Secret naming convention: {env}/{account}/jetnet
// Secret JSON format:       {"username": "ops@example.com", "password": "..."}
type AWSResolver struct {
	inner *intsecrets.AWSResolver[auth.Credentials]
}

// NewAWSResolver constructs a JetNet-specific credential resolver.
func NewAWSResolver(
	logger *zap.Logger,
	env string,
	provider pkgsecrets.Provider,
	cache *pkgsecrets.Cache[auth.Credentials],
) *AWSResolver {
	return &AWSResolver{inner: intsecrets.NewAWSResolver(logger, env, venue, provider, cache)}
}

// Resolve fetches or returns the cached login for account.
func (r *AWSResolver) Resolve(ctx context.Context, account string) (auth.Credentials, error) {
	return r.inner.Resolve(ctx, account, parseCredentials)
}

// Forget drops the cached login so a rotated password is picked up.
func (r *AWSResolver) Forget(account string) {
	r.inner.Forget(account)
}

// DiscoverAccounts lists all accounts that have JetNet secrets configured.
func (r *AWSResolver) DiscoverAccounts(ctx context.Context) ([]string, error) {
	return r.inner.DiscoverAccounts(ctx)
}

// parseCredentials extracts the login from the raw secret map. "emailaddress"
// is accepted as an alias for "username".
func parseCredentials(m map[string]string) (auth.Credentials, error) {
	username := strings.TrimSpace(m["username"])
	if username == "" {
		username = strings.TrimSpace(m["emailaddress"])
	}
	creds := auth.Credentials{Username: username, Password: m["password"]}
	if creds.Username == "" {
		return auth.Credentials{}, fmt.Errorf("missing required field 'username'")
	}
	if creds.Password == "" {
		return auth.Credentials{}, fmt.Errorf("missing required field 'password'")
	}
	return creds, nil
}
