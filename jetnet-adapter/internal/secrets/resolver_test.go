package secrets

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aviation-connect/adapters/jetnet-adapter/internal/auth"
	pkgsecrets "github.com/aviation-connect/adapters/pkg/secrets"
)

func TestParseCredentials_Valid(t *testing.T) {
	creds, err := parseCredentials(map[string]string{
		"username": "ops@example.com",
		"password": "pw-123",
	})
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", creds.Username)
	assert.Equal(t, "pw-123", creds.Password)
}

func TestParseCredentials_EmailAddressAlias(t *testing.T) {
	creds, err := parseCredentials(map[string]string{
		"emailaddress": " ops@example.com ",
		"password":     "pw-123",
	})
	require.NoError(t, err)
	assert.Equal(t, "ops@example.com", creds.Username)
}

func TestParseCredentials_MissingUsername(t *testing.T) {
	_, err := parseCredentials(map[string]string{"password": "pw-123"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "username")
}

func TestParseCredentials_MissingPassword(t *testing.T) {
	_, err := parseCredentials(map[string]string{"username": "ops@example.com"})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "password")
	assert.NotContains(t, err.Error(), "ops@example.com")
}

func TestParseCredentials_EmptyMap(t *testing.T) {
	_, err := parseCredentials(map[string]string{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "username")
}

func newTestResolver(p pkgsecrets.Provider) *AWSResolver {
	return NewAWSResolver(zap.NewNop(), "dev", p, pkgsecrets.NewCache[auth.Credentials](time.Minute))
}

func TestAWSResolver_ResolveAndDiscover(t *testing.T) {
	p := pkgsecrets.NewStaticProvider()
	p.Set("dev/acme/jetnet", map[string]string{"username": "acme@example.com", "password": "a"})
	p.Set("dev/globex/jetnet", map[string]string{"username": "globex@example.com", "password": "g"})
	p.Set("dev/acme/other", map[string]string{"username": "x", "password": "y"})

	r := newTestResolver(p)

	creds, err := r.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "acme@example.com", creds.Username)

	accounts, err := r.DiscoverAccounts(context.Background())
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{"acme", "globex"}, accounts)
}

func TestAWSResolver_ForgetPicksUpRotation(t *testing.T) {
	p := pkgsecrets.NewStaticProvider()
	p.Set("dev/acme/jetnet", map[string]string{"username": "acme@example.com", "password": "old"})
	r := newTestResolver(p)

	creds, err := r.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "old", creds.Password)

	p.Set("dev/acme/jetnet", map[string]string{"username": "acme@example.com", "password": "new"})
	creds, _ = r.Resolve(context.Background(), "acme")
	assert.Equal(t, "old", creds.Password, "cached until forgotten")

	r.Forget("acme")
	creds, err = r.Resolve(context.Background(), "acme")
	require.NoError(t, err)
	assert.Equal(t, "new", creds.Password)
}

func TestAWSResolver_UnknownAccount(t *testing.T) {
	r := newTestResolver(pkgsecrets.NewStaticProvider())
	_, err := r.Resolve(context.Background(), "nobody")
	assert.Error(t, err)
}
