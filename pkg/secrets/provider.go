package secrets

import "context"

// Provider is a read-only secrets backend. Secrets are flat JSON string maps,
// e.g. {"username": "ops@example.com", "password": "..."}.
type Provider interface {
	// GetSecret retrieves a secret by name and returns its key/value map.
	GetSecret(ctx context.Context, name string) (map[string]string, error)

	// ListSecrets returns the names of all secrets whose name starts with prefix.
	ListSecrets(ctx context.Context, prefix string) ([]string, error)
}
