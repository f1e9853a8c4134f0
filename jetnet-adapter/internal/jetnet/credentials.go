package jetnet

import (
	"context"
	"errors"
	"strings"

	"github.com/aviation-connect/adapters/jetnet-adapter/internal/auth"
)

// errNoCredentials is the cause behind CredentialsMissingError for static
// sources.
var errNoCredentials = errors.New("no credentials configured")

// StaticCredentials serves one fixed login for every account, as configured
// through JETNET_USERNAME and JETNET_PASSWORD.
type StaticCredentials struct {
	creds auth.Credentials
}

func NewStaticCredentials(username, password string) *StaticCredentials {
	return &StaticCredentials{creds: auth.Credentials{
		Username: strings.TrimSpace(username),
		Password: password,
	}}
}

func (s *StaticCredentials) Resolve(_ context.Context, _ string) (auth.Credentials, error) {
	if !s.creds.Complete() {
		return auth.Credentials{}, errNoCredentials
	}
	return s.creds, nil
}

// StaticAccounts is a fixed AccountLister.
type StaticAccounts []string

func (a StaticAccounts) DiscoverAccounts(context.Context) ([]string, error) {
	return []string(a), nil
}
