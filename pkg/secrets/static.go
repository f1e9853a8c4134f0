package secrets

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// StaticProvider serves secrets from memory. It backs single-account
// deployments configured from the environment, and tests.
type StaticProvider struct {
	mu      sync.RWMutex
	secrets map[string]map[string]string
}

// NewStaticProvider returns an empty StaticProvider.
func NewStaticProvider() *StaticProvider {
	return &StaticProvider{secrets: make(map[string]map[string]string)}
}

// Set stores a copy of values under name.
func (p *StaticProvider) Set(name string, values map[string]string) {
	cp := make(map[string]string, len(values))
	for k, v := range values {
		cp[k] = v
	}
	p.mu.Lock()
	p.secrets[strings.ToLower(name)] = cp
	p.mu.Unlock()
}

func (p *StaticProvider) GetSecret(_ context.Context, name string) (map[string]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	values, ok := p.secrets[strings.ToLower(name)]
	if !ok {
		return nil, fmt.Errorf("secret [%s] not found", name)
	}
	cp := make(map[string]string, len(values))
	for k, v := range values {
		cp[k] = v
	}
	return cp, nil
}

func (p *StaticProvider) ListSecrets(_ context.Context, prefix string) ([]string, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	prefix = strings.ToLower(prefix)
	var names []string
	for name := range p.secrets {
		if strings.HasPrefix(name, prefix) {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}
