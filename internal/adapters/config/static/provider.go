// Package static provides a fixed, in-process configuration source.
package static

import (
	"context"
	"fmt"

	"github.com/ragdesk/console/internal/core/ports"
	"github.com/ragdesk/console/internal/pkg/config"
)

// Provider implements ports.ConfigProvider over a configuration built in
// code. It never changes, so Watch only validates its arguments.
type Provider struct {
	cfg *config.Config
}

var _ ports.ConfigProvider = (*Provider)(nil)

// NewProvider validates cfg and wraps it.
func NewProvider(cfg *config.Config) (*Provider, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config cannot be nil")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	cp := *cfg
	cp.Server.AllowedOrigins = append([]string(nil), cfg.Server.AllowedOrigins...)
	return &Provider{cfg: &cp}, nil
}

// Load returns a copy of the wrapped configuration.
func (p *Provider) Load(ctx context.Context) (*config.Config, error) {
	cp := *p.cfg
	cp.Server.AllowedOrigins = append([]string(nil), p.cfg.Server.AllowedOrigins...)
	return &cp, nil
}

// Watch never calls onChange.
func (p *Provider) Watch(ctx context.Context, onChange func(*config.Config)) error {
	if onChange == nil {
		return fmt.Errorf("onChange cannot be nil")
	}
	return nil
}

func (p *Provider) Close() error { return nil }
