// Package settings resolves the effective risk parameters for a user by
// combining the static tier definitions with the user's persisted tier and
// trading mode.
package settings

import (
	"context"
	"fmt"

	"github.com/Drknessheo/lunara-bot/config"
	"github.com/Drknessheo/lunara-bot/internal/domain"
	"github.com/Drknessheo/lunara-bot/internal/ports"
)

// Provider implements ports.SettingsProvider over the account store.
type Provider struct {
	cfg      *config.Config
	accounts ports.AccountRepository
	logger   ports.Logger
}

// NewProvider creates a settings provider. The tier sets in cfg are assumed
// validated at load time.
func NewProvider(cfg *config.Config, accounts ports.AccountRepository, logger ports.Logger) *Provider {
	return &Provider{cfg: cfg, accounts: accounts, logger: logger}
}

// Effective returns the risk parameter set for the user's current tier. An
// unknown tier name falls back to FREE so a stale row never disables a user.
func (p *Provider) Effective(ctx context.Context, userID int64) (*domain.RiskSettings, error) {
	tier, err := p.accounts.Tier(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve tier for user %d: %w", userID, err)
	}
	return p.cfg.Tier(tier), nil
}

// TradingMode returns the user's execution mode.
func (p *Provider) TradingMode(ctx context.Context, userID int64) (domain.TradeMode, error) {
	mode, err := p.accounts.TradingMode(ctx, userID)
	if err != nil {
		return "", fmt.Errorf("failed to resolve trading mode for user %d: %w", userID, err)
	}
	return mode, nil
}
