package settings

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/radiusdt/impact-connector/internal/metrics"
	"github.com/radiusdt/impact-connector/internal/models"
	"go.uber.org/zap"
)

// Defaults are persisted on first start when nothing is stored yet.
func Defaults() models.Settings {
	timeout := int(models.DefaultRequestTimeout / time.Second)
	return models.Settings{
		Enabled:        false,
		RequestTimeout: &timeout,
	}
}

// Provider serves the current settings snapshot. The snapshot is replaced
// wholesale on Refresh and never mutated.
type Provider struct {
	store   Store
	logger  *zap.Logger
	metrics *metrics.Metrics
	current atomic.Pointer[models.Settings]
}

func NewProvider(store Store, logger *zap.Logger, m *metrics.Metrics) *Provider {
	p := &Provider{store: store, logger: logger.Named("settings"), metrics: m}
	empty := models.Settings{}
	p.current.Store(&empty)
	return p
}

// Snapshot returns a copy of the current settings.
func (p *Provider) Snapshot() models.Settings {
	return *p.current.Load()
}

// Refresh reloads the snapshot from the store. On error the previous
// snapshot stays in place.
func (p *Provider) Refresh(ctx context.Context) error {
	s, err := p.store.Load(ctx)
	if err != nil && !errors.Is(err, ErrNotConfigured) {
		p.metrics.RecordSettingsRefresh(false)
		return err
	}
	p.current.Store(&s)
	p.metrics.RecordSettingsRefresh(true)
	return nil
}

// EnsureDefaults persists Defaults when no settings exist, then loads the
// snapshot.
func (p *Provider) EnsureDefaults(ctx context.Context) error {
	_, err := p.store.Load(ctx)
	switch {
	case errors.Is(err, ErrNotConfigured):
		if err := p.store.Save(ctx, Defaults()); err != nil {
			return err
		}
		p.logger.Info("installed default settings")
	case err != nil:
		return err
	}
	return p.Refresh(ctx)
}

// Update validates and saves s, then refreshes the snapshot. A masked auth
// token keeps the stored one.
func (p *Provider) Update(ctx context.Context, s models.Settings) (models.Settings, error) {
	if s.AuthToken == models.MaskedToken {
		s.AuthToken = p.Snapshot().AuthToken
	}
	if errs := Validate(s); errs != nil {
		return models.Settings{}, errs
	}
	if err := p.store.Save(ctx, s); err != nil {
		return models.Settings{}, err
	}
	if err := p.Refresh(ctx); err != nil {
		return models.Settings{}, err
	}

	p.logger.Info("settings updated", zap.Bool("enabled", s.Enabled))
	return p.Snapshot(), nil
}

// Run refreshes the snapshot every interval until ctx is done. A zero
// interval disables periodic refresh.
func (p *Provider) Run(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		return
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := p.Refresh(ctx); err != nil {
				p.logger.Warn("settings refresh failed", zap.Error(err))
			}
		}
	}
}
