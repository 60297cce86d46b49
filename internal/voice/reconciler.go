package voice

import (
	"context"
	"fmt"

	"go.uber.org/zap"
)

// Reconciler cross-checks persisted channel rows against the live channels
// reported by the gateway and repairs drift: rows for vanished channels are
// purged, surviving rows repopulate the registry. Runs at startup and
// whenever a caller suspects drift.
type Reconciler struct {
	store    Store
	platform Platform
	registry *Registry
	logger   *zap.Logger
}

// ReconcileStats summarizes one reconciliation pass.
type ReconcileStats struct {
	Restored int `json:"restored"`
	Purged   int `json:"purged"`
	Failed   int `json:"failed"`
}

// NewReconciler creates a reconciler.
func NewReconciler(store Store, platform Platform, registry *Registry, logger *zap.Logger) *Reconciler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Reconciler{store: store, platform: platform, registry: registry, logger: logger}
}

// Run performs one reconciliation pass. A lookup failure for one channel is
// logged and counted but does not abort the rest; running twice with no
// intervening platform change is a no-op the second time.
func (r *Reconciler) Run(ctx context.Context) (ReconcileStats, error) {
	var stats ReconcileStats

	channels, err := r.store.ListChannels(ctx)
	if err != nil {
		return stats, fmt.Errorf("list channels: %w", err)
	}

	for _, ch := range channels {
		exists, err := r.platform.ChannelExists(ctx, ch.ID)
		if err != nil {
			stats.Failed++
			r.logger.Warn("reconcile: existence check failed",
				zap.String("channel_id", ch.ID), zap.Error(err))
			continue
		}
		if !exists {
			if err := r.store.DeleteChannel(ctx, ch.ID); err != nil {
				stats.Failed++
				r.logger.Error("reconcile: purge failed",
					zap.String("channel_id", ch.ID), zap.Error(err))
				continue
			}
			r.registry.Remove(ch.ID)
			stats.Purged++
			r.logger.Info("reconcile: purged vanished channel", zap.String("channel_id", ch.ID))
			continue
		}
		r.registry.Set(ch.ID, ch.OwnerID)
		stats.Restored++
	}

	r.logger.Info("reconciliation complete",
		zap.Int("restored", stats.Restored),
		zap.Int("purged", stats.Purged),
		zap.Int("failed", stats.Failed))
	return stats, nil
}
