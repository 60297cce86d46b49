package voice

import (
	"context"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/voicehub/backend/config"
	"github.com/voicehub/backend/internal/models"
)

// CleanupEnqueuer schedules a retry for a destroy path that could not delete
// everything it should have.
type CleanupEnqueuer interface {
	EnqueueChannelCleanup(ctx context.Context, channelID string) error
}

// Manager drives channel creation and destruction from presence events.
// Creation is gated by the per-user cooldown; destruction triggers only when
// the owner leaves and is still absent after a short debounce.
type Manager struct {
	cfg      config.VoiceConfig
	store    Store
	platform Platform
	panel    Panel
	registry *Registry
	cooldown *Cooldown
	cleanup  CleanupEnqueuer // optional
	events   Events          // optional
	logger   *zap.Logger
}

// NewManager creates a lifecycle manager.
func NewManager(cfg config.VoiceConfig, store Store, platform Platform, panel Panel, registry *Registry, cooldown *Cooldown, logger *zap.Logger) *Manager {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Manager{
		cfg:      cfg,
		store:    store,
		platform: platform,
		panel:    panel,
		registry: registry,
		cooldown: cooldown,
		logger:   logger,
	}
}

// SetCleanupQueue wires the retry queue for partially failed destroys.
func (m *Manager) SetCleanupQueue(q CleanupEnqueuer) { m.cleanup = q }

// SetEvents wires the dashboard event sink.
func (m *Manager) SetEvents(e Events) { m.events = e }

// HandlePresence processes one voice state change. Events for bots are
// ignored entirely.
func (m *Manager) HandlePresence(ctx context.Context, ev PresenceEvent) {
	if ev.Bot {
		return
	}

	if ev.After == m.cfg.SpawnerChannelID {
		allowed, wait := m.cooldown.Allow(ev.UserID)
		if !allowed {
			m.logger.Debug("create denied by cooldown",
				zap.String("user_id", ev.UserID), zap.Duration("retry_after", wait))
			return
		}
		if err := m.createChannel(ctx, ev); err != nil {
			m.logger.Error("create channel failed", zap.String("user_id", ev.UserID), zap.Error(err))
		}
		return
	}

	if ev.Before != "" {
		if owner, ok := m.registry.Owner(ev.Before); ok && owner == ev.UserID {
			go m.destroyAfterDebounce(ctx, ev.Before, ev.UserID)
		}
	}
}

func (m *Manager) createChannel(ctx context.Context, ev PresenceEvent) error {
	name := strings.ToLower(strings.TrimSpace(ev.Username))
	if name == "" {
		name = ev.UserID
	}

	id, err := m.platform.CreateVoiceChannel(ctx, CreateChannelRequest{
		ParentID:    m.cfg.CategoryID,
		Name:        m.cfg.NamePrefix + name,
		OwnerID:     ev.UserID,
		OwnerRights: m.cfg.OwnerRights,
	})
	if err != nil {
		return &PlatformError{Op: "create channel", Err: err}
	}

	// An empty channel is acceptable transient state; the owner simply never
	// shows up in it and it gets cleaned up like any other abandoned channel.
	if err := m.platform.MoveUser(ctx, ev.UserID, id); err != nil {
		m.logger.Warn("move owner into new channel failed",
			zap.String("channel_id", id), zap.String("user_id", ev.UserID), zap.Error(err))
	}

	ch := &models.VoiceChannel{ID: id, OwnerID: ev.UserID, CreatedAt: time.Now()}
	if err := m.store.CreateChannel(ctx, ch); err != nil {
		// The platform channel exists but has no durable record; hand it to
		// the cleanup worker rather than leaving it unmanaged.
		if m.cleanup != nil {
			if qerr := m.cleanup.EnqueueChannelCleanup(ctx, id); qerr != nil {
				m.logger.Error("enqueue cleanup failed", zap.String("channel_id", id), zap.Error(qerr))
			}
		}
		return &StoreError{Op: "create channel", Err: err}
	}

	m.registry.Set(id, ev.UserID)

	// The control panel is decoration; the channel works without it.
	if messageID, err := m.panel.RenderPanel(ctx, id, ev.UserID); err != nil {
		m.logger.Warn("render panel failed", zap.String("channel_id", id), zap.Error(err))
	} else if err := m.store.SetPanelMessage(ctx, id, &messageID); err != nil {
		m.logger.Warn("persist panel ref failed", zap.String("channel_id", id), zap.Error(err))
	}

	m.publish("channel_created", map[string]string{"channel_id": id, "owner_id": ev.UserID})
	m.logger.Info("voice channel created",
		zap.String("channel_id", id), zap.String("owner_id", ev.UserID))
	return nil
}

// destroyAfterDebounce waits out the debounce and destroys the channel if the
// owner is still gone. The pending destroy is abandoned, not cancelled: after
// the wait the owner's current channel is re-checked and stale intent is
// dropped.
func (m *Manager) destroyAfterDebounce(ctx context.Context, channelID, ownerID string) {
	select {
	case <-ctx.Done():
		return
	case <-time.After(m.cfg.DestroyDebounce):
	}

	if owner, ok := m.registry.Owner(channelID); !ok || owner != ownerID {
		return // already destroyed or transferred meanwhile
	}

	current, err := m.platform.UserChannel(ctx, ownerID)
	if err != nil {
		// Can't verify absence; leave it to the next leave event or a
		// reconciliation pass.
		m.logger.Warn("owner presence check failed",
			zap.String("channel_id", channelID), zap.Error(err))
		return
	}
	if current == channelID {
		return // owner came back inside the debounce window
	}

	m.Destroy(ctx, channelID)
}

// Destroy tears a channel down. Each step is independently best-effort except
// the store row deletion, which is retried through the cleanup queue when it
// fails, since a dangling row causes reconciler drift.
func (m *Manager) Destroy(ctx context.Context, channelID string) {
	needsRetry := false

	if ch, err := m.store.GetChannel(ctx, channelID); err != nil {
		m.logger.Warn("destroy: load channel row failed", zap.String("channel_id", channelID), zap.Error(err))
	} else if ch != nil && ch.PanelMessageID != nil {
		if err := m.panel.DeletePanel(ctx, *ch.PanelMessageID); err != nil {
			m.logger.Warn("destroy: delete panel failed",
				zap.String("channel_id", channelID), zap.Error(err))
		}
	}

	if err := m.store.DeleteChannel(ctx, channelID); err != nil {
		needsRetry = true
		m.logger.Error("destroy: delete channel row failed",
			zap.String("channel_id", channelID), zap.Error(err))
	}

	m.registry.Remove(channelID)

	if err := m.platform.DeleteChannel(ctx, channelID); err != nil {
		needsRetry = true
		m.logger.Warn("destroy: delete platform channel failed",
			zap.String("channel_id", channelID), zap.Error(err))
	}

	if needsRetry && m.cleanup != nil {
		if err := m.cleanup.EnqueueChannelCleanup(ctx, channelID); err != nil {
			m.logger.Error("enqueue cleanup failed", zap.String("channel_id", channelID), zap.Error(err))
		}
	}

	m.publish("channel_destroyed", map[string]string{"channel_id": channelID})
	m.logger.Info("voice channel destroyed", zap.String("channel_id", channelID))
}

func (m *Manager) publish(event string, payload any) {
	if m.events != nil {
		m.events.Publish(event, payload)
	}
}
