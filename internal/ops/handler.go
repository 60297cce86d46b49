// Package ops exposes the operator API used by the dashboard.
package ops

import (
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/voicehub/backend/internal/gateway"
	"github.com/voicehub/backend/internal/models"
	"github.com/voicehub/backend/internal/realtime"
	"github.com/voicehub/backend/internal/voice"
	"github.com/voicehub/backend/pkg/response"
)

// Handler serves operator endpoints.
type Handler struct {
	store      voice.Store
	registry   *voice.Registry
	platform   voice.Platform
	reconciler *voice.Reconciler
	gateway    *gateway.Client
	hub        *realtime.Hub
	logger     *zap.Logger
}

// NewHandler creates the ops handler.
func NewHandler(store voice.Store, registry *voice.Registry, platform voice.Platform, reconciler *voice.Reconciler, gw *gateway.Client, hub *realtime.Hub, logger *zap.Logger) *Handler {
	return &Handler{
		store:      store,
		registry:   registry,
		platform:   platform,
		reconciler: reconciler,
		gateway:    gw,
		hub:        hub,
		logger:     logger,
	}
}

type channelSummary struct {
	ChannelID string `json:"channel_id"`
	OwnerID   string `json:"owner_id"`
	Managed   bool   `json:"managed"`
	CreatedAt string `json:"created_at"`
}

// ListChannels returns every persisted channel with its in-memory state.
func (h *Handler) ListChannels(c *gin.Context) {
	rows, err := h.store.ListChannels(c.Request.Context())
	if err != nil {
		h.logger.Error("list channels failed", zap.Error(err))
		response.Internal(c, "could not list channels")
		return
	}
	managedSet := h.registry.Snapshot()
	out := make([]channelSummary, 0, len(rows))
	for _, ch := range rows {
		_, managed := managedSet[ch.ID]
		out = append(out, channelSummary{
			ChannelID: ch.ID,
			OwnerID:   ch.OwnerID,
			Managed:   managed,
			CreatedAt: ch.CreatedAt.UTC().Format(time.RFC3339),
		})
	}
	response.OK(c, gin.H{"channels": out, "total": len(out)})
}

type channelDetail struct {
	Channel   *models.VoiceChannel `json:"channel"`
	Blocked   []models.BlockedUser `json:"blocked"`
	Occupants []string             `json:"occupants"`
}

// GetChannel returns one channel with its block list and live occupants.
func (h *Handler) GetChannel(c *gin.Context) {
	channelID := c.Param("id")
	ch, err := h.store.GetChannel(c.Request.Context(), channelID)
	if err != nil {
		h.logger.Error("get channel failed", zap.String("channel_id", channelID), zap.Error(err))
		response.Internal(c, "could not load channel")
		return
	}
	if ch == nil {
		response.NotFound(c, "channel not found")
		return
	}

	blocked, err := h.store.ListBlocked(c.Request.Context(), channelID)
	if err != nil {
		h.logger.Error("list blocked failed", zap.String("channel_id", channelID), zap.Error(err))
		response.Internal(c, "could not load block list")
		return
	}

	occupants, err := h.platform.Occupants(c.Request.Context(), channelID)
	if err != nil {
		// The channel may already be gone upstream; detail is still useful.
		h.logger.Warn("occupants lookup failed", zap.String("channel_id", channelID), zap.Error(err))
		occupants = nil
	}

	response.OK(c, channelDetail{Channel: ch, Blocked: blocked, Occupants: occupants})
}

// Reconcile re-runs the startup reconciliation pass on demand.
func (h *Handler) Reconcile(c *gin.Context) {
	stats, err := h.reconciler.Run(c.Request.Context())
	if err != nil {
		h.logger.Error("reconcile failed", zap.Error(err))
		response.Internal(c, "reconciliation failed")
		return
	}
	response.OK(c, stats)
}

// Stats reports live counters for the dashboard header.
func (h *Handler) Stats(c *gin.Context) {
	rows, err := h.store.ListChannels(c.Request.Context())
	if err != nil {
		h.logger.Error("list channels failed", zap.Error(err))
		response.Internal(c, "could not load stats")
		return
	}
	response.OK(c, gin.H{
		"persisted_channels": len(rows),
		"managed_channels":   h.registry.Len(),
		"dashboard_clients":  h.hub.ClientCount(),
	})
}

type publishPanelRequest struct {
	TextChannelID string `json:"text_channel_id" binding:"required"`
}

// PublishPanel posts the control panel message into a text channel.
func (h *Handler) PublishPanel(c *gin.Context) {
	var req publishPanelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "text_channel_id is required")
		return
	}
	messageID, err := h.gateway.PublishControlPanel(c.Request.Context(), req.TextChannelID)
	if err != nil {
		h.logger.Error("panel publish failed", zap.String("text_channel_id", req.TextChannelID), zap.Error(err))
		response.Internal(c, "could not publish panel")
		return
	}
	response.OK(c, gin.H{"message_id": messageID})
}
