package voice

import (
	"context"
	"time"

	"github.com/voicehub/backend/internal/models"
)

// Store is the durable record of channel ownership, block lists and invite
// history. It holds no business logic; on divergence with the in-memory
// registry the store wins.
type Store interface {
	CreateChannel(ctx context.Context, ch *models.VoiceChannel) error
	// GetChannel returns (nil, nil) when no row exists.
	GetChannel(ctx context.Context, channelID string) (*models.VoiceChannel, error)
	ListChannels(ctx context.Context) ([]models.VoiceChannel, error)
	// DeleteChannel removes the channel row and its block-list rows in one
	// transaction. Deleting an absent channel is a no-op.
	DeleteChannel(ctx context.Context, channelID string) error
	UpdateOwner(ctx context.Context, channelID, ownerID string) error
	SetPanelMessage(ctx context.Context, channelID string, messageID *string) error

	// AddBlock is insert-or-ignore; RemoveBlock is idempotent.
	AddBlock(ctx context.Context, channelID, userID string) error
	RemoveBlock(ctx context.Context, channelID, userID string) error
	IsBlocked(ctx context.Context, channelID, userID string) (bool, error)
	ListBlocked(ctx context.Context, channelID string) ([]models.BlockedUser, error)

	// RecordInvite atomically checks the invite window for the
	// (inviter, invited, channel) triple and records the invite when clear.
	// Returns ok=false and the previous invite time when still inside the
	// window; concurrent duplicates for the same triple admit at most one.
	RecordInvite(ctx context.Context, inviterID, invitedID, channelID string, window time.Duration) (ok bool, last time.Time, err error)
	// DeleteInvite drops the triple's invite record, re-opening the window.
	// Used to compensate when the grant that followed an admitted invite
	// fails. Deleting an absent record is a no-op.
	DeleteInvite(ctx context.Context, inviterID, invitedID, channelID string) error
}
