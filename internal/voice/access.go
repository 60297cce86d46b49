package voice

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/voicehub/backend/internal/models"
)

// AccessController enforces per-channel block lists and the invite rate
// limit. It is the only component that grants or revokes connect access for a
// specific user on a specific channel.
type AccessController struct {
	store    Store
	platform Platform
	window   time.Duration
	logger   *zap.Logger
}

// NewAccessController creates an access controller with the given invite
// window.
func NewAccessController(store Store, platform Platform, window time.Duration, logger *zap.Logger) *AccessController {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AccessController{store: store, platform: platform, window: window, logger: logger}
}

// Block denies the user connect access, records the block, and disconnects
// them if they are currently in the channel. Blocking an already-blocked user
// only re-asserts the permission.
func (a *AccessController) Block(ctx context.Context, channelID, actorID, targetID string) error {
	if targetID == actorID {
		return &ValidationError{Reason: "you cannot block yourself"}
	}

	if err := a.store.AddBlock(ctx, channelID, targetID); err != nil {
		return &StoreError{Op: "add block", Err: err}
	}
	if err := a.platform.SetConnect(ctx, channelID, targetID, PermDeny); err != nil {
		return &PlatformError{Op: "deny connect", Err: err}
	}

	current, err := a.platform.UserChannel(ctx, targetID)
	if err != nil {
		a.logger.Warn("block: presence check failed", zap.String("user_id", targetID), zap.Error(err))
		return nil
	}
	if current == channelID {
		if err := a.platform.MoveUser(ctx, targetID, ""); err != nil {
			a.logger.Warn("block: disconnect failed", zap.String("user_id", targetID), zap.Error(err))
		}
	}
	return nil
}

// Unblock removes the block record and restores connect access. Unblocking a
// user who is not blocked is a no-op.
func (a *AccessController) Unblock(ctx context.Context, channelID, targetID string) error {
	if err := a.store.RemoveBlock(ctx, channelID, targetID); err != nil {
		return &StoreError{Op: "remove block", Err: err}
	}
	if err := a.platform.SetConnect(ctx, channelID, targetID, PermAllow); err != nil {
		return &PlatformError{Op: "restore connect", Err: err}
	}
	return nil
}

// Invite grants the invited user connect access, subject to the block list
// and the per-(inviter, invited, channel) invite window. The window check and
// the invite record are a single atomic store operation, so concurrent
// duplicates admit at most one.
func (a *AccessController) Invite(ctx context.Context, channelID, inviterID, invitedID string) error {
	if invitedID == inviterID {
		return &ValidationError{Reason: "you cannot invite yourself"}
	}

	blocked, err := a.store.IsBlocked(ctx, channelID, invitedID)
	if err != nil {
		return &StoreError{Op: "check block", Err: err}
	}
	if blocked {
		return &ValidationError{Reason: "this user is blocked, unblock them first"}
	}

	ok, last, err := a.store.RecordInvite(ctx, inviterID, invitedID, channelID, a.window)
	if err != nil {
		return &StoreError{Op: "record invite", Err: err}
	}
	if !ok {
		return &RateLimitedError{RetryAfter: a.window - time.Since(last)}
	}

	if err := a.platform.SetConnect(ctx, channelID, invitedID, PermAllow); err != nil {
		// The window record is already committed; take it back so the failed
		// grant does not lock the actor out for the whole window.
		if derr := a.store.DeleteInvite(ctx, inviterID, invitedID, channelID); derr != nil {
			a.logger.Warn("invite rollback failed",
				zap.String("channel_id", channelID), zap.String("user_id", invitedID), zap.Error(derr))
		}
		return &PlatformError{Op: "grant connect", Err: err}
	}

	if err := a.platform.NotifyInvite(ctx, invitedID, channelID, inviterID); err != nil {
		a.logger.Warn("invite notification failed", zap.String("user_id", invitedID), zap.Error(err))
	}
	return nil
}

// Blocked returns the channel's block list.
func (a *AccessController) Blocked(ctx context.Context, channelID string) ([]models.BlockedUser, error) {
	return a.store.ListBlocked(ctx, channelID)
}
