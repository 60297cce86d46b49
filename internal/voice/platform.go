package voice

import "context"

// PermState is the tri-state value of a permission override on a channel.
type PermState int

const (
	PermInherit PermState = iota
	PermAllow
	PermDeny
)

func (s PermState) String() string {
	switch s {
	case PermAllow:
		return "allow"
	case PermDeny:
		return "deny"
	default:
		return "inherit"
	}
}

// PresenceEvent is a voice state change reported by the bot gateway.
// Before/After are channel IDs; empty means not connected.
type PresenceEvent struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Bot      bool   `json:"bot"`
	Before   string `json:"before"`
	After    string `json:"after"`
}

// CreateChannelRequest describes a new personal voice channel. The owner gets
// OwnerRights; everyone else starts with plain connect access.
type CreateChannelRequest struct {
	ParentID    string
	Name        string
	OwnerID     string
	OwnerRights []string
}

// Platform is the narrow contract the lifecycle core needs from the bot
// gateway. Implementations must fail fast; nothing here retries.
type Platform interface {
	ChannelExists(ctx context.Context, channelID string) (bool, error)
	CreateVoiceChannel(ctx context.Context, req CreateChannelRequest) (string, error)
	DeleteChannel(ctx context.Context, channelID string) error
	RenameChannel(ctx context.Context, channelID, name string) error
	SetUserLimit(ctx context.Context, channelID string, limit int) error

	// SetConnect sets a per-user connect override on the channel.
	SetConnect(ctx context.Context, channelID, userID string, state PermState) error
	// SetDefaultConnect sets the connect override for the general population.
	SetDefaultConnect(ctx context.Context, channelID string, state PermState) error
	// DefaultConnect reads the current default connect override.
	DefaultConnect(ctx context.Context, channelID string) (PermState, error)
	// GrantOwnerRights grants the elevated right-set to a user on the channel.
	GrantOwnerRights(ctx context.Context, channelID, userID string, rights []string) error

	// MoveUser relocates a user into channelID; empty disconnects them.
	MoveUser(ctx context.Context, userID, channelID string) error
	Occupants(ctx context.Context, channelID string) ([]string, error)
	// UserChannel returns the voice channel the user is currently in, or "".
	UserChannel(ctx context.Context, userID string) (string, error)

	// NotifyInvite sends the invited user a direct notification. Best-effort.
	NotifyInvite(ctx context.Context, userID, channelID, inviterID string) error
}

// Panel is the presentation refresh surface for the owner control panel. The
// core never knows the panel's visual form.
type Panel interface {
	RenderPanel(ctx context.Context, channelID, ownerID string) (string, error)
	RefreshPanel(ctx context.Context, messageID, channelID, ownerID string) error
	DeletePanel(ctx context.Context, messageID string) error
}

// Events receives lifecycle notifications for the operator dashboard stream.
type Events interface {
	Publish(event string, payload any)
}
