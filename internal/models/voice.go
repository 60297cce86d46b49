package models

import (
	"time"

	"github.com/google/uuid"
)

// VoiceChannel is a managed personal voice channel. Exactly one owner at any
// time; the row is deleted when the channel is destroyed.
type VoiceChannel struct {
	ID             string    `json:"id"`
	OwnerID        string    `json:"owner_id"`
	PanelMessageID *string   `json:"panel_message_id,omitempty"`
	CreatedAt      time.Time `json:"created_at"`
}

// BlockedUser is a channel-scoped denial record. Deleted with the channel.
type BlockedUser struct {
	ChannelID string    `json:"channel_id"`
	UserID    string    `json:"user_id"`
	CreatedAt time.Time `json:"created_at"`
}

// Invite records a successful channel invite. One row per
// (inviter, invited, channel) triple; its timestamp gates repeat invites.
type Invite struct {
	ID        uuid.UUID `json:"id"`
	InviterID string    `json:"inviter_id"`
	InvitedID string    `json:"invited_id"`
	ChannelID *string   `json:"channel_id,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}
