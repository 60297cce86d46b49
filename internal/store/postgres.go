// Package store provides the PostgreSQL implementation of the voice.Store
// contract.
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/voicehub/backend/internal/models"
)

// Postgres persists channels, block lists and invite history via pgx.
type Postgres struct {
	pool *pgxpool.Pool
}

// NewPostgres creates a Postgres-backed store.
func NewPostgres(pool *pgxpool.Pool) *Postgres {
	return &Postgres{pool: pool}
}

// CreateChannel inserts a new channel row.
func (s *Postgres) CreateChannel(ctx context.Context, ch *models.VoiceChannel) error {
	const q = `INSERT INTO voice_channels (channel_id, owner_id, panel_message_id)
		VALUES ($1, $2, $3)
		RETURNING created_at`
	return s.pool.QueryRow(ctx, q, ch.ID, ch.OwnerID, ch.PanelMessageID).Scan(&ch.CreatedAt)
}

// GetChannel returns a channel row, or (nil, nil) when no row exists.
func (s *Postgres) GetChannel(ctx context.Context, channelID string) (*models.VoiceChannel, error) {
	const q = `SELECT channel_id, owner_id, panel_message_id, created_at
		FROM voice_channels WHERE channel_id = $1`
	var ch models.VoiceChannel
	err := s.pool.QueryRow(ctx, q, channelID).Scan(&ch.ID, &ch.OwnerID, &ch.PanelMessageID, &ch.CreatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &ch, nil
}

// ListChannels returns all channel rows.
func (s *Postgres) ListChannels(ctx context.Context) ([]models.VoiceChannel, error) {
	const q = `SELECT channel_id, owner_id, panel_message_id, created_at
		FROM voice_channels ORDER BY created_at`
	rows, err := s.pool.Query(ctx, q)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.VoiceChannel
	for rows.Next() {
		var ch models.VoiceChannel
		if err := rows.Scan(&ch.ID, &ch.OwnerID, &ch.PanelMessageID, &ch.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, ch)
	}
	return list, rows.Err()
}

// DeleteChannel removes the channel row and its block-list rows in one
// transaction. Deleting an absent channel is a no-op.
func (s *Postgres) DeleteChannel(ctx context.Context, channelID string) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `DELETE FROM blocked_users WHERE channel_id = $1`, channelID); err != nil {
		return fmt.Errorf("delete blocks: %w", err)
	}
	if _, err := tx.Exec(ctx, `DELETE FROM voice_channels WHERE channel_id = $1`, channelID); err != nil {
		return fmt.Errorf("delete channel: %w", err)
	}
	return tx.Commit(ctx)
}

// UpdateOwner reassigns a channel's owner.
func (s *Postgres) UpdateOwner(ctx context.Context, channelID, ownerID string) error {
	const q = `UPDATE voice_channels SET owner_id = $1 WHERE channel_id = $2`
	tag, err := s.pool.Exec(ctx, q, ownerID, channelID)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("channel %s has no row", channelID)
	}
	return nil
}

// SetPanelMessage stores (or clears) the channel's control panel message ref.
func (s *Postgres) SetPanelMessage(ctx context.Context, channelID string, messageID *string) error {
	const q = `UPDATE voice_channels SET panel_message_id = $1 WHERE channel_id = $2`
	_, err := s.pool.Exec(ctx, q, messageID, channelID)
	return err
}

// AddBlock records a block; blocking an already-blocked user is a no-op.
func (s *Postgres) AddBlock(ctx context.Context, channelID, userID string) error {
	const q = `INSERT INTO blocked_users (channel_id, user_id) VALUES ($1, $2)
		ON CONFLICT (channel_id, user_id) DO NOTHING`
	_, err := s.pool.Exec(ctx, q, channelID, userID)
	return err
}

// RemoveBlock deletes a block record; removing an absent one is a no-op.
func (s *Postgres) RemoveBlock(ctx context.Context, channelID, userID string) error {
	const q = `DELETE FROM blocked_users WHERE channel_id = $1 AND user_id = $2`
	_, err := s.pool.Exec(ctx, q, channelID, userID)
	return err
}

// IsBlocked reports whether the user is on the channel's block list.
func (s *Postgres) IsBlocked(ctx context.Context, channelID, userID string) (bool, error) {
	const q = `SELECT 1 FROM blocked_users WHERE channel_id = $1 AND user_id = $2`
	var one int
	err := s.pool.QueryRow(ctx, q, channelID, userID).Scan(&one)
	if errors.Is(err, pgx.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

// ListBlocked returns the channel's block list.
func (s *Postgres) ListBlocked(ctx context.Context, channelID string) ([]models.BlockedUser, error) {
	const q = `SELECT channel_id, user_id, created_at FROM blocked_users
		WHERE channel_id = $1 ORDER BY created_at`
	rows, err := s.pool.Query(ctx, q, channelID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var list []models.BlockedUser
	for rows.Next() {
		var b models.BlockedUser
		if err := rows.Scan(&b.ChannelID, &b.UserID, &b.CreatedAt); err != nil {
			return nil, err
		}
		list = append(list, b)
	}
	return list, rows.Err()
}

// RecordInvite checks the invite window and records the invite in a single
// statement: the upsert only lands when the triple has no row younger than
// the window, so concurrent duplicates admit at most one.
func (s *Postgres) RecordInvite(ctx context.Context, inviterID, invitedID, channelID string, window time.Duration) (bool, time.Time, error) {
	const q = `INSERT INTO user_invites (inviter_id, invited_id, channel_id)
		VALUES ($1, $2, $3)
		ON CONFLICT (inviter_id, invited_id, channel_id)
		DO UPDATE SET created_at = now()
		WHERE user_invites.created_at <= now() - make_interval(secs => $4)
		RETURNING id`
	var id string
	err := s.pool.QueryRow(ctx, q, inviterID, invitedID, channelID, window.Seconds()).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		// Still inside the window; fetch the gating timestamp for reporting.
		const lastQ = `SELECT created_at FROM user_invites
			WHERE inviter_id = $1 AND invited_id = $2 AND channel_id = $3`
		var last time.Time
		if err := s.pool.QueryRow(ctx, lastQ, inviterID, invitedID, channelID).Scan(&last); err != nil {
			return false, time.Time{}, err
		}
		return false, last, nil
	}
	if err != nil {
		return false, time.Time{}, err
	}
	return true, time.Time{}, nil
}

// DeleteInvite drops the triple's invite record. Deleting an absent record
// is a no-op.
func (s *Postgres) DeleteInvite(ctx context.Context, inviterID, invitedID, channelID string) error {
	const q = `DELETE FROM user_invites
		WHERE inviter_id = $1 AND invited_id = $2 AND channel_id = $3`
	_, err := s.pool.Exec(ctx, q, inviterID, invitedID, channelID)
	return err
}
