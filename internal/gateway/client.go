// Package gateway is the REST client for the Discord-facing bot gateway. It
// implements the platform and panel contracts the lifecycle core consumes.
package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"

	"github.com/voicehub/backend/config"
	"github.com/voicehub/backend/internal/voice"
)

// Client talks to the bot gateway's HTTP API.
type Client struct {
	baseURL string
	token   string
	http    *http.Client
	logger  *zap.Logger
}

// NewClient creates a gateway client.
func NewClient(cfg config.GatewayConfig, logger *zap.Logger) *Client {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Client{
		baseURL: cfg.BaseURL,
		token:   cfg.Token,
		http:    &http.Client{Timeout: time.Duration(cfg.RequestTimeout) * time.Second},
		logger:  logger,
	}
}

// apiError is the gateway's error body.
type apiError struct {
	Error string `json:"error"`
}

// statusError carries the HTTP status of a failed gateway call.
type statusError struct {
	status  int
	message string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("gateway: %d %s", e.status, e.message)
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("marshal body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		var ae apiError
		_ = json.NewDecoder(resp.Body).Decode(&ae)
		return &statusError{status: resp.StatusCode, message: ae.Error}
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decode response: %w", err)
		}
	}
	return nil
}

func isNotFound(err error) bool {
	se, ok := err.(*statusError)
	return ok && se.status == http.StatusNotFound
}

// ChannelExists reports whether the channel is live on the platform.
func (c *Client) ChannelExists(ctx context.Context, channelID string) (bool, error) {
	err := c.do(ctx, http.MethodGet, "/channels/"+url.PathEscape(channelID), nil, nil)
	if err != nil {
		if isNotFound(err) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// CreateVoiceChannel creates a voice channel under the parent category with
// the owner holding the elevated right-set and everyone else connect-only.
func (c *Client) CreateVoiceChannel(ctx context.Context, req voice.CreateChannelRequest) (string, error) {
	body := map[string]any{
		"parent_id":    req.ParentID,
		"name":         req.Name,
		"owner_id":     req.OwnerID,
		"owner_rights": req.OwnerRights,
	}
	var out struct {
		ID string `json:"id"`
	}
	if err := c.do(ctx, http.MethodPost, "/channels", body, &out); err != nil {
		return "", err
	}
	return out.ID, nil
}

// DeleteChannel removes a channel. Deleting a vanished channel is a no-op.
func (c *Client) DeleteChannel(ctx context.Context, channelID string) error {
	err := c.do(ctx, http.MethodDelete, "/channels/"+url.PathEscape(channelID), nil, nil)
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}

// RenameChannel sets the channel's display name.
func (c *Client) RenameChannel(ctx context.Context, channelID, name string) error {
	return c.do(ctx, http.MethodPatch, "/channels/"+url.PathEscape(channelID),
		map[string]any{"name": name}, nil)
}

// SetUserLimit sets the channel's member cap; 0 removes it.
func (c *Client) SetUserLimit(ctx context.Context, channelID string, limit int) error {
	return c.do(ctx, http.MethodPatch, "/channels/"+url.PathEscape(channelID),
		map[string]any{"user_limit": limit}, nil)
}

// SetConnect sets a per-user connect override.
func (c *Client) SetConnect(ctx context.Context, channelID, userID string, state voice.PermState) error {
	path := "/channels/" + url.PathEscape(channelID) + "/permissions/" + url.PathEscape(userID)
	return c.do(ctx, http.MethodPut, path, map[string]any{"connect": state.String()}, nil)
}

// SetDefaultConnect sets the default-role connect override.
func (c *Client) SetDefaultConnect(ctx context.Context, channelID string, state voice.PermState) error {
	path := "/channels/" + url.PathEscape(channelID) + "/permissions/default"
	return c.do(ctx, http.MethodPut, path, map[string]any{"connect": state.String()}, nil)
}

// DefaultConnect reads the default-role connect override.
func (c *Client) DefaultConnect(ctx context.Context, channelID string) (voice.PermState, error) {
	path := "/channels/" + url.PathEscape(channelID) + "/permissions/default"
	var out struct {
		Connect string `json:"connect"`
	}
	if err := c.do(ctx, http.MethodGet, path, nil, &out); err != nil {
		return voice.PermInherit, err
	}
	switch out.Connect {
	case "allow":
		return voice.PermAllow, nil
	case "deny":
		return voice.PermDeny, nil
	default:
		return voice.PermInherit, nil
	}
}

// GrantOwnerRights grants the elevated right-set to a user on the channel.
func (c *Client) GrantOwnerRights(ctx context.Context, channelID, userID string, rights []string) error {
	path := "/channels/" + url.PathEscape(channelID) + "/owner-rights/" + url.PathEscape(userID)
	return c.do(ctx, http.MethodPut, path, map[string]any{"rights": rights}, nil)
}

// MoveUser relocates a user into channelID; empty disconnects them.
func (c *Client) MoveUser(ctx context.Context, userID, channelID string) error {
	return c.do(ctx, http.MethodPost, "/users/"+url.PathEscape(userID)+"/move",
		map[string]any{"channel_id": channelID}, nil)
}

// Occupants returns the users currently in the channel.
func (c *Client) Occupants(ctx context.Context, channelID string) ([]string, error) {
	var out struct {
		UserIDs []string `json:"user_ids"`
	}
	if err := c.do(ctx, http.MethodGet, "/channels/"+url.PathEscape(channelID)+"/occupants", nil, &out); err != nil {
		return nil, err
	}
	return out.UserIDs, nil
}

// UserChannel returns the voice channel the user is currently in, or "".
func (c *Client) UserChannel(ctx context.Context, userID string) (string, error) {
	var out struct {
		ChannelID string `json:"channel_id"`
	}
	err := c.do(ctx, http.MethodGet, "/users/"+url.PathEscape(userID)+"/channel", nil, &out)
	if err != nil {
		if isNotFound(err) {
			return "", nil
		}
		return "", err
	}
	return out.ChannelID, nil
}

// NotifyInvite asks the gateway to DM the invited user.
func (c *Client) NotifyInvite(ctx context.Context, userID, channelID, inviterID string) error {
	return c.do(ctx, http.MethodPost, "/users/"+url.PathEscape(userID)+"/notify-invite",
		map[string]any{"channel_id": channelID, "inviter_id": inviterID}, nil)
}

// RenderPanel asks the gateway to post a control panel for the channel and
// returns the panel message ref.
func (c *Client) RenderPanel(ctx context.Context, channelID, ownerID string) (string, error) {
	var out struct {
		MessageID string `json:"message_id"`
	}
	body := map[string]any{"channel_id": channelID, "owner_id": ownerID}
	if err := c.do(ctx, http.MethodPost, "/panels", body, &out); err != nil {
		return "", err
	}
	return out.MessageID, nil
}

// RefreshPanel updates an existing panel message after an owner change.
func (c *Client) RefreshPanel(ctx context.Context, messageID, channelID, ownerID string) error {
	return c.do(ctx, http.MethodPatch, "/panels/"+url.PathEscape(messageID),
		map[string]any{"channel_id": channelID, "owner_id": ownerID}, nil)
}

// DeletePanel removes a panel message. A vanished message is a no-op.
func (c *Client) DeletePanel(ctx context.Context, messageID string) error {
	err := c.do(ctx, http.MethodDelete, "/panels/"+url.PathEscape(messageID), nil, nil)
	if err != nil && isNotFound(err) {
		return nil
	}
	return err
}

// PublishControlPanel asks the gateway to post the universal control panel
// into a text channel. Used by the operator API.
func (c *Client) PublishControlPanel(ctx context.Context, textChannelID string) (string, error) {
	var out struct {
		MessageID string `json:"message_id"`
	}
	body := map[string]any{"text_channel_id": textChannelID}
	if err := c.do(ctx, http.MethodPost, "/panels/publish", body, &out); err != nil {
		return "", err
	}
	return out.MessageID, nil
}
