package gateway

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicehub/backend/config"
	"github.com/voicehub/backend/internal/voice"
)

func newTestClient(t *testing.T, handler http.HandlerFunc) *Client {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)
	return NewClient(config.GatewayConfig{
		BaseURL:        srv.URL,
		Token:          "secret",
		RequestTimeout: 5,
	}, nil)
}

func TestClientSendsBearerToken(t *testing.T) {
	var got string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		got = r.Header.Get("Authorization")
		w.WriteHeader(http.StatusOK)
	})

	exists, err := c.ChannelExists(context.Background(), "c1")
	require.NoError(t, err)
	assert.True(t, exists)
	assert.Equal(t, "Bearer secret", got)
}

func TestChannelExistsNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	exists, err := c.ChannelExists(context.Background(), "gone")
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestChannelExistsServerError(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	})

	_, err := c.ChannelExists(context.Background(), "c1")
	assert.Error(t, err)
}

func TestCreateVoiceChannel(t *testing.T) {
	var body map[string]any
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, http.MethodPost, r.Method)
		require.Equal(t, "/channels", r.URL.Path)
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		json.NewEncoder(w).Encode(map[string]string{"id": "chan-9"})
	})

	id, err := c.CreateVoiceChannel(context.Background(), voice.CreateChannelRequest{
		ParentID:    "cat",
		Name:        "🔊╏ rook",
		OwnerID:     "u1",
		OwnerRights: []string{"manage_channel"},
	})
	require.NoError(t, err)
	assert.Equal(t, "chan-9", id)
	assert.Equal(t, "cat", body["parent_id"])
	assert.Equal(t, "🔊╏ rook", body["name"])
}

func TestDeleteChannelToleratesNotFound(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})
	assert.NoError(t, c.DeleteChannel(context.Background(), "gone"))
}

func TestUserChannelNotConnected(t *testing.T) {
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	id, err := c.UserChannel(context.Background(), "u1")
	require.NoError(t, err)
	assert.Empty(t, id)
}

func TestSetConnectEncodesTriState(t *testing.T) {
	var body map[string]any
	var path string
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		require.NoError(t, json.NewDecoder(r.Body).Decode(&body))
		w.WriteHeader(http.StatusOK)
	})

	require.NoError(t, c.SetConnect(context.Background(), "c1", "u1", voice.PermDeny))
	assert.Equal(t, "/channels/c1/permissions/u1", path)
	assert.Equal(t, "deny", body["connect"])

	require.NoError(t, c.SetConnect(context.Background(), "c1", "u1", voice.PermInherit))
	assert.Equal(t, "inherit", body["connect"])
}

func TestDefaultConnectDecoding(t *testing.T) {
	state := "deny"
	c := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]string{"connect": state})
	})

	got, err := c.DefaultConnect(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, voice.PermDeny, got)

	state = "something-new"
	got, err = c.DefaultConnect(context.Background(), "c1")
	require.NoError(t, err)
	assert.Equal(t, voice.PermInherit, got)
}
