package voice

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voicehub/backend/config"
)

type managerEnv struct {
	store    *fakeStore
	platform *fakePlatform
	panel    *fakePanel
	registry *Registry
	events   *fakeEvents
	cleanup  *fakeCleanup
	m        *Manager
}

func newManagerEnv(t *testing.T, debounce time.Duration) *managerEnv {
	t.Helper()
	env := &managerEnv{
		store:    newFakeStore(),
		platform: newFakePlatform(),
		panel:    &fakePanel{},
		registry: NewRegistry(),
		events:   &fakeEvents{},
		cleanup:  &fakeCleanup{},
	}
	cfg := config.VoiceConfig{
		SpawnerChannelID: "spawner",
		CategoryID:       "category",
		NamePrefix:       "🔊╏ ",
		CreateCooldown:   5 * time.Second,
		DestroyDebounce:  debounce,
		InviteWindow:     2 * time.Hour,
		OwnerRights:      []string{"manage_channel"},
	}
	env.m = NewManager(cfg, env.store, env.platform, env.panel, env.registry, NewCooldown(cfg.CreateCooldown), nil)
	env.m.SetCleanupQueue(env.cleanup)
	env.m.SetEvents(env.events)
	env.platform.addChannel("spawner")
	return env
}

func join(userID, username, channelID string) PresenceEvent {
	return PresenceEvent{UserID: userID, Username: username, After: channelID}
}

func leave(userID, channelID string) PresenceEvent {
	return PresenceEvent{UserID: userID, Before: channelID}
}

func TestSpawnerJoinCreatesChannel(t *testing.T) {
	env := newManagerEnv(t, time.Hour)

	env.m.HandlePresence(context.Background(), join("u1", "Rook", "spawner"))

	snap := env.registry.Snapshot()
	require.Len(t, snap, 1)
	var channelID string
	for id, owner := range snap {
		channelID = id
		assert.Equal(t, "u1", owner)
	}

	// name is prefixed and lowercased, owner is moved in, row persisted
	assert.Equal(t, "🔊╏ rook", env.platform.names[channelID])
	current, err := env.platform.UserChannel(context.Background(), "u1")
	require.NoError(t, err)
	assert.Equal(t, channelID, current)

	row, err := env.store.GetChannel(context.Background(), channelID)
	require.NoError(t, err)
	require.NotNil(t, row)
	assert.Equal(t, "u1", row.OwnerID)
	require.NotNil(t, row.PanelMessageID)
	assert.Equal(t, "panel-1", *row.PanelMessageID)
	assert.True(t, env.events.seen("channel_created"))
}

func TestDestroyRemovesPanelMessage(t *testing.T) {
	env := newManagerEnv(t, time.Hour)

	env.m.HandlePresence(context.Background(), join("u1", "Rook", "spawner"))
	snap := env.registry.Snapshot()
	require.Len(t, snap, 1)
	var channelID string
	for id := range snap {
		channelID = id
	}

	env.m.Destroy(context.Background(), channelID)
	assert.Equal(t, []string{"panel-1"}, env.panel.deleted)
}

func TestBotPresenceIgnored(t *testing.T) {
	env := newManagerEnv(t, time.Hour)

	ev := join("bot1", "Helper", "spawner")
	ev.Bot = true
	env.m.HandlePresence(context.Background(), ev)

	assert.Equal(t, 0, env.registry.Len())
}

func TestSpawnerCooldownBlocksSecondCreate(t *testing.T) {
	env := newManagerEnv(t, time.Hour)

	env.m.HandlePresence(context.Background(), join("u1", "Rook", "spawner"))
	env.m.HandlePresence(context.Background(), join("u1", "Rook", "spawner"))

	assert.Equal(t, 1, env.registry.Len())
}

func TestOwnerLeaveDestroysAfterDebounce(t *testing.T) {
	env := newManagerEnv(t, 20*time.Millisecond)

	env.m.HandlePresence(context.Background(), join("u1", "Rook", "spawner"))
	snap := env.registry.Snapshot()
	require.Len(t, snap, 1)
	var channelID string
	for id := range snap {
		channelID = id
	}

	env.platform.place("u1", "")
	env.m.HandlePresence(context.Background(), leave("u1", channelID))

	require.Eventually(t, func() bool {
		_, managed := env.registry.Owner(channelID)
		return !managed
	}, time.Second, 5*time.Millisecond)

	row, err := env.store.GetChannel(context.Background(), channelID)
	require.NoError(t, err)
	assert.Nil(t, row)
	exists, err := env.platform.ChannelExists(context.Background(), channelID)
	require.NoError(t, err)
	assert.False(t, exists)
	assert.True(t, env.events.seen("channel_destroyed"))
}

func TestOwnerReturnWithinDebounceAborts(t *testing.T) {
	env := newManagerEnv(t, 50*time.Millisecond)

	env.m.HandlePresence(context.Background(), join("u1", "Rook", "spawner"))
	snap := env.registry.Snapshot()
	require.Len(t, snap, 1)
	var channelID string
	for id := range snap {
		channelID = id
	}

	env.m.HandlePresence(context.Background(), leave("u1", channelID))
	// the owner is still recorded in the channel at expiry

	time.Sleep(150 * time.Millisecond)
	_, managed := env.registry.Owner(channelID)
	assert.True(t, managed)
	exists, err := env.platform.ChannelExists(context.Background(), channelID)
	require.NoError(t, err)
	assert.True(t, exists)
}

func TestNonOwnerLeaveDoesNotDestroy(t *testing.T) {
	env := newManagerEnv(t, 10*time.Millisecond)

	env.m.HandlePresence(context.Background(), join("u1", "Rook", "spawner"))
	snap := env.registry.Snapshot()
	require.Len(t, snap, 1)
	var channelID string
	for id := range snap {
		channelID = id
	}

	env.m.HandlePresence(context.Background(), leave("guest", channelID))

	time.Sleep(50 * time.Millisecond)
	_, managed := env.registry.Owner(channelID)
	assert.True(t, managed)
}

func TestPresenceCheckFailureLeavesChannel(t *testing.T) {
	env := newManagerEnv(t, 10*time.Millisecond)

	env.m.HandlePresence(context.Background(), join("u1", "Rook", "spawner"))
	snap := env.registry.Snapshot()
	require.Len(t, snap, 1)
	var channelID string
	for id := range snap {
		channelID = id
	}

	env.platform.userChannelErr = errors.New("gateway down")
	env.m.HandlePresence(context.Background(), leave("u1", channelID))

	time.Sleep(50 * time.Millisecond)
	_, managed := env.registry.Owner(channelID)
	assert.True(t, managed)
}

func TestStoreFailureOnCreateEnqueuesCleanup(t *testing.T) {
	env := newManagerEnv(t, time.Hour)
	env.store.createErr = errors.New("db down")

	env.m.HandlePresence(context.Background(), join("u1", "Rook", "spawner"))

	assert.Equal(t, 0, env.registry.Len())
	assert.Equal(t, 1, env.cleanup.count())
}

func TestDestroyRetriesFailedRowDeletion(t *testing.T) {
	env := newManagerEnv(t, time.Hour)

	env.m.HandlePresence(context.Background(), join("u1", "Rook", "spawner"))
	snap := env.registry.Snapshot()
	require.Len(t, snap, 1)
	var channelID string
	for id := range snap {
		channelID = id
	}

	env.store.deleteErr = errors.New("db down")
	env.m.Destroy(context.Background(), channelID)

	assert.Equal(t, 1, env.cleanup.count())
	_, managed := env.registry.Owner(channelID)
	assert.False(t, managed)
}

// TestChannelSessionLifecycle drives one full session across the manager,
// the dispatcher, the access controller and the reconciler sharing state:
// create from the spawner, configure, invite, abandon, destroy, and verify a
// follow-up reconciliation pass finds nothing to repair.
func TestChannelSessionLifecycle(t *testing.T) {
	env := newManagerEnv(t, 20*time.Millisecond)
	access := NewAccessController(env.store, env.platform, 2*time.Hour, nil)
	dispatcher := NewDispatcher(env.store, env.platform, env.panel, env.registry, access,
		"🔊╏ ", []string{"manage_channel"}, nil)

	env.m.HandlePresence(context.Background(), join("u1", "Rook", "spawner"))
	snap := env.registry.Snapshot()
	require.Len(t, snap, 1)
	var channelID string
	for id := range snap {
		channelID = id
	}

	res, err := dispatcher.Do(context.Background(), "u1", SetLimit{Limit: 5})
	require.NoError(t, err)
	assert.Equal(t, channelID, res.ChannelID)
	assert.Equal(t, 5, env.platform.limits[channelID])

	_, err = dispatcher.Do(context.Background(), "u1", Invite{TargetID: "j"})
	require.NoError(t, err)
	assert.Equal(t, PermAllow, env.platform.connectState(channelID, "j"))

	env.platform.place("u1", "")
	env.m.HandlePresence(context.Background(), leave("u1", channelID))
	require.Eventually(t, func() bool {
		_, managed := env.registry.Owner(channelID)
		return !managed
	}, time.Second, 5*time.Millisecond)

	row, err := env.store.GetChannel(context.Background(), channelID)
	require.NoError(t, err)
	assert.Nil(t, row)

	stats, err := NewReconciler(env.store, env.platform, env.registry, nil).Run(context.Background())
	require.NoError(t, err)
	assert.Equal(t, ReconcileStats{}, stats)
	assert.Equal(t, 0, env.registry.Len())
}

func TestCreateFallsBackToUserIDForBlankUsername(t *testing.T) {
	env := newManagerEnv(t, time.Hour)

	env.m.HandlePresence(context.Background(), join("u1", "   ", "spawner"))

	snap := env.registry.Snapshot()
	require.Len(t, snap, 1)
	for id := range snap {
		assert.Equal(t, "🔊╏ u1", env.platform.names[id])
	}
}
