package voice

import (
	"context"
	"fmt"
	"sync"
	"unicode/utf8"

	"go.uber.org/zap"
)

// MaxNameLength caps the owner-supplied part of a channel name.
const MaxNameLength = 30

// MaxUserLimit is the largest accepted member limit; 0 means unlimited.
const MaxUserLimit = 99

// Mutation is an owner-initiated channel change. Each kind carries its own
// validated payload; the dispatcher switches on the concrete type, never on
// action-name strings.
type Mutation interface {
	kind() string
}

// Rename changes the channel's display name (prefix is applied on top).
type Rename struct{ Name string }

// SetLimit sets the member cap; 0 removes it.
type SetLimit struct{ Limit int }

// ToggleLock flips the default connect override between denied and inherited.
type ToggleLock struct{}

// Kick disconnects a non-owner occupant.
type Kick struct{ TargetID string }

// Transfer hands ownership to another occupant.
type Transfer struct{ TargetID string }

// Block denies a user access to the channel.
type Block struct{ TargetID string }

// Unblock restores a blocked user's access.
type Unblock struct{ TargetID string }

// Invite grants a user connect access, rate limited per target.
type Invite struct{ TargetID string }

func (Rename) kind() string     { return "rename" }
func (SetLimit) kind() string   { return "limit" }
func (ToggleLock) kind() string { return "lock" }
func (Kick) kind() string       { return "kick" }
func (Transfer) kind() string   { return "transfer" }
func (Block) kind() string      { return "block" }
func (Unblock) kind() string    { return "unblock" }
func (Invite) kind() string     { return "invite" }

// Result is the outcome reported back to the acting owner.
type Result struct {
	ChannelID string `json:"channel_id"`
	Message   string `json:"message"`
}

// Dispatcher validates and executes owner mutations as atomic units against
// the registry, the access controller and the store.
type Dispatcher struct {
	store       Store
	platform    Platform
	panel       Panel
	registry    *Registry
	access      *AccessController
	namePrefix  string
	ownerRights []string
	events      Events // optional
	onDrift     func() // optional; invoked when a managed channel vanished
	logger      *zap.Logger

	mu        sync.Mutex
	transfers map[string]*sync.Mutex // per-channel transfer serialization
}

// NewDispatcher creates a mutation dispatcher.
func NewDispatcher(store Store, platform Platform, panel Panel, registry *Registry, access *AccessController, namePrefix string, ownerRights []string, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		store:       store,
		platform:    platform,
		panel:       panel,
		registry:    registry,
		access:      access,
		namePrefix:  namePrefix,
		ownerRights: ownerRights,
		logger:      logger,
		transfers:   make(map[string]*sync.Mutex),
	}
}

// SetEvents wires the dashboard event sink.
func (d *Dispatcher) SetEvents(e Events) { d.events = e }

// SetDriftHandler wires a callback run when a mutation finds its channel gone
// at the platform level (typically a reconciliation trigger).
func (d *Dispatcher) SetDriftHandler(fn func()) { d.onDrift = fn }

// Do re-validates the actor and executes the mutation. Validation order: the
// actor is in a voice channel, that channel is managed here, the actor owns
// it, and it still exists at the platform level. Any failure short-circuits
// with a typed error and no state change.
func (d *Dispatcher) Do(ctx context.Context, actorID string, m Mutation) (*Result, error) {
	channelID, err := d.platform.UserChannel(ctx, actorID)
	if err != nil {
		return nil, &PlatformError{Op: "locate actor", Err: err}
	}
	if channelID == "" {
		return nil, &ValidationError{Reason: "you must be in a voice channel to use this"}
	}

	owner, managed := d.registry.Owner(channelID)
	if !managed {
		return nil, &AuthorizationError{Reason: "this voice channel is not managed here"}
	}
	if owner != actorID {
		return nil, &AuthorizationError{Reason: "you are not the owner of this voice channel"}
	}

	exists, err := d.platform.ChannelExists(ctx, channelID)
	if err != nil {
		return nil, &PlatformError{Op: "existence check", Err: err}
	}
	if !exists {
		if d.onDrift != nil {
			d.onDrift()
		}
		return nil, &NotFoundError{Kind: "channel", ID: channelID}
	}

	res, err := d.apply(ctx, channelID, actorID, m)
	if err != nil {
		return nil, err
	}
	d.logger.Info("mutation applied",
		zap.String("kind", m.kind()),
		zap.String("channel_id", channelID),
		zap.String("actor_id", actorID))
	return res, nil
}

func (d *Dispatcher) apply(ctx context.Context, channelID, actorID string, m Mutation) (*Result, error) {
	switch m := m.(type) {
	case Rename:
		return d.rename(ctx, channelID, m.Name)
	case SetLimit:
		return d.setLimit(ctx, channelID, m.Limit)
	case ToggleLock:
		return d.toggleLock(ctx, channelID)
	case Kick:
		return d.kick(ctx, channelID, actorID, m.TargetID)
	case Transfer:
		return d.transfer(ctx, channelID, actorID, m.TargetID)
	case Block:
		if err := d.access.Block(ctx, channelID, actorID, m.TargetID); err != nil {
			return nil, err
		}
		d.publish("user_blocked", map[string]string{"channel_id": channelID, "user_id": m.TargetID})
		return &Result{ChannelID: channelID, Message: "user blocked"}, nil
	case Unblock:
		if err := d.access.Unblock(ctx, channelID, m.TargetID); err != nil {
			return nil, err
		}
		d.publish("user_unblocked", map[string]string{"channel_id": channelID, "user_id": m.TargetID})
		return &Result{ChannelID: channelID, Message: "user unblocked"}, nil
	case Invite:
		if err := d.access.Invite(ctx, channelID, actorID, m.TargetID); err != nil {
			return nil, err
		}
		return &Result{ChannelID: channelID, Message: "user invited"}, nil
	default:
		return nil, &ValidationError{Reason: fmt.Sprintf("unknown mutation %T", m)}
	}
}

func (d *Dispatcher) rename(ctx context.Context, channelID, name string) (*Result, error) {
	if name == "" {
		return nil, &ValidationError{Reason: "name must not be empty"}
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return nil, &ValidationError{Reason: fmt.Sprintf("name must be at most %d characters", MaxNameLength)}
	}
	full := d.namePrefix + name
	if err := d.platform.RenameChannel(ctx, channelID, full); err != nil {
		return nil, &PlatformError{Op: "rename", Err: err}
	}
	return &Result{ChannelID: channelID, Message: "channel renamed to " + full}, nil
}

func (d *Dispatcher) setLimit(ctx context.Context, channelID string, limit int) (*Result, error) {
	if limit < 0 || limit > MaxUserLimit {
		return nil, &ValidationError{Reason: fmt.Sprintf("limit must be between 0 and %d", MaxUserLimit)}
	}
	if err := d.platform.SetUserLimit(ctx, channelID, limit); err != nil {
		return nil, &PlatformError{Op: "set limit", Err: err}
	}
	if limit == 0 {
		return &Result{ChannelID: channelID, Message: "member limit removed"}, nil
	}
	return &Result{ChannelID: channelID, Message: fmt.Sprintf("member limit set to %d", limit)}, nil
}

// toggleLock derives the new state from the current effective permission
// rather than a stored flag: explicitly denied flips to inherited and
// anything else flips to explicitly denied.
func (d *Dispatcher) toggleLock(ctx context.Context, channelID string) (*Result, error) {
	current, err := d.platform.DefaultConnect(ctx, channelID)
	if err != nil {
		return nil, &PlatformError{Op: "read default connect", Err: err}
	}
	next := PermDeny
	message := "channel locked"
	if current == PermDeny {
		next = PermInherit
		message = "channel unlocked"
	}
	if err := d.platform.SetDefaultConnect(ctx, channelID, next); err != nil {
		return nil, &PlatformError{Op: "set default connect", Err: err}
	}
	return &Result{ChannelID: channelID, Message: message}, nil
}

func (d *Dispatcher) kick(ctx context.Context, channelID, actorID, targetID string) (*Result, error) {
	if targetID == actorID {
		return nil, &ValidationError{Reason: "you cannot kick yourself"}
	}
	current, err := d.platform.UserChannel(ctx, targetID)
	if err != nil {
		return nil, &PlatformError{Op: "locate target", Err: err}
	}
	if current != channelID {
		return nil, &ValidationError{Reason: "that user is not in your channel"}
	}
	if err := d.platform.MoveUser(ctx, targetID, ""); err != nil {
		return nil, &PlatformError{Op: "disconnect target", Err: err}
	}
	return &Result{ChannelID: channelID, Message: "user kicked"}, nil
}

// transfer reassigns elevated rights and updates the durable owner record and
// the registry together. Permission writes come first so a failed write never
// leaves a committed owner row behind; transfers for the same channel are
// serialized.
func (d *Dispatcher) transfer(ctx context.Context, channelID, oldOwner, newOwner string) (*Result, error) {
	if newOwner == oldOwner {
		return nil, &ValidationError{Reason: "you already own this channel"}
	}
	current, err := d.platform.UserChannel(ctx, newOwner)
	if err != nil {
		return nil, &PlatformError{Op: "locate target", Err: err}
	}
	if current != channelID {
		return nil, &ValidationError{Reason: "the new owner must be in your channel"}
	}

	lock := d.transferLock(channelID)
	lock.Lock()
	defer lock.Unlock()

	// Re-check under the lock; a concurrent transfer may have won.
	if owner, ok := d.registry.Owner(channelID); !ok || owner != oldOwner {
		return nil, &AuthorizationError{Reason: "you are not the owner of this voice channel"}
	}

	if err := d.platform.GrantOwnerRights(ctx, channelID, newOwner, d.ownerRights); err != nil {
		return nil, &PlatformError{Op: "grant owner rights", Err: err}
	}
	if err := d.platform.SetConnect(ctx, channelID, oldOwner, PermAllow); err != nil {
		return nil, &PlatformError{Op: "demote old owner", Err: err}
	}

	if err := d.store.UpdateOwner(ctx, channelID, newOwner); err != nil {
		return nil, &StoreError{Op: "update owner", Err: err}
	}
	d.registry.Set(channelID, newOwner)

	if ch, err := d.store.GetChannel(ctx, channelID); err == nil && ch != nil && ch.PanelMessageID != nil {
		if err := d.panel.RefreshPanel(ctx, *ch.PanelMessageID, channelID, newOwner); err != nil {
			d.logger.Warn("panel refresh failed", zap.String("channel_id", channelID), zap.Error(err))
		}
	}

	d.publish("owner_transferred", map[string]string{
		"channel_id": channelID, "old_owner_id": oldOwner, "new_owner_id": newOwner,
	})
	return &Result{ChannelID: channelID, Message: "ownership transferred"}, nil
}

func (d *Dispatcher) transferLock(channelID string) *sync.Mutex {
	d.mu.Lock()
	defer d.mu.Unlock()
	lock, ok := d.transfers[channelID]
	if !ok {
		lock = &sync.Mutex{}
		d.transfers[channelID] = lock
	}
	return lock
}

func (d *Dispatcher) publish(event string, payload any) {
	if d.events != nil {
		d.events.Publish(event, payload)
	}
}
