package voice

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/voicehub/backend/internal/models"
)

// fakeStore is an in-memory Store with per-operation error injection.
type fakeStore struct {
	mu       sync.Mutex
	channels map[string]*models.VoiceChannel
	blocks   map[string]map[string]bool
	invites  map[string]time.Time // key: inviter|invited|channel
	now      func() time.Time

	createErr error
	deleteErr error
	listErr   error
	inviteErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		channels: make(map[string]*models.VoiceChannel),
		blocks:   make(map[string]map[string]bool),
		invites:  make(map[string]time.Time),
		now:      time.Now,
	}
}

func (s *fakeStore) CreateChannel(_ context.Context, ch *models.VoiceChannel) error {
	if s.createErr != nil {
		return s.createErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	cp := *ch
	s.channels[ch.ID] = &cp
	return nil
}

func (s *fakeStore) GetChannel(_ context.Context, channelID string) (*models.VoiceChannel, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[channelID]
	if !ok {
		return nil, nil
	}
	cp := *ch
	return &cp, nil
}

func (s *fakeStore) ListChannels(_ context.Context) ([]models.VoiceChannel, error) {
	if s.listErr != nil {
		return nil, s.listErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.VoiceChannel, 0, len(s.channels))
	for _, ch := range s.channels {
		out = append(out, *ch)
	}
	return out, nil
}

func (s *fakeStore) DeleteChannel(_ context.Context, channelID string) error {
	if s.deleteErr != nil {
		return s.deleteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.channels, channelID)
	delete(s.blocks, channelID)
	return nil
}

func (s *fakeStore) UpdateOwner(_ context.Context, channelID, ownerID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	ch, ok := s.channels[channelID]
	if !ok {
		return fmt.Errorf("channel %s not found", channelID)
	}
	ch.OwnerID = ownerID
	return nil
}

func (s *fakeStore) SetPanelMessage(_ context.Context, channelID string, messageID *string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if ch, ok := s.channels[channelID]; ok {
		ch.PanelMessageID = messageID
	}
	return nil
}

func (s *fakeStore) AddBlock(_ context.Context, channelID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.blocks[channelID] == nil {
		s.blocks[channelID] = make(map[string]bool)
	}
	s.blocks[channelID][userID] = true
	return nil
}

func (s *fakeStore) RemoveBlock(_ context.Context, channelID, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.blocks[channelID], userID)
	return nil
}

func (s *fakeStore) IsBlocked(_ context.Context, channelID, userID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.blocks[channelID][userID], nil
}

func (s *fakeStore) ListBlocked(_ context.Context, channelID string) ([]models.BlockedUser, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.BlockedUser, 0, len(s.blocks[channelID]))
	for userID := range s.blocks[channelID] {
		out = append(out, models.BlockedUser{ChannelID: channelID, UserID: userID})
	}
	return out, nil
}

func (s *fakeStore) RecordInvite(_ context.Context, inviterID, invitedID, channelID string, window time.Duration) (bool, time.Time, error) {
	if s.inviteErr != nil {
		return false, time.Time{}, s.inviteErr
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	key := inviterID + "|" + invitedID + "|" + channelID
	now := s.now()
	if last, ok := s.invites[key]; ok && now.Sub(last) < window {
		return false, last, nil
	}
	s.invites[key] = now
	return true, time.Time{}, nil
}

func (s *fakeStore) DeleteInvite(_ context.Context, inviterID, invitedID, channelID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.invites, inviterID+"|"+invitedID+"|"+channelID)
	return nil
}

// fakePlatform is an in-memory Platform that tracks channels, occupancy and
// permission overrides.
type fakePlatform struct {
	mu             sync.Mutex
	nextID         int
	channels       map[string]bool
	names          map[string]string
	limits         map[string]int
	userChannels   map[string]string
	connects       map[string]map[string]PermState
	defaultConnect map[string]PermState
	rights         map[string][]string // channel|user -> rights
	notified       []string            // "invited:channel:inviter"

	createErr      error
	deleteErr      error
	existsErr      error
	userChannelErr error
	moveErr        error
	connectErr     error
}

func newFakePlatform() *fakePlatform {
	return &fakePlatform{
		channels:       make(map[string]bool),
		names:          make(map[string]string),
		limits:         make(map[string]int),
		userChannels:   make(map[string]string),
		connects:       make(map[string]map[string]PermState),
		defaultConnect: make(map[string]PermState),
		rights:         make(map[string][]string),
	}
}

// addChannel registers a live channel and returns its ID.
func (p *fakePlatform) addChannel(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.channels[id] = true
}

// place puts a user in a channel without going through MoveUser.
func (p *fakePlatform) place(userID, channelID string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.userChannels[userID] = channelID
}

func (p *fakePlatform) connectState(channelID, userID string) PermState {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.connects[channelID][userID]
}

func (p *fakePlatform) ChannelExists(_ context.Context, channelID string) (bool, error) {
	if p.existsErr != nil {
		return false, p.existsErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.channels[channelID], nil
}

func (p *fakePlatform) CreateVoiceChannel(_ context.Context, req CreateChannelRequest) (string, error) {
	if p.createErr != nil {
		return "", p.createErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	id := fmt.Sprintf("chan-%d", p.nextID)
	p.channels[id] = true
	p.names[id] = req.Name
	p.rights[id+"|"+req.OwnerID] = req.OwnerRights
	return id, nil
}

func (p *fakePlatform) DeleteChannel(_ context.Context, channelID string) error {
	if p.deleteErr != nil {
		return p.deleteErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	delete(p.channels, channelID)
	for userID, ch := range p.userChannels {
		if ch == channelID {
			delete(p.userChannels, userID)
		}
	}
	return nil
}

func (p *fakePlatform) RenameChannel(_ context.Context, channelID, name string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.names[channelID] = name
	return nil
}

func (p *fakePlatform) SetUserLimit(_ context.Context, channelID string, limit int) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.limits[channelID] = limit
	return nil
}

func (p *fakePlatform) SetConnect(_ context.Context, channelID, userID string, state PermState) error {
	if p.connectErr != nil {
		return p.connectErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.connects[channelID] == nil {
		p.connects[channelID] = make(map[string]PermState)
	}
	p.connects[channelID][userID] = state
	return nil
}

func (p *fakePlatform) SetDefaultConnect(_ context.Context, channelID string, state PermState) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.defaultConnect[channelID] = state
	return nil
}

func (p *fakePlatform) DefaultConnect(_ context.Context, channelID string) (PermState, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.defaultConnect[channelID], nil
}

func (p *fakePlatform) GrantOwnerRights(_ context.Context, channelID, userID string, rights []string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.rights[channelID+"|"+userID] = rights
	return nil
}

func (p *fakePlatform) MoveUser(_ context.Context, userID, channelID string) error {
	if p.moveErr != nil {
		return p.moveErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if channelID == "" {
		delete(p.userChannels, userID)
		return nil
	}
	p.userChannels[userID] = channelID
	return nil
}

func (p *fakePlatform) Occupants(_ context.Context, channelID string) ([]string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	for userID, ch := range p.userChannels {
		if ch == channelID {
			out = append(out, userID)
		}
	}
	return out, nil
}

func (p *fakePlatform) UserChannel(_ context.Context, userID string) (string, error) {
	if p.userChannelErr != nil {
		return "", p.userChannelErr
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.userChannels[userID], nil
}

func (p *fakePlatform) NotifyInvite(_ context.Context, userID, channelID, inviterID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.notified = append(p.notified, userID+":"+channelID+":"+inviterID)
	return nil
}

// fakePanel records panel operations.
type fakePanel struct {
	mu        sync.Mutex
	nextID    int
	refreshed []string
	deleted   []string
}

func (p *fakePanel) RenderPanel(_ context.Context, channelID, ownerID string) (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	return fmt.Sprintf("panel-%d", p.nextID), nil
}

func (p *fakePanel) RefreshPanel(_ context.Context, messageID, channelID, ownerID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.refreshed = append(p.refreshed, messageID)
	return nil
}

func (p *fakePanel) DeletePanel(_ context.Context, messageID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.deleted = append(p.deleted, messageID)
	return nil
}

// fakeEvents captures published dashboard events.
type fakeEvents struct {
	mu     sync.Mutex
	events []string
}

func (e *fakeEvents) Publish(event string, _ any) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.events = append(e.events, event)
}

func (e *fakeEvents) seen(event string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	for _, ev := range e.events {
		if ev == event {
			return true
		}
	}
	return false
}

// fakeCleanup captures cleanup enqueue requests.
type fakeCleanup struct {
	mu       sync.Mutex
	enqueued []string
}

func (c *fakeCleanup) EnqueueChannelCleanup(_ context.Context, channelID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.enqueued = append(c.enqueued, channelID)
	return nil
}

func (c *fakeCleanup) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.enqueued)
}
