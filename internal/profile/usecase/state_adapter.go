package usecase

import (
	"context"
	"sync"

	"filestore/internal/profile/domain/model"
	"filestore/internal/shared/eventbus"
	"filestore/internal/shared/streaming"
	"filestore/internal/shared/topics"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// profileSubscription is one live listener on a user's profile topic.
type profileSubscription struct {
	subscriberID string
	topic        string
	events       chan streaming.RealtimeEvent
	done         chan struct{}
}

// ProfileStateAdapter mirrors profile documents into in-memory state driven
// by push events. On user.authenticated it loads (or creates) the profile,
// stores a snapshot and attaches a listener on the user's profile topic; on
// user.logged_out it detaches and drops the snapshot.
//
// A re-authentication for the same user always detaches the previous listener
// before the new one attaches, and a listener that has been replaced never
// writes state again, even if events were still buffered on its channel.
type ProfileStateAdapter struct {
	bus         *eventbus.EventBus
	broadcaster streaming.Broadcaster
	profiles    ProfileUsecase
	log         *zap.Logger

	// userLocks serializes attach/detach per user so overlapping auth events
	// for the same user cannot interleave.
	lockMu    sync.Mutex
	userLocks map[string]*sync.Mutex

	subMu sync.Mutex
	subs  map[string]*profileSubscription

	snapMu    sync.RWMutex
	snapshots map[string]*model.Profile
}

// NewProfileStateAdapter creates the adapter. Start must be called to begin
// consuming auth events.
func NewProfileStateAdapter(
	bus *eventbus.EventBus,
	broadcaster streaming.Broadcaster,
	profiles ProfileUsecase,
	log *zap.Logger,
) *ProfileStateAdapter {
	if log == nil {
		log = zap.NewNop()
	}
	return &ProfileStateAdapter{
		bus:         bus,
		broadcaster: broadcaster,
		profiles:    profiles,
		log:         log,
		userLocks:   make(map[string]*sync.Mutex),
		subs:        make(map[string]*profileSubscription),
		snapshots:   make(map[string]*model.Profile),
	}
}

// Start subscribes the adapter to authentication lifecycle events.
func (a *ProfileStateAdapter) Start() {
	a.bus.Subscribe(eventbus.EventTypeUserAuthenticated, a.onAuthenticated)
	a.bus.Subscribe(eventbus.EventTypeUserLoggedOut, a.onLoggedOut)
	a.log.Info("Profile state adapter started")
}

// Stop detaches every live listener and clears all state.
func (a *ProfileStateAdapter) Stop() {
	a.subMu.Lock()
	users := make([]string, 0, len(a.subs))
	for userID := range a.subs {
		users = append(users, userID)
	}
	a.subMu.Unlock()

	ctx := context.Background()
	for _, userID := range users {
		a.detachUser(ctx, userID)
	}

	a.snapMu.Lock()
	a.snapshots = make(map[string]*model.Profile)
	a.snapMu.Unlock()

	a.log.Info("Profile state adapter stopped", zap.Int("detached", len(users)))
}

// Snapshot returns a copy of the current state for a user, and whether any
// state is held (i.e. the user has an authenticated session).
func (a *ProfileStateAdapter) Snapshot(userID string) (*model.Profile, bool) {
	a.snapMu.RLock()
	defer a.snapMu.RUnlock()
	profile, ok := a.snapshots[userID]
	return profile.Clone(), ok
}

// ActiveListeners reports how many users currently have a live profile
// listener attached.
func (a *ProfileStateAdapter) ActiveListeners() int {
	a.subMu.Lock()
	defer a.subMu.Unlock()
	return len(a.subs)
}

func (a *ProfileStateAdapter) onAuthenticated(ctx context.Context, event eventbus.Event) error {
	userID, email, displayName := authEventFields(event)
	if !topics.IsValidID(userID) {
		a.log.Warn("Authentication event without a usable user ID",
			zap.String("eventType", event.Type()))
		return nil
	}

	mu := a.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	// A previous session's listener must be fully gone before the new one
	// attaches; two listeners for one user would double-apply events.
	a.detachUser(ctx, userID)

	profile, err := a.profiles.EnsureProfile(ctx, userID, email, displayName)
	if err != nil {
		a.log.Error("Failed to load profile on authentication",
			zap.String("userID", userID), zap.Error(err))
		return err
	}

	a.snapMu.Lock()
	a.snapshots[userID] = profile.Clone()
	a.snapMu.Unlock()

	sub := &profileSubscription{
		subscriberID: uuid.NewString(),
		topic:        topics.Profile(userID),
		events:       make(chan streaming.RealtimeEvent, 16),
		done:         make(chan struct{}),
	}
	if err := a.broadcaster.Subscribe(ctx, sub.subscriberID, sub.topic, sub.events); err != nil {
		a.log.Error("Failed to subscribe profile listener",
			zap.String("userID", userID), zap.Error(err))
		return err
	}

	a.subMu.Lock()
	a.subs[userID] = sub
	a.subMu.Unlock()

	go a.drain(userID, sub)

	a.log.Info("Profile listener attached",
		zap.String("userID", userID), zap.String("subscriberID", sub.subscriberID))
	return nil
}

func (a *ProfileStateAdapter) onLoggedOut(ctx context.Context, event eventbus.Event) error {
	userID, _, _ := authEventFields(event)
	if userID == "" {
		return nil
	}

	mu := a.userLock(userID)
	mu.Lock()
	defer mu.Unlock()

	a.detachUser(ctx, userID)

	a.snapMu.Lock()
	delete(a.snapshots, userID)
	a.snapMu.Unlock()

	a.log.Info("Profile listener detached on logout", zap.String("userID", userID))
	return nil
}

// detachUser removes the user's listener and waits for its drain goroutine
// to exit. Safe to call when no listener is attached.
func (a *ProfileStateAdapter) detachUser(ctx context.Context, userID string) {
	a.subMu.Lock()
	sub := a.subs[userID]
	delete(a.subs, userID)
	a.subMu.Unlock()

	if sub == nil {
		return
	}

	// After Unsubscribe returns the broadcaster no longer routes to the
	// channel, so closing it is safe and ends the drain loop.
	if err := a.broadcaster.Unsubscribe(ctx, sub.subscriberID, sub.topic); err != nil {
		a.log.Warn("Failed to unsubscribe profile listener",
			zap.String("userID", userID), zap.Error(err))
	}
	close(sub.events)
	<-sub.done
}

// drain consumes topic events for one listener until its channel closes.
func (a *ProfileStateAdapter) drain(userID string, sub *profileSubscription) {
	defer close(sub.done)
	for event := range sub.events {
		a.applyEvent(userID, sub, event)
	}
}

func (a *ProfileStateAdapter) applyEvent(userID string, sub *profileSubscription, event streaming.RealtimeEvent) {
	a.subMu.Lock()
	active := a.subs[userID] == sub
	a.subMu.Unlock()
	if !active {
		// Replaced or detached listener; buffered events must not touch state.
		return
	}

	switch event.Type {
	case streaming.EventTypeCreated, streaming.EventTypeUpdated:
		a.snapMu.Lock()
		a.snapshots[userID] = model.FromMap(event.Data)
		a.snapMu.Unlock()
		a.log.Debug("Profile snapshot updated from event",
			zap.String("userID", userID),
			zap.String("eventType", string(event.Type)),
			zap.Int64("sequence", event.SequenceNumber))
	case streaming.EventTypeDeleted:
		a.snapMu.Lock()
		delete(a.snapshots, userID)
		a.snapMu.Unlock()
		a.log.Debug("Profile snapshot dropped from delete event",
			zap.String("userID", userID))
	}
}

func (a *ProfileStateAdapter) userLock(userID string) *sync.Mutex {
	a.lockMu.Lock()
	defer a.lockMu.Unlock()
	mu, ok := a.userLocks[userID]
	if !ok {
		mu = &sync.Mutex{}
		a.userLocks[userID] = mu
	}
	return mu
}

// authEventFields extracts the identity fields carried by auth events.
func authEventFields(event eventbus.Event) (userID, email, displayName string) {
	data, ok := event.Data().(map[string]interface{})
	if !ok {
		return "", "", ""
	}
	userID, _ = data["userId"].(string)
	email, _ = data["email"].(string)
	displayName, _ = data["displayName"].(string)
	return userID, email, displayName
}
