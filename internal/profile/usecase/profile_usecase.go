package usecase

import (
	"context"
	"sync/atomic"
	"time"

	"filestore/internal/profile/domain/model"
	"filestore/internal/profile/domain/repository"
	"filestore/internal/shared/errors"
	"filestore/internal/shared/eventbus"
	"filestore/internal/shared/logger"
	"filestore/internal/shared/streaming"
	"filestore/internal/shared/topics"
)

const eventSource = "profile"

// UpsertProfileRequest carries a partial profile update. Nil fields keep the
// stored value.
type UpsertProfileRequest struct {
	UserID       string
	DisplayName  *string
	AvatarFileID *string
	Plan         *string
	Preferences  map[string]interface{}
}

// ProfileUsecase exposes profile reads and writes. Every successful write
// publishes a realtime event on the user's profile topic so that listeners
// and the state adapter stay current.
type ProfileUsecase interface {
	// GetProfile returns the stored profile for a user.
	GetProfile(ctx context.Context, userID string) (*model.Profile, error)

	// UpsertProfile applies a partial update, creating the profile when
	// absent, and publishes a created or updated event.
	UpsertProfile(ctx context.Context, req UpsertProfileRequest) (*model.Profile, error)

	// EnsureProfile returns the profile for a user, creating a default one
	// on first sight. Used on authentication.
	EnsureProfile(ctx context.Context, userID, email, displayName string) (*model.Profile, error)

	// DeleteProfile removes the stored profile and publishes a deleted event
	// on the user's profile topic.
	DeleteProfile(ctx context.Context, userID string) error
}

type profileUsecase struct {
	repo        repository.ProfileRepository
	bus         *eventbus.EventBus
	broadcaster streaming.Broadcaster
	eventStore  streaming.EventStore
	logger      logger.Logger
	sequence    int64
}

// NewProfileUsecase creates the profile usecase. Bus, broadcaster and event
// store may be nil; the corresponding event sink is skipped.
func NewProfileUsecase(
	repo repository.ProfileRepository,
	bus *eventbus.EventBus,
	broadcaster streaming.Broadcaster,
	eventStore streaming.EventStore,
	log logger.Logger,
) ProfileUsecase {
	return &profileUsecase{
		repo:        repo,
		bus:         bus,
		broadcaster: broadcaster,
		eventStore:  eventStore,
		logger:      log,
	}
}

func (uc *profileUsecase) GetProfile(ctx context.Context, userID string) (*model.Profile, error) {
	if !topics.IsValidID(userID) {
		return nil, errors.NewValidationError("invalid user ID").
			WithDetail("userId", userID)
	}
	return uc.repo.FindByUserID(ctx, userID)
}

func (uc *profileUsecase) UpsertProfile(ctx context.Context, req UpsertProfileRequest) (*model.Profile, error) {
	if !topics.IsValidID(req.UserID) {
		return nil, errors.NewValidationError("invalid user ID").
			WithDetail("userId", req.UserID)
	}

	profile, err := uc.repo.FindByUserID(ctx, req.UserID)
	if err != nil {
		if !errors.IsNotFound(err) {
			return nil, err
		}
		profile = model.NewProfile(req.UserID, "", "")
	}
	var oldData map[string]interface{}
	if err == nil {
		oldData = profile.ToMap()
	}

	if req.DisplayName != nil {
		profile.DisplayName = *req.DisplayName
	}
	if req.AvatarFileID != nil {
		profile.AvatarFileID = *req.AvatarFileID
	}
	if req.Plan != nil {
		profile.Plan = *req.Plan
	}
	if req.Preferences != nil {
		profile.Preferences = req.Preferences
	}

	created, err := uc.repo.Upsert(ctx, profile)
	if err != nil {
		uc.logger.Error("Failed to upsert profile", "userID", req.UserID, "error", err)
		return nil, err
	}

	eventType := streaming.EventTypeUpdated
	if created {
		eventType = streaming.EventTypeCreated
		oldData = nil
	}
	uc.publish(ctx, eventType, profile, oldData)

	uc.logger.Info("Profile upserted", "userID", req.UserID, "created", created)
	return profile, nil
}

func (uc *profileUsecase) EnsureProfile(ctx context.Context, userID, email, displayName string) (*model.Profile, error) {
	if !topics.IsValidID(userID) {
		return nil, errors.NewValidationError("invalid user ID").
			WithDetail("userId", userID)
	}

	profile, err := uc.repo.FindByUserID(ctx, userID)
	if err == nil {
		return profile, nil
	}
	if !errors.IsNotFound(err) {
		return nil, err
	}

	profile = model.NewProfile(userID, email, displayName)
	if _, err := uc.repo.Upsert(ctx, profile); err != nil {
		uc.logger.Error("Failed to create profile on first login", "userID", userID, "error", err)
		return nil, err
	}

	uc.publish(ctx, streaming.EventTypeCreated, profile, nil)
	uc.logger.Info("Profile created on first login", "userID", userID)
	return profile, nil
}

func (uc *profileUsecase) DeleteProfile(ctx context.Context, userID string) error {
	if !topics.IsValidID(userID) {
		return errors.NewValidationError("invalid user ID").
			WithDetail("userId", userID)
	}

	profile, err := uc.repo.FindByUserID(ctx, userID)
	if err != nil {
		return err
	}

	if err := uc.repo.Delete(ctx, userID); err != nil {
		uc.logger.Error("Failed to delete profile", "userID", userID, "error", err)
		return err
	}

	uc.publish(ctx, streaming.EventTypeDeleted, profile, nil)
	uc.logger.Info("Profile deleted", "userID", userID)
	return nil
}

// publish fans a profile change out to the bus, the event store and the
// broadcaster. All sinks are best effort.
func (uc *profileUsecase) publish(ctx context.Context, eventType streaming.EventType, profile *model.Profile, oldData map[string]interface{}) {
	data := profile.ToMap()

	if uc.bus != nil {
		uc.bus.PublishAndForget(ctx,
			eventbus.NewBasicEventWithSource(eventbus.EventTypeProfileUpdated, data, eventSource))
	}

	event := streaming.RealtimeEvent{
		Type:           eventType,
		Topic:          topics.Profile(profile.UserID),
		SubjectID:      profile.UserID,
		Data:           data,
		OldData:        oldData,
		Timestamp:      time.Now().UTC(),
		SequenceNumber: atomic.AddInt64(&uc.sequence, 1),
	}

	if uc.eventStore != nil {
		if err := uc.eventStore.StoreEvent(ctx, event); err != nil {
			uc.logger.Warn("Failed to persist profile event", "topic", event.Topic, "error", err)
		}
	}

	if uc.broadcaster != nil {
		if err := uc.broadcaster.Publish(ctx, event); err != nil {
			uc.logger.Warn("Failed to broadcast profile event", "topic", event.Topic, "error", err)
		}
	}
}
