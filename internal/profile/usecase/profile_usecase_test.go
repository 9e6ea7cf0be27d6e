package usecase

import (
	"context"
	"testing"
	"time"

	"filestore/internal/profile/domain/model"
	apperrors "filestore/internal/shared/errors"
	"filestore/internal/shared/logger"
	"filestore/internal/shared/streaming"
	"filestore/internal/shared/topics"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type mockProfileRepo struct {
	mock.Mock
}

func (m *mockProfileRepo) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	args := m.Called(ctx, userID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*model.Profile), args.Error(1)
}

func (m *mockProfileRepo) Upsert(ctx context.Context, profile *model.Profile) (bool, error) {
	args := m.Called(ctx, profile)
	return args.Bool(0), args.Error(1)
}

func (m *mockProfileRepo) Delete(ctx context.Context, userID string) error {
	args := m.Called(ctx, userID)
	return args.Error(0)
}

// listenOn subscribes a buffered channel on the user's profile topic and
// returns it, unsubscribing at test cleanup.
func listenOn(t *testing.T, broadcaster streaming.Broadcaster, userID string) chan streaming.RealtimeEvent {
	t.Helper()
	events := make(chan streaming.RealtimeEvent, 8)
	topic := topics.Profile(userID)
	require.NoError(t, broadcaster.Subscribe(context.Background(), "test-listener", topic, events))
	t.Cleanup(func() {
		_ = broadcaster.Unsubscribe(context.Background(), "test-listener", topic)
		close(events)
	})
	return events
}

func receiveEvent(t *testing.T, events chan streaming.RealtimeEvent) streaming.RealtimeEvent {
	t.Helper()
	select {
	case event := <-events:
		return event
	case <-time.After(time.Second):
		t.Fatal("expected a profile event, got none")
		return streaming.RealtimeEvent{}
	}
}

func strPtr(s string) *string { return &s }

func TestProfileUsecase_GetProfile_InvalidUserID(t *testing.T) {
	repo := new(mockProfileRepo)
	uc := NewProfileUsecase(repo, nil, nil, nil, logger.NewLogger())

	_, err := uc.GetProfile(context.Background(), "bad/id")
	require.Error(t, err)
	assert.True(t, apperrors.IsValidation(err))
	repo.AssertNotCalled(t, "FindByUserID")
}

func TestProfileUsecase_UpsertProfile_CreatesWhenAbsent(t *testing.T) {
	repo := new(mockProfileRepo)
	broadcaster := streaming.NewBroadcaster(zap.NewNop())
	uc := NewProfileUsecase(repo, nil, broadcaster, nil, logger.NewLogger())
	events := listenOn(t, broadcaster, "user-1")

	repo.On("FindByUserID", mock.Anything, "user-1").
		Return(nil, apperrors.ErrProfileNotFound).Once()
	repo.On("Upsert", mock.Anything, mock.Anything).Return(true, nil).Once()

	profile, err := uc.UpsertProfile(context.Background(), UpsertProfileRequest{
		UserID:      "user-1",
		DisplayName: strPtr("Ada"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Ada", profile.DisplayName)
	assert.Equal(t, model.DefaultPlan, profile.Plan)

	event := receiveEvent(t, events)
	assert.Equal(t, streaming.EventTypeCreated, event.Type)
	assert.Equal(t, topics.Profile("user-1"), event.Topic)
	assert.Equal(t, "Ada", event.Data["displayName"])
	assert.Nil(t, event.OldData)
	repo.AssertExpectations(t)
}

func TestProfileUsecase_UpsertProfile_PartialUpdateKeepsStoredFields(t *testing.T) {
	repo := new(mockProfileRepo)
	broadcaster := streaming.NewBroadcaster(zap.NewNop())
	uc := NewProfileUsecase(repo, nil, broadcaster, nil, logger.NewLogger())
	events := listenOn(t, broadcaster, "user-1")

	existing := model.NewProfile("user-1", "u1@example.com", "Ada")
	existing.Plan = "pro"
	repo.On("FindByUserID", mock.Anything, "user-1").Return(existing, nil).Once()
	repo.On("Upsert", mock.Anything, mock.MatchedBy(func(p *model.Profile) bool {
		return p.DisplayName == "Grace" && p.Plan == "pro" && p.Email == "u1@example.com"
	})).Return(false, nil).Once()

	profile, err := uc.UpsertProfile(context.Background(), UpsertProfileRequest{
		UserID:      "user-1",
		DisplayName: strPtr("Grace"),
	})
	require.NoError(t, err)
	assert.Equal(t, "Grace", profile.DisplayName)
	assert.Equal(t, "pro", profile.Plan)

	event := receiveEvent(t, events)
	assert.Equal(t, streaming.EventTypeUpdated, event.Type)
	assert.NotNil(t, event.OldData)
	repo.AssertExpectations(t)
}

func TestProfileUsecase_DeleteProfile_PublishesDeletedEvent(t *testing.T) {
	repo := new(mockProfileRepo)
	broadcaster := streaming.NewBroadcaster(zap.NewNop())
	uc := NewProfileUsecase(repo, nil, broadcaster, nil, logger.NewLogger())
	events := listenOn(t, broadcaster, "user-1")

	existing := model.NewProfile("user-1", "u1@example.com", "Ada")
	repo.On("FindByUserID", mock.Anything, "user-1").Return(existing, nil).Once()
	repo.On("Delete", mock.Anything, "user-1").Return(nil).Once()

	require.NoError(t, uc.DeleteProfile(context.Background(), "user-1"))

	event := receiveEvent(t, events)
	assert.Equal(t, streaming.EventTypeDeleted, event.Type)
	assert.Equal(t, topics.Profile("user-1"), event.Topic)
	assert.Equal(t, "user-1", event.SubjectID)
	repo.AssertExpectations(t)
}

func TestProfileUsecase_DeleteProfile_NotFound(t *testing.T) {
	repo := new(mockProfileRepo)
	uc := NewProfileUsecase(repo, nil, nil, nil, logger.NewLogger())

	repo.On("FindByUserID", mock.Anything, "ghost").
		Return(nil, apperrors.ErrProfileNotFound).Once()

	err := uc.DeleteProfile(context.Background(), "ghost")
	require.ErrorIs(t, err, apperrors.ErrProfileNotFound)
	repo.AssertNotCalled(t, "Delete")
}

func TestProfileUsecase_EnsureProfile_ReturnsExisting(t *testing.T) {
	repo := new(mockProfileRepo)
	broadcaster := streaming.NewBroadcaster(zap.NewNop())
	uc := NewProfileUsecase(repo, nil, broadcaster, nil, logger.NewLogger())

	existing := model.NewProfile("user-1", "u1@example.com", "Ada")
	repo.On("FindByUserID", mock.Anything, "user-1").Return(existing, nil).Once()

	profile, err := uc.EnsureProfile(context.Background(), "user-1", "ignored@example.com", "Ignored")
	require.NoError(t, err)
	assert.Equal(t, "Ada", profile.DisplayName)
	repo.AssertNotCalled(t, "Upsert")
}

func TestProfileUsecase_EnsureProfile_CreatesDefault(t *testing.T) {
	repo := new(mockProfileRepo)
	broadcaster := streaming.NewBroadcaster(zap.NewNop())
	uc := NewProfileUsecase(repo, nil, broadcaster, nil, logger.NewLogger())
	events := listenOn(t, broadcaster, "user-1")

	repo.On("FindByUserID", mock.Anything, "user-1").
		Return(nil, apperrors.ErrProfileNotFound).Once()
	repo.On("Upsert", mock.Anything, mock.MatchedBy(func(p *model.Profile) bool {
		return p.UserID == "user-1" && p.Email == "u1@example.com" && p.Plan == model.DefaultPlan
	})).Return(true, nil).Once()

	profile, err := uc.EnsureProfile(context.Background(), "user-1", "u1@example.com", "Ada")
	require.NoError(t, err)
	assert.Equal(t, model.DefaultPlan, profile.Plan)

	event := receiveEvent(t, events)
	assert.Equal(t, streaming.EventTypeCreated, event.Type)
	repo.AssertExpectations(t)
}
