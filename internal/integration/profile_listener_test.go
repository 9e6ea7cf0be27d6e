package integration

import (
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"testing"
	"time"

	profilehttp "filestore/internal/profile/adapter/http"
	"filestore/internal/profile/domain/model"
	"filestore/internal/profile/usecase"
	apperrors "filestore/internal/shared/errors"
	"filestore/internal/shared/eventbus"
	"filestore/internal/shared/logger"
	"filestore/internal/shared/streaming"

	"github.com/fasthttp/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// memoryProfileRepo keeps profiles in a map so the realtime stack can run
// against a live TCP listener without MongoDB.
type memoryProfileRepo struct {
	mu       sync.RWMutex
	profiles map[string]*model.Profile
}

func newMemoryProfileRepo() *memoryProfileRepo {
	return &memoryProfileRepo{profiles: make(map[string]*model.Profile)}
}

func (r *memoryProfileRepo) FindByUserID(ctx context.Context, userID string) (*model.Profile, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	profile, ok := r.profiles[userID]
	if !ok {
		return nil, apperrors.ErrProfileNotFound
	}
	return profile.Clone(), nil
}

func (r *memoryProfileRepo) Upsert(ctx context.Context, profile *model.Profile) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, existed := r.profiles[profile.UserID]
	profile.UpdatedAt = time.Now().UTC()
	r.profiles[profile.UserID] = profile.Clone()
	return !existed, nil
}

func (r *memoryProfileRepo) Delete(ctx context.Context, userID string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.profiles[userID]; !ok {
		return apperrors.ErrProfileNotFound
	}
	delete(r.profiles, userID)
	return nil
}

type realtimeStack struct {
	bus     *eventbus.EventBus
	adapter *usecase.ProfileStateAdapter
	baseURL string
}

// startRealtimeStack boots the profile module on a real loopback listener so
// the WebSocket endpoint is exercised over an actual TCP connection.
func startRealtimeStack(t *testing.T) *realtimeStack {
	t.Helper()

	log := logger.NewLogger()
	bus := eventbus.NewEventBus(log)
	broadcaster := streaming.NewBroadcaster(zap.NewNop())

	profiles := usecase.NewProfileUsecase(newMemoryProfileRepo(), bus, broadcaster, nil, log)
	adapter := usecase.NewProfileStateAdapter(bus, broadcaster, profiles, zap.NewNop())
	adapter.Start()
	t.Cleanup(adapter.Stop)

	handler := profilehttp.NewProfileHandler(profiles, adapter, broadcaster, log, zap.NewNop())

	app := fiber.New(fiber.Config{DisableStartupMessage: true})
	handler.RegisterRoutes(app.Group("/api/v1"))

	listener, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	go func() { _ = app.Listener(listener) }()
	t.Cleanup(func() { _ = app.Shutdown() })

	return &realtimeStack{
		bus:     bus,
		adapter: adapter,
		baseURL: listener.Addr().String(),
	}
}

func dialListen(t *testing.T, stack *realtimeStack, userID string) *websocket.Conn {
	t.Helper()

	url := fmt.Sprintf("ws://%s/api/v1/profile/listen?userId=%s", stack.baseURL, userID)

	var conn *websocket.Conn
	var err error
	for attempt := 0; attempt < 20; attempt++ {
		conn, _, err = websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			t.Cleanup(func() { _ = conn.Close() })
			return conn
		}
		time.Sleep(50 * time.Millisecond)
	}
	t.Fatalf("failed to dial listen endpoint: %v", err)
	return nil
}

func readEvent(t *testing.T, conn *websocket.Conn) streaming.RealtimeEvent {
	t.Helper()

	var event streaming.RealtimeEvent
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	require.NoError(t, conn.ReadJSON(&event))
	return event
}

func authenticate(t *testing.T, stack *realtimeStack, userID, email, displayName string) {
	t.Helper()

	err := stack.bus.Publish(context.Background(), eventbus.NewBasicEventWithSource(
		eventbus.EventTypeUserAuthenticated,
		map[string]interface{}{
			"userId":      userID,
			"email":       email,
			"displayName": displayName,
		},
		"auth",
	))
	require.NoError(t, err)
}

func TestProfileListener_ReceivesEventsOverWebSocket(t *testing.T) {
	stack := startRealtimeStack(t)

	conn := dialListen(t, stack, "user-1")

	// A ping round-trip confirms the server-side subscription is in place
	// before any events are published.
	require.NoError(t, conn.WriteJSON(streaming.SubscriptionRequest{Action: "ping"}))
	var pong map[string]interface{}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	require.NoError(t, conn.ReadJSON(&pong))
	require.Equal(t, "pong", pong["action"])

	// Authentication triggers profile creation, which the listener observes.
	authenticate(t, stack, "user-1", "ada@example.com", "Ada")

	created := readEvent(t, conn)
	assert.Equal(t, streaming.EventTypeCreated, created.Type)
	assert.Equal(t, "profiles/user-1", created.Topic)
	assert.Equal(t, "user-1", created.SubjectID)
	assert.Equal(t, "ada@example.com", created.Data["email"])

	// A profile update over HTTP reaches the same listener.
	body := strings.NewReader(`{"displayName":"Ada Lovelace","plan":"pro"}`)
	req, err := http.NewRequest(http.MethodPut,
		fmt.Sprintf("http://%s/api/v1/profile/user-1", stack.baseURL), body)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	updated := readEvent(t, conn)
	assert.Equal(t, streaming.EventTypeUpdated, updated.Type)
	assert.Equal(t, "Ada Lovelace", updated.Data["displayName"])
	assert.Equal(t, "pro", updated.Data["plan"])
	require.NotNil(t, updated.OldData)
	assert.Equal(t, "Ada", updated.OldData["displayName"])
}

func TestProfileListener_PingPong(t *testing.T) {
	stack := startRealtimeStack(t)
	conn := dialListen(t, stack, "user-2")

	require.NoError(t, conn.WriteJSON(streaming.SubscriptionRequest{Action: "ping"}))

	var frame map[string]interface{}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "pong", frame["action"])
}

func TestProfileListener_RejectsMissingUserID(t *testing.T) {
	stack := startRealtimeStack(t)

	url := fmt.Sprintf("ws://%s/api/v1/profile/listen", stack.baseURL)

	var conn *websocket.Conn
	var err error
	for attempt := 0; attempt < 20; attempt++ {
		conn, _, err = websocket.DefaultDialer.Dial(url, nil)
		if err == nil {
			break
		}
		time.Sleep(50 * time.Millisecond)
	}
	require.NoError(t, err)
	defer conn.Close()

	var frame map[string]interface{}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(3*time.Second)))
	require.NoError(t, conn.ReadJSON(&frame))
	assert.Equal(t, "MISSING_USER_ID", frame["errorKey"])
}

func TestProfileState_ReflectsRealtimeEvents(t *testing.T) {
	stack := startRealtimeStack(t)

	authenticate(t, stack, "user-3", "bob@example.com", "Bob")

	// The adapter snapshot is reachable over HTTP once the session exists.
	var snapshot model.Profile
	require.Eventually(t, func() bool {
		resp, err := http.Get(fmt.Sprintf("http://%s/api/v1/profile/state/user-3", stack.baseURL))
		if err != nil || resp.StatusCode != http.StatusOK {
			if resp != nil {
				resp.Body.Close()
			}
			return false
		}
		defer resp.Body.Close()
		return json.NewDecoder(resp.Body).Decode(&snapshot) == nil
	}, 3*time.Second, 50*time.Millisecond)

	assert.Equal(t, "bob@example.com", snapshot.Email)
	assert.Equal(t, model.DefaultPlan, snapshot.Plan)
}
