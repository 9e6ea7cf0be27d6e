package http

import (
	"context"
	"errors"
	"sync"

	"filestore/internal/profile/usecase"
	apperrors "filestore/internal/shared/errors"
	"filestore/internal/shared/logger"
	"filestore/internal/shared/streaming"
	"filestore/internal/shared/topics"
	"filestore/internal/shared/utils"

	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// listenBufferSize is the per-connection event channel depth. The broadcaster
// drops events for a full channel rather than blocking the publisher.
const listenBufferSize = 32

// upsertProfileBody is the PUT /profile/:userId request payload. All fields
// are optional; absent fields keep the stored value.
type upsertProfileBody struct {
	DisplayName  *string                `json:"displayName"`
	AvatarFileID *string                `json:"avatarFileId"`
	Plan         *string                `json:"plan"`
	Preferences  map[string]interface{} `json:"preferences"`
}

// ProfileHandler exposes profile reads/writes, the adapter-state snapshot
// endpoint and the WebSocket listen endpoint.
type ProfileHandler struct {
	usecase     usecase.ProfileUsecase
	state       *usecase.ProfileStateAdapter
	broadcaster streaming.Broadcaster
	logger      logger.Logger
	wsLog       *zap.Logger
}

// NewProfileHandler creates a new profile HTTP handler.
func NewProfileHandler(
	uc usecase.ProfileUsecase,
	state *usecase.ProfileStateAdapter,
	broadcaster streaming.Broadcaster,
	log logger.Logger,
	wsLog *zap.Logger,
) *ProfileHandler {
	if wsLog == nil {
		wsLog = zap.NewNop()
	}
	return &ProfileHandler{
		usecase:     uc,
		state:       state,
		broadcaster: broadcaster,
		logger:      log.WithComponent("profile.http"),
		wsLog:       wsLog,
	}
}

// RegisterRoutes registers the profile endpoints. The literal routes must be
// registered before the /:userId parameter routes so "listen" and "state"
// are never captured as user IDs.
func (h *ProfileHandler) RegisterRoutes(router fiber.Router) {
	profile := router.Group("/profile")

	profile.Use("/listen", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	profile.Get("/listen", websocket.New(h.Listen))
	profile.Get("/state/:userId", h.GetState)

	profile.Get("/:userId", h.GetProfile)
	profile.Put("/:userId", h.UpsertProfile)
	profile.Delete("/:userId", h.DeleteProfile)
}

// GetProfile returns the stored profile document for a user.
func (h *ProfileHandler) GetProfile(c *fiber.Ctx) error {
	profile, err := h.usecase.GetProfile(c.UserContext(), c.Params("userId"))
	if err != nil {
		return h.sendError(c, err)
	}
	return c.JSON(profile)
}

// UpsertProfile applies a partial update to a user's profile, creating it
// when absent. Listeners on the user's profile topic receive the change.
func (h *ProfileHandler) UpsertProfile(c *fiber.Ctx) error {
	var body upsertProfileBody
	if err := c.BodyParser(&body); err != nil {
		return h.sendError(c, apperrors.NewValidationError("request body is not valid JSON").
			WithCode("INVALID_BODY").WithCause(err))
	}

	profile, err := h.usecase.UpsertProfile(c.UserContext(), usecase.UpsertProfileRequest{
		UserID:       c.Params("userId"),
		DisplayName:  body.DisplayName,
		AvatarFileID: body.AvatarFileID,
		Plan:         body.Plan,
		Preferences:  body.Preferences,
	})
	if err != nil {
		return h.sendError(c, err)
	}
	return c.JSON(profile)
}

// DeleteProfile removes a user's profile document. Listeners on the profile
// topic receive a deleted event; the state adapter drops its snapshot for a
// user that is still authenticated.
func (h *ProfileHandler) DeleteProfile(c *fiber.Ctx) error {
	userID := c.Params("userId")
	if err := h.usecase.DeleteProfile(c.UserContext(), userID); err != nil {
		return h.sendError(c, err)
	}
	return c.JSON(fiber.Map{
		"message": "profile deleted",
		"userId":  userID,
	})
}

// GetState returns the state adapter's in-memory snapshot for a user. It only
// exists while the user has an authenticated session.
func (h *ProfileHandler) GetState(c *fiber.Ctx) error {
	userID := c.Params("userId")
	snapshot, ok := h.state.Snapshot(userID)
	if !ok {
		return h.sendError(c, apperrors.NewNotFoundError("no active session state for user").
			WithCode("NOT_FOUND").WithDetail("userId", userID))
	}
	return c.JSON(snapshot)
}

// Listen streams profile events for the user named by the userId query
// parameter over a WebSocket connection. Clients may send {"action":"ping"}
// frames; anything else closes the connection.
func (h *ProfileHandler) Listen(conn *websocket.Conn) {
	defer conn.Close()

	userID := conn.Query("userId")
	if !topics.IsValidID(userID) {
		_ = conn.WriteJSON(fiber.Map{
			"error":    "userId query parameter is required",
			"errorKey": "MISSING_USER_ID",
		})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	subscriberID := uuid.NewString()
	topic := topics.Profile(userID)
	events := make(chan streaming.RealtimeEvent, listenBufferSize)

	if err := h.broadcaster.Subscribe(ctx, subscriberID, topic, events); err != nil {
		h.wsLog.Error("Failed to subscribe listen connection",
			zap.String("topic", topic), zap.Error(err))
		return
	}
	defer func() {
		_ = h.broadcaster.Unsubscribe(context.Background(), subscriberID, topic)
		close(events)
	}()

	h.wsLog.Info("Listen connection opened",
		zap.String("topic", topic), zap.String("subscriberID", subscriberID))

	// The forwarder and the ping responder both write frames; the websocket
	// connection does not allow concurrent writers.
	var writeMu sync.Mutex
	writeJSON := func(v interface{}) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return conn.WriteJSON(v)
	}

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-events:
				if !ok {
					return
				}
				if err := writeJSON(event); err != nil {
					h.wsLog.Warn("Failed to write event frame, closing connection",
						zap.String("topic", topic), zap.Error(err))
					cancel()
					_ = conn.Close()
					return
				}
			}
		}
	}()

	for {
		var req streaming.SubscriptionRequest
		if err := conn.ReadJSON(&req); err != nil {
			h.wsLog.Info("Listen connection closed",
				zap.String("topic", topic), zap.String("subscriberID", subscriberID))
			return
		}
		if req.Action == "ping" {
			if err := writeJSON(fiber.Map{"action": "pong"}); err != nil {
				return
			}
		}
	}
}

// sendError maps a domain error onto the HTTP error contract
// {message, errorKey, requestId}.
func (h *ProfileHandler) sendError(c *fiber.Ctx, err error) error {
	status, key, message := classifyError(err)

	log := h.logger.WithContext(c.UserContext())
	if status >= fiber.StatusInternalServerError {
		log.Error("Profile request failed", "errorKey", key, "error", err)
	} else {
		log.Warn("Profile request rejected", "errorKey", key, "error", err)
	}

	return c.Status(status).JSON(fiber.Map{
		"message":   message,
		"errorKey":  key,
		"requestId": utils.GetRequestIDOrDefault(c.UserContext(), ""),
	})
}

func classifyError(err error) (status int, key, message string) {
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		key := appErr.Code
		if key == "" {
			key = string(appErr.Type)
		}
		return appErr.HTTPCode, key, appErr.Message
	}

	switch {
	case errors.Is(err, apperrors.ErrProfileNotFound):
		return fiber.StatusNotFound, "NOT_FOUND", "profile not found"
	case apperrors.IsNotFound(err):
		return fiber.StatusNotFound, "NOT_FOUND", "profile not found"
	case apperrors.IsValidation(err):
		return fiber.StatusBadRequest, "VALIDATION_ERROR", err.Error()
	default:
		return fiber.StatusInternalServerError, "STORAGE_FAILURE", "failed to process profile request"
	}
}
