package profile

import (
	profilehttp "filestore/internal/profile/adapter/http"
	mongodbpersistence "filestore/internal/profile/adapter/persistence/mongodb"
	"filestore/internal/profile/domain/repository"
	"filestore/internal/profile/usecase"
	"filestore/internal/shared/eventbus"
	"filestore/internal/shared/logger"
	"filestore/internal/shared/streaming"

	"github.com/gofiber/fiber/v2"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

// ProfileModule bundles the profile components: the Mongo repository, the
// usecase, the auth-driven state adapter and the HTTP/WebSocket adapter.
type ProfileModule struct {
	Repo         repository.ProfileRepository
	Usecase      usecase.ProfileUsecase
	StateAdapter *usecase.ProfileStateAdapter
	Handler      *profilehttp.ProfileHandler
	Logger       logger.Logger
}

// NewProfileModule wires the profile module. eventStore may be nil, in which
// case profile events are not persisted for replay.
func NewProfileModule(
	db *mongo.Database,
	bus *eventbus.EventBus,
	broadcaster streaming.Broadcaster,
	eventStore streaming.EventStore,
	log logger.Logger,
	zlog *zap.Logger,
) (*ProfileModule, error) {
	log.Info("Initializing profile module")

	repo := mongodbpersistence.NewProfileRepository(db)
	profileUC := usecase.NewProfileUsecase(repo, bus, broadcaster, eventStore, log)
	stateAdapter := usecase.NewProfileStateAdapter(bus, broadcaster, profileUC, zlog)
	handler := profilehttp.NewProfileHandler(profileUC, stateAdapter, broadcaster, log, zlog)

	log.Info("Profile module initialized", "eventPersistence", eventStore != nil)

	return &ProfileModule{
		Repo:         repo,
		Usecase:      profileUC,
		StateAdapter: stateAdapter,
		Handler:      handler,
		Logger:       log,
	}, nil
}

// RegisterRoutes registers the profile endpoints.
func (m *ProfileModule) RegisterRoutes(router fiber.Router) {
	m.Handler.RegisterRoutes(router)
	m.Logger.Info("Profile routes registered")
}

// Start attaches the state adapter to authentication events.
func (m *ProfileModule) Start() {
	m.StateAdapter.Start()
}

// Stop detaches all profile listeners.
func (m *ProfileModule) Stop() error {
	m.StateAdapter.Stop()
	m.Logger.Info("Profile module stopped")
	return nil
}
