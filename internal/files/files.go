package files

import (
	"context"
	"fmt"
	"time"

	"filestore/internal/files/adapter/converter"
	filehttp "filestore/internal/files/adapter/http"
	redispersistence "filestore/internal/files/adapter/persistence"
	mongodbpersistence "filestore/internal/files/adapter/persistence/mongodb"
	"filestore/internal/files/config"
	"filestore/internal/files/domain/service"
	"filestore/internal/files/usecase"
	"filestore/internal/shared/eventbus"
	"filestore/internal/shared/logger"
	"filestore/internal/shared/streaming"

	"github.com/gofiber/fiber/v2"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
)

const (
	// eventCleanupInterval is how often the event stream janitor runs.
	eventCleanupInterval = time.Hour
	// eventRetention is how long persisted events stay replayable.
	eventRetention = 24 * time.Hour
)

// FilesModule bundles the file storage components: the GridFS blob store,
// the metadata repository, the PDF conversion client, the thumbnail service,
// and the HTTP adapter. Lifecycle events flow out through the shared event
// bus, the realtime broadcaster, and the Redis event stream.
type FilesModule struct {
	Config      *config.FilesConfig
	Usecase     usecase.FileUsecase
	Handler     *filehttp.FileHandler
	EventStore  streaming.EventStore
	RedisClient *redis.Client
	Logger      logger.Logger

	cleanupInterval time.Duration
	retention       time.Duration
	cleanupCancel   context.CancelFunc
	cleanupDone     chan struct{}
}

// NewFilesModule wires the files module. redisClient may be nil, in which
// case lifecycle events are not persisted (bus and broadcaster still fire).
func NewFilesModule(
	db *mongo.Database,
	redisClient *redis.Client,
	bus *eventbus.EventBus,
	broadcaster streaming.Broadcaster,
	cfg *config.FilesConfig,
	log logger.Logger,
	zlog *zap.Logger,
) (*FilesModule, error) {
	log.Info("Initializing files module")

	if cfg == nil {
		loaded, err := config.LoadConfig()
		if err != nil {
			log.Warn("Failed to load files config from environment, using defaults", "error", err)
			loaded = config.DefaultFilesConfig()
		}
		cfg = loaded
	}

	blobStore, err := mongodbpersistence.NewGridFSBlobStore(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create blob store: %w", err)
	}

	fileRepo, err := mongodbpersistence.NewFileMetadataRepository(db)
	if err != nil {
		return nil, fmt.Errorf("failed to create file metadata repository: %w", err)
	}

	pdfClient := converter.NewPDFConverterClient(cfg.ConverterURL, cfg.ConverterTimeout, log)
	thumbnails := service.NewThumbnailService()

	var eventStore streaming.EventStore
	if redisClient != nil {
		eventStore = redispersistence.NewRedisEventStore(redisClient, zlog)
	}

	emitter := usecase.NewFileEventEmitter(bus, broadcaster, eventStore, log)
	fileUC := usecase.NewFileUsecase(blobStore, fileRepo, pdfClient, thumbnails, emitter, log)
	handler := filehttp.NewFileHandler(fileUC, cfg.ScratchDir, log)

	log.Info("Files module initialized",
		"converterURL", cfg.ConverterURL,
		"scratchDir", cfg.ScratchDir,
		"eventPersistence", redisClient != nil)

	return &FilesModule{
		Config:          cfg,
		Usecase:         fileUC,
		Handler:         handler,
		EventStore:      eventStore,
		RedisClient:     redisClient,
		Logger:          log,
		cleanupInterval: eventCleanupInterval,
		retention:       eventRetention,
	}, nil
}

// Start launches background maintenance: persisted events are trimmed past
// the retention window on a fixed interval. A no-op without event
// persistence.
func (m *FilesModule) Start() {
	if m.EventStore == nil {
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cleanupCancel = cancel
	m.cleanupDone = make(chan struct{})
	go m.runEventCleanup(ctx)

	m.Logger.Info("Event stream janitor started",
		"interval", m.cleanupInterval, "retention", m.retention)
}

func (m *FilesModule) runEventCleanup(ctx context.Context) {
	defer close(m.cleanupDone)

	ticker := time.NewTicker(m.cleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := m.EventStore.CleanupOldEvents(ctx, m.retention); err != nil {
				m.Logger.Warn("Event stream cleanup failed", "error", err)
			}
		}
	}
}

// RegisterRoutes registers the file endpoints. optionalAuth attaches a token
// principal when one is presented; deletes use it to cross-check the claimed
// owner.
func (m *FilesModule) RegisterRoutes(router fiber.Router, optionalAuth fiber.Handler) {
	m.Handler.RegisterRoutes(router, optionalAuth)
	m.Logger.Info("Files routes registered")
}

// Stop releases module resources. The Mongo and Redis clients are owned by
// the caller and closed there.
func (m *FilesModule) Stop() error {
	if m.cleanupCancel != nil {
		m.cleanupCancel()
		<-m.cleanupDone
		m.cleanupCancel = nil
	}
	m.Logger.Info("Files module stopped")
	return nil
}
