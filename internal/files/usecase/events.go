package usecase

import (
	"context"
	"sync/atomic"
	"time"

	"filestore/internal/files/domain/model"
	"filestore/internal/shared/eventbus"
	"filestore/internal/shared/logger"
	"filestore/internal/shared/streaming"
	"filestore/internal/shared/topics"
)

const eventSource = "files"

// FileEventEmitter fans file lifecycle events out to the in-process bus,
// the realtime broadcaster, and the persistent event stream. Every sink is
// best effort: a failed emit is logged, never returned, so storage outcomes
// stay decoupled from event delivery.
type FileEventEmitter struct {
	bus         *eventbus.EventBus
	broadcaster streaming.Broadcaster
	eventStore  streaming.EventStore
	logger      logger.Logger
	sequence    int64
}

// NewFileEventEmitter creates a new emitter. Broadcaster and event store may
// be nil; the corresponding sink is skipped.
func NewFileEventEmitter(
	bus *eventbus.EventBus,
	broadcaster streaming.Broadcaster,
	eventStore streaming.EventStore,
	log logger.Logger,
) *FileEventEmitter {
	return &FileEventEmitter{
		bus:         bus,
		broadcaster: broadcaster,
		eventStore:  eventStore,
		logger:      log,
	}
}

// FileUploaded announces a stored file on the owner's files topic.
func (e *FileEventEmitter) FileUploaded(ctx context.Context, file *model.StoredFile) {
	data := map[string]interface{}{
		"fileId":       file.FileID(),
		"filename":     file.Filename,
		"originalName": file.OriginalName,
		"contentType":  file.ContentType,
		"size":         file.Size,
	}
	e.emit(ctx, eventbus.EventTypeFileUploaded, streaming.EventTypeCreated, file.OwnerID, data)
}

// FileConverted announces a completed document conversion.
func (e *FileEventEmitter) FileConverted(ctx context.Context, userID, originalName string, pages int) {
	data := map[string]interface{}{
		"originalName": originalName,
		"pages":        pages,
	}
	e.emit(ctx, eventbus.EventTypeFileConverted, streaming.EventTypeCreated, userID, data)
}

// FileDeleted announces a removed file on the owner's files topic.
func (e *FileEventEmitter) FileDeleted(ctx context.Context, file *model.StoredFile) {
	data := map[string]interface{}{
		"fileId":   file.FileID(),
		"filename": file.Filename,
	}
	e.emit(ctx, eventbus.EventTypeFileDeleted, streaming.EventTypeDeleted, file.OwnerID, data)
}

func (e *FileEventEmitter) emit(ctx context.Context, busType string, rtType streaming.EventType, ownerID string, data map[string]interface{}) {
	if e.bus != nil {
		e.bus.PublishAndForget(ctx, eventbus.NewBasicEventWithSource(busType, data, eventSource))
	}

	event := streaming.RealtimeEvent{
		Type:           rtType,
		Topic:          topics.Files(ownerID),
		SubjectID:      ownerID,
		Data:           data,
		Timestamp:      time.Now().UTC(),
		SequenceNumber: atomic.AddInt64(&e.sequence, 1),
	}

	if e.eventStore != nil {
		if err := e.eventStore.StoreEvent(ctx, event); err != nil {
			e.logger.Warn("Failed to persist file event", "topic", event.Topic, "error", err)
		}
	}

	if e.broadcaster != nil {
		if err := e.broadcaster.Publish(ctx, event); err != nil {
			e.logger.Warn("Failed to broadcast file event", "topic", event.Topic, "error", err)
		}
	}
}
