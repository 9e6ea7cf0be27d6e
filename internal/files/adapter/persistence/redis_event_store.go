package persistence

import (
	"context"
	"encoding/json"
	"strconv"
	"time"

	"filestore/internal/shared/streaming"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// eventStreamPrefix namespaces event streams so cleanup can pattern-match
// them without touching unrelated keys in a shared Redis instance.
const eventStreamPrefix = "filestore:events:"

// maxStreamLength bounds each topic stream; older entries are trimmed.
const maxStreamLength = 10000

// RedisEventStore implements streaming.EventStore using Redis Streams.
// Stream entry IDs double as resume tokens, so a listener that reconnects
// can replay everything it missed.
type RedisEventStore struct {
	client *redis.Client
	logger *zap.Logger
}

// NewRedisEventStore creates a new Redis-based event store.
func NewRedisEventStore(client *redis.Client, log *zap.Logger) *RedisEventStore {
	if log == nil {
		log = zap.NewNop()
	}
	return &RedisEventStore{
		client: client,
		logger: log,
	}
}

func streamKey(topic string) string {
	return eventStreamPrefix + topic
}

// StoreEvent appends the event to its topic stream.
func (r *RedisEventStore) StoreEvent(ctx context.Context, event streaming.RealtimeEvent) error {
	eventData, err := json.Marshal(event.Data)
	if err != nil {
		r.logger.Error("Failed to serialize event data", zap.Error(err))
		return err
	}

	oldData, err := json.Marshal(event.OldData)
	if err != nil {
		r.logger.Error("Failed to serialize old data", zap.Error(err))
		return err
	}

	streamName := streamKey(event.Topic)

	_, err = r.client.XAdd(ctx, &redis.XAddArgs{
		Stream: streamName,
		Values: map[string]interface{}{
			"type":           string(event.Type),
			"topic":          event.Topic,
			"subjectId":      event.SubjectID,
			"data":           eventData,
			"oldData":        oldData,
			"timestamp":      event.Timestamp.UnixNano(),
			"resumeToken":    string(event.ResumeToken),
			"sequenceNumber": event.SequenceNumber,
		},
	}).Result()

	if err != nil {
		r.logger.Error("Failed to store event in Redis",
			zap.String("stream", streamName),
			zap.String("eventType", string(event.Type)),
			zap.Error(err))
		return err
	}

	r.logger.Debug("Event stored in Redis",
		zap.String("stream", streamName),
		zap.String("eventType", string(event.Type)),
		zap.Int64("sequenceNumber", event.SequenceNumber))

	return nil
}

// GetEventsSince retrieves events on a topic after a resume token. An empty
// token reads from the beginning of the stream.
func (r *RedisEventStore) GetEventsSince(ctx context.Context, topic string, resumeToken streaming.ResumeToken) ([]streaming.RealtimeEvent, error) {
	streamName := streamKey(topic)
	lastID := "0"

	if resumeToken != "" {
		lastID = string(resumeToken)
	}

	// Check existence first so XRead never blocks on a stream that was
	// never written to.
	exists, err := r.client.Exists(ctx, streamName).Result()
	if err != nil {
		r.logger.Error("Failed to check stream existence",
			zap.String("stream", streamName),
			zap.Error(err))
		return nil, err
	}

	if exists == 0 {
		return []streaming.RealtimeEvent{}, nil
	}

	readCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	res, err := r.client.XRead(readCtx, &redis.XReadArgs{
		Streams: []string{streamName, lastID},
		Count:   1000,
		Block:   0,
	}).Result()

	if err != nil {
		if err == redis.Nil || err == context.DeadlineExceeded {
			return []streaming.RealtimeEvent{}, nil
		}
		r.logger.Error("Failed to read events from Redis",
			zap.String("stream", streamName),
			zap.String("resumeToken", string(resumeToken)),
			zap.Error(err))
		return nil, err
	}

	var events []streaming.RealtimeEvent

	for _, streamRes := range res {
		for _, msg := range streamRes.Messages {
			event, err := r.parseEventFromMessage(msg)
			if err != nil {
				r.logger.Warn("Failed to parse event from Redis message",
					zap.String("messageId", msg.ID),
					zap.Error(err))
				continue
			}

			// The stream entry ID is the resume token for continuity.
			event.ResumeToken = streaming.ResumeToken(msg.ID)
			events = append(events, event)
		}
	}

	r.logger.Debug("Retrieved events from Redis",
		zap.String("stream", streamName),
		zap.Int("eventCount", len(events)))

	return events, nil
}

// CleanupOldEvents trims every event stream down to maxStreamLength entries.
func (r *RedisEventStore) CleanupOldEvents(ctx context.Context, retentionPeriod time.Duration) error {
	streams, err := r.client.Keys(ctx, eventStreamPrefix+"*").Result()
	if err != nil {
		r.logger.Error("Failed to get stream names for cleanup", zap.Error(err))
		return err
	}

	cleanedStreams := 0
	for _, stream := range streams {
		info, err := r.client.XInfoStream(ctx, stream).Result()
		if err != nil {
			continue
		}

		if info.Length > maxStreamLength {
			trimmed, err := r.client.XTrimMaxLen(ctx, stream, maxStreamLength).Result()
			if err != nil {
				r.logger.Warn("Failed to trim stream",
					zap.String("stream", stream),
					zap.Error(err))
				continue
			}

			if trimmed > 0 {
				cleanedStreams++
			}
		}
	}

	if cleanedStreams > 0 {
		r.logger.Info("Cleaned up old event streams",
			zap.Int("streamsAffected", cleanedStreams))
	}

	return nil
}

// GetEventCount returns the stream length for a topic, or the total across
// all topics when topic is empty.
func (r *RedisEventStore) GetEventCount(topic string) int {
	ctx := context.Background()
	if topic == "" {
		streams, err := r.client.Keys(ctx, eventStreamPrefix+"*").Result()
		if err != nil {
			return 0
		}

		total := 0
		for _, stream := range streams {
			length, err := r.client.XLen(ctx, stream).Result()
			if err == nil {
				total += int(length)
			}
		}
		return total
	}

	length, err := r.client.XLen(ctx, streamKey(topic)).Result()
	if err != nil {
		return 0
	}

	return int(length)
}

// parseEventFromMessage converts a Redis Stream message to a RealtimeEvent.
func (r *RedisEventStore) parseEventFromMessage(msg redis.XMessage) (streaming.RealtimeEvent, error) {
	event := streaming.RealtimeEvent{}

	if typeStr, ok := msg.Values["type"].(string); ok {
		event.Type = streaming.EventType(typeStr)
	}

	if topic, ok := msg.Values["topic"].(string); ok {
		event.Topic = topic
	}

	if subjectID, ok := msg.Values["subjectId"].(string); ok {
		event.SubjectID = subjectID
	}

	if resumeToken, ok := msg.Values["resumeToken"].(string); ok {
		event.ResumeToken = streaming.ResumeToken(resumeToken)
	}

	if timestampStr, ok := msg.Values["timestamp"].(string); ok {
		if timestamp, err := strconv.ParseInt(timestampStr, 10, 64); err == nil {
			event.Timestamp = time.Unix(0, timestamp)
		}
	}

	if seqStr, ok := msg.Values["sequenceNumber"].(string); ok {
		if seq, err := strconv.ParseInt(seqStr, 10, 64); err == nil {
			event.SequenceNumber = seq
		}
	}

	if dataStr, ok := msg.Values["data"].(string); ok && dataStr != "" && dataStr != "null" {
		var data map[string]interface{}
		if err := json.Unmarshal([]byte(dataStr), &data); err == nil {
			event.Data = data
		}
	}

	if oldDataStr, ok := msg.Values["oldData"].(string); ok && oldDataStr != "" && oldDataStr != "null" {
		var oldData map[string]interface{}
		if err := json.Unmarshal([]byte(oldDataStr), &oldData); err == nil {
			event.OldData = oldData
		}
	}

	return event, nil
}
