package files

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"filestore/internal/shared/logger"
	"filestore/internal/shared/streaming"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// countingEventStore counts cleanup invocations and ignores everything else.
type countingEventStore struct {
	cleanups int64
}

func (s *countingEventStore) StoreEvent(ctx context.Context, event streaming.RealtimeEvent) error {
	return nil
}

func (s *countingEventStore) GetEventsSince(ctx context.Context, topic string, resumeToken streaming.ResumeToken) ([]streaming.RealtimeEvent, error) {
	return nil, nil
}

func (s *countingEventStore) CleanupOldEvents(ctx context.Context, retentionPeriod time.Duration) error {
	atomic.AddInt64(&s.cleanups, 1)
	return nil
}

func (s *countingEventStore) GetEventCount(topic string) int {
	return 0
}

func TestFilesModule_EventJanitorTrimsPeriodically(t *testing.T) {
	store := &countingEventStore{}
	module := &FilesModule{
		EventStore:      store,
		Logger:          logger.NewLogger(),
		cleanupInterval: 5 * time.Millisecond,
		retention:       time.Hour,
	}

	module.Start()
	require.Eventually(t, func() bool {
		return atomic.LoadInt64(&store.cleanups) >= 2
	}, time.Second, time.Millisecond)

	require.NoError(t, module.Stop())
	stopped := atomic.LoadInt64(&store.cleanups)

	// No further trims after shutdown.
	time.Sleep(25 * time.Millisecond)
	assert.Equal(t, stopped, atomic.LoadInt64(&store.cleanups))
}

func TestFilesModule_JanitorNoopWithoutEventStore(t *testing.T) {
	module := &FilesModule{Logger: logger.NewLogger()}

	module.Start()
	require.NoError(t, module.Stop())
}
