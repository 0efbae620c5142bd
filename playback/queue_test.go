package playback

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/buldo/RtpDrmPlayer/pipeline"
)

func TestBoundedQueueDropsOldestOnOverflow(t *testing.T) {
	q := newBoundedQueue(2)

	require.False(t, q.push(pipeline.AccessUnit{RTPTimestamp: 1}))
	require.False(t, q.push(pipeline.AccessUnit{RTPTimestamp: 2}))
	require.True(t, q.push(pipeline.AccessUnit{RTPTimestamp: 3}))

	first, ok := q.pop()
	require.True(t, ok)
	require.Equal(t, uint32(2), first.RTPTimestamp)

	second, ok := q.pop()
	require.True(t, ok)
	require.Equal(t, uint32(3), second.RTPTimestamp)

	require.Equal(t, uint64(1), q.droppedCount())
}

func TestBoundedQueueCloseWakesBlockedPop(t *testing.T) {
	q := newBoundedQueue(2)

	resultCh := make(chan bool, 1)
	go func() {
		_, ok := q.pop()
		resultCh <- ok
	}()

	q.close()
	require.False(t, <-resultCh)
}

func TestBoundedQueueRejectsPushAfterClose(t *testing.T) {
	q := newBoundedQueue(2)
	q.close()
	dropped := q.push(pipeline.AccessUnit{RTPTimestamp: 1})
	require.False(t, dropped)

	_, ok := q.pop()
	require.False(t, ok)
}
