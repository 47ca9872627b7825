package cache

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	api "github.com/scribehub/transcriber/api/v1alpha1"
)

func newTestManager(t *testing.T) (*JobManager, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewJobManager(client, time.Hour), mr
}

func TestJobManagerCreateAndGet(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.CreateJob(ctx, "job-1"))

	entry, err := m.GetStatus(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "job-1", entry.JobID)
	assert.Equal(t, "queued", entry.Status)
	assert.Equal(t, 0, entry.Progress)
}

func TestJobManagerUpdateOverwrites(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.CreateJob(ctx, "job-1"))
	require.NoError(t, m.UpdateStatus(ctx, api.JobStatusEntry{
		JobID:    "job-1",
		Status:   "processing",
		Progress: 20,
		Message:  "transcribing",
	}))

	entry, err := m.GetStatus(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, "processing", entry.Status)
	assert.Equal(t, 20, entry.Progress)
	assert.Equal(t, "transcribing", entry.Message)
}

func TestJobManagerMiss(t *testing.T) {
	m, _ := newTestManager(t)

	_, err := m.GetStatus(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)

	_, err = m.GetResult(context.Background(), "nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJobManagerResultRoundTrip(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	payload := api.ResultPayload{TranscriptID: "t-1", SegmentsCount: 12, Duration: 88.5}
	require.NoError(t, m.SetResult(ctx, "job-1", payload))

	got, err := m.GetResult(ctx, "job-1")
	require.NoError(t, err)
	assert.Equal(t, payload, *got)
}

func TestJobManagerEntriesExpire(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.CreateJob(ctx, "job-1"))

	mr.FastForward(2 * time.Hour)

	_, err := m.GetStatus(ctx, "job-1")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestJobManagerUpdateResetsTTL(t *testing.T) {
	m, mr := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.CreateJob(ctx, "job-1"))
	mr.FastForward(50 * time.Minute)

	// the update pushes expiry a full TTL out again
	require.NoError(t, m.UpdateStatus(ctx, api.JobStatusEntry{JobID: "job-1", Status: "processing", Progress: 10}))
	mr.FastForward(50 * time.Minute)

	_, err := m.GetStatus(ctx, "job-1")
	assert.NoError(t, err)
}

func TestJobManagerDelete(t *testing.T) {
	m, _ := newTestManager(t)
	ctx := context.Background()

	require.NoError(t, m.CreateJob(ctx, "job-1"))
	require.NoError(t, m.SetResult(ctx, "job-1", api.ResultPayload{TranscriptID: "t-1"}))

	require.NoError(t, m.DeleteJob(ctx, "job-1"))

	_, err := m.GetStatus(ctx, "job-1")
	assert.ErrorIs(t, err, ErrNotFound)
	_, err = m.GetResult(ctx, "job-1")
	assert.ErrorIs(t, err, ErrNotFound)
}
