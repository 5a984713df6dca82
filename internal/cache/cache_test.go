package cache

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fortuna/gridiron/internal/pbp"
)

func quietLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func TestMemoryCache(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2023, 9, 7, 20, 0, 0, 0, time.UTC)
	m := NewMemoryCache()
	m.now = func() time.Time { return now }

	_, ok, err := m.GetDocument(ctx, "a")
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, m.SetDocument(ctx, "a", "page a", time.Minute))
	require.NoError(t, m.SetDocument(ctx, "b", "page b", 0))

	body, ok, err := m.GetDocument(ctx, "a")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "page a", body)

	now = now.Add(2 * time.Minute)
	_, ok, _ = m.GetDocument(ctx, "a")
	assert.False(t, ok)

	body, ok, _ = m.GetDocument(ctx, "b")
	assert.True(t, ok)
	assert.Equal(t, "page b", body)
	assert.Equal(t, 1, m.Len())
}

type slowResolver struct {
	calls   atomic.Int32
	release chan struct{}
	err     error
}

func (s *slowResolver) TeamNames(_ context.Context, season int) (pbp.TeamDirectory, error) {
	s.calls.Add(1)
	if s.release != nil {
		<-s.release
	}
	if s.err != nil {
		return nil, s.err
	}
	return pbp.TeamDirectory{"KAN": "Kansas City Chiefs", "DET": "Detroit Lions"}, nil
}

type mapStore struct {
	mu    sync.Mutex
	dirs  map[int]pbp.TeamDirectory
	reads int
}

func (m *mapStore) LoadTeamNames(_ context.Context, season int) (pbp.TeamDirectory, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.reads++
	d, ok := m.dirs[season]
	return d, ok, nil
}

func (m *mapStore) StoreTeamNames(_ context.Context, season int, directory pbp.TeamDirectory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dirs[season] = directory
	return nil
}

func TestTeamNameCacheSingleFetch(t *testing.T) {
	upstream := &slowResolver{release: make(chan struct{})}
	c := NewTeamNameCache(upstream, nil, quietLogger())
	ctx := context.Background()

	const callers = 8
	var wg sync.WaitGroup
	results := make([]pbp.TeamDirectory, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			d, err := c.TeamNames(ctx, 2023)
			assert.NoError(t, err)
			results[i] = d
		}(i)
	}

	// Let the callers pile up on the in-flight lookup before it completes.
	time.Sleep(20 * time.Millisecond)
	close(upstream.release)
	wg.Wait()

	for _, d := range results {
		assert.Equal(t, "Detroit Lions", d["DET"])
	}

	_, err := c.TeamNames(ctx, 2023)
	require.NoError(t, err)
	assert.Equal(t, int32(1), upstream.calls.Load())
}

func TestTeamNameCacheErrorsAreNotCached(t *testing.T) {
	upstream := &slowResolver{err: errors.New("season page unavailable")}
	c := NewTeamNameCache(upstream, nil, quietLogger())
	ctx := context.Background()

	_, err := c.TeamNames(ctx, 2023)
	require.Error(t, err)
	_, err = c.TeamNames(ctx, 2023)
	require.Error(t, err)
	assert.Equal(t, int32(2), upstream.calls.Load())
}

func TestTeamNameCachePersists(t *testing.T) {
	ctx := context.Background()
	store := &mapStore{dirs: map[int]pbp.TeamDirectory{
		2022: {"PHI": "Philadelphia Eagles"},
	}}
	upstream := &slowResolver{}
	c := NewTeamNameCache(upstream, store, quietLogger())

	d, err := c.TeamNames(ctx, 2022)
	require.NoError(t, err)
	assert.Equal(t, "Philadelphia Eagles", d["PHI"])
	assert.Equal(t, int32(0), upstream.calls.Load())

	_, err = c.TeamNames(ctx, 2023)
	require.NoError(t, err)
	assert.Equal(t, int32(1), upstream.calls.Load())
	assert.Contains(t, store.dirs, 2023)
}

func TestRedisCache(t *testing.T) {
	url := os.Getenv("REDIS_URL")
	if url == "" {
		t.Skip("REDIS_URL not set")
	}
	rc, err := NewRedisCache(url)
	require.NoError(t, err)
	defer rc.Close()

	ctx := context.Background()
	key := "test/" + time.Now().Format(time.RFC3339Nano)
	defer rc.Delete(ctx, key)

	_, ok, err := rc.GetDocument(ctx, key)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, rc.SetDocument(ctx, key, "<html/>", time.Minute))
	body, ok, err := rc.GetDocument(ctx, key)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "<html/>", body)

	require.NoError(t, rc.StoreTeamNames(ctx, 1999, pbp.TeamDirectory{"STL": "St. Louis Rams"}))
	d, ok, err := rc.LoadTeamNames(ctx, 1999)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "St. Louis Rams", d["STL"])
}
