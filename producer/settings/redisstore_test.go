package settings_test

import (
	"context"
	"sync"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v7"
	"github.com/mediaroom/producer/producer/settings"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newRedisClient(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()

	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr: mr.Addr(),
	})

	t.Cleanup(func() {
		client.Close()
		mr.Close()
	})

	return mr, client
}

func TestRedisStore_GetDefault(t *testing.T) {
	_, client := newRedisClient(t)

	store := settings.NewRedisStore(client, "producer", settings.Default())

	s, err := store.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, settings.Default(), s)
}

func TestRedisStore_Update(t *testing.T) {
	mr, client := newRedisClient(t)

	ctx := context.Background()
	store := settings.NewRedisStore(client, "producer", settings.Default())

	_, err := store.Update(ctx, func(s settings.Snapshot) settings.Snapshot {
		s.SelectedVideoDevice = "cam-b"

		return s
	})
	require.NoError(t, err)

	raw, err := mr.Get("producer:settings")
	require.NoError(t, err)
	assert.Contains(t, raw, `"selectedVideoDevice":"cam-b"`)

	other := settings.NewRedisStore(client, "producer", settings.Snapshot{})

	s, err := other.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, "cam-b", s.SelectedVideoDevice)
	assert.Equal(t, settings.ResolutionMedium, s.Resolution)
}

func TestRedisStore_ConcurrentUpdates(t *testing.T) {
	_, client := newRedisClient(t)

	ctx := context.Background()
	store := settings.NewRedisStore(client, "producer", settings.Default())

	var wg sync.WaitGroup

	for i := 0; i < 3; i++ {
		wg.Add(1)

		go func() {
			defer wg.Done()

			_, err := store.Update(ctx, func(s settings.Snapshot) settings.Snapshot {
				s.FrameRate++

				return s
			})
			assert.NoError(t, err)
		}()
	}

	wg.Wait()

	s, err := store.Get(ctx)
	require.NoError(t, err)
	assert.Equal(t, settings.Default().FrameRate+3, s.FrameRate)
}

func TestRedisStore_Unreachable(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)

	client := redis.NewClient(&redis.Options{
		Addr:       mr.Addr(),
		MaxRetries: -1,
	})
	defer client.Close()

	mr.Close()

	store := settings.NewRedisStore(client, "producer", settings.Default())

	_, err = store.Get(context.Background())
	assert.Error(t, err)
}
