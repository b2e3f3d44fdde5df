package clevertap

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestLimiter(t *testing.T, limit int) (*RedisLimiter, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = rdb.Close() })
	l := NewRedisLimiter(rdb, limit)
	l.interval = 10 * time.Millisecond
	return l, mr
}

func TestRedisLimiter_BlocksUntilRelease(t *testing.T) {
	l, mr := newTestLimiter(t, 1)
	ctx := context.Background()

	release, err := l.Acquire(ctx, "ACC")
	require.NoError(t, err)

	got := make(chan error, 1)
	go func() {
		rel, err := l.Acquire(ctx, "ACC")
		if err == nil {
			defer rel()
		}
		got <- err
	}()

	select {
	case err := <-got:
		t.Fatalf("second acquire returned while slot held: %v", err)
	case <-time.After(150 * time.Millisecond):
	}
	v, err := mr.Get(limiterKey("ACC"))
	require.NoError(t, err)
	assert.Equal(t, "1", v)

	release()
	select {
	case err := <-got:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("second acquire did not proceed after release")
	}
}

func TestRedisLimiter_AccountsAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(t, 1)
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()

	relA, err := l.Acquire(ctx, "A")
	require.NoError(t, err)
	defer relA()
	relB, err := l.Acquire(ctx, "B")
	require.NoError(t, err)
	relB()
}

func TestRedisLimiter_AcquireHonoursDeadline(t *testing.T) {
	l, _ := newTestLimiter(t, 1)
	release, err := l.Acquire(context.Background(), "ACC")
	require.NoError(t, err)
	defer release()

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	start := time.Now()
	rel, err := l.Acquire(ctx, "ACC")
	require.Error(t, err)
	assert.Nil(t, rel)
	assert.True(t, errors.Is(err, context.DeadlineExceeded), "got %v", err)
	assert.Less(t, time.Since(start), time.Second)
}

func TestRedisLimiter_ReleaseAfterCallerCancelled(t *testing.T) {
	l, mr := newTestLimiter(t, 1)
	ctx, cancel := context.WithCancel(context.Background())

	release, err := l.Acquire(ctx, "ACC")
	require.NoError(t, err)
	assert.True(t, mr.Exists(limiterKey("ACC")))

	cancel()
	release()
	assert.False(t, mr.Exists(limiterKey("ACC")))

	quick, stop := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer stop()
	rel, err := l.Acquire(quick, "ACC")
	require.NoError(t, err)
	rel()
}

func TestClient_FreesSlotWhenUploadCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		<-r.Context().Done()
	}))
	t.Cleanup(srv.Close)

	l, mr := newTestLimiter(t, 1)
	c := NewClient(5*time.Second, WithLimiter(l))

	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()
	_, err := c.Send(ctx, srv.URL, Credentials{AccountID: "ACC", Passcode: "p"}, []byte(`{"d":[]}`))
	require.Error(t, err)
	assert.False(t, mr.Exists(limiterKey("ACC")))
}
