package storage

import (
	"bytes"
	"context"
	"log/slog"
	"testing"
	"time"

	"github.com/go-redis/redismock/v9"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupLocker() (*Locker, redismock.ClientMock) {
	l, mock, _ := setupLockerWithLog()
	return l, mock
}

func setupLockerWithLog() (*Locker, redismock.ClientMock, *bytes.Buffer) {
	var buf bytes.Buffer
	log := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	db, mock := redismock.NewClientMock()
	l := NewLocker(log, &Client{Client: db}, 30*time.Second)
	l.Retry = time.Millisecond
	l.Token = func() string { return "owner-token" }
	return l, mock, &buf
}

func TestLocker_Lock(t *testing.T) {
	ctx := context.Background()

	t.Run("acquire and release", func(t *testing.T) {
		l, mock := setupLocker()

		mock.ExpectSetNX("lock:listing:1", "owner-token", 30*time.Second).SetVal(true)
		mock.ExpectEvalSha(releaseScript.Hash(), []string{"lock:listing:1"}, "owner-token").SetVal(int64(1))

		unlock, err := l.Lock(ctx, "listing:1")
		require.NoError(t, err)
		unlock()

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("retries while held by another owner", func(t *testing.T) {
		l, mock := setupLocker()

		mock.ExpectSetNX("lock:listing:1", "owner-token", 30*time.Second).SetVal(false)
		mock.ExpectSetNX("lock:listing:1", "owner-token", 30*time.Second).SetVal(true)

		_, err := l.Lock(ctx, "listing:1")
		require.NoError(t, err)

		assert.NoError(t, mock.ExpectationsWereMet())
	})

	t.Run("redis error", func(t *testing.T) {
		l, mock := setupLocker()

		mock.ExpectSetNX("lock:article:7", "owner-token", 30*time.Second).SetErr(redis.ErrClosed)

		_, err := l.Lock(ctx, "article:7")
		assert.ErrorIs(t, err, redis.ErrClosed)
	})

	t.Run("gives up when context ends", func(t *testing.T) {
		l, mock := setupLocker()
		l.Retry = time.Hour

		mock.ExpectSetNX("lock:article:7", "owner-token", 30*time.Second).SetVal(false)

		ctx, cancel := context.WithTimeout(ctx, 10*time.Millisecond)
		defer cancel()

		_, err := l.Lock(ctx, "article:7")
		assert.ErrorIs(t, err, context.DeadlineExceeded)
	})
}

func TestLocker_ReleaseNotHeld(t *testing.T) {
	l, mock := setupLocker()

	mock.ExpectEvalSha(releaseScript.Hash(), []string{"lock:x"}, "owner-token").SetVal(int64(0))

	err := l.release(context.Background(), "lock:x", "owner-token")
	assert.ErrorIs(t, err, ErrLockNotHeld)
}

func TestLocker_UnlockAfterExpiryIsLogged(t *testing.T) {
	l, mock, buf := setupLockerWithLog()

	mock.ExpectSetNX("lock:listing:1", "owner-token", 30*time.Second).SetVal(true)
	mock.ExpectEvalSha(releaseScript.Hash(), []string{"lock:listing:1"}, "owner-token").SetVal(int64(0))

	unlock, err := l.Lock(context.Background(), "listing:1")
	require.NoError(t, err)
	unlock()

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Contains(t, buf.String(), `"level":"WARN"`)
	assert.Contains(t, buf.String(), "failed to release lock")
	assert.Contains(t, buf.String(), "lock:listing:1")
	assert.Contains(t, buf.String(), ErrLockNotHeld.Error())
}

func TestLocker_CleanUnlockLogsNothing(t *testing.T) {
	l, mock, buf := setupLockerWithLog()

	mock.ExpectSetNX("lock:listing:2", "owner-token", 30*time.Second).SetVal(true)
	mock.ExpectEvalSha(releaseScript.Hash(), []string{"lock:listing:2"}, "owner-token").SetVal(int64(1))

	unlock, err := l.Lock(context.Background(), "listing:2")
	require.NoError(t, err)
	unlock()

	assert.NoError(t, mock.ExpectationsWereMet())
	assert.Empty(t, buf.String())
}
