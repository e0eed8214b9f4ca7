package stability_test

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"vidsentry/internal/stability"
)

const interval = 20 * time.Millisecond

func TestAwaitStableReturnsForUnchangingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, make([]byte, 128), 0o644))

	start := time.Now()
	result, err := stability.AwaitStable(context.Background(), path, stability.Options{PollInterval: interval, RequiredEqualReads: 2})
	require.NoError(t, err)
	assert.Equal(t, stability.Stable, result)
	// Two equal reads after the first observation means two poll intervals.
	assert.GreaterOrEqual(t, time.Since(start), 2*interval-5*time.Millisecond)
}

func TestAwaitStableWaitsForGrowthToStop(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.mp4")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))

	growFor := 10 * interval
	started := make(chan struct{})
	done := make(chan struct{})
	go func() {
		defer close(done)
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			close(started)
			return
		}
		defer f.Close()
		_, _ = f.Write([]byte("first"))
		close(started)
		deadline := time.Now().Add(growFor)
		for time.Now().Before(deadline) {
			_, _ = f.Write([]byte("more bytes"))
			time.Sleep(interval / 4)
		}
	}()

	<-started
	start := time.Now()
	result, err := stability.AwaitStable(context.Background(), path, stability.Options{PollInterval: interval, RequiredEqualReads: 2})
	require.NoError(t, err)
	assert.Equal(t, stability.Stable, result)
	assert.GreaterOrEqual(t, time.Since(start), growFor-interval)
	<-done
}

func TestAwaitStableNeverAdmitsGrowingFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "endless.mp4")
	require.NoError(t, os.WriteFile(path, []byte("a"), 0o644))

	ctx, cancel := context.WithTimeout(context.Background(), 8*interval)
	defer cancel()
	stop := make(chan struct{})
	defer close(stop)
	go func() {
		f, err := os.OpenFile(path, os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return
		}
		defer f.Close()
		for {
			select {
			case <-stop:
				return
			default:
			}
			_, _ = f.Write([]byte("x"))
			time.Sleep(interval / 5)
		}
	}()

	_, err := stability.AwaitStable(ctx, path, stability.Options{PollInterval: interval, RequiredEqualReads: 2})
	require.Error(t, err)
	assert.True(t, errors.Is(err, context.DeadlineExceeded))
}

func TestAwaitStableRetriesWhileFileMissing(t *testing.T) {
	path := filepath.Join(t.TempDir(), "late.mp4")
	go func() {
		time.Sleep(3 * interval)
		_ = os.WriteFile(path, make([]byte, 64), 0o644)
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	result, err := stability.AwaitStable(ctx, path, stability.Options{PollInterval: interval, RequiredEqualReads: 2})
	require.NoError(t, err)
	assert.Equal(t, stability.Stable, result)
}

func TestAwaitStableReportsVanished(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gone.mp4")
	ctx, cancel := context.WithTimeout(context.Background(), 3*interval)
	defer cancel()

	result, err := stability.AwaitStable(ctx, path, stability.Options{PollInterval: interval, RequiredEqualReads: 2})
	require.NoError(t, err)
	assert.Equal(t, stability.Vanished, result)
	assert.Equal(t, "vanished", result.String())
}
