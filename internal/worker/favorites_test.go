package worker

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"jetfeed/internal/model"
	"jetfeed/internal/store"
	"jetfeed/internal/stream"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type flakyWriter struct {
	mu       sync.Mutex
	fails    int
	attempts int
	saved    []model.Favorites
}

func (f *flakyWriter) SaveFavorites(_ context.Context, favs model.Favorites) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.attempts++
	if f.fails > 0 {
		f.fails--
		return errors.New("write failed")
	}
	f.saved = append(f.saved, favs)
	return nil
}

func (f *flakyWriter) tried() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.attempts
}

func (f *flakyWriter) last() (model.Favorites, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.saved) == 0 {
		return model.Favorites{}, false
	}
	return f.saved[len(f.saved)-1], true
}

func TestMirrorFavorites_PersistsToRedis(t *testing.T) {
	mr, err := miniredis.Run()
	require.NoError(t, err)
	defer mr.Close()

	st, err := store.NewHybridStore(mr.Addr(), "")
	require.NoError(t, err)
	defer st.Close()

	subject := stream.NewSubject(model.NewFavorites("a"))
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		MirrorFavorites(ctx, subject.Subscribe(), st, zap.NewNop())
		close(done)
	}()

	subject.Update(func(f model.Favorites) model.Favorites { return f.Toggle("b") })

	require.Eventually(t, func() bool {
		favs, err := st.LoadFavorites(context.Background())
		return err == nil && favs.Len() == 2
	}, 2*time.Second, 10*time.Millisecond)

	cancel()
	<-done
	assert.Equal(t, 0, subject.Subscribers(), "subscription released on exit")
}

func TestMirrorFavorites_KeepsGoingAfterWriteError(t *testing.T) {
	subject := stream.NewSubject(model.Favorites{})
	w := &flakyWriter{fails: 1}

	done := make(chan struct{})
	go func() {
		MirrorFavorites(context.Background(), subject.Subscribe(), w, zap.NewNop())
		close(done)
	}()

	// The replayed snapshot is the write that fails.
	require.Eventually(t, func() bool { return w.tried() == 1 }, time.Second, 5*time.Millisecond)
	subject.Update(func(f model.Favorites) model.Favorites { return f.Toggle("x") })

	require.Eventually(t, func() bool {
		last, ok := w.last()
		return ok && last.Contains("x")
	}, time.Second, 5*time.Millisecond)

	subject.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("mirror did not stop when the stream closed")
	}
}
