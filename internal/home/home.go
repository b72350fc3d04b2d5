// Package home holds the state of the home screen: the loaded feed, the
// open article, favorites, search text and pending error messages.
//
// All state lives in one immutable record. Every operation builds a new
// record and swaps it in with compare-and-swap, so concurrent callers never
// lose each other's updates and readers never need a lock.
package home

import (
	"context"
	"sync"
	"sync/atomic"

	"jetfeed/internal/model"
	"jetfeed/internal/result"
	"jetfeed/internal/stream"

	"go.uber.org/zap"
)

// Repository is what the home model needs from the content repository.
type Repository interface {
	FetchFeed(ctx context.Context) result.Result[model.Feed]
	ObserveFavorites() *stream.Subscription[model.Favorites]
	ToggleFavorite(id string)
}

type snapshot struct {
	state  viewState
	ui     UIState
	closed bool
}

type Model struct {
	repo   Repository
	logger *zap.Logger

	current  atomic.Pointer[snapshot]
	notifyMu sync.Mutex
	watchers *stream.Subject[UIState]

	ctx    context.Context
	cancel context.CancelFunc

	lifeMu    sync.Mutex
	closing   bool
	tasks     sync.WaitGroup
	collector sync.WaitGroup

	favorites *stream.Subscription[model.Favorites]
}

// New creates a Model in the loading state and subscribes to favorites.
// It does not fetch; call Refresh. Close must be called to release the
// subscription.
func New(repo Repository, logger *zap.Logger) *Model {
	initial := viewState{isLoading: true}
	ui := initial.project()
	ctx, cancel := context.WithCancel(context.Background())

	m := &Model{
		repo:     repo,
		logger:   logger,
		watchers: stream.NewSubject(ui),
		ctx:      ctx,
		cancel:   cancel,
	}
	m.current.Store(&snapshot{state: initial, ui: ui})

	m.favorites = repo.ObserveFavorites()
	m.collector.Add(1)
	go m.collectFavorites()

	return m
}

// State returns the current projection. Treat it as read-only.
func (m *Model) State() UIState {
	return m.current.Load().ui
}

// Watch subscribes to projections. The current one is delivered first;
// a slow reader skips to the newest.
func (m *Model) Watch() *stream.Subscription[UIState] {
	return m.watchers.Subscribe()
}

// Refresh marks the model as loading right away and fetches the feed in the
// background. A failure keeps the previous feed and queues a LoadFailed
// error. Overlapping refreshes are applied in completion order.
func (m *Model) Refresh() {
	if !m.update(func(s viewState) viewState {
		s.isLoading = true
		return s
	}) {
		return
	}

	m.async(func(ctx context.Context) {
		res := m.repo.FetchFeed(ctx)
		ev := model.NewErrorEvent(model.ErrorKindLoadFailed)

		applied := m.update(func(s viewState) viewState {
			s.isLoading = false
			return result.Match(res,
				func(feed model.Feed) viewState {
					s.feed = &feed
					return s
				},
				func(error) viewState {
					return s.withError(ev)
				},
			)
		})

		_, err := res.Unpack()
		switch {
		case !applied:
			m.logger.Debug("Refresh result discarded after close", zap.Error(err))
		case err != nil:
			m.logger.Warn("Refresh failed", zap.String("error_id", ev.ID), zap.Error(err))
		default:
			m.logger.Debug("Refresh complete")
		}
	})
}

// ToggleFavorite flips id in the repository. The change reaches the model
// through the favorites subscription.
func (m *Model) ToggleFavorite(id string) {
	m.async(func(context.Context) {
		m.repo.ToggleFavorite(id)
	})
}

// SelectItem opens the article pane on id.
func (m *Model) SelectItem(id string) {
	m.update(func(s viewState) viewState {
		s.selectedItemID = id
		s.isArticleOpen = true
		return s
	})
}

// CloseArticle closes the article pane. The selection is kept so that
// reopening shows the same item.
func (m *Model) CloseArticle() {
	m.update(func(s viewState) viewState {
		s.isArticleOpen = false
		return s
	})
}

// DismissError removes the error with the given id. Unknown ids are ignored.
func (m *Model) DismissError(id string) {
	m.update(func(s viewState) viewState {
		return s.withoutError(id)
	})
}

// SetSearchInput stores the search text as typed.
func (m *Model) SetSearchInput(text string) {
	m.update(func(s viewState) viewState {
		s.searchInput = text
		return s
	})
}

// Wait blocks until background operations started so far have finished.
// It must not race with calls that start new operations.
func (m *Model) Wait() {
	m.tasks.Wait()
}

// Close stops the model. In-flight refreshes are cancelled and their
// results dropped, the favorites subscription is released and watchers are
// closed. Later operations are no-ops.
func (m *Model) Close() {
	m.lifeMu.Lock()
	if m.closing {
		m.lifeMu.Unlock()
		return
	}
	m.closing = true
	m.lifeMu.Unlock()

	for {
		cur := m.current.Load()
		next := *cur
		next.closed = true
		if m.current.CompareAndSwap(cur, &next) {
			break
		}
	}

	m.cancel()
	m.favorites.Close()
	m.tasks.Wait()
	m.collector.Wait()
	m.watchers.Close()
	m.logger.Debug("Home model closed")
}

func (m *Model) collectFavorites() {
	defer m.collector.Done()
	for favs := range m.favorites.C() {
		m.update(func(s viewState) viewState {
			s.favorites = favs
			return s
		})
	}
}

// update replaces the state with fn(state). fn may run more than once and
// must not have side effects. It reports false once the model is closed.
func (m *Model) update(fn func(viewState) viewState) bool {
	for {
		cur := m.current.Load()
		if cur.closed {
			return false
		}
		next := fn(cur.state)
		snap := &snapshot{state: next, ui: next.project()}
		if m.current.CompareAndSwap(cur, snap) {
			m.publish()
			return true
		}
	}
}

// publish sends the newest projection, not the caller's, so watchers end on
// the latest state even when two updates publish out of order.
func (m *Model) publish() {
	m.notifyMu.Lock()
	defer m.notifyMu.Unlock()

	if cur := m.current.Load(); !cur.closed {
		m.watchers.Publish(cur.ui)
	}
}

func (m *Model) async(fn func(ctx context.Context)) {
	m.lifeMu.Lock()
	if m.closing {
		m.lifeMu.Unlock()
		return
	}
	m.tasks.Add(1)
	m.lifeMu.Unlock()

	go func() {
		defer m.tasks.Done()
		fn(m.ctx)
	}()
}
