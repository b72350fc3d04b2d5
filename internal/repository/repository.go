// Package repository serves the content feed and owns the favorites set.
//
// Feed fetches are slowed down and fail periodically to emulate an
// unreliable backend. Favorites are toggled under a mutex and observed
// through a replay-latest stream.
package repository

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"time"

	"jetfeed/internal/model"
	"jetfeed/internal/result"
	"jetfeed/internal/store"
	"jetfeed/internal/stream"

	"go.uber.org/zap"
)

var (
	ErrNotFound  = errors.New("item not found")
	ErrTransient = errors.New("transient feed failure")
)

const (
	DefaultLatency      = 800 * time.Millisecond
	DefaultFailureEvery = 5
)

// Catalog is the fixed dataset the repository reads from. ByID returns
// store.ErrNotFound for unknown ids.
type Catalog interface {
	ByID(ctx context.Context, id string) (model.Item, error)
	Feed(ctx context.Context) (model.Feed, error)
}

type Repository struct {
	catalog      Catalog
	logger       *zap.Logger
	latency      time.Duration
	failureEvery int64

	requests atomic.Int64

	mu        sync.Mutex
	favorites *stream.Subject[model.Favorites]
}

type Option func(*Repository)

// WithLatency sets the artificial delay applied to every feed fetch.
func WithLatency(d time.Duration) Option {
	return func(r *Repository) { r.latency = d }
}

// WithFailureEvery makes every n-th feed fetch fail. n <= 0 disables
// failure injection.
func WithFailureEvery(n int) Option {
	return func(r *Repository) { r.failureEvery = int64(n) }
}

// WithFavorites sets the initial favorites, e.g. a persisted snapshot.
func WithFavorites(f model.Favorites) Option {
	return func(r *Repository) { r.favorites = stream.NewSubject(f) }
}

func WithLogger(l *zap.Logger) Option {
	return func(r *Repository) { r.logger = l }
}

func New(catalog Catalog, opts ...Option) *Repository {
	r := &Repository{
		catalog:      catalog,
		logger:       zap.NewNop(),
		latency:      DefaultLatency,
		failureEvery: DefaultFailureEvery,
		favorites:    stream.NewSubject(model.Favorites{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// FetchItem looks up a single item. An empty id counts as absent.
func (r *Repository) FetchItem(ctx context.Context, id string) result.Result[model.Item] {
	if id == "" {
		return result.Error[model.Item](ErrNotFound)
	}
	item, err := r.catalog.ByID(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return result.Error[model.Item](ErrNotFound)
	} else if err != nil {
		return result.Error[model.Item](err)
	}
	return result.Success(item)
}

// FetchFeed waits for the configured latency and then either fails with
// ErrTransient or returns the catalog feed. Calls are numbered from 1 in
// the order they enter FetchFeed, across the repository's lifetime.
func (r *Repository) FetchFeed(ctx context.Context) result.Result[model.Feed] {
	n := r.requests.Add(1)
	logger := r.logger.With(zap.Int64("request", n))

	if r.latency > 0 {
		timer := time.NewTimer(r.latency)
		defer timer.Stop()
		select {
		case <-timer.C:
		case <-ctx.Done():
			logger.Debug("Feed fetch cancelled", zap.Error(ctx.Err()))
			return result.Error[model.Feed](ctx.Err())
		}
	}

	if r.failureEvery > 0 && n%r.failureEvery == 0 {
		logger.Warn("Injected feed failure")
		return result.Error[model.Feed](ErrTransient)
	}

	feed, err := r.catalog.Feed(ctx)
	if err != nil {
		logger.Error("Catalog feed failed", zap.Error(err))
		return result.Error[model.Feed](err)
	}
	logger.Debug("Feed fetched", zap.Int("items", len(feed.AllItems())))
	return result.Success(feed)
}

// ObserveFavorites subscribes to favorites snapshots. The current set is
// delivered first. Callers must Close the subscription.
func (r *Repository) ObserveFavorites() *stream.Subscription[model.Favorites] {
	return r.favorites.Subscribe()
}

// Favorites returns the current snapshot.
func (r *Repository) Favorites() model.Favorites {
	return r.favorites.Value()
}

// ToggleFavorite adds id to the favorites if absent and removes it if
// present, then publishes the new snapshot. Toggles are serialized so that
// concurrent flips of the same id never read the same prior state.
func (r *Repository) ToggleFavorite(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	next, ok := r.favorites.Update(func(cur model.Favorites) model.Favorites {
		return cur.Toggle(id)
	})
	if !ok {
		r.logger.Debug("Favorite toggle ignored after close", zap.String("id", id))
		return
	}
	r.logger.Debug("Favorite toggled",
		zap.String("id", id),
		zap.Bool("favorite", next.Contains(id)),
		zap.Int("total", next.Len()))
}

// Close releases every favorites subscription.
func (r *Repository) Close() {
	r.favorites.Close()
}
