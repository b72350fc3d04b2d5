package home

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"jetfeed/internal/catalog"
	"jetfeed/internal/model"
	"jetfeed/internal/repository"
	"jetfeed/internal/result"
	"jetfeed/internal/stream"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// fakeRepo answers feed fetches from a script and can hold them until
// released.
type fakeRepo struct {
	mu        sync.Mutex
	script    []result.Result[model.Feed]
	fallback  result.Result[model.Feed]
	gate      chan struct{}
	favorites *stream.Subject[model.Favorites]
}

func newFakeRepo(fallback result.Result[model.Feed]) *fakeRepo {
	return &fakeRepo{
		fallback:  fallback,
		favorites: stream.NewSubject(model.Favorites{}),
	}
}

func (f *fakeRepo) FetchFeed(ctx context.Context) result.Result[model.Feed] {
	if f.gate != nil {
		select {
		case <-f.gate:
		case <-ctx.Done():
			return result.Error[model.Feed](ctx.Err())
		}
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.script) == 0 {
		return f.fallback
	}
	next := f.script[0]
	f.script = f.script[1:]
	return next
}

func (f *fakeRepo) ObserveFavorites() *stream.Subscription[model.Favorites] {
	return f.favorites.Subscribe()
}

func (f *fakeRepo) ToggleFavorite(id string) {
	f.favorites.Update(func(cur model.Favorites) model.Favorites { return cur.Toggle(id) })
}

var errBackend = errors.New("backend unavailable")

func feedOf(highlighted string, recent ...string) model.Feed {
	f := model.Feed{Highlighted: model.Item{ID: highlighted, Title: highlighted}}
	for _, id := range recent {
		f.Recent = append(f.Recent, model.Item{ID: id, Title: id})
	}
	return f
}

func newModel(t *testing.T, repo Repository) *Model {
	t.Helper()
	m := New(repo, zap.NewNop())
	t.Cleanup(m.Close)
	return m
}

func newRealModel(t *testing.T, opts ...repository.Option) (*Model, *repository.Repository) {
	t.Helper()
	repo := repository.New(catalog.Default(), append([]repository.Option{repository.WithLatency(0)}, opts...)...)
	t.Cleanup(repo.Close)
	return newModel(t, repo), repo
}

func hasFeed(t *testing.T, m *Model) HasFeed {
	t.Helper()
	st, ok := m.State().(HasFeed)
	require.True(t, ok, "expected HasFeed, got %T", m.State())
	return st
}

func TestModel_InitialState(t *testing.T) {
	m, _ := newRealModel(t)

	st, ok := m.State().(NoFeed)
	require.True(t, ok, "expected NoFeed, got %T", m.State())
	assert.True(t, st.IsLoading)
	assert.Empty(t, st.Errors)
	assert.NotNil(t, st.Errors)
	assert.Equal(t, "", st.SearchInput)
}

func TestModel_RefreshLoadsFeed(t *testing.T) {
	m, _ := newRealModel(t)

	m.Refresh()
	m.Wait()

	st := hasFeed(t, m)
	assert.False(t, st.IsLoading)
	assert.Equal(t, st.Feed.Highlighted, st.SelectedItem)
	assert.Equal(t, "p1", st.SelectedItem.ID)
	assert.False(t, st.IsArticleOpen)
	assert.Empty(t, st.Errors)
}

func TestModel_RefreshSetsLoadingBeforeFetchCompletes(t *testing.T) {
	repo := newFakeRepo(result.Success(feedOf("a")))
	m := newModel(t, repo)

	m.Refresh()
	m.Wait()
	require.False(t, hasFeed(t, m).IsLoading)

	repo.gate = make(chan struct{})
	m.Refresh()

	st := hasFeed(t, m)
	assert.True(t, st.IsLoading, "loading must be visible before the fetch returns")
	assert.Equal(t, "a", st.Feed.Highlighted.ID, "old feed stays while loading")

	close(repo.gate)
	m.Wait()
	assert.False(t, hasFeed(t, m).IsLoading)
}

func TestModel_RefreshReplacesFeed(t *testing.T) {
	repo := newFakeRepo(result.Success(feedOf("b", "b1")))
	repo.script = []result.Result[model.Feed]{result.Success(feedOf("a", "a1", "a2"))}
	m := newModel(t, repo)

	m.Refresh()
	m.Wait()
	require.Len(t, hasFeed(t, m).Feed.Recent, 2)

	m.Refresh()
	m.Wait()
	st := hasFeed(t, m)
	assert.Equal(t, "b", st.Feed.Highlighted.ID)
	assert.Len(t, st.Feed.Recent, 1, "feeds are replaced, not merged")
}

func TestModel_FailedRefreshKeepsFeedAndQueuesOneError(t *testing.T) {
	m, _ := newRealModel(t, repository.WithFailureEvery(2))

	m.Refresh()
	m.Wait()
	before := hasFeed(t, m)
	require.Empty(t, before.Errors)

	m.Refresh()
	m.Wait()

	after := hasFeed(t, m)
	assert.Equal(t, before.Feed, after.Feed)
	assert.False(t, after.IsLoading)
	require.Len(t, after.Errors, 1)
	assert.Equal(t, model.ErrorKindLoadFailed, after.Errors[0].Kind)
	assert.NotEmpty(t, after.Errors[0].ID)
}

func TestModel_FailedRefreshWithoutFeed(t *testing.T) {
	m := newModel(t, newFakeRepo(result.Error[model.Feed](errBackend)))

	m.Refresh()
	m.Wait()

	st, ok := m.State().(NoFeed)
	require.True(t, ok)
	assert.False(t, st.IsLoading)
	assert.Len(t, st.Errors, 1)
}

func TestModel_ConcurrentRefreshesNeverLoseErrors(t *testing.T) {
	m := newModel(t, newFakeRepo(result.Error[model.Feed](errBackend)))

	const n = 64
	var wg sync.WaitGroup
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Refresh()
		}()
	}
	wg.Wait()
	m.Wait()

	errs := m.State().Shared().Errors
	require.Len(t, errs, n)
	seen := make(map[string]bool)
	for _, ev := range errs {
		assert.False(t, seen[ev.ID], "duplicate error id")
		seen[ev.ID] = true
	}
	assert.False(t, m.State().Shared().IsLoading)
}

func TestModel_ConcurrentMutationsKeepEveryField(t *testing.T) {
	m, _ := newRealModel(t)
	m.Refresh()
	m.Wait()

	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(3)
		go func() { defer wg.Done(); m.SelectItem("p7") }()
		go func() { defer wg.Done(); m.SetSearchInput("kotlin") }()
		go func() { defer wg.Done(); m.CloseArticle(); m.SelectItem("p7") }()
	}
	wg.Wait()

	st := hasFeed(t, m)
	assert.Equal(t, "p7", st.SelectedItem.ID)
	assert.True(t, st.IsArticleOpen)
	assert.Equal(t, "kotlin", st.SearchInput)
}

func TestModel_DismissError(t *testing.T) {
	m := newModel(t, newFakeRepo(result.Error[model.Feed](errBackend)))
	for i := 0; i < 3; i++ {
		m.Refresh()
		m.Wait()
	}
	errs := m.State().Shared().Errors
	require.Len(t, errs, 3)

	m.DismissError(errs[1].ID)
	assert.Equal(t, []model.ErrorEvent{errs[0], errs[2]}, m.State().Shared().Errors)

	m.DismissError(errs[1].ID)
	m.DismissError("unknown")
	assert.Equal(t, []model.ErrorEvent{errs[0], errs[2]}, m.State().Shared().Errors)

	assert.Len(t, errs, 3, "earlier projections are not modified")
}

func TestModel_SelectAndCloseArticle(t *testing.T) {
	m, _ := newRealModel(t)
	m.Refresh()
	m.Wait()

	m.SelectItem("p7")
	st := hasFeed(t, m)
	assert.True(t, st.IsArticleOpen)
	assert.Equal(t, "p7", st.SelectedItem.ID)

	m.CloseArticle()
	st = hasFeed(t, m)
	assert.False(t, st.IsArticleOpen)
	assert.Equal(t, "p7", st.SelectedItem.ID, "selection survives closing the article")

	m.SelectItem("not-in-feed")
	st = hasFeed(t, m)
	assert.Equal(t, st.Feed.Highlighted, st.SelectedItem)
}

func TestModel_SelectionBeforeFeedResolvesLater(t *testing.T) {
	m, _ := newRealModel(t)

	m.SelectItem("p3")
	_, ok := m.State().(NoFeed)
	require.True(t, ok)

	m.Refresh()
	m.Wait()
	st := hasFeed(t, m)
	assert.Equal(t, "p3", st.SelectedItem.ID)
	assert.True(t, st.IsArticleOpen)
}

func TestModel_SetSearchInputStoresVerbatim(t *testing.T) {
	m, _ := newRealModel(t)
	m.Refresh()
	m.Wait()
	before := hasFeed(t, m).Feed

	m.SetSearchInput("  Compose & Kotlin  ")
	st := hasFeed(t, m)
	assert.Equal(t, "  Compose & Kotlin  ", st.SearchInput)
	assert.Equal(t, before, st.Feed, "search text does not filter the feed")
}

func TestModel_ToggleFavoriteFlowsThroughSubscription(t *testing.T) {
	m, repo := newRealModel(t)
	m.Refresh()
	m.Wait()

	m.ToggleFavorite("p2")
	m.Wait()
	require.True(t, repo.Favorites().Contains("p2"))
	require.Eventually(t, func() bool {
		st, ok := m.State().(HasFeed)
		return ok && st.Favorites.Contains("p2")
	}, time.Second, 5*time.Millisecond)

	m.ToggleFavorite("p2")
	m.Wait()
	require.Eventually(t, func() bool {
		st, ok := m.State().(HasFeed)
		return ok && !st.Favorites.Contains("p2")
	}, time.Second, 5*time.Millisecond)
}

func TestModel_FavoritesChangedElsewhereAreMerged(t *testing.T) {
	m, repo := newRealModel(t)

	repo.ToggleFavorite("p9")
	require.Eventually(t, func() bool {
		return m.current.Load().state.favorites.Contains("p9")
	}, time.Second, 5*time.Millisecond)

	m.Refresh()
	m.Wait()
	assert.True(t, hasFeed(t, m).Favorites.Contains("p9"))
}

func TestModel_ConcurrentTogglesSettle(t *testing.T) {
	m, repo := newRealModel(t)

	const n = 11
	for i := 0; i < n; i++ {
		m.ToggleFavorite("x")
	}
	m.Wait()

	assert.True(t, repo.Favorites().Contains("x"), "odd number of toggles")
	require.Eventually(t, func() bool {
		return m.current.Load().state.favorites.Contains("x")
	}, time.Second, 5*time.Millisecond)
}

func TestModel_Watch(t *testing.T) {
	m, _ := newRealModel(t)

	sub := m.Watch()
	defer sub.Close()

	first := <-sub.C()
	_, ok := first.(NoFeed)
	require.True(t, ok)

	m.Refresh()
	m.Wait()

	deadline := time.After(time.Second)
	for {
		select {
		case st := <-sub.C():
			if hf, ok := st.(HasFeed); ok && !hf.IsLoading {
				return
			}
		case <-deadline:
			t.Fatal("never observed the loaded feed")
		}
	}
}

func TestModel_CloseDropsInFlightRefresh(t *testing.T) {
	repo := newFakeRepo(result.Error[model.Feed](errBackend))
	repo.gate = make(chan struct{})
	m := New(repo, zap.NewNop())

	m.Refresh()
	m.Close()

	st, ok := m.State().(NoFeed)
	require.True(t, ok)
	assert.True(t, st.IsLoading)
	assert.Empty(t, st.Errors, "cancelled refresh must not write after close")
	assert.Equal(t, 0, repo.favorites.Subscribers(), "favorites subscription released")
}

func TestModel_OperationsAfterCloseAreNoOps(t *testing.T) {
	repo := newFakeRepo(result.Success(feedOf("a")))
	m := New(repo, zap.NewNop())
	sub := m.Watch()
	<-sub.C()

	m.Close()
	m.Close()

	m.Refresh()
	m.SelectItem("a")
	m.SetSearchInput("x")
	m.ToggleFavorite("a")
	m.Wait()

	st, ok := m.State().(NoFeed)
	require.True(t, ok)
	assert.Equal(t, "", st.SearchInput)
	assert.False(t, repo.favorites.Value().Contains("a"))

	_, open := <-sub.C()
	assert.False(t, open, "watchers are closed")
}
