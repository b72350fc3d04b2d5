// Package interests serves the selectable topics, people and publications
// and owns the user's selection of each.
//
// Selections are toggled under a single mutex and observed through
// replay-latest streams, the same way favorites are.
package interests

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"jetfeed/internal/model"
	"jetfeed/internal/result"
	"jetfeed/internal/stream"

	"go.uber.org/zap"
)

// Catalog supplies the interests dataset.
type Catalog interface {
	Interests(ctx context.Context) (model.Interests, error)
}

// Selection is a sorted snapshot of every selected interest.
type Selection struct {
	Topics       []model.TopicSelection `json:"topics"`
	People       []string               `json:"people"`
	Publications []string               `json:"publications"`
}

type Repository struct {
	catalog Catalog
	logger  *zap.Logger

	mu           sync.Mutex
	topics       *stream.Subject[model.Set[model.TopicSelection]]
	people       *stream.Subject[model.Set[string]]
	publications *stream.Subject[model.Set[string]]
}

type Option func(*Repository)

func WithLogger(l *zap.Logger) Option {
	return func(r *Repository) { r.logger = l }
}

func New(catalog Catalog, opts ...Option) *Repository {
	r := &Repository{
		catalog:      catalog,
		logger:       zap.NewNop(),
		topics:       stream.NewSubject(model.Set[model.TopicSelection]{}),
		people:       stream.NewSubject(model.Set[string]{}),
		publications: stream.NewSubject(model.Set[string]{}),
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *Repository) Topics(ctx context.Context) result.Result[[]model.InterestSection] {
	in, err := r.catalog.Interests(ctx)
	if err != nil {
		return result.Error[[]model.InterestSection](err)
	}
	return result.Success(in.Topics)
}

func (r *Repository) People(ctx context.Context) result.Result[[]string] {
	in, err := r.catalog.Interests(ctx)
	if err != nil {
		return result.Error[[]string](err)
	}
	return result.Success(in.People)
}

func (r *Repository) Publications(ctx context.Context) result.Result[[]string] {
	in, err := r.catalog.Interests(ctx)
	if err != nil {
		return result.Error[[]string](err)
	}
	return result.Success(in.Publications)
}

// ToggleTopic selects the topic if unselected and deselects it otherwise.
func (r *Repository) ToggleTopic(t model.TopicSelection) {
	next, ok := toggle(&r.mu, r.topics, t)
	r.logToggle("topic", t.Section+"/"+t.Topic, ok, next.Contains(t))
}

func (r *Repository) TogglePerson(name string) {
	next, ok := toggle(&r.mu, r.people, name)
	r.logToggle("person", name, ok, next.Contains(name))
}

func (r *Repository) TogglePublication(name string) {
	next, ok := toggle(&r.mu, r.publications, name)
	r.logToggle("publication", name, ok, next.Contains(name))
}

func toggle[K comparable](mu *sync.Mutex, s *stream.Subject[model.Set[K]], k K) (model.Set[K], bool) {
	mu.Lock()
	defer mu.Unlock()
	return s.Update(func(cur model.Set[K]) model.Set[K] {
		return cur.Toggle(k)
	})
}

func (r *Repository) logToggle(kind, name string, published, selected bool) {
	if !published {
		r.logger.Debug("Interest toggle ignored after close", zap.String("kind", kind), zap.String("name", name))
		return
	}
	r.logger.Debug("Interest toggled",
		zap.String("kind", kind),
		zap.String("name", name),
		zap.Bool("selected", selected))
}

// ObserveTopics subscribes to topic selections, current set first. Callers
// must Close the subscription.
func (r *Repository) ObserveTopics() *stream.Subscription[model.Set[model.TopicSelection]] {
	return r.topics.Subscribe()
}

func (r *Repository) ObservePeople() *stream.Subscription[model.Set[string]] {
	return r.people.Subscribe()
}

func (r *Repository) ObservePublications() *stream.Subscription[model.Set[string]] {
	return r.publications.Subscribe()
}

// Selection returns the current selections in sorted order.
func (r *Repository) Selection() Selection {
	topics := r.topics.Value().Items()
	slices.SortFunc(topics, func(a, b model.TopicSelection) int {
		return cmp.Or(cmp.Compare(a.Section, b.Section), cmp.Compare(a.Topic, b.Topic))
	})
	people := r.people.Value().Items()
	slices.Sort(people)
	pubs := r.publications.Value().Items()
	slices.Sort(pubs)

	return Selection{Topics: topics, People: people, Publications: pubs}
}

// Close releases every selection subscription.
func (r *Repository) Close() {
	r.topics.Close()
	r.people.Close()
	r.publications.Close()
}
