// Package catalog supplies the fixed content catalog: a YAML fixture loaded
// into memory, seeding helpers for the Redis/Badger store and RSS import.
package catalog

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"io"
	"slices"

	"jetfeed/internal/model"
	"jetfeed/internal/store"

	"gopkg.in/yaml.v3"
)

var ErrInvalidFixture = errors.New("invalid fixture")

//go:embed fixture.yaml
var defaultFixture []byte

type fixtureFile struct {
	Items []model.Item `yaml:"items"`
	Feed  struct {
		Highlighted string   `yaml:"highlighted"`
		Recommended []string `yaml:"recommended"`
		Popular     []string `yaml:"popular"`
		Recent      []string `yaml:"recent"`
	} `yaml:"feed"`
	Interests model.Interests `yaml:"interests"`
}

// Fixture is an immutable in-memory catalog.
type Fixture struct {
	items     map[string]model.Item
	order     []string
	layout    store.Layout
	interests model.Interests
}

// Default returns the fixture compiled into the binary.
func Default() *Fixture {
	f, err := Load(bytes.NewReader(defaultFixture))
	if err != nil {
		panic(fmt.Sprintf("catalog: embedded fixture: %v", err))
	}
	return f
}

// Load parses and validates a YAML fixture.
func Load(r io.Reader) (*Fixture, error) {
	var file fixtureFile
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&file); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidFixture, err)
	}

	f := &Fixture{
		items:     make(map[string]model.Item, len(file.Items)),
		interests: file.Interests,
		layout: store.Layout{
			Highlighted: file.Feed.Highlighted,
			Recommended: file.Feed.Recommended,
			Popular:     file.Feed.Popular,
			Recent:      file.Feed.Recent,
		},
	}
	for _, it := range file.Items {
		if it.ID == "" {
			return nil, fmt.Errorf("%w: item %q has no id", ErrInvalidFixture, it.Title)
		}
		if _, dup := f.items[it.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate id %q", ErrInvalidFixture, it.ID)
		}
		it.Status = model.StatusPublished
		f.items[it.ID] = it
		f.order = append(f.order, it.ID)
	}

	if f.layout.Highlighted == "" {
		return nil, fmt.Errorf("%w: feed has no highlighted item", ErrInvalidFixture)
	}
	for _, id := range f.layoutIDs() {
		if _, ok := f.items[id]; !ok {
			return nil, fmt.Errorf("%w: feed references unknown id %q", ErrInvalidFixture, id)
		}
	}

	sections := make(map[string]struct{}, len(file.Interests.Topics))
	for _, sec := range file.Interests.Topics {
		if sec.Title == "" {
			return nil, fmt.Errorf("%w: interest section has no title", ErrInvalidFixture)
		}
		if _, dup := sections[sec.Title]; dup {
			return nil, fmt.Errorf("%w: duplicate interest section %q", ErrInvalidFixture, sec.Title)
		}
		sections[sec.Title] = struct{}{}
	}
	return f, nil
}

func (f *Fixture) layoutIDs() []string {
	ids := []string{f.layout.Highlighted}
	ids = append(ids, f.layout.Recommended...)
	ids = append(ids, f.layout.Popular...)
	ids = append(ids, f.layout.Recent...)
	return ids
}

// ByID returns store.ErrNotFound for unknown ids.
func (f *Fixture) ByID(_ context.Context, id string) (model.Item, error) {
	it, ok := f.items[id]
	if !ok {
		return model.Item{}, store.ErrNotFound
	}
	return it, nil
}

// Feed builds the feed from the fixture layout. A new Feed value with fresh
// slices is returned on every call.
func (f *Fixture) Feed(_ context.Context) (model.Feed, error) {
	return model.Feed{
		Highlighted: f.items[f.layout.Highlighted],
		Recommended: f.resolve(f.layout.Recommended),
		Popular:     f.resolve(f.layout.Popular),
		Recent:      f.resolve(f.layout.Recent),
	}, nil
}

func (f *Fixture) resolve(ids []string) []model.Item {
	out := make([]model.Item, 0, len(ids))
	for _, id := range ids {
		out = append(out, f.items[id])
	}
	return out
}

// Items returns every item in file order.
func (f *Fixture) Items() []model.Item {
	out := make([]model.Item, 0, len(f.order))
	for _, id := range f.order {
		out = append(out, f.items[id])
	}
	return out
}

func (f *Fixture) Layout() store.Layout {
	return f.layout
}

// Interests returns a copy of the selectable topics, people and
// publications.
func (f *Fixture) Interests(_ context.Context) (model.Interests, error) {
	topics := make([]model.InterestSection, 0, len(f.interests.Topics))
	for _, sec := range f.interests.Topics {
		topics = append(topics, model.InterestSection{
			Title:     sec.Title,
			Interests: slices.Clone(sec.Interests),
		})
	}
	return model.Interests{
		Topics:       topics,
		People:       slices.Clone(f.interests.People),
		Publications: slices.Clone(f.interests.Publications),
	}, nil
}
