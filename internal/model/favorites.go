package model

import (
	"encoding/json"
	"slices"
)

// Favorites is an immutable set of item ids. The zero value is an empty set.
// Every mutation returns a new value; existing values are never modified.
type Favorites struct {
	ids Set[string]
}

// NewFavorites builds a set from the given ids.
func NewFavorites(ids ...string) Favorites {
	return Favorites{ids: NewSet(ids...)}
}

func (f Favorites) Contains(id string) bool {
	return f.ids.Contains(id)
}

func (f Favorites) Len() int {
	return f.ids.Len()
}

// Toggle returns a copy with id added if absent, or removed if present.
func (f Favorites) Toggle(id string) Favorites {
	return Favorites{ids: f.ids.Toggle(id)}
}

// IDs returns the members in sorted order.
func (f Favorites) IDs() []string {
	out := f.ids.Items()
	slices.Sort(out)
	return out
}

func (f Favorites) MarshalJSON() ([]byte, error) {
	return json.Marshal(f.IDs())
}

func (f *Favorites) UnmarshalJSON(data []byte) error {
	var ids []string
	if err := json.Unmarshal(data, &ids); err != nil {
		return err
	}
	*f = NewFavorites(ids...)
	return nil
}
