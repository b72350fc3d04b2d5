package model

// Feed is the home feed: one highlighted item plus three ordered sections.
type Feed struct {
	Highlighted Item   `json:"highlighted"`
	Recommended []Item `json:"recommended"`
	Popular     []Item `json:"popular"`
	Recent      []Item `json:"recent"`
}

// AllItems returns the highlighted item followed by every section in order.
// Duplicates across sections are kept.
func (f Feed) AllItems() []Item {
	all := make([]Item, 0, 1+len(f.Recommended)+len(f.Popular)+len(f.Recent))
	all = append(all, f.Highlighted)
	all = append(all, f.Recommended...)
	all = append(all, f.Popular...)
	all = append(all, f.Recent...)
	return all
}

// Find returns the first item in AllItems order with the given id.
func (f Feed) Find(id string) (Item, bool) {
	if id == "" {
		return Item{}, false
	}
	for _, it := range f.AllItems() {
		if it.ID == id {
			return it, true
		}
	}
	return Item{}, false
}
