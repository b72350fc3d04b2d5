package home

import (
	"slices"

	"jetfeed/internal/model"
)

// UIState is the read-only projection consumed by the presentation layer.
// It is either NoFeed or HasFeed; switch on the concrete type.
type UIState interface {
	Shared() Common
	uiState()
}

// Common holds the fields present in every UIState.
type Common struct {
	IsLoading   bool               `json:"is_loading"`
	Errors      []model.ErrorEvent `json:"errors"`
	SearchInput string             `json:"search_input"`
}

// NoFeed is shown until a feed has been loaded once.
type NoFeed struct {
	Common
}

// HasFeed carries the loaded feed and the item to show in the article pane.
type HasFeed struct {
	Common
	Feed          model.Feed      `json:"feed"`
	SelectedItem  model.Item      `json:"selected_item"`
	IsArticleOpen bool            `json:"is_article_open"`
	Favorites     model.Favorites `json:"favorites"`
}

func (c Common) Shared() Common { return c }

func (NoFeed) uiState()  {}
func (HasFeed) uiState() {}

// viewState is the single internal record. A value is never modified after
// it has been stored; updates build a new one.
type viewState struct {
	feed           *model.Feed
	selectedItemID string
	isArticleOpen  bool
	favorites      model.Favorites
	isLoading      bool
	errors         []model.ErrorEvent
	searchInput    string
}

func (s viewState) withError(ev model.ErrorEvent) viewState {
	errs := make([]model.ErrorEvent, 0, len(s.errors)+1)
	errs = append(errs, s.errors...)
	s.errors = append(errs, ev)
	return s
}

func (s viewState) withoutError(id string) viewState {
	idx := slices.IndexFunc(s.errors, func(ev model.ErrorEvent) bool { return ev.ID == id })
	if idx < 0 {
		return s
	}
	s.errors = slices.Delete(slices.Clone(s.errors), idx, idx+1)
	return s
}

// project derives the UIState. The selected item falls back to the
// highlighted one when the selected id is unset or not in the feed.
func (s viewState) project() UIState {
	common := Common{
		IsLoading:   s.isLoading,
		Errors:      s.errors,
		SearchInput: s.searchInput,
	}
	if common.Errors == nil {
		common.Errors = []model.ErrorEvent{}
	}
	if s.feed == nil {
		return NoFeed{Common: common}
	}

	selected, ok := s.feed.Find(s.selectedItemID)
	if !ok {
		selected = s.feed.Highlighted
	}
	return HasFeed{
		Common:        common,
		Feed:          *s.feed,
		SelectedItem:  selected,
		IsArticleOpen: s.isArticleOpen,
		Favorites:     s.favorites,
	}
}
