// Package server exposes the home model over a small JSON API.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"time"

	"jetfeed/internal/home"
	"jetfeed/internal/interests"
	"jetfeed/internal/model"
	"jetfeed/internal/repository"
	"jetfeed/internal/result"
	"jetfeed/internal/stream"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Home is the state holder driven by the API.
type Home interface {
	State() home.UIState
	Watch() *stream.Subscription[home.UIState]
	Refresh()
	ToggleFavorite(id string)
	SelectItem(id string)
	CloseArticle()
	DismissError(id string)
	SetSearchInput(text string)
}

// Items looks up single catalog items.
type Items interface {
	FetchItem(ctx context.Context, id string) result.Result[model.Item]
}

// Queue accepts new items for ingestion.
type Queue interface {
	Save(ctx context.Context, item *model.Item) error
}

// Interests lists selectable interests and toggles the user's selection.
type Interests interface {
	Topics(ctx context.Context) result.Result[[]model.InterestSection]
	People(ctx context.Context) result.Result[[]string]
	Publications(ctx context.Context) result.Result[[]string]
	Selection() interests.Selection
	ToggleTopic(t model.TopicSelection)
	TogglePerson(name string)
	TogglePublication(name string)
}

const maxSearchBody = 4 << 10

type Server struct {
	home      Home
	items     Items
	queue     Queue
	interests Interests
	logger    *zap.Logger
	router    *mux.Router
	server    *http.Server
}

// NewServer builds the API. queue and in may be nil, in which case /add and
// the /interests routes answer 503.
func NewServer(h Home, items Items, queue Queue, in Interests, logger *zap.Logger) *Server {
	s := &Server{
		home:      h,
		items:     items,
		queue:     queue,
		interests: in,
		logger:    logger,
		router:    mux.NewRouter(),
	}
	s.routes()
	return s
}

func (s *Server) routes() {
	s.router.HandleFunc("/state", s.handleState).Methods("GET")
	s.router.HandleFunc("/state/watch", s.handleWatch).Methods("GET")
	s.router.HandleFunc("/refresh", s.handleRefresh).Methods("POST")
	s.router.HandleFunc("/favorites/{id}", s.handleToggleFavorite).Methods("POST")
	s.router.HandleFunc("/items/{id}", s.handleItem).Methods("GET")
	s.router.HandleFunc("/items/{id}/open", s.handleOpen).Methods("POST")
	s.router.HandleFunc("/article/close", s.handleClose).Methods("POST")
	s.router.HandleFunc("/errors/{id}", s.handleDismiss).Methods("DELETE")
	s.router.HandleFunc("/search", s.handleSearch).Methods("PUT")
	s.router.HandleFunc("/add", s.handleAdd).Methods("POST")
	s.router.HandleFunc("/interests", s.handleInterests).Methods("GET")
	s.router.HandleFunc("/interests/topics/{section}/{topic}", s.handleToggleTopic).Methods("POST")
	s.router.HandleFunc("/interests/people/{name}", s.handleTogglePerson).Methods("POST")
	s.router.HandleFunc("/interests/publications/{name}", s.handleTogglePublication).Methods("POST")
}

// Handler returns the router, for tests and embedding.
func (s *Server) Handler() http.Handler {
	return s.router
}

// Start launches the HTTP server
func (s *Server) Start(addr string) error {
	s.server = &http.Server{
		Addr:        addr,
		Handler:     s.router,
		ReadTimeout: 15 * time.Second,
	}

	s.logger.Info("Web server listening", zap.String("addr", addr))
	err := s.server.ListenAndServe()
	if errors.Is(err, http.ErrServerClosed) {
		return nil
	}
	return err
}

// Stop gracefully shuts down
func (s *Server) Stop(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}

type noFeedResponse struct {
	Kind string `json:"kind"`
	home.NoFeed
}

type hasFeedResponse struct {
	Kind string `json:"kind"`
	home.HasFeed
}

func stateBody(st home.UIState) interface{} {
	switch v := st.(type) {
	case home.NoFeed:
		return noFeedResponse{Kind: "no_feed", NoFeed: v}
	case home.HasFeed:
		return hasFeedResponse{Kind: "has_feed", HasFeed: v}
	default:
		panic("server: unknown UIState")
	}
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		s.logger.Error("Failed to encode response", zap.Error(err))
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	s.writeJSON(w, http.StatusOK, stateBody(s.home.State()))
}

// handleWatch streams one JSON document per line, starting with the
// current state, until the client goes away.
func (s *Server) handleWatch(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	sub := s.home.Watch()
	defer sub.Close()

	w.Header().Set("Content-Type", "application/x-ndjson")
	w.WriteHeader(http.StatusOK)
	enc := json.NewEncoder(w)

	for {
		select {
		case <-r.Context().Done():
			return
		case st, ok := <-sub.C():
			if !ok {
				return
			}
			if err := enc.Encode(stateBody(st)); err != nil {
				s.logger.Debug("Watch client gone", zap.Error(err))
				return
			}
			flusher.Flush()
		}
	}
}

func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.home.Refresh()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	s.home.ToggleFavorite(mux.Vars(r)["id"])
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleItem(w http.ResponseWriter, r *http.Request) {
	res := s.items.FetchItem(r.Context(), mux.Vars(r)["id"])
	item, err := res.Unpack()
	switch {
	case errors.Is(err, repository.ErrNotFound):
		http.NotFound(w, r)
	case err != nil:
		s.logger.Error("Failed to fetch item", zap.Error(err))
		http.Error(w, "Catalog error", http.StatusInternalServerError)
	default:
		s.writeJSON(w, http.StatusOK, item)
	}
}

func (s *Server) handleOpen(w http.ResponseWriter, r *http.Request) {
	s.home.SelectItem(mux.Vars(r)["id"])
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClose(w http.ResponseWriter, r *http.Request) {
	s.home.CloseArticle()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleDismiss(w http.ResponseWriter, r *http.Request) {
	s.home.DismissError(mux.Vars(r)["id"])
	w.WriteHeader(http.StatusNoContent)
}

type searchRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	var req searchRequest
	r.Body = http.MaxBytesReader(w, r.Body, maxSearchBody)
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			http.Error(w, "Body too large", http.StatusRequestEntityTooLarge)
			return
		}
		http.Error(w, "Invalid body", http.StatusBadRequest)
		return
	}
	s.home.SetSearchInput(req.Text)
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAdd(w http.ResponseWriter, r *http.Request) {
	if s.queue == nil {
		http.Error(w, "Ingestion disabled", http.StatusServiceUnavailable)
		return
	}

	rawURL := r.FormValue("url")
	if u, err := url.ParseRequestURI(rawURL); err != nil || u.Host == "" {
		http.Error(w, "Invalid URL", http.StatusBadRequest)
		return
	}

	item := model.NewItem(rawURL)
	if err := s.queue.Save(r.Context(), &item); err != nil {
		s.logger.Error("Failed to queue item", zap.Error(err))
		http.Error(w, "Failed to save", http.StatusInternalServerError)
		return
	}

	s.logger.Info("Item queued", zap.String("id", item.ID), zap.String("url", rawURL))
	s.writeJSON(w, http.StatusAccepted, map[string]string{"id": item.ID})
}

type interestsResponse struct {
	Topics       []model.InterestSection `json:"topics"`
	People       []string                `json:"people"`
	Publications []string                `json:"publications"`
	Selected     interests.Selection     `json:"selected"`
}

func (s *Server) handleInterests(w http.ResponseWriter, r *http.Request) {
	if s.interests == nil {
		http.Error(w, "Interests disabled", http.StatusServiceUnavailable)
		return
	}

	ctx := r.Context()
	topics, err := s.interests.Topics(ctx).Unpack()
	if err != nil {
		s.interestsFailed(w, err)
		return
	}
	people, err := s.interests.People(ctx).Unpack()
	if err != nil {
		s.interestsFailed(w, err)
		return
	}
	pubs, err := s.interests.Publications(ctx).Unpack()
	if err != nil {
		s.interestsFailed(w, err)
		return
	}

	s.writeJSON(w, http.StatusOK, interestsResponse{
		Topics:       topics,
		People:       people,
		Publications: pubs,
		Selected:     s.interests.Selection(),
	})
}

func (s *Server) interestsFailed(w http.ResponseWriter, err error) {
	s.logger.Error("Failed to load interests", zap.Error(err))
	http.Error(w, "Catalog error", http.StatusInternalServerError)
}

func (s *Server) handleToggleTopic(w http.ResponseWriter, r *http.Request) {
	if s.interests == nil {
		http.Error(w, "Interests disabled", http.StatusServiceUnavailable)
		return
	}
	vars := mux.Vars(r)
	s.interests.ToggleTopic(model.TopicSelection{Section: vars["section"], Topic: vars["topic"]})
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTogglePerson(w http.ResponseWriter, r *http.Request) {
	if s.interests == nil {
		http.Error(w, "Interests disabled", http.StatusServiceUnavailable)
		return
	}
	s.interests.TogglePerson(mux.Vars(r)["name"])
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleTogglePublication(w http.ResponseWriter, r *http.Request) {
	if s.interests == nil {
		http.Error(w, "Interests disabled", http.StatusServiceUnavailable)
		return
	}
	s.interests.TogglePublication(mux.Vars(r)["name"])
	w.WriteHeader(http.StatusNoContent)
}
