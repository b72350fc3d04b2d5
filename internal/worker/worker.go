package worker

import (
	"context"
	"time"

	"jetfeed/internal/model"
	"jetfeed/internal/store"

	"github.com/go-shiori/go-readability"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// Scraper defines the interface for downloading web pages.
// This allows us to mock the "Download" step in tests.
type Scraper interface {
	Scrape(url string, timeout time.Duration) (*readability.Article, error)
}

// DefaultScraper is the real implementation that uses the internet
type DefaultScraper struct{}

func (s *DefaultScraper) Scrape(url string, timeout time.Duration) (*readability.Article, error) {
	art, err := readability.FromURL(url, timeout)
	return &art, err
}

// Worker turns queued URLs into published catalog items.
type Worker struct {
	store   store.Store
	logger  *zap.Logger
	scraper Scraper
	limiter *rate.Limiter
}

// NewWorker initializes the worker with the DefaultScraper, allowing one
// scrape per second.
func NewWorker(store store.Store, logger *zap.Logger) *Worker {
	return &Worker{
		store:   store,
		logger:  logger,
		scraper: &DefaultScraper{},
		limiter: rate.NewLimiter(rate.Every(time.Second), 1),
	}
}

// Start runs the worker loop until ctx is cancelled.
func (w *Worker) Start(ctx context.Context) {
	w.logger.Info("Worker started. Waiting for jobs...")

	for {
		// Wait for job (Blocking call to Redis)
		id, err := w.store.PopQueue(ctx)
		if err != nil {
			if ctx.Err() != nil {
				w.logger.Info("Worker shutting down")
				return
			}
			w.logger.Error("Queue error", zap.Error(err))
			select {
			case <-ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		w.processJob(ctx, id)
	}
}

func (w *Worker) processJob(ctx context.Context, id string) {
	logger := w.logger.With(zap.String("job_id", id))
	logger.Info("Processing started")

	item, err := w.store.Get(ctx, id)
	if err != nil {
		logger.Error("Job failed: item not found", zap.Error(err))
		return
	}

	if err := w.limiter.Wait(ctx); err != nil {
		logger.Info("Job abandoned", zap.Error(err))
		return
	}

	// Mark the job in flight for the duration of the scrape.
	if err := w.store.UpdateStatus(ctx, id, model.StatusProcessing); err != nil {
		logger.Error("Failed to claim job", zap.Error(err))
		return
	}
	item.Status = model.StatusProcessing

	logger.Info("Downloading", zap.String("url", item.URL))
	parsed, err := w.scraper.Scrape(item.URL, 30*time.Second)
	if err != nil {
		logger.Error("Scraping failed", zap.Error(err))
		w.failJob(ctx, item, err.Error())
		return
	}

	if parsed.Title != "" {
		item.Title = parsed.Title
	}
	if parsed.Byline != "" {
		item.Author = parsed.Byline
	}
	if parsed.Excerpt != "" {
		item.Excerpt = parsed.Excerpt
	}
	item.Subtitle = parsed.SiteName
	item.Content = parsed.Content
	item.Status = model.StatusPublished
	item.ErrorMessage = ""

	if err := w.store.Save(ctx, item); err != nil {
		logger.Error("Failed to save result", zap.Error(err))
		return
	}
	if err := w.store.PushRecent(ctx, item.ID); err != nil {
		logger.Error("Failed to add to feed", zap.Error(err))
		return
	}

	logger.Info("Item published", zap.String("title", item.Title))
}

func (w *Worker) failJob(ctx context.Context, item *model.Item, msg string) {
	item.Status = model.StatusFailed
	item.ErrorMessage = msg
	if err := w.store.Save(ctx, item); err != nil {
		w.logger.Error("Failed to record failure", zap.String("job_id", item.ID), zap.Error(err))
	}
}
