package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"jetfeed/internal/catalog"
	"jetfeed/internal/home"
	"jetfeed/internal/interests"
	"jetfeed/internal/model"
	"jetfeed/internal/repository"
	"jetfeed/internal/server"
	"jetfeed/internal/store"
	"jetfeed/internal/worker"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

var (
	logger      *zap.Logger
	redisAddr   string
	badgerPath  string
	latency     time.Duration
	failEvery   int
	listenAddr  string
	memoryMode  bool
	fixturePath string
)

var rootCmd = &cobra.Command{
	Use:   "jetfeed",
	Short: "jetfeed - news feed state service",
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the API, the ingestion worker and the favorites mirror",
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		if err := serve(ctx); err != nil {
			logger.Fatal("Server failed", zap.Error(err))
		}
		logger.Info("Goodbye!")
	},
}

func serve(ctx context.Context) error {
	opts := []repository.Option{
		repository.WithLatency(latency),
		repository.WithFailureEvery(failEvery),
		repository.WithLogger(logger.Named("repository")),
	}

	fixture, err := loadFixture()
	if err != nil {
		return err
	}

	var (
		cat   repository.Catalog
		queue server.Queue
		st    *store.HybridStore
	)
	if memoryMode {
		cat = fixture
		logger.Info("Running in memory mode", zap.Int("items", len(fixture.Items())))
	} else {
		st, err = store.NewHybridStore(redisAddr, badgerPath)
		if err != nil {
			return err
		}
		defer st.Close()

		favs, err := st.LoadFavorites(ctx)
		if err != nil {
			return fmt.Errorf("load favorites: %w", err)
		}
		opts = append(opts, repository.WithFavorites(favs))
		cat, queue = st, st
	}

	repo := repository.New(cat, opts...)
	defer repo.Close()

	m := home.New(repo, logger.Named("home"))
	defer m.Close()
	m.Refresh()

	in := interests.New(fixture, interests.WithLogger(logger.Named("interests")))
	defer in.Close()

	srv := server.NewServer(m, repo, queue, in, logger.Named("server"))

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return srv.Start(listenAddr)
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		return srv.Stop(shutdownCtx)
	})
	if st != nil {
		w := worker.NewWorker(st, logger.Named("worker"))
		g.Go(func() error {
			w.Start(gctx)
			return nil
		})
		g.Go(func() error {
			worker.MirrorFavorites(gctx, repo.ObserveFavorites(), st, logger.Named("favorites"))
			return nil
		})
	}

	logger.Info("Server running.", zap.String("addr", listenAddr))
	return g.Wait()
}

func loadFixture() (*catalog.Fixture, error) {
	if fixturePath == "" {
		return catalog.Default(), nil
	}
	f, err := os.Open(fixturePath)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return catalog.Load(f)
}

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Load the catalog fixture into Redis and Badger",
	Run: func(cmd *cobra.Command, args []string) {
		f, err := loadFixture()
		if err != nil {
			logger.Fatal("Failed to load fixture", zap.Error(err))
		}

		st, err := store.NewHybridStore(redisAddr, badgerPath)
		if err != nil {
			logger.Fatal("Failed to init store", zap.Error(err))
		}
		defer st.Close()

		n, err := catalog.Seed(cmd.Context(), st, f)
		if err != nil {
			logger.Fatal("Failed to seed catalog", zap.Error(err))
		}
		logger.Info("Catalog seeded", zap.Int("items", n))
	},
}

var addCmd = &cobra.Command{
	Use:   "add [url]",
	Short: "Queue a URL for ingestion",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		url := args[0]

		// Redis only: passing "" keeps the Badger directory lock free for the server.
		st, err := store.NewHybridStore(redisAddr, "")
		if err != nil {
			logger.Fatal("Failed to init store", zap.Error(err))
		}
		defer st.Close()

		item := model.NewItem(url)
		if err := st.Save(cmd.Context(), &item); err != nil {
			logger.Fatal("Failed to save item", zap.Error(err))
		}

		logger.Info("Item queued",
			zap.String("id", item.ID),
			zap.String("url", url))
	},
}

var importCmd = &cobra.Command{
	Use:   "import [feed-file]",
	Short: "Queue every entry of an RSS or Atom file for ingestion",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		f, err := os.Open(args[0])
		if err != nil {
			logger.Fatal("Failed to open feed", zap.Error(err))
		}
		defer f.Close()

		items, err := catalog.ItemsFromRSS(f)
		if err != nil {
			logger.Fatal("Failed to parse feed", zap.Error(err))
		}

		st, err := store.NewHybridStore(redisAddr, "")
		if err != nil {
			logger.Fatal("Failed to init store", zap.Error(err))
		}
		defer st.Close()

		for i := range items {
			if err := st.Save(cmd.Context(), &items[i]); err != nil {
				logger.Fatal("Failed to queue item", zap.String("url", items[i].URL), zap.Error(err))
			}
		}
		logger.Info("Feed imported", zap.Int("items", len(items)))
	},
}

func main() {
	var err error
	logger, err = zap.NewDevelopment()
	if err != nil {
		panic(err)
	}
	defer logger.Sync()

	rootCmd.PersistentFlags().StringVar(&redisAddr, "redis", "localhost:6379", "Address of Redis server")
	rootCmd.PersistentFlags().StringVar(&badgerPath, "badger", "./badger-data", "Path to BadgerDB data directory")
	rootCmd.PersistentFlags().StringVar(&fixturePath, "fixture", "", "Catalog fixture YAML (default: built-in)")

	serveCmd.Flags().StringVar(&listenAddr, "addr", ":8080", "HTTP listen address")
	serveCmd.Flags().BoolVar(&memoryMode, "memory", false, "Serve the fixture from memory without Redis or Badger")
	serveCmd.Flags().DurationVar(&latency, "latency", repository.DefaultLatency, "Artificial delay for feed fetches")
	serveCmd.Flags().IntVar(&failEvery, "fail-every", repository.DefaultFailureEvery, "Fail every n-th feed fetch (0 disables)")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(seedCmd)
	rootCmd.AddCommand(addCmd)
	rootCmd.AddCommand(importCmd)

	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}
