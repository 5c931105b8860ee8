// Command corpusqa serves question answering over a loaded email and
// document corpus, or answers a single question from the command line.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/rgale/corpusqa/internal/chunk"
	"github.com/rgale/corpusqa/internal/config"
	"github.com/rgale/corpusqa/internal/corpus"
	"github.com/rgale/corpusqa/internal/index"
	"github.com/rgale/corpusqa/internal/llm"
	"github.com/rgale/corpusqa/internal/logging"
	"github.com/rgale/corpusqa/internal/query"
	"github.com/rgale/corpusqa/internal/server"
	"github.com/rgale/corpusqa/internal/tracing"
)

func main() {
	var configPath string

	rootCmd := &cobra.Command{
		Use:   "corpusqa",
		Short: "Question answering over an email and document corpus",
	}
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")

	var listen, dir, strategy string

	serveCmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			if listen != "" {
				cfg.Server.Listen = listen
			}
			if dir != "" {
				cfg.Corpus.Dir = dir
			}
			if strategy != "" {
				cfg.Query.Strategy = strategy
				if err := cfg.Validate(); err != nil {
					return err
				}
			}
			return runServe(cmd.Context(), cfg)
		},
	}
	serveCmd.Flags().StringVar(&listen, "listen", "", "listen address (overrides config)")
	serveCmd.Flags().StringVar(&dir, "dir", "", "corpus directory to load at startup (overrides config)")
	serveCmd.Flags().StringVar(&strategy, "strategy", "", "answering strategy: mapreduce or select (overrides config)")

	askCmd := &cobra.Command{
		Use:   "ask <corpus-dir> <question>",
		Short: "Load a corpus directory and answer one question",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return err
			}
			return runAsk(cmd.Context(), cfg, args[0], args[1])
		},
	}

	rootCmd.AddCommand(serveCmd, askCmd)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*config.Config, error) {
	if path != "" {
		return config.LoadFromFile(path)
	}
	return config.Load()
}

// components holds everything both commands need wired.
type components struct {
	log      *slog.Logger
	store    *corpus.Store
	loader   *corpus.Loader
	strategy query.Strategy
}

func wire(ctx context.Context, cfg *config.Config) (*components, error) {
	log := logging.NewWithLevel(cfg.Logging.Level)
	slog.SetDefault(log)

	gateway, err := llm.New(ctx, cfg.Model.Region, llm.Config{
		ModelID:   cfg.Model.ID,
		MaxTokens: cfg.Model.MaxTokens,
		Timeout:   cfg.ModelTimeout(),
	})
	if err != nil {
		return nil, err
	}
	retrier := llm.NewRetrier(gateway).WithPolicy(cfg.Model.MaxAttempts, cfg.BaseDelay())

	var strategy query.Strategy
	switch cfg.Query.Strategy {
	case "select":
		selector := index.NewSelector(retrier)
		selector.MaxSelect = cfg.Query.MaxSelect
		selector.FallbackK = cfg.Query.FallbackK
		selector.ContextBudget = cfg.Query.ContextBudget
		s := query.NewSelectThenAnswer(retrier, selector, log)
		s.ContextBudget = cfg.Query.ContextBudget
		strategy = s
	default:
		strategy = query.NewMapReduce(retrier, log, chunk.Options{
			Budget:  cfg.Query.ChunkBudget,
			Compact: cfg.Query.Compact,
		}, cfg.Pause())
	}

	loader := corpus.NewLoader(log)
	if cfg.Corpus.Parallelism > 0 {
		loader.Parallelism = cfg.Corpus.Parallelism
	}

	return &components{
		log:      log,
		store:    corpus.NewStore(),
		loader:   loader,
		strategy: strategy,
	}, nil
}

func runServe(ctx context.Context, cfg *config.Config) error {
	c, err := wire(ctx, cfg)
	if err != nil {
		return err
	}

	shutdown, err := tracing.Init(ctx, "corpusqa")
	if err != nil {
		c.log.Warn("tracing disabled", "error", err)
	} else {
		defer shutdown(context.Background())
	}

	if cfg.Corpus.Dir != "" {
		snap, err := c.loader.LoadDir(ctx, cfg.Corpus.Dir)
		if err != nil {
			return fmt.Errorf("load corpus %s: %w", cfg.Corpus.Dir, err)
		}
		c.store.Replace(snap)
	}

	srv := server.New(c.log, c.store, c.loader, c.strategy)
	return srv.ListenAndServe(ctx, cfg.Server.Listen)
}

func runAsk(ctx context.Context, cfg *config.Config, dir, question string) error {
	c, err := wire(ctx, cfg)
	if err != nil {
		return err
	}

	snap, err := c.loader.LoadDir(ctx, dir)
	if err != nil {
		return fmt.Errorf("load corpus %s: %w", dir, err)
	}
	if snap.Empty() {
		return fmt.Errorf("no readable records in %s", dir)
	}

	res, err := c.strategy.Answer(ctx, snap, question)
	if err != nil {
		return err
	}

	fmt.Println(res.Answer)
	if len(res.Sources) > 0 {
		fmt.Println()
		fmt.Println("Sources:")
		for _, f := range res.Sources {
			fmt.Println("  " + f)
		}
	}
	if res.Partial {
		fmt.Fprintln(os.Stderr, "note: some corpus batches were skipped due to rate limiting")
	}
	return nil
}
