package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/samber/lo"
	"github.com/sonroyaalmerol/feedplay/internal/cache"
	"github.com/sonroyaalmerol/feedplay/internal/config"
	"github.com/sonroyaalmerol/feedplay/internal/engine"
	"github.com/sonroyaalmerol/feedplay/internal/handlers"
	"github.com/sonroyaalmerol/feedplay/internal/player"
	"github.com/sonroyaalmerol/feedplay/internal/progress"
	"github.com/sonroyaalmerol/feedplay/internal/repository"
	"github.com/sonroyaalmerol/feedplay/internal/stream"
	"github.com/sonroyaalmerol/feedplay/internal/ui"
	"github.com/spf13/cobra"
)

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("data-dir", "", "directory for the database, progress file and feedplay.toml")
	pf.String("log-level", "", "debug, info, warn or error")
	rootCmd.Flags().String("progress-backend", "", "where positions are saved: sqlite or file")
	rootCmd.Flags().Bool("resolve-enabled", true, "resolve page URLs through yt-dlp")

	rootCmd.AddCommand(historyCmd)
}

var rootCmd = &cobra.Command{
	Use:          "feedplay SOURCE [SOURCE...]",
	Short:        "Scroll a list of videos where only one row plays at a time",
	Args:         cobra.MinimumNArgs(1),
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := setup(cmd)
		if err != nil {
			return err
		}

		db, err := repository.OpenDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()
		repo := repository.NewRepo(db)

		var (
			store   player.ProgressStore = repo
			history handlers.History     = repo
		)
		if cfg.ProgressBackend == config.BackendFile {
			store = progress.NewFileStore(cfg.ProgressFile)
			history = nil
		}

		resolver := stream.NewResolver(cfg, cache.NewURLCache(cfg, repo))
		eng := engine.New(cfg, func(ctx context.Context, url string) (engine.Decoder, error) {
			return stream.OpenVideo(ctx, url)
		}, resolver)

		ctx, cancel := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		// the looper outlives the signal so the feed can release playback
		loopCtx, stopLoop := context.WithCancel(context.WithoutCancel(ctx))
		defer stopLoop()
		loop := player.NewLooper(0)
		go loop.Run(loopCtx)

		coord := player.NewCoordinator(eng, store, handlers.NewTerminalHost(), loop)
		sources := lo.Map(args, func(a string, _ int) player.Source { return player.Source(a) })

		slog.Info("feed ready", "rows", len(sources), "progress", cfg.ProgressBackend, "data", cfg.DataDir)
		return handlers.NewFeed(coord, loop, store, history, sources, cmd.OutOrStdout()).Run(ctx, cmd.InOrStdin())
	},
}

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List saved playback positions",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, _ []string) error {
		cfg, err := setup(cmd)
		if err != nil {
			return err
		}
		db, err := repository.OpenDB(cfg)
		if err != nil {
			return err
		}
		defer db.Close()

		entries, err := repository.NewRepo(db).ListProgress(cmd.Context())
		if err != nil {
			return err
		}
		for _, p := range entries {
			fmt.Fprintln(cmd.OutOrStdout(), ui.HistoryLine(p.Source, p.Position, p.UpdatedAt))
		}
		return nil
	},
}

func setup(cmd *cobra.Command) (*config.Config, error) {
	cfg, err := config.LoadConfigFrom(cmd.Flags())
	if err != nil {
		return nil, err
	}
	lvl, _ := cfg.SlogLevel()
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl})))
	return cfg, nil
}
