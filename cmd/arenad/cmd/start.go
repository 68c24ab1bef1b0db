package cmd

import (
	"context"
	"crypto/ed25519"
	"encoding/hex"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"cosmossdk.io/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/tmdry4530/Phantom-Arena-sub000/internal/advisor"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/api"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/betting"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/challenge"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/config"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/jobs"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/ledger"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/maze"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/replay"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/session"
	"github.com/tmdry4530/Phantom-Arena-sub000/internal/tournament"
)

const drainTimeout = 10 * time.Second

func newStartCmd() *cobra.Command {
	var cfgPath string
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Run the arena daemon",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load(cfgPath)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cfg)
		},
	}
	cmd.Flags().StringVar(&cfgPath, "config", "", "path to arenad.yaml (empty searches ., ~/.arena, /etc/arena)")
	return cmd
}

func run(ctx context.Context, cfg config.Config) error {
	filter, err := log.ParseLogLevel(cfg.Log.Level)
	if err != nil {
		return fmt.Errorf("log level: %w", err)
	}
	logger := log.NewLogger(os.Stderr, log.FilterOption(filter))
	logger.Info("arenad starting", "version", Version, "addr", cfg.Server.Addr)

	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	led, err := buildLedger(logger, cfg.Ledger)
	if err != nil {
		return err
	}

	var (
		store   replay.Store
		archive *replay.Archive
	)
	if cfg.Replay.PostgresDSN != "" {
		archive, err = replay.NewArchive(ctx, cfg.Replay.PostgresDSN, logger)
		if err != nil {
			return fmt.Errorf("replay archive: %w", err)
		}
		store = archive
	} else {
		logger.Info("replays kept in process memory, set replay.postgres_dsn to archive them")
		store = replay.NewMemStore()
	}

	srv := api.New(logger)
	hub := srv.Hub()
	boards := maze.NewCache()

	mgr := session.NewManager(session.Options{
		Logger:     logger,
		Bus:        hub,
		Boards:     boards,
		Advisor:    advisor.NewHeuristic(),
		TickPeriod: cfg.Session.TickPeriod(),
	})

	backoff := ledger.Backoff{
		Attempts: cfg.Ledger.Retry.Attempts,
		Base:     cfg.Ledger.Retry.Base,
		Cap:      cfg.Ledger.Retry.Cap,
	}
	bets := betting.NewOrchestrator(betting.Options{
		Logger:       logger,
		Bus:          hub,
		Ledger:       led,
		OddsInterval: cfg.Betting.OddsInterval,
		Backoff:      backoff,
	})

	runner := jobs.NewDuelRunner(logger, boards, store)
	pool := jobs.NewPool(logger, runner, jobs.Config{
		Workers:   cfg.Jobs.Workers,
		QueueSize: cfg.Jobs.QueueSize,
	})

	tournaments := tournament.NewController(tournament.Options{
		Logger:        logger,
		Bus:           hub,
		Ledger:        led,
		Betting:       bets,
		Queue:         pool,
		BettingWindow: cfg.Tournament.BettingWindow,
		RoundTimeout:  cfg.Tournament.RoundTimeout,
		Backoff:       backoff,
	})

	challenges := challenge.NewController(challenge.Options{
		Logger:         logger,
		Bus:            hub,
		Sessions:       mgr,
		Betting:        bets,
		Auth:           srv.Auth(),
		MaxConcurrent:  cfg.Challenge.MaxConcurrent,
		ConnectTimeout: cfg.Challenge.ConnectTimeout,
		GameTimeout:    cfg.Challenge.GameTimeout,
		ReconnectGrace: cfg.Challenge.ReconnectGrace,
		Countdown:      cfg.Challenge.Countdown,
		BettingWindow:  cfg.Challenge.BettingWindow,
	})

	srv.Bind(mgr, tournaments, challenges, bets)

	httpSrv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           srv.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("http listening", "addr", cfg.Server.Addr)
		if err := httpSrv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-ctx.Done()
		logger.Info("draining")

		shutCtx, cancel := context.WithTimeout(context.Background(), drainTimeout)
		defer cancel()
		err := httpSrv.Shutdown(shutCtx)

		challenges.Shutdown()
		tournaments.Shutdown()
		pool.Stop()
		bets.Shutdown()
		mgr.Shutdown()
		if archive != nil {
			archive.Close()
		}
		return err
	})

	err = g.Wait()
	logger.Info("arenad stopped")
	return err
}

func buildLedger(logger log.Logger, cfg config.Ledger) (ledger.Ledger, error) {
	if cfg.Endpoint == "memory" {
		logger.Info("using the in-process ledger, results will not reach a chain")
		return ledger.NewMemory(), nil
	}
	priv, err := loadSigningKey(cfg.KeyFile)
	if err != nil {
		return nil, err
	}
	return ledger.NewClient(logger, cfg.Endpoint, cfg.Signer, priv)
}

// loadSigningKey reads a hex-encoded ed25519 seed or full private key.
func loadSigningKey(path string) (ed25519.PrivateKey, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read signing key: %w", err)
	}
	decoded, err := hex.DecodeString(strings.TrimSpace(string(raw)))
	if err != nil {
		return nil, fmt.Errorf("decode signing key: %w", err)
	}
	switch len(decoded) {
	case ed25519.SeedSize:
		return ed25519.NewKeyFromSeed(decoded), nil
	case ed25519.PrivateKeySize:
		return ed25519.PrivateKey(decoded), nil
	default:
		return nil, fmt.Errorf("signing key must decode to %d or %d bytes, got %d",
			ed25519.SeedSize, ed25519.PrivateKeySize, len(decoded))
	}
}
