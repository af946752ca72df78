// cmd/main.go is the application entry point.
// It wires together all layers and starts the HTTP server.
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	flag "github.com/spf13/pflag"
	"golang.org/x/sync/errgroup"

	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/broker"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/chain"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/clock"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/command"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/config"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/contract"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/database"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/handler"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/hints"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/metrics"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/notify"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/reader"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/repository"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/service"
	"github.com/Shivanand-hulikatti/event-ticketing-dapp/internal/txstatus"
)

func main() {
	var (
		envFile = flag.String("env-file", "", "dotenv file to load (default .env)")
		port    = flag.String("port", "", "HTTP port, overrides PORT")
		migrate = flag.Bool("migrate", true, "apply the database schema on startup")
	)
	flag.Parse()

	cfg, err := config.Load(*envFile)
	if err != nil {
		fmt.Fprintf(os.Stderr, "config: %v\n", err)
		os.Exit(1)
	}
	if *port != "" {
		cfg.Port = *port
	}

	logger := config.NewLogger(cfg.LogLevel)
	if err := run(cfg, *migrate, logger); err != nil {
		logger.Error("ticketd stopped", "error", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, migrate bool, logger *slog.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	metrics.Register()

	// ── 1. Connect to the chain ───────────────────────────────────────────
	parsed, err := contract.ParseABI()
	if err != nil {
		return fmt.Errorf("contract abi: %w", err)
	}
	client, err := chain.Dial(ctx, chain.Config{
		RPCURL:         cfg.RPCURL,
		ChainID:        cfg.ChainID,
		PrivateKey:     cfg.WalletPrivateKey,
		ConfirmTimeout: cfg.ConfirmTimeout,
		ABI:            parsed,
	}, logger)
	if err != nil {
		return fmt.Errorf("chain: %w", err)
	}
	defer client.Close()

	logger.Info("connected to chain",
		"rpc", cfg.RPCURL,
		"chain_id", client.ChainID().String(),
		"contract", cfg.ContractAddress.Hex(),
	)
	if wallet, ok := client.CurrentWallet(); ok {
		logger.Info("wallet connected", "address", wallet.Hex())
	} else {
		logger.Warn("no wallet configured, writes are disabled")
	}

	// ── 2. Storage ────────────────────────────────────────────────────────
	var state repository.StateStore = repository.NewMemoryStateRepository()
	feed := notify.NewFeed(notify.DefaultFeedSize)
	var source notify.Source = feed
	var storage notify.Notifier = feed
	if cfg.Database != nil {
		pool, err := database.NewPool(ctx, *cfg.Database, logger)
		if err != nil {
			return fmt.Errorf("database: %w", err)
		}
		defer pool.Close()
		if migrate {
			if err := database.Migrate(ctx, pool); err != nil {
				return fmt.Errorf("migrate: %w", err)
			}
		}
		notifications := repository.NewNotificationRepository(pool)
		state = repository.NewStateRepository(pool)
		source, storage = notifications, notifications
		logger.Info("using PostgreSQL for client state")
	} else {
		logger.Info("no database configured, client state is kept in memory")
	}

	notifiers := notify.Multi{notify.Log{Logger: logger}, storage}
	var publisher notify.Publisher
	if cfg.RabbitMQURL != "" {
		p, err := broker.NewPublisher(cfg.RabbitMQURL, logger)
		if err != nil {
			return fmt.Errorf("broker: %w", err)
		}
		defer p.Close()
		publisher = p
		notifiers = append(notifiers, notify.Publish{
			Publisher:  p,
			SuccessKey: broker.KeyTxSucceeded,
			FailureKey: broker.KeyTxFailed,
		})
	}

	// ── 3. Wire up layers ─────────────────────────────────────────────────
	clk := clock.Real()
	contractReader := contract.NewReader(client, cfg.ContractAddress)
	directory := reader.NewDirectory(contractReader, clk, logger, reader.Options{
		Concurrency: cfg.ReadConcurrency,
		ItemTimeout: cfg.ReadTimeout,
	})
	registry := txstatus.NewRegistry(client, clk, notifiers, logger, txstatus.Options{
		ReloadDelay: cfg.RefreshDelay,
		OnReload:    directory.Trigger,
	})
	defer registry.Close()

	svc := service.New(service.Deps{
		Contract:      contractReader,
		Directory:     directory,
		Issuer:        command.NewIssuer(client, cfg.ContractAddress, logger),
		Registry:      registry,
		State:         state,
		Notifications: source,
		Balance:       client,
		Session:       client,
		Logger:        logger,
	}, service.Options{
		ChainID:       client.ChainID().Int64(),
		PublicBaseURL: cfg.PublicBaseURL,
		CheckInSource: cfg.CheckInSource,
		GuardOrder:    cfg.GuardOrder,
	})
	listener := hints.NewListener(contractReader, contract.Events, directory.Trigger, publisher, logger)

	// ── 4. Start background loops and the server ──────────────────────────
	srv := &http.Server{
		Addr:         fmt.Sprintf(":%s", cfg.Port),
		Handler:      handler.NewRouter(handler.NewEventHandler(svc, logger), logger, promhttp.Handler()),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		if err := directory.Run(gctx, cfg.PollInterval); !errors.Is(err, context.Canceled) {
			return fmt.Errorf("directory: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		// Polling still keeps the directory fresh without event hints.
		if err := listener.Run(gctx); err != nil {
			logger.Warn("contract event listener stopped", "error", err)
		}
		return nil
	})
	g.Go(func() error {
		logger.Info("server listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server: %w", err)
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	logger.Info("server stopped")
	return nil
}
