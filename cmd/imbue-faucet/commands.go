package main

import (
	"context"
	"encoding/hex"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/spf13/cobra"

	"github.com/ImbueNetwork/imbue-faucet/internal/address"
	"github.com/ImbueNetwork/imbue-faucet/internal/config"
	"github.com/ImbueNetwork/imbue-faucet/internal/faucet"
	"github.com/ImbueNetwork/imbue-faucet/internal/ledger"
	"github.com/ImbueNetwork/imbue-faucet/internal/ledger/mock"
	"github.com/ImbueNetwork/imbue-faucet/internal/ledger/substrate"
	"github.com/ImbueNetwork/imbue-faucet/internal/metrics"
	"github.com/ImbueNetwork/imbue-faucet/internal/ratelimit"
	"github.com/ImbueNetwork/imbue-faucet/internal/telegram"
	"github.com/ImbueNetwork/imbue-faucet/internal/workflow"
)

func newRootCmd() *cobra.Command {
	var envFile string
	root := &cobra.Command{
		Use:           "imbue-faucet",
		Short:         "Imbue test-token faucet and project workflow bot",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return config.LoadDotEnv(envFile)
		},
	}
	root.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before reading the environment")

	root.AddCommand(
		newServeCmd(),
		newAddressCmd(),
		newProjectCmd(),
	)
	return root
}

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the Telegram bot with the metrics and health server",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			logger := newLogger(cfg.LogLevel)

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg config.Config, logger *slog.Logger) error {
	m := metrics.New()
	gw := newGateway(cfg, logger, m)
	defer gw.Close()

	svc := faucet.New(faucet.Settings{
		FaucetName:   cfg.FaucetName,
		TokenName:    cfg.TokenName,
		Amount:       cfg.Amount,
		ScaledAmount: cfg.ScaledAmount(),
		Cooldown:     cfg.Cooldown,
		Mnemonic:     cfg.Mnemonic,
	}, faucet.Deps{
		Extractor: address.NewExtractor(faucet.CommandTokens, cfg.AddressType, nil),
		Limiter:   ratelimit.New(faucet.CooldownMessage(cfg.CooldownHours)),
		Gateway:   gw,
		Workflow:  workflow.New(cfg.ReportMissing, logger),
		Metrics:   m,
		Log:       logger,
	})

	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return fmt.Errorf("telegram: %w", err)
	}
	logger.Info("telegram bot authorized", "username", api.Self.UserName)

	bot := telegram.New(api, svc,
		telegram.WithMaxConcurrent(cfg.MaxConcurrent),
		telegram.WithLogger(logger),
	)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	httpErr := make(chan error, 1)
	go func() {
		httpErr <- m.Serve(ctx, cfg.Addr(), logger)
		cancel()
	}()

	logger.Info("faucet started",
		"faucet", cfg.FaucetName,
		"token", cfg.TokenName,
		"address_type", cfg.AddressType,
		"cooldown", cfg.Cooldown.String(),
		"dry_run", cfg.DryRun,
	)
	if err := bot.Run(ctx); err != nil {
		return err
	}
	cancel()
	if err := <-httpErr; err != nil {
		return fmt.Errorf("metrics server: %w", err)
	}
	logger.Info("faucet stopped")
	return nil
}

func newAddressCmd() *cobra.Command {
	var network int
	cmd := &cobra.Command{
		Use:   "address <ss58>",
		Short: "Validate an address and print its account id",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			addr, err := address.Decode(args[0])
			if err != nil {
				return err
			}
			if network >= 0 && int(addr.Network()) != network {
				return fmt.Errorf("%s: %w: has address type %d, want %d", args[0], address.ErrNetwork, addr.Network(), network)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "address type: %d\n", addr.Network())
			fmt.Fprintf(out, "account id:   0x%s\n", hex.EncodeToString(addr.AccountID()))
			return nil
		},
	}
	cmd.Flags().IntVar(&network, "type", -1, "required address type, -1 accepts any")
	return cmd
}

func newProjectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "project <initiator>",
		Short: "Look up the newest project created by an address",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.FromEnv()
			if err != nil {
				return err
			}
			if _, err := address.Parse(args[0], cfg.AddressType); err != nil {
				return err
			}
			logger := newLogger(cfg.LogLevel)
			gw := newGateway(cfg, logger, nil)
			defer gw.Close()

			var p *ledger.Project
			err = gw.Do(cmd.Context(), func(s *ledger.Session) error {
				var err error
				p, err = s.FindProjectByInitiator(cmd.Context(), args[0])
				return err
			})
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			if p == nil {
				fmt.Fprintf(out, "no project found for %s\n", args[0])
				return nil
			}
			fmt.Fprintf(out, "project:       %d\n", p.Key)
			fmt.Fprintf(out, "name:          %s\n", p.Name)
			fmt.Fprintf(out, "state:         %s\n", workflow.StateOf(p))
			fmt.Fprintf(out, "contributions: %d\n", len(p.Contributions))
			fmt.Fprintf(out, "milestones:    %d\n", len(p.Milestones))
			if m, ok := p.FirstMilestone(); ok {
				fmt.Fprintf(out, "milestone 0:   %s (%d%%, approved=%t)\n", m.Name, m.PercentageToUnlock, m.IsApproved)
			}
			return nil
		},
	}
}

const dialAttempts = 3

// newGateway dials the configured node, or an empty in-memory node in
// dry-run mode. A nil observer disables call metrics.
func newGateway(cfg config.Config, logger *slog.Logger, obs ledger.Observer) *ledger.Gateway {
	var d ledger.Dialer = substrate.NewDialer(cfg.NodeURL, cfg.AddressType)
	if cfg.DryRun {
		logger.Warn("dry run: using in-memory ledger, nothing is sent to the chain")
		d = mock.NewNode(0)
	}
	opts := []ledger.Option{
		ledger.WithMaxIdle(cfg.MaxIdleConns),
		ledger.WithDialRetry(dialAttempts, time.Second),
		ledger.WithLogger(logger),
	}
	if obs != nil {
		opts = append(opts, ledger.WithObserver(obs))
	}
	return ledger.NewGateway(d, opts...)
}

func newLogger(level slog.Level) *slog.Logger {
	logger := slog.New(slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger
}
