package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/zulandar/switchboard/internal/api"
	"github.com/zulandar/switchboard/internal/calllog"
	"github.com/zulandar/switchboard/internal/config"
	"github.com/zulandar/switchboard/internal/db"
	"github.com/zulandar/switchboard/internal/intake"
	"github.com/zulandar/switchboard/internal/supervisor"
	"github.com/zulandar/switchboard/internal/telegraph"
	discordadapter "github.com/zulandar/switchboard/internal/telegraph/discord"
	slackadapter "github.com/zulandar/switchboard/internal/telegraph/slack"
)

func newServeCmd() *cobra.Command {
	var (
		configPath string
		port       int
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the intake engine and its HTTP API",
		Long: `Starts the intake engine, the HTTP API the voice agent drives, and the
supervisor that ticks live calls, purges finished sessions, and posts the
pending-callback digest. Transfers and callbacks are announced on the
configured chat platform.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe(cmd, configPath, port)
		},
	}

	cmd.Flags().StringVarP(&configPath, "config", "c", defaultConfigPath, "path to Switchboard config file")
	cmd.Flags().IntVarP(&port, "port", "p", 0, "port to listen on (overrides api.port)")
	return cmd
}

func runServe(cmd *cobra.Command, configPath string, port int) error {
	out := cmd.OutOrStdout()

	cfg, gormDB, err := connectFromConfig(configPath)
	if err != nil {
		return err
	}
	if err := migrateAndSeed(cmd, gormDB, cfg); err != nil {
		return err
	}
	if port > 0 {
		cfg.API.Port = port
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		fmt.Fprintf(out, "\nReceived %s, shutting down...\n", sig)
		cancel()
	}()

	// The engine accepts what "db init" seeded, so a retired type stays retired.
	engineCfg := cfg.EngineConfig()
	leadTypes, err := db.ActiveLeadTypes(gormDB)
	if err != nil {
		return err
	}
	if len(leadTypes) > 0 {
		engineCfg.LeadTypes = leadTypes
	}
	fmt.Fprintf(out, "Accepting %d lead types\n", len(engineCfg.LeadTypes))

	store := calllog.NewStore(gormDB, cfg.Intake.LeadTypes)

	adapter, err := createAdapter(cfg)
	if err != nil {
		return err
	}
	if adapter != nil {
		if err := adapter.Connect(ctx); err != nil {
			return err
		}
		defer adapter.Close()
		fmt.Fprintf(out, "Telegraph connected to %s\n", cfg.Telegraph.Platform)
	} else {
		fmt.Fprintln(out, "Telegraph: no platform configured, escalations are logged only")
	}

	notifier, err := telegraph.NewNotifier(telegraph.NotifierOpts{
		Adapter:   adapter,
		Store:     store,
		ChannelID: cfg.Telegraph.ChannelID,
	})
	if err != nil {
		return err
	}

	engine, err := intake.NewEngine(intake.EngineOpts{
		Config:     engineCfg,
		Persister:  store,
		Transferer: notifier,
	})
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, closeCancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer closeCancel()
		if err := engine.Close(closeCtx); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
		}
	}()

	sup, err := supervisor.New(supervisor.Opts{
		Engine:    engine,
		Digester:  notifier,
		Schedules: cfg.Supervisor,
		Retention: cfg.Intake.SessionRetention,
		Out:       out,
	})
	if err != nil {
		return err
	}

	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := sup.Run(ctx); err != nil {
			fmt.Fprintf(cmd.ErrOrStderr(), "Warning: %v\n", err)
		}
	}()

	err = api.Start(ctx, api.StartOpts{
		Engine:  engine,
		CallLog: store,
		Port:    cfg.API.Port,
		Out:     out,
	})
	cancel()
	wg.Wait()
	return err
}

// createAdapter builds a platform adapter from the config. An empty platform
// yields a nil adapter.
func createAdapter(cfg *config.Config) (telegraph.Adapter, error) {
	switch cfg.Telegraph.Platform {
	case "":
		return nil, nil
	case "slack":
		return slackadapter.New(slackadapter.AdapterOpts{
			BotToken:  cfg.Telegraph.Slack.BotToken,
			ChannelID: cfg.Telegraph.ChannelID,
		})
	case "discord":
		return discordadapter.New(discordadapter.AdapterOpts{
			BotToken:  cfg.Telegraph.Discord.BotToken,
			ChannelID: cfg.Telegraph.ChannelID,
		})
	default:
		return nil, fmt.Errorf("telegraph: unsupported platform %q", cfg.Telegraph.Platform)
	}
}
