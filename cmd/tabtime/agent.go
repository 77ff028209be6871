package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goodtune/tabtime/internal/agent"
	"github.com/goodtune/tabtime/internal/classifier"
	"github.com/goodtune/tabtime/internal/config"
	"github.com/goodtune/tabtime/internal/enforcer"
	"github.com/goodtune/tabtime/internal/nativemsg"
	"github.com/goodtune/tabtime/internal/period"
	"github.com/goodtune/tabtime/internal/syncclient"
	"github.com/goodtune/tabtime/internal/tracker"
	"github.com/spf13/cobra"
)

var agentCmd = &cobra.Command{
	Use:   "agent",
	Short: "Run the browser native messaging host",
	Long: `Run the activity tracker as a browser native messaging host.

The browser extension starts this command and exchanges length-prefixed JSON
messages over stdin and stdout. Logs are written to stderr.`,
	Args: cobra.ArbitraryArgs, // browsers pass the caller origin as an argument
	RunE: runAgent,
}

func init() {
	rootCmd.AddCommand(agentCmd)
}

func runAgent(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	// stdout belongs to the browser
	logger := setupLogger(cfg.Logging, os.Stderr)

	logger.Info().
		Str("version", version).
		Str("api", cfg.Agent.APIBaseURL).
		Msg("Starting tabtime agent")

	conn := nativemsg.NewConn(os.Stdin, os.Stdout)

	productive := classifier.New(cfg.Classifier.ProductiveSites...)
	t := tracker.New(productive, period.RealClock{}, logger)

	client := syncclient.New(syncclient.Options{
		BaseURL:   cfg.Agent.APIBaseURL,
		UserAgent: "tabtime-agent/" + version,
		Timeout:   parseDuration(cfg.Agent.RequestTimeout, 10*time.Second),
	}, logger)

	checker := enforcer.NewChecker(
		client,
		cfg.Agent.DecisionCacheSize,
		parseDuration(cfg.Agent.DecisionTTL, 5*time.Second),
		logger,
	)
	blocker := enforcer.New(conn, cfg.Agent.InterstitialURL, logger)

	a := agent.New(conn, t, client, checker, blocker, agent.Config{
		TickInterval:      parseDuration(cfg.Agent.TickInterval, 30*time.Second),
		FocusPollInterval: parseDuration(cfg.Agent.FocusPollInterval, 10*time.Second),
	}, logger)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return a.Run(ctx)
}
