package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/goodtune/tabtime/internal/classifier"
	"github.com/goodtune/tabtime/internal/config"
	"github.com/goodtune/tabtime/internal/period"
	"github.com/goodtune/tabtime/internal/policy"
	"github.com/goodtune/tabtime/internal/policy/opa"
	"github.com/goodtune/tabtime/internal/storage"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

const checkRule = "━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━━"

var (
	checkAt        string
	checkUsageType string
)

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Check limit decisions interactively",
	Long:  `Check how tabtime would classify a page or decide a domain's limits.`,
}

var checkStatusCmd = &cobra.Command{
	Use:   "status [flags] DOMAIN",
	Short: "Check whether a domain would be blocked",
	Long:  `Evaluate the daily and weekly limits of a domain against recorded usage.`,
	Example: `  tabtime -c config.yaml check status youtube.com
  tabtime check status --at "2024-03-17 23:59" youtube.com`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckStatus,
}

var checkClassifyCmd = &cobra.Command{
	Use:   "classify URL",
	Short: "Check how a page would be attributed",
	Example: `  tabtime check classify https://docs.github.com/en
  tabtime check classify chrome://settings`,
	Args: cobra.ExactArgs(1),
	RunE: runCheckClassify,
}

var checkUsageCmd = &cobra.Command{
	Use:     "usage [flags] WEBSITE",
	Short:   "Show recorded usage of a website",
	Example: `  tabtime check usage --type weekly youtube.com`,
	Args:    cobra.ExactArgs(1),
	RunE:    runCheckUsage,
}

func init() {
	checkStatusCmd.Flags().StringVar(&checkAt, "at", "", "Evaluate at this local time (YYYY-MM-DD HH:MM) - defaults to now")
	checkUsageCmd.Flags().StringVar(&checkUsageType, "type", "daily", "Window to report (daily or weekly)")

	checkCmd.AddCommand(checkStatusCmd)
	checkCmd.AddCommand(checkClassifyCmd)
	checkCmd.AddCommand(checkUsageCmd)
	rootCmd.AddCommand(checkCmd)
}

// checkEnv is the storage and evaluator needed by the check commands.
type checkEnv struct {
	store     storage.Store
	evaluator *policy.Engine
	loc       *time.Location
}

func openCheckEnv() (*checkEnv, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %w", err)
	}

	// Create a quiet logger for check mode
	logger := zerolog.New(os.Stderr).Level(zerolog.ErrorLevel).With().Timestamp().Logger()

	loc, err := cfg.Server.Location()
	if err != nil {
		return nil, fmt.Errorf("failed to load timezone: %w", err)
	}

	rule, err := opa.NewEngine(opa.Config{PolicyFile: cfg.Policy.QuotaPolicyFile}, logger)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize OPA engine: %w", err)
	}

	store, err := openStorage(cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("failed to initialize storage: %w", err)
	}

	return &checkEnv{
		store:     store,
		evaluator: policy.NewEngine(store.Limits(), store.Slices(), rule, period.RealClock{Location: loc}, logger),
		loc:       loc,
	}, nil
}

func runCheckStatus(cmd *cobra.Command, args []string) error {
	env, err := openCheckEnv()
	if err != nil {
		return err
	}
	defer env.store.Close()

	now := time.Now().In(env.loc)
	if checkAt != "" {
		now, err = time.ParseInLocation("2006-01-02 15:04", checkAt, env.loc)
		if err != nil {
			return fmt.Errorf("invalid --at time %q: %w", checkAt, err)
		}
		env.evaluator.SetClock(&period.FixedClock{CurrentTime: now})
	}

	decision, err := env.evaluator.Decide(context.Background(), args[0])
	if err != nil {
		return fmt.Errorf("failed to evaluate limits: %w", err)
	}

	printStatusResult(decision, now)
	return nil
}

func runCheckClassify(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	c := classifier.New(cfg.Classifier.ProductiveSites...)
	domain := classifier.ExtractDomain(args[0])

	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	yellow := color.New(color.FgYellow, color.Bold)

	printHeader("CLASSIFICATION CHECK")

	fmt.Printf("URL:        %s\n", args[0])
	cyan.Print("Domain:     ")
	if domain == "" {
		yellow.Println("(none)")
		fmt.Println("            → Page is not attributed to any domain")
		fmt.Println("            → Time spent here is not tracked")
	} else {
		fmt.Println(domain)
		cyan.Print("Category:   ")
		if c.IsProductive(domain) {
			green.Println("PRODUCTIVE")
		} else {
			yellow.Println("UNPRODUCTIVE")
		}
	}

	printFooter()
	return nil
}

func runCheckUsage(cmd *cobra.Command, args []string) error {
	limitType, err := storage.ParseLimitType(checkUsageType)
	if err != nil {
		return err
	}

	env, err := openCheckEnv()
	if err != nil {
		return err
	}
	defer env.store.Close()

	ctx := context.Background()
	website := storage.NormalizeWebsite(args[0])

	used, err := env.evaluator.Usage(ctx, website, period.Range(limitType))
	if err != nil {
		return fmt.Errorf("failed to read usage: %w", err)
	}

	limit, err := env.store.Limits().Get(ctx, website, limitType)
	if err != nil && !errors.Is(err, storage.ErrNotFound) {
		return fmt.Errorf("failed to read limit: %w", err)
	}

	yellow := color.New(color.FgYellow)

	printHeader("USAGE CHECK")

	fmt.Printf("Website:    %s\n", website)
	fmt.Printf("Window:     %s\n", limitType)
	fmt.Printf("Used:       %s\n", formatSeconds(used))
	if limit != nil {
		fmt.Printf("Limit:      %s\n", formatSeconds(limit.Seconds()))
		remaining := limit.Seconds() - used
		if remaining < 0 {
			remaining = 0
		}
		fmt.Printf("Remaining:  %s\n", formatSeconds(remaining))
	} else {
		yellow.Printf("Limit:      (no %s limit)\n", limitType)
	}

	printFooter()
	return nil
}

// printStatusResult prints the limit decision with colors
func printStatusResult(decision *policy.Decision, at time.Time) {
	cyan := color.New(color.FgCyan, color.Bold)
	green := color.New(color.FgGreen, color.Bold)
	red := color.New(color.FgRed, color.Bold)

	printHeader("LIMIT STATUS CHECK")

	fmt.Printf("Domain:     %s\n", decision.Domain)
	fmt.Printf("Check Time: %s (%s)\n", at.Format("2006-01-02 15:04"), at.Weekday())
	fmt.Println()

	cyan.Print("Decision:   ")
	if decision.ShouldBlock {
		red.Println("BLOCK")
		fmt.Printf("            → %s limit of %s reached\n", decision.LimitType, formatSeconds(decision.LimitSeconds))
		fmt.Println("            → Tabs on this domain will be redirected")
	} else {
		green.Println("ALLOW")
		if decision.LimitSeconds < 0 {
			fmt.Println("            → No limits are set for this domain")
		}
	}

	if decision.LimitSeconds >= 0 {
		fmt.Printf("Used:       %s of %s (%s)\n",
			formatSeconds(decision.UsedSeconds), formatSeconds(decision.LimitSeconds), decision.LimitType)
	}

	printFooter()
}

func printHeader(title string) {
	cyan := color.New(color.FgCyan, color.Bold)

	fmt.Println()
	cyan.Println(checkRule)
	cyan.Println(title)
	cyan.Println(checkRule)
	fmt.Println()
}

func printFooter() {
	fmt.Println()
	color.New(color.FgCyan, color.Bold).Println(checkRule)
	fmt.Println()
}

// formatSeconds renders a second count as a duration, e.g. "1h2m3s"
func formatSeconds(seconds int64) string {
	return (time.Duration(seconds) * time.Second).String()
}
