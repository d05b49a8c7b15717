package commands

import (
	"context"
	"fmt"
	"os"
	"runtime"
	"time"

	"github.com/burrowkit/burrow/adapters"
	"github.com/burrowkit/burrow/cli/config"
	"github.com/burrowkit/burrow/cli/styles"
	"github.com/burrowkit/burrow/cli/ui"
	"github.com/spf13/cobra"
)

// CheckStatus is the outcome class of a single diagnostic check.
type CheckStatus int

const (
	StatusOK CheckStatus = iota
	StatusWarning
	StatusError
)

// CheckResult is what a diagnostic check reports back.
type CheckResult struct {
	Name           string
	Status         CheckStatus
	Message        string
	Recommendation string
}

func newCheckResult(name string, status CheckStatus, message string) CheckResult {
	return CheckResult{Name: name, Status: status, Message: message}
}

func (r CheckResult) withRecommendation(rec string) CheckResult {
	r.Recommendation = rec
	return r
}

// NewDiagnoseCommand creates the diagnose command.
func NewDiagnoseCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "diagnose",
		Aliases: []string{"diag", "doctor"},
		Short:   "Run diagnostic checks",
		Long: `Inspect a burrow project and report anything unhealthy.

Checks cover the configuration file, database connectivity, event store
reachability, and system requirements.`,
		RunE: runDiagnose,
	}
}

func runDiagnose(cmd *cobra.Command, args []string) error {
	fmt.Printf("\n%s\n\n", ui.Banner())
	fmt.Printf("%s\n\n", styles.Title.Render(styles.IconHealth+" Running Diagnostics"))

	checks := []struct {
		name string
		run  func() CheckResult
	}{
		{"Go Version", checkGoVersion},
		{"Configuration", checkConfiguration},
		{"Database Connection", checkDatabaseConnection},
		{"Event Store", checkEventStore},
		{"System Resources", checkSystemResources},
	}

	var results []CheckResult
	healthy := true
	for _, c := range checks {
		fmt.Printf("  %s Checking %s... ", styles.IconPending, c.name)
		r := c.run()
		results = append(results, r)

		switch r.Status {
		case StatusOK:
			fmt.Println(styles.SuccessStyle.Render("OK"))
		case StatusWarning:
			fmt.Println(styles.WarningStyle.Render("WARNING"))
			healthy = false
		default:
			fmt.Println(styles.ErrorStyle.Render("FAILED"))
			healthy = false
		}
		if r.Message != "" {
			fmt.Printf("    %s\n", styles.Muted.Render(r.Message))
		}
	}

	fmt.Printf("\n%s\n\n", ui.Divider(50))

	if healthy {
		fmt.Println(styles.FormatSuccess("Everything looks good. Your burrow setup is healthy."))
		return nil
	}

	fmt.Printf("%s\n\n", styles.FormatWarning("Some checks failed or have warnings."))
	fmt.Println(styles.Subtitle.Render("Recommendations:"))
	for _, r := range results {
		if r.Recommendation != "" {
			fmt.Printf("  %s %s\n", styles.IconArrow, r.Recommendation)
		}
	}
	return nil
}

func checkGoVersion() CheckResult {
	v := runtime.Version()
	if v < "go1.21" {
		return newCheckResult("Go Version", StatusWarning, v).
			withRecommendation("Upgrade to Go 1.21 or later")
	}
	return newCheckResult("Go Version", StatusOK, v)
}

func checkConfiguration() CheckResult {
	const name = "Configuration"
	cwd, err := os.Getwd()
	switch {
	case err != nil:
		return newCheckResult(name, StatusError, err.Error()).withRecommendation("Verify working directory permissions")
	case !config.Exists(cwd):
		return newCheckResult(name, StatusWarning, "No burrow.yaml found").
			withRecommendation("Run 'burrow init' to create one")
	}

	cfg, err := config.Load(cwd)
	if err != nil {
		return newCheckResult(name, StatusError, fmt.Sprintf("Invalid config: %v", err)).
			withRecommendation("Fix the YAML syntax in burrow.yaml")
	}
	if problems := cfg.Validate(); len(problems) > 0 {
		return newCheckResult(name, StatusWarning, fmt.Sprintf("%d validation errors", len(problems))).
			withRecommendation(problems[0])
	}
	return newCheckResult(name, StatusOK,
		fmt.Sprintf("Project: %s, Driver: %s", cfg.Project.Name, cfg.Database.Driver))
}

func checkDatabaseConnection() CheckResult {
	const name = "Database Connection"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	env, skip, err := SetupDiagnosticEnv(ctx)
	switch skip {
	case DiagnosticSkipNoConfig:
		return newCheckResult(name, StatusWarning, "Configuration missing").withRecommendation("Run 'burrow init' first")
	case DiagnosticSkipMemoryDriver:
		return newCheckResult(name, StatusOK, "Memory driver, nothing to connect to")
	case DiagnosticSkipNoDBURL:
		return newCheckResult(name, StatusWarning, "DATABASE_URL is not set").withRecommendation("Export DATABASE_URL before running")
	}
	if err != nil {
		return newCheckResult(name, StatusError, err.Error()).withRecommendation("Double-check the database URL and credentials")
	}
	defer env.Close()

	if hc, ok := env.Adapter.(adapters.HealthChecker); ok {
		if err := hc.Ping(ctx); err != nil {
			return newCheckResult(name, StatusError, err.Error()).withRecommendation("Check database server status")
		}
	}
	return newCheckResult(name, StatusOK, "Connected")
}

func checkEventStore() CheckResult {
	const name = "Event Store"
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	env, skip, err := SetupDiagnosticEnv(ctx)
	switch {
	case skip == DiagnosticSkipNoConfig || skip == DiagnosticSkipMemoryDriver:
		return newCheckResult(name, StatusOK, "Skipped (memory driver or missing config)")
	case skip == DiagnosticSkipNoDBURL:
		return newCheckResult(name, StatusWarning, "Skipped, DATABASE_URL unset")
	case err != nil:
		return newCheckResult(name, StatusError, err.Error()).withRecommendation("Fix database connectivity first")
	}
	defer env.Close()

	pos, err := env.Adapter.GetLastPosition(ctx)
	if err != nil {
		return newCheckResult(name, StatusWarning, err.Error()).
			withRecommendation("Run 'burrow migrate up' to create the event store schema")
	}
	return newCheckResult(name, StatusOK, fmt.Sprintf("Reachable, last position %d", pos))
}

func checkSystemResources() CheckResult {
	const name = "System Resources"
	var mem runtime.MemStats
	runtime.ReadMemStats(&mem)

	toMB := func(b uint64) float64 { return float64(b) / 1024 / 1024 }
	msg := fmt.Sprintf("Memory: %.1f MB used, %.1f MB total", toMB(mem.Alloc), toMB(mem.Sys))

	if toMB(mem.Alloc) > 500 {
		return newCheckResult(name, StatusWarning, msg).withRecommendation("Consider optimizing memory usage")
	}
	return newCheckResult(name, StatusOK, msg)
}

// NewVersionCommand creates the version command.
func NewVersionCommand(version, commit, date string) *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version and build details",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Printf("\n%s\n\n", ui.SimpleBanner())

			info := ui.NewTable("", "")
			for _, row := range [][2]string{
				{"Version", version},
				{"Commit", commit},
				{"Built", date},
				{"Go", runtime.Version()},
				{"OS/Arch", fmt.Sprintf("%s/%s", runtime.GOOS, runtime.GOARCH)},
			} {
				info.AddRow(row[0], row[1])
			}
			fmt.Println(info.Render())
			return nil
		},
	}
}
