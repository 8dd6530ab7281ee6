package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"

	"github.com/seuros/folio/internal/config"
	"github.com/seuros/folio/internal/geoip"
	"github.com/seuros/folio/internal/httpx"
	"github.com/seuros/folio/internal/presence"
	"github.com/seuros/folio/internal/storage"
)

// errChecksFailed is returned when at least one doctor check fails.
var errChecksFailed = errors.New("health checks failed")

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run health checks on the Folio installation",
	Long: `Run health checks on the Folio installation.

Checks performed:
  - Data directory writable
  - GeoIP database exists
  - Store schema migrated
  - Presence subject configured
  - Presence relay reachable

Example:
  folio doctor
  folio doctor --json`,
	RunE: runDoctor,
}

type CheckResult struct {
	Name       string `json:"name"`
	Pass       bool   `json:"pass"`
	Error      string `json:"error,omitempty"`
	Suggestion string `json:"suggestion,omitempty"`
	Details    string `json:"details,omitempty"`
}

func checkDataDirectory(cfg *config.Config) CheckResult {
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return CheckResult{
			Name:       "Data Directory Writable",
			Pass:       false,
			Error:      err.Error(),
			Suggestion: "Ensure DATA_DIR can be created",
		}
	}

	// Test write access to DATA_DIR
	testFile := filepath.Join(cfg.DataDir, ".folio-write-test")
	if err := os.WriteFile(testFile, []byte("test"), 0o644); err != nil {
		return CheckResult{
			Name:       "Data Directory Writable",
			Pass:       false,
			Error:      err.Error(),
			Suggestion: "Ensure DATA_DIR has write permissions",
		}
	}
	_ = os.Remove(testFile)
	return CheckResult{Name: "Data Directory Writable", Pass: true}
}

func checkGeoIPDatabase(cfg *config.Config) CheckResult {
	path := geoip.DatabasePath(cfg.DataDir)

	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return CheckResult{
				Name:       "GeoIP Database",
				Pass:       false,
				Error:      geoip.DatabaseFile + " not found",
				Suggestion: "Set GEOIP_DOWNLOAD=true to fetch it on the next start",
			}
		}
		return CheckResult{Name: "GeoIP Database", Pass: false, Error: err.Error()}
	}

	return CheckResult{
		Name:    "GeoIP Database",
		Pass:    true,
		Details: fmt.Sprintf("%.1f MB", float64(info.Size())/(1024*1024)),
	}
}

func checkStore(ctx context.Context, cfg *config.Config) CheckResult {
	if cfg.StoreDriver == "memory" {
		return CheckResult{Name: "Store", Pass: true, Details: "memory, nothing persists across restarts"}
	}

	store, err := storage.OpenSQLite(ctx, cfg.DataDir)
	if err != nil {
		return CheckResult{
			Name:       "Store",
			Pass:       false,
			Error:      err.Error(),
			Suggestion: "Check DATA_DIR permissions or set FOLIO_STORE=memory",
		}
	}
	_ = store.Close()

	version, dirty, err := storage.MigrationVersion(storage.DatabasePath(cfg.DataDir))
	if err != nil {
		return CheckResult{Name: "Store", Pass: false, Error: err.Error()}
	}
	if dirty {
		return CheckResult{
			Name:       "Store",
			Pass:       false,
			Error:      "Migration state is dirty",
			Suggestion: "Remove " + storage.DatabaseFile + " to rebuild the store",
		}
	}
	if version != storage.SchemaVersion {
		return CheckResult{
			Name:  "Store",
			Pass:  false,
			Error: fmt.Sprintf("Schema version %d, expected %d", version, storage.SchemaVersion),
		}
	}

	return CheckResult{Name: "Store", Pass: true, Details: fmt.Sprintf("sqlite v%d", version)}
}

func checkSubject(cfg *config.Config) CheckResult {
	if presence.IsPlaceholderSubject(cfg.SubjectID) {
		return CheckResult{
			Name:       "Presence Subject",
			Pass:       false,
			Error:      "No subject id configured, presence mirrors connectivity only",
			Suggestion: "Set FOLIO_SUBJECT_ID to a Discord user id",
		}
	}
	return CheckResult{Name: "Presence Subject", Pass: true, Details: cfg.SubjectID}
}

func checkRelay(ctx context.Context, cfg *config.Config) CheckResult {
	if presence.IsPlaceholderSubject(cfg.SubjectID) {
		return CheckResult{Name: "Presence Relay", Pass: false, Error: "Skipped, no subject configured"}
	}

	fetcher := presence.NewHTTPFetcher(httpx.NewClient(cfg.RequestTimeout), cfg.PresenceAPIURL, cfg.SubjectID, time.Now)
	p, err := fetcher.Fetch(ctx)
	switch {
	case errors.Is(err, presence.ErrNotLinked):
		return CheckResult{
			Name:       "Presence Relay",
			Pass:       false,
			Error:      "Subject is not monitored by the relay",
			Suggestion: "Join the Lanyard Discord server with this account",
		}
	case err != nil:
		return CheckResult{
			Name:       "Presence Relay",
			Pass:       false,
			Error:      err.Error(),
			Suggestion: "Check network access to " + cfg.PresenceAPIURL,
		}
	}
	return CheckResult{Name: "Presence Relay", Pass: true, Details: p.Status}
}

func runDoctor(cmd *cobra.Command, args []string) error {
	jsonOutput, _ := cmd.Flags().GetBool("json")

	cfg, err := loadConfig()
	if err != nil {
		fmt.Fprintf(cmd.ErrOrStderr(), "✗ Configuration Error: %v\n", err)
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	results := runChecks(ctx, cfg)

	out := cmd.OutOrStdout()
	if jsonOutput {
		outputDoctorJSON(out, results)
	} else {
		outputDoctorHuman(out, results)
	}

	for _, r := range results {
		if !r.Pass {
			return errChecksFailed
		}
	}
	return nil
}

func runChecks(ctx context.Context, cfg *config.Config) []CheckResult {
	return []CheckResult{
		checkDataDirectory(cfg),
		checkGeoIPDatabase(cfg),
		checkStore(ctx, cfg),
		checkSubject(cfg),
		checkRelay(ctx, cfg),
	}
}

func outputDoctorHuman(w io.Writer, results []CheckResult) {
	_, _ = fmt.Fprintln(w, "\nFolio Health Check")

	passed := 0
	for _, r := range results {
		icon := "✓"
		if !r.Pass {
			icon = "✗"
		} else {
			passed++
		}

		_, _ = fmt.Fprintf(w, "%s %s", icon, r.Name)
		if r.Details != "" {
			_, _ = fmt.Fprintf(w, " (%s)", r.Details)
		}
		_, _ = fmt.Fprintln(w)

		if !r.Pass {
			if r.Error != "" {
				_, _ = fmt.Fprintf(w, "  Error: %s\n", r.Error)
			}
			if r.Suggestion != "" {
				_, _ = fmt.Fprintf(w, "  Hint: %s\n", r.Suggestion)
			}
		}
	}

	_, _ = fmt.Fprintf(w, "\n%d/%d checks passed\n\n", passed, len(results))
}

func outputDoctorJSON(w io.Writer, results []CheckResult) {
	data, _ := json.MarshalIndent(results, "", "  ")
	_, _ = fmt.Fprintln(w, string(data))
}

func init() {
	doctorCmd.Flags().Bool("json", false, "Output results as JSON")
	RootCmd.AddCommand(doctorCmd)
}
