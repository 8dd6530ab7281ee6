package cli

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/seuros/folio/internal/insights"
)

var insightsCmd = &cobra.Command{
	Use:   "insights",
	Short: "Load visitor insights once and print them",
	Long: `Load visitor insights once and print them.

Counts a view, locates the current visitor and prints the recent visitor
history.

Example:
  folio insights
  folio insights --format yaml`,
	RunE: runInsights,
}

func runInsights(cmd *cobra.Command, _ []string) error {
	format, _ := cmd.Flags().GetString("format")
	format = strings.ToLower(format)
	if format != "text" && format != "json" && format != "yaml" {
		return fmt.Errorf("unsupported format %q (use text, json or yaml)", format)
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), 30*time.Second)
	defer cancel()

	svc, err := openServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.Close()

	return writeInsights(cmd.OutOrStdout(), svc.insights.Load(ctx), format)
}

func writeInsights(w io.Writer, result insights.Result, format string) error {
	switch format {
	case "json":
		data, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(w, string(data))
		return err
	case "yaml":
		enc := yaml.NewEncoder(w)
		enc.SetIndent(2)
		if err := enc.Encode(result); err != nil {
			return err
		}
		return enc.Close()
	default:
		return writeInsightsText(w, result)
	}
}

func writeInsightsText(w io.Writer, result insights.Result) error {
	var b strings.Builder
	fmt.Fprintf(&b, "Views: %d (%s)\n", result.ViewCount, result.ViewSource)

	if result.CurrentVisitor != nil {
		fmt.Fprintf(&b, "You: %s\n", describeVisitor(*result.CurrentVisitor))
	} else if result.ErrorMessage != "" {
		fmt.Fprintf(&b, "You: %s\n", result.ErrorMessage)
	}

	if len(result.History) > 0 {
		b.WriteString("\nRecent visitors:\n")
		for _, v := range result.History {
			fmt.Fprintf(&b, "  %s  %s\n", v.VisitedAt.Local().Format("2006-01-02 15:04"), describeVisitor(v))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func describeVisitor(v insights.VisitorRecord) string {
	return fmt.Sprintf("%s, %s, %s (%s) via %s", v.City, v.Region, v.Country, v.IP, v.Provider)
}

func init() {
	insightsCmd.Flags().String("format", "text", "Output format: text, json or yaml")
	RootCmd.AddCommand(insightsCmd)
}
