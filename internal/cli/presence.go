package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/goccy/go-json"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/seuros/folio/internal/presence"
)

// errNoPresence is returned by --once when nothing arrived in time.
var errNoPresence = errors.New("no presence received")

var presenceCmd = &cobra.Command{
	Use:   "presence",
	Short: "Watch the live presence of the configured subject",
	Long: `Watch the live presence of the configured subject.

On a terminal the status line is redrawn in place. With --once the first
settled snapshot is printed and the command exits.

Example:
  folio presence
  folio presence --once --json`,
	RunE: runPresence,
}

func runPresence(cmd *cobra.Command, _ []string) error {
	once, _ := cmd.Flags().GetBool("once")
	jsonOutput, _ := cmd.Flags().GetBool("json")
	wait, _ := cmd.Flags().GetDuration("wait")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	syncer := newSyncer(cfg)
	updates, unsubscribe := syncer.Subscribe()
	defer unsubscribe()
	syncer.Start(ctx)
	defer syncer.Stop()

	out := cmd.OutOrStdout()
	if once {
		ctx, cancel := context.WithTimeout(ctx, wait)
		defer cancel()
		snap, err := firstSettled(ctx, updates)
		if err != nil {
			return err
		}
		return printSnapshot(out, snap, jsonOutput)
	}

	return watchPresence(ctx, out, updates, jsonOutput, isTerminal(out))
}

// firstSettled returns the first snapshot that carries an availability.
func firstSettled(ctx context.Context, updates <-chan presence.Snapshot) (presence.Snapshot, error) {
	for {
		select {
		case <-ctx.Done():
			return presence.Snapshot{}, fmt.Errorf("%w: %w", errNoPresence, ctx.Err())
		case snap, ok := <-updates:
			if !ok {
				return presence.Snapshot{}, errNoPresence
			}
			if snap.Availability != "" {
				return snap, nil
			}
		}
	}
}

func watchPresence(ctx context.Context, w io.Writer, updates <-chan presence.Snapshot, jsonOutput, tty bool) error {
	var last string
	for {
		select {
		case <-ctx.Done():
			if tty && last != "" {
				_, _ = fmt.Fprintln(w)
			}
			return nil
		case snap, ok := <-updates:
			if !ok {
				return nil
			}
			if snap.Availability == "" {
				continue
			}
			if jsonOutput {
				if err := printSnapshot(w, snap, true); err != nil {
					return err
				}
				continue
			}
			line := presence.Describe(snap).String()
			if line == last {
				continue
			}
			last = line
			if err := renderLine(w, line, tty); err != nil {
				return err
			}
		}
	}
}

// renderLine redraws the status line in place on a terminal and appends a
// timestamped line otherwise.
func renderLine(w io.Writer, line string, tty bool) error {
	var err error
	if tty {
		_, err = fmt.Fprintf(w, "\r\033[2K%s", line)
	} else {
		_, err = fmt.Fprintf(w, "%s %s\n", time.Now().Format(time.TimeOnly), line)
	}
	return err
}

func printSnapshot(w io.Writer, snap presence.Snapshot, jsonOutput bool) error {
	if !jsonOutput {
		_, err := fmt.Fprintln(w, presence.Describe(snap).String())
		return err
	}
	data, err := json.Marshal(struct {
		Snapshot presence.Snapshot `json:"snapshot"`
		View     presence.View     `json:"view"`
	}{snap, presence.Describe(snap)})
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func init() {
	presenceCmd.Flags().Bool("once", false, "Print the first settled snapshot and exit")
	presenceCmd.Flags().Bool("json", false, "Output snapshots as JSON")
	presenceCmd.Flags().Duration("wait", 15*time.Second, "How long --once waits for a snapshot")
	RootCmd.AddCommand(presenceCmd)
}
