package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/face-gate/internal/config"
	"github.com/kozaktomas/face-gate/internal/eventlog"
)

var eventsCmd = &cobra.Command{
	Use:   "events",
	Short: "Show recent access decisions",
	RunE:  runEvents,
}

func init() {
	rootCmd.AddCommand(eventsCmd)

	eventsCmd.Flags().Int("limit", 50, "Number of events to show")
}

func runEvents(cmd *cobra.Command, args []string) error {
	cfg := config.Load()
	ctx := context.Background()

	limit := mustGetInt(cmd, "limit")
	if limit <= 0 {
		return fmt.Errorf("--limit must be positive")
	}

	log, err := openEventLog(ctx, cfg)
	if err != nil {
		return fmt.Errorf("opening event log: %w", err)
	}
	defer log.Close()

	events, err := log.Recent(ctx, limit)
	if err != nil {
		return fmt.Errorf("reading events: %w", err)
	}
	if len(events) == 0 {
		fmt.Println("No recorded events")
		return nil
	}

	for _, ev := range events {
		identity := "-"
		if ev.IdentityID != nil {
			identity = *ev.IdentityID
		}
		confidence := "     -"
		if ev.Confidence != nil {
			confidence = fmt.Sprintf("%.3f", *ev.Confidence)
		}
		fmt.Printf("%6d  %s  %-8s %s  %s\n",
			ev.ID, ev.Timestamp.Format(eventlog.TimeFormat), ev.Status, confidence, identity)
	}
	return nil
}
