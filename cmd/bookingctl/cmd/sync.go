package cmd

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Replay queued mutations and refresh the mirror",
	RunE: func(cmd *cobra.Command, args []string) error {
		session, cleanup, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		if !session.Online() {
			if err := session.Connect(cmd.Context()); err != nil {
				return err
			}
		}

		records, err := session.ListBookings(cmd.Context())
		if err != nil {
			return err
		}

		unsynchronized := 0
		for _, record := range records {
			if !record.Synchronized {
				unsynchronized++
			}
		}

		if unsynchronized == 0 {
			color.Green("mirror is in sync: %d bookings", len(records))
			return nil
		}

		color.Yellow("%d of %d bookings remain unsynchronized", unsynchronized, len(records))
		for _, record := range records {
			if !record.Synchronized {
				fmt.Printf("  %s: %s %s at %s\n", record.ExternalID, record.Room, record.Date, record.StartTime)
			}
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
}
