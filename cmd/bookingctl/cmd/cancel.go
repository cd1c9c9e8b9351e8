package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/client"
)

var cancelCmd = &cobra.Command{
	Use:   "cancel <external-id>",
	Short: "Cancel a booking (admin only)",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, cleanup, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		cancelled := application.StatusCancelled
		record, err := session.UpdateBooking(cmd.Context(), args[0], client.BookingPatch{Status: &cancelled})
		if err != nil {
			return err
		}

		fmt.Printf("cancelled %s (%s)\n", record.ExternalID, syncLabel(record.Synchronized))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(cancelCmd)
}
