package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/room-booking/internal/client"
)

var updateCmd = &cobra.Command{
	Use:   "update <external-id>",
	Short: "Modify an existing booking",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		session, cleanup, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		patch := client.BookingPatch{}
		flags := cmd.Flags()
		if flags.Changed("room") {
			v, _ := flags.GetString("room")
			patch.Room = &v
		}
		if flags.Changed("date") {
			v, _ := flags.GetString("date")
			patch.Date = &v
		}
		if flags.Changed("start") {
			v, _ := flags.GetString("start")
			patch.StartTime = &v
		}
		if flags.Changed("duration") {
			v, _ := flags.GetInt("duration")
			patch.DurationMinutes = &v
		}
		if flags.Changed("requester") {
			v, _ := flags.GetString("requester")
			patch.Requester = &v
		}
		if flags.Changed("contact") {
			v, _ := flags.GetString("contact")
			patch.Contact = &v
		}
		if flags.Changed("subject") {
			v, _ := flags.GetString("subject")
			patch.Subject = &v
		}
		if flags.Changed("notes") {
			v, _ := flags.GetString("notes")
			patch.Notes = &v
		}
		if flags.Changed("status") {
			v, _ := flags.GetString("status")
			patch.Status = &v
		}

		record, err := session.UpdateBooking(cmd.Context(), args[0], patch)
		if err != nil {
			return err
		}

		fmt.Printf("updated %s: %s %s at %s (%s, %s)\n",
			record.ExternalID, record.Room, record.Date, record.StartTime,
			statusLabel(record.Status), syncLabel(record.Synchronized))
		return nil
	},
}

func init() {
	updateCmd.Flags().String("room", "", "room id")
	updateCmd.Flags().String("date", "", "booking date (YYYY-MM-DD)")
	updateCmd.Flags().String("start", "", "start time (HH:MM)")
	updateCmd.Flags().Int("duration", 0, "duration in minutes")
	updateCmd.Flags().String("requester", "", "name of the requester")
	updateCmd.Flags().String("contact", "", "contact email")
	updateCmd.Flags().String("subject", "", "meeting subject")
	updateCmd.Flags().String("notes", "", "free form notes")
	updateCmd.Flags().String("status", "", "booking status (admin only)")

	rootCmd.AddCommand(updateCmd)
}
