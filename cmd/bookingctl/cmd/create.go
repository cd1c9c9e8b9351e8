package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/room-booking/internal/client"
)

var createCmd = &cobra.Command{
	Use:   "create",
	Short: "Book a room",
	RunE: func(cmd *cobra.Command, args []string) error {
		session, cleanup, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		flags := cmd.Flags()
		booking := client.Booking{}
		booking.Room, _ = flags.GetString("room")
		booking.Date, _ = flags.GetString("date")
		booking.StartTime, _ = flags.GetString("start")
		booking.DurationMinutes, _ = flags.GetInt("duration")
		booking.Requester, _ = flags.GetString("requester")
		booking.Contact, _ = flags.GetString("contact")
		booking.Subject, _ = flags.GetString("subject")
		booking.Notes, _ = flags.GetString("notes")

		record, err := session.CreateBooking(cmd.Context(), booking)
		if err != nil {
			return err
		}

		fmt.Printf("booked %s on %s at %s (%s, %s)\n",
			record.Room, record.Date, record.StartTime,
			statusLabel(record.Status), syncLabel(record.Synchronized))
		fmt.Printf("external id: %s\n", record.ExternalID)
		return nil
	},
}

func init() {
	createCmd.Flags().String("room", "", "room id")
	createCmd.Flags().String("date", "", "booking date (YYYY-MM-DD)")
	createCmd.Flags().String("start", "", "start time (HH:MM)")
	createCmd.Flags().Int("duration", 60, "duration in minutes")
	createCmd.Flags().String("requester", "", "name of the requester")
	createCmd.Flags().String("contact", "", "contact email")
	createCmd.Flags().String("subject", "", "meeting subject")
	createCmd.Flags().String("notes", "", "free form notes")
	_ = createCmd.MarkFlagRequired("room")
	_ = createCmd.MarkFlagRequired("date")
	_ = createCmd.MarkFlagRequired("start")
	_ = createCmd.MarkFlagRequired("requester")
	_ = createCmd.MarkFlagRequired("contact")
	_ = createCmd.MarkFlagRequired("subject")

	rootCmd.AddCommand(createCmd)
}
