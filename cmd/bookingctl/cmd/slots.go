package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

var slotsCmd = &cobra.Command{
	Use:   "slots",
	Short: "Show admissible start times for a room and date",
	RunE: func(cmd *cobra.Command, args []string) error {
		session, cleanup, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		flags := cmd.Flags()
		room, _ := flags.GetString("room")
		date, _ := flags.GetString("date")
		duration, _ := flags.GetInt("duration")

		slots, err := session.AvailableSlots(cmd.Context(), room, date, duration)
		if err != nil {
			return err
		}
		if len(slots) == 0 {
			fmt.Printf("no free %d minute slots in %s on %s\n", duration, room, date)
			return nil
		}

		fmt.Printf("free %d minute slots in %s on %s:\n", duration, room, date)
		fmt.Println("  " + strings.Join(slots, "  "))
		return nil
	},
}

func init() {
	slotsCmd.Flags().String("room", "", "room id")
	slotsCmd.Flags().String("date", "", "booking date (YYYY-MM-DD)")
	slotsCmd.Flags().Int("duration", 60, "duration in minutes")
	_ = slotsCmd.MarkFlagRequired("room")
	_ = slotsCmd.MarkFlagRequired("date")

	rootCmd.AddCommand(slotsCmd)
}
