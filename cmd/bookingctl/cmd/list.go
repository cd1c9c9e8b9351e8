package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List bookings from the mirror",
	RunE: func(cmd *cobra.Command, args []string) error {
		session, cleanup, err := newSession(cmd.Context())
		if err != nil {
			return err
		}
		defer cleanup()

		records, err := session.ListBookings(cmd.Context())
		if err != nil {
			return err
		}
		if len(records) == 0 {
			fmt.Println("no bookings")
			return nil
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "EXTERNAL ID\tROOM\tDATE\tSTART\tDURATION\tREQUESTER\tSTATUS\tSYNC")
		for _, record := range records {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%dm\t%s\t%s\t%s\n",
				record.ExternalID, record.Room, record.Date, record.StartTime,
				record.DurationMinutes, record.Requester,
				statusLabel(record.Status), syncLabel(record.Synchronized))
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(listCmd)
}
