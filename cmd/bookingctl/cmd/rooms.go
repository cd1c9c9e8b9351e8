package cmd

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/example/room-booking/internal/client"
)

var roomsCmd = &cobra.Command{
	Use:   "rooms",
	Short: "List the available rooms",
	RunE: func(cmd *cobra.Command, args []string) error {
		api := client.NewAPI(viper.GetString("server"), viper.GetString("admin_secret"), nil)
		rooms, err := api.ListRooms(cmd.Context())
		if err != nil {
			return fmt.Errorf("the room catalog requires a reachable server: %w", err)
		}

		w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
		fmt.Fprintln(w, "ID\tNAME\tCAPACITY\tEQUIPMENT")
		for _, room := range rooms {
			fmt.Fprintf(w, "%s\t%s\t%d\t%s\n", room.ID, room.Name, room.Capacity, room.Equipment)
		}
		return w.Flush()
	},
}

func init() {
	rootCmd.AddCommand(roomsCmd)
}
