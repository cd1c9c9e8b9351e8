package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/example/room-booking/internal/application"
	"github.com/example/room-booking/internal/client"
)

var rootCmd = &cobra.Command{
	Use:   "bookingctl",
	Short: "Room booking client with an offline mirror",
	Long: `bookingctl talks to the room booking server and keeps a local mirror
of the bookings. When the server is unreachable every command keeps working
against the mirror; mutations are queued and replayed on the next sync.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the CLI and exits non-zero on failure.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		color.Red("error: %v", err)
		os.Exit(1)
	}
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().String("server", "http://localhost:8080", "base URL of the booking server")
	rootCmd.PersistentFlags().String("mirror", "", "path of the local mirror database")
	rootCmd.PersistentFlags().String("admin-secret", "", "administrative secret for privileged operations")
	rootCmd.PersistentFlags().Bool("offline", false, "skip connecting and work against the mirror only")
	rootCmd.PersistentFlags().Int("buffer-minutes", 15, "idle buffer applied after each booking for local checks")

	_ = viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("mirror", rootCmd.PersistentFlags().Lookup("mirror"))
	_ = viper.BindPFlag("admin_secret", rootCmd.PersistentFlags().Lookup("admin-secret"))
	_ = viper.BindPFlag("offline", rootCmd.PersistentFlags().Lookup("offline"))
	_ = viper.BindPFlag("buffer_minutes", rootCmd.PersistentFlags().Lookup("buffer-minutes"))
}

func initConfig() {
	if home, err := os.UserHomeDir(); err == nil {
		viper.AddConfigPath(home)
		viper.SetConfigName(".bookingctl")
		viper.SetConfigType("yaml")
	}
	viper.SetEnvPrefix("BOOKINGCTL")
	viper.AutomaticEnv()
	_ = viper.ReadInConfig()
}

func mirrorPath() (string, error) {
	if path := viper.GetString("mirror"); path != "" {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("resolve mirror path: %w", err)
	}
	dir := filepath.Join(home, ".bookingctl")
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("resolve mirror path: %w", err)
	}
	return filepath.Join(dir, "mirror.db"), nil
}

// newSession opens the mirror and, unless offline mode is requested,
// connects to the server. A failed connection is reported but not fatal:
// the session simply starts offline.
func newSession(ctx context.Context) (*client.Session, func(), error) {
	path, err := mirrorPath()
	if err != nil {
		return nil, nil, err
	}

	store, err := client.OpenStore(path)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() { _ = store.Close() }

	api := client.NewAPI(viper.GetString("server"), viper.GetString("admin_secret"), nil)
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))

	rules := application.DefaultRules()
	if buffer := viper.GetInt("buffer_minutes"); buffer >= 0 {
		rules.BufferMinutes = buffer
	}

	session := client.NewSession(api, store, rules, uuid.NewString, logger)

	if !viper.GetBool("offline") {
		if err := session.Connect(ctx); err != nil {
			color.Yellow("server unreachable, working offline: %v", err)
		}
	}

	return session, cleanup, nil
}

func statusLabel(status string) string {
	switch status {
	case application.StatusConfirmed:
		return color.GreenString(status)
	case application.StatusCancelled:
		return color.RedString(status)
	default:
		return color.YellowString(status)
	}
}

func syncLabel(synchronized bool) string {
	if synchronized {
		return color.GreenString("synced")
	}
	return color.YellowString("local")
}
