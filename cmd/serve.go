package cmd

import (
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/BioHazard786/Warpcall/internal/config"
	"github.com/BioHazard786/Warpcall/internal/logging"
	"github.com/BioHazard786/Warpcall/internal/server"
)

var (
	flagListen          string
	flagShutdownTimeout time.Duration
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the signaling relay",
	Long: `Run the websocket relay that pairs two participants per room and
forwards their offers, answers and ICE candidates.

Examples:
  warpcall serve
  warpcall serve --listen :9000
  PORT=9000 LOG_LEVEL=debug warpcall serve`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		logging.Init(zerolog.InfoLevel)

		cfg, err := config.LoadServer(config.ServerOptions{
			ListenAddr:      flagListen,
			ShutdownTimeout: flagShutdownTimeout,
		})
		if err != nil {
			return err
		}
		return server.New(cfg).Run(cmd.Context())
	},
}

func init() {
	serveCmd.Flags().StringVarP(&flagListen, "listen", "l", "", "Listen address (env: LISTEN_ADDR or PORT, default :8080)")
	serveCmd.Flags().DurationVar(&flagShutdownTimeout, "shutdown-timeout", 0, "Graceful shutdown timeout (env: SHUTDOWN_TIMEOUT, default 5s)")
	rootCmd.AddCommand(serveCmd)
}
